package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/smukkama/airquality-server/internal/database"
)

// ReadingMessage is a raw sensor sample as published on the readings topic.
// Optional concentrations may be omitted.
type ReadingMessage struct {
	SensorID  string   `json:"sensor_id,omitempty"`
	Zone      string   `json:"zone,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	PM25      *float64 `json:"pm2_5"`
	PM10      *float64 `json:"pm10"`
	O3        *float64 `json:"o3,omitempty"`
	CO        *float64 `json:"co,omitempty"`
	SO2       *float64 `json:"so2,omitempty"`
	NO2       *float64 `json:"no2,omitempty"`
}

// ErrMissingField is returned for a reading without a required pollutant
var ErrMissingField = errors.New("missing required field")

// Validate checks required fields, timestamp format and value ranges
func (m *ReadingMessage) Validate() error {
	if m.PM25 == nil {
		return fmt.Errorf("%w: pm2_5", ErrMissingField)
	}
	if m.PM10 == nil {
		return fmt.Errorf("%w: pm10", ErrMissingField)
	}

	fields := []struct {
		name  string
		value *float64
	}{
		{"pm2_5", m.PM25},
		{"pm10", m.PM10},
		{"o3", m.O3},
		{"co", m.CO},
		{"so2", m.SO2},
		{"no2", m.NO2},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if math.IsNaN(*f.value) || math.IsInf(*f.value, 0) {
			return fmt.Errorf("%s must be a finite number", f.name)
		}
		if *f.value < 0 {
			return fmt.Errorf("%s must not be negative, got %g", f.name, *f.value)
		}
	}

	if m.Timestamp != "" {
		if _, err := time.Parse(time.RFC3339, m.Timestamp); err != nil {
			return fmt.Errorf("invalid timestamp format (must be RFC3339): %w", err)
		}
	}
	return nil
}

// ToReading validates the message and fills defaults: zone "Unknown",
// timestamp receivedAt, and 0 for omitted optional pollutants.
func (m *ReadingMessage) ToReading(receivedAt time.Time) (*database.Reading, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	ts := receivedAt
	if m.Timestamp != "" {
		// already validated
		ts, _ = time.Parse(time.RFC3339, m.Timestamp)
	}

	zone := strings.TrimSpace(m.Zone)
	if zone == "" {
		zone = database.DefaultZone
	}

	return &database.Reading{
		Zone:       zone,
		Timestamp:  ts,
		PM25:       copyOrZero(m.PM25),
		PM10:       copyOrZero(m.PM10),
		O3:         copyOrZero(m.O3),
		CO:         copyOrZero(m.CO),
		SO2:        copyOrZero(m.SO2),
		NO2:        copyOrZero(m.NO2),
		ReceivedAt: receivedAt,
	}, nil
}

func copyOrZero(v *float64) *float64 {
	out := 0.0
	if v != nil {
		out = *v
	}
	return &out
}

// EncodeReadingMessage encodes a ReadingMessage to JSON
func EncodeReadingMessage(msg *ReadingMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeReadingMessage decodes JSON to ReadingMessage
func DecodeReadingMessage(data []byte) (*ReadingMessage, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &msg, nil
}
