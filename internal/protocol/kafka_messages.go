package protocol

import (
	"encoding/json"
	"time"

	"github.com/smukkama/airquality-server/internal/aqi"
	"github.com/smukkama/airquality-server/internal/database"
)

// AggregateMessage announces a stored aggregate record to downstream consumers
type AggregateMessage struct {
	TickID        string    `json:"tick_id,omitempty"`
	IntervalStart time.Time `json:"intervalStart"`
	IntervalEnd   time.Time `json:"intervalEnd"`
	PM25Avg       float64   `json:"pm2_5_avg"`
	PM10Avg       float64   `json:"pm10_avg"`
	AQI           int       `json:"aqi"`
	AQIPM25       int       `json:"aqi_pm25"`
	AQIPM10       int       `json:"aqi_pm10"`
	AQIO3         int       `json:"aqi_o3"`
	AQICO         int       `json:"aqi_co"`
	AQISO2        int       `json:"aqi_so2"`
	AQINO2        int       `json:"aqi_no2"`
	Pollutant     string    `json:"pollutant"`
	Category      string    `json:"category"`
}

// NewAggregateMessage builds the event for a stored record
func NewAggregateMessage(tickID string, rec *database.AggregateRecord) *AggregateMessage {
	return &AggregateMessage{
		TickID:        tickID,
		IntervalStart: rec.IntervalStart,
		IntervalEnd:   rec.IntervalEnd,
		PM25Avg:       rec.PM25Avg,
		PM10Avg:       rec.PM10Avg,
		AQI:           rec.AQI,
		AQIPM25:       rec.AQIPM25,
		AQIPM10:       rec.AQIPM10,
		AQIO3:         rec.AQIO3,
		AQICO:         rec.AQICO,
		AQISO2:        rec.AQISO2,
		AQINO2:        rec.AQINO2,
		Pollutant:     rec.Pollutant,
		Category:      aqi.Category(rec.AQI),
	}
}

// AlertEvent is the message format for threshold breaches
type AlertEvent struct {
	Type          string    `json:"type"`
	AQI           int       `json:"aqi"`
	Threshold     int       `json:"threshold"`
	Pollutant     string    `json:"pollutant"`
	Category      string    `json:"category"`
	IntervalStart time.Time `json:"interval_start"`
	IntervalEnd   time.Time `json:"interval_end"`
	TickID        string    `json:"tick_id,omitempty"`
}

const (
	AlertTypeThresholdExceeded = "AQI_THRESHOLD_EXCEEDED"
)

// EncodeAggregateMessage encodes an AggregateMessage to JSON
func EncodeAggregateMessage(msg *AggregateMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeAggregateMessage decodes JSON to AggregateMessage
func DecodeAggregateMessage(data []byte) (*AggregateMessage, error) {
	var msg AggregateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeAlertEvent encodes an AlertEvent to JSON
func EncodeAlertEvent(alert *AlertEvent) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeAlertEvent decodes JSON to AlertEvent
func DecodeAlertEvent(data []byte) (*AlertEvent, error) {
	var alert AlertEvent
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}
