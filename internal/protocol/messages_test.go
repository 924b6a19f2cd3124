package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/smukkama/airquality-server/internal/database"
)

func TestDecodeReadingMessage_Defaults(t *testing.T) {
	raw := []byte(`{"pm2_5": 12.5, "pm10": 40}`)
	received := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	msg, err := DecodeReadingMessage(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	r, err := msg.ToReading(received)
	if err != nil {
		t.Fatalf("ToReading failed: %v", err)
	}

	if r.Zone != database.DefaultZone {
		t.Errorf("Expected zone %q, got %q", database.DefaultZone, r.Zone)
	}
	if !r.Timestamp.Equal(received) {
		t.Errorf("Expected timestamp to default to receive time, got %s", r.Timestamp)
	}
	if *r.PM25 != 12.5 || *r.PM10 != 40 {
		t.Errorf("Unexpected particulate values: %v %v", *r.PM25, *r.PM10)
	}
	for name, v := range map[string]*float64{"o3": r.O3, "co": r.CO, "so2": r.SO2, "no2": r.NO2} {
		if v == nil || *v != 0 {
			t.Errorf("Expected %s to default to 0, got %v", name, v)
		}
	}
}

func TestReadingMessage_ExplicitFields(t *testing.T) {
	raw := []byte(`{"zone":" harbor ","timestamp":"2026-06-01T07:55:00Z","pm2_5":1,"pm10":2,"o3":0.03,"co":0.4,"so2":5,"no2":17}`)

	msg, err := DecodeReadingMessage(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	r, err := msg.ToReading(time.Now())
	if err != nil {
		t.Fatalf("ToReading failed: %v", err)
	}

	if r.Zone != "harbor" {
		t.Errorf("Expected trimmed zone, got %q", r.Zone)
	}
	want := time.Date(2026, 6, 1, 7, 55, 0, 0, time.UTC)
	if !r.Timestamp.Equal(want) {
		t.Errorf("Expected %s, got %s", want, r.Timestamp)
	}
	if *r.NO2 != 17 || *r.O3 != 0.03 {
		t.Errorf("Unexpected values no2=%v o3=%v", *r.NO2, *r.O3)
	}
}

func TestReadingMessage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		missing bool
	}{
		{"missing pm2_5", `{"pm10": 4}`, true},
		{"missing pm10", `{"pm2_5": 4}`, true},
		{"negative value", `{"pm2_5": 4, "pm10": 4, "co": -1}`, false},
		{"bad timestamp", `{"pm2_5": 4, "pm10": 4, "timestamp": "yesterday"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeReadingMessage([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			err = msg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if got := errors.Is(err, ErrMissingField); got != tt.missing {
				t.Errorf("errors.Is(err, ErrMissingField) = %v, want %v (err=%v)", got, tt.missing, err)
			}
		})
	}
}

func TestDecodeReadingMessage_InvalidJSON(t *testing.T) {
	if _, err := DecodeReadingMessage([]byte(`{not json`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestAggregateMessage_FromRecord(t *testing.T) {
	start := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	rec := &database.AggregateRecord{
		IntervalStart: start,
		IntervalEnd:   start.Add(10 * time.Minute),
		PM25Avg:       15,
		AQI:           -1,
		AQIPM25:       -1,
		Pollutant:     "PM25",
	}

	data, err := EncodeAggregateMessage(NewAggregateMessage("tick-1", rec))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	msg, err := DecodeAggregateMessage(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if msg.AQI != -1 || msg.Category != "Indeterminate" || msg.TickID != "tick-1" {
		t.Errorf("Unexpected message: %+v", msg)
	}
	if !msg.IntervalEnd.Equal(rec.IntervalEnd) {
		t.Errorf("Expected interval end %s, got %s", rec.IntervalEnd, msg.IntervalEnd)
	}
}
