package database

import (
	"time"
)

// Reading is one multi-pollutant sample as stored by the ingestor.
// A nil concentration means the field was absent.
type Reading struct {
	ID         int64
	Zone       string
	Timestamp  time.Time
	PM25       *float64
	PM10       *float64
	O3         *float64
	CO         *float64
	SO2        *float64
	NO2        *float64
	ReceivedAt time.Time
}

// AggregateRecord summarizes the readings of one trailing window.
// Sub-indices are -1 when the mean concentration is out of range.
type AggregateRecord struct {
	ID            int64
	IntervalStart time.Time
	IntervalEnd   time.Time
	PM25Avg       float64
	PM10Avg       float64
	AQI           int
	AQIPM25       int
	AQIPM10       int
	AQIO3         int
	AQICO         int
	AQISO2        int
	AQINO2        int
	Pollutant     string
	CreatedAt     time.Time
}

// IndexSnapshot is the index-only projection of an AggregateRecord.
type IndexSnapshot struct {
	IntervalStart time.Time
	AQI           int
	AQIPM25       int
	AQIPM10       int
	AQIO3         int
	AQICO         int
	AQISO2        int
	AQINO2        int
	Pollutant     string
}

// Snapshot projects the record onto its index fields.
func (r *AggregateRecord) Snapshot() *IndexSnapshot {
	return &IndexSnapshot{
		IntervalStart: r.IntervalStart,
		AQI:           r.AQI,
		AQIPM25:       r.AQIPM25,
		AQIPM10:       r.AQIPM10,
		AQIO3:         r.AQIO3,
		AQICO:         r.AQICO,
		AQISO2:        r.AQISO2,
		AQINO2:        r.AQINO2,
		Pollutant:     r.Pollutant,
	}
}

// DefaultZone labels readings ingested without a zone.
const DefaultZone = "Unknown"
