package database

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Reading and AggregateRecord store with the
// same query contract as DB. Records are copied in and out.
type MemoryStore struct {
	mu         sync.RWMutex
	readings   []Reading
	aggregates []AggregateRecord
	nextID     int64
	now        func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// InsertReading appends a reading and assigns its ID
func (m *MemoryStore) InsertReading(_ context.Context, r *Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	r.ID = m.nextID
	m.readings = append(m.readings, copyReading(*r))
	return nil
}

// QueryReadings returns readings with start <= timestamp <= end in arrival order
func (m *MemoryStore) QueryReadings(_ context.Context, start, end time.Time) ([]Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Reading
	for _, r := range m.readings {
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		out = append(out, copyReading(r))
	}
	return out, nil
}

// InsertAggregate appends a record and assigns its ID and CreatedAt
func (m *MemoryStore) InsertAggregate(_ context.Context, rec *AggregateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	rec.ID = m.nextID
	rec.CreatedAt = m.now()
	m.aggregates = append(m.aggregates, *rec)
	return nil
}

// QueryAggregates returns records newest first, limited to
// IntervalStart >= startDate when startDate is set
func (m *MemoryStore) QueryAggregates(_ context.Context, startDate *time.Time) ([]AggregateRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []AggregateRecord
	for _, rec := range m.aggregates {
		if startDate != nil && rec.IntervalStart.Before(*startDate) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i], out[j])
	})
	return out, nil
}

// LatestAggregate returns the record with the greatest IntervalStart, or nil
func (m *MemoryStore) LatestAggregate(_ context.Context) (*AggregateRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *AggregateRecord
	for i := range m.aggregates {
		if best == nil || newer(m.aggregates[i], *best) {
			best = &m.aggregates[i]
		}
	}
	if best == nil {
		return nil, nil
	}
	rec := *best
	return &rec, nil
}

// LatestIndices returns the index projection of the latest record, or nil
func (m *MemoryStore) LatestIndices(ctx context.Context) (*IndexSnapshot, error) {
	rec, err := m.LatestAggregate(ctx)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.Snapshot(), nil
}

// HighestAggregate returns the record with the largest AQI, most recent on ties
func (m *MemoryStore) HighestAggregate(_ context.Context) (*AggregateRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *AggregateRecord
	for i := range m.aggregates {
		cur := &m.aggregates[i]
		if best == nil || cur.AQI > best.AQI || (cur.AQI == best.AQI && newer(*cur, *best)) {
			best = cur
		}
	}
	if best == nil {
		return nil, nil
	}
	rec := *best
	return &rec, nil
}

// AggregateCount returns the number of stored aggregate records
func (m *MemoryStore) AggregateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.aggregates)
}

func newer(a, b AggregateRecord) bool {
	if !a.IntervalStart.Equal(b.IntervalStart) {
		return a.IntervalStart.After(b.IntervalStart)
	}
	return a.ID > b.ID
}

func copyReading(r Reading) Reading {
	r.PM25 = copyFloat(r.PM25)
	r.PM10 = copyFloat(r.PM10)
	r.O3 = copyFloat(r.O3)
	r.CO = copyFloat(r.CO)
	r.SO2 = copyFloat(r.SO2)
	r.NO2 = copyFloat(r.NO2)
	return r
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
