package aggregation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smukkama/airquality-server/internal/aqi"
	"github.com/smukkama/airquality-server/internal/database"
)

// ReadingSource supplies raw readings for a window. Bounds are inclusive.
type ReadingSource interface {
	QueryReadings(ctx context.Context, start, end time.Time) ([]database.Reading, error)
}

// AggregateStore receives one record per non-empty window.
type AggregateStore interface {
	InsertAggregate(ctx context.Context, rec *database.AggregateRecord) error
}

// RecordHook is invoked after a record has been stored. Hooks cannot fail a
// tick; they log their own errors.
type RecordHook func(ctx context.Context, rec *database.AggregateRecord)

// StoreError reports a failed read or write against the record store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// WindowAggregator turns the readings of a trailing window into one
// AggregateRecord.
type WindowAggregator struct {
	source ReadingSource
	store  AggregateStore
	table  aqi.Table
	window time.Duration
	now    func() time.Time
	hooks  []RecordHook
	logger *slog.Logger
}

// Option configures a WindowAggregator
type Option func(*WindowAggregator)

// WithClock replaces time.Now as the source of the window end
func WithClock(now func() time.Time) Option {
	return func(w *WindowAggregator) { w.now = now }
}

// WithTable replaces aqi.DefaultTable
func WithTable(t aqi.Table) Option {
	return func(w *WindowAggregator) { w.table = t }
}

// WithHook registers a hook run after each successful write
func WithHook(h RecordHook) Option {
	return func(w *WindowAggregator) { w.hooks = append(w.hooks, h) }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(w *WindowAggregator) { w.logger = l }
}

// NewWindowAggregator creates an aggregator over [now-window, now]
func NewWindowAggregator(source ReadingSource, store AggregateStore, window time.Duration, opts ...Option) *WindowAggregator {
	w := &WindowAggregator{
		source: source,
		store:  store,
		table:  aqi.DefaultTable,
		window: window,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Tick reads the current window, stores its aggregate and returns it.
// An empty window yields (nil, nil) and writes nothing.
func (w *WindowAggregator) Tick(ctx context.Context) (*database.AggregateRecord, error) {
	end := w.now()
	start := end.Add(-w.window)

	readings, err := w.source.QueryReadings(ctx, start, end)
	if err != nil {
		return nil, &StoreError{Op: "query readings", Err: err}
	}
	if len(readings) == 0 {
		w.logger.Debug("no readings in window", "start", start, "end", end)
		return nil, nil
	}

	rec := w.Summarize(start, end, readings)

	if err := w.store.InsertAggregate(ctx, rec); err != nil {
		return nil, &StoreError{Op: "insert aggregate", Err: err}
	}

	w.logger.Info("aggregate stored",
		"interval_start", rec.IntervalStart,
		"readings", len(readings),
		"aqi", rec.AQI,
		"pollutant", rec.Pollutant,
		"category", aqi.Category(rec.AQI))

	for _, hook := range w.hooks {
		hook(ctx, rec)
	}

	return rec, nil
}

// Summarize builds the record for a non-empty set of readings without
// touching the store.
func (w *WindowAggregator) Summarize(start, end time.Time, readings []database.Reading) *database.AggregateRecord {
	means := Means(readings)

	subs := make(aqi.SubIndices, len(aqi.Pollutants))
	for _, p := range aqi.Pollutants {
		subs[p] = w.table.Index(means[p], p)
	}
	overall, dominant := aqi.Combine(subs)

	return &database.AggregateRecord{
		IntervalStart: start,
		IntervalEnd:   end,
		PM25Avg:       means[aqi.PM25],
		PM10Avg:       means[aqi.PM10],
		AQI:           overall,
		AQIPM25:       subs[aqi.PM25],
		AQIPM10:       subs[aqi.PM10],
		AQIO3:         subs[aqi.O3],
		AQICO:         subs[aqi.CO],
		AQISO2:        subs[aqi.SO2],
		AQINO2:        subs[aqi.NO2],
		Pollutant:     string(dominant),
	}
}

// Means averages each pollutant over all readings. Absent fields count as 0
// and every reading counts toward the divisor.
func Means(readings []database.Reading) map[aqi.Pollutant]float64 {
	sums := make(map[aqi.Pollutant]float64, len(aqi.Pollutants))
	for _, r := range readings {
		sums[aqi.PM25] += valueOrZero(r.PM25)
		sums[aqi.PM10] += valueOrZero(r.PM10)
		sums[aqi.O3] += valueOrZero(r.O3)
		sums[aqi.CO] += valueOrZero(r.CO)
		sums[aqi.SO2] += valueOrZero(r.SO2)
		sums[aqi.NO2] += valueOrZero(r.NO2)
	}

	means := make(map[aqi.Pollutant]float64, len(aqi.Pollutants))
	if len(readings) == 0 {
		return means
	}
	n := float64(len(readings))
	for _, p := range aqi.Pollutants {
		means[p] = sums[p] / n
	}
	return means
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
