package alerting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smukkama/airquality-server/internal/aggregation"
	"github.com/smukkama/airquality-server/internal/aqi"
	"github.com/smukkama/airquality-server/internal/database"
	"github.com/smukkama/airquality-server/internal/protocol"
)

// Watcher compares stored aggregates with the alert threshold and emits an
// AlertEvent for each record above it. Delivery is up to the consumers of
// the alerts topic.
type Watcher struct {
	thresholds ThresholdStore
	publisher  aggregation.Publisher
	logger     *slog.Logger
}

// NewWatcher creates a new threshold watcher
func NewWatcher(thresholds ThresholdStore, publisher aggregation.Publisher, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{thresholds: thresholds, publisher: publisher, logger: logger}
}

// Check publishes an alert when rec.AQI is determinate and strictly above
// the threshold. It reports whether an alert was sent.
func (w *Watcher) Check(ctx context.Context, rec *database.AggregateRecord) (bool, error) {
	if rec.AQI < 0 {
		return false, nil
	}

	threshold, err := w.thresholds.Threshold(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load threshold: %w", err)
	}
	if rec.AQI <= threshold {
		return false, nil
	}

	event := &protocol.AlertEvent{
		Type:          protocol.AlertTypeThresholdExceeded,
		AQI:           rec.AQI,
		Threshold:     threshold,
		Pollutant:     rec.Pollutant,
		Category:      aqi.Category(rec.AQI),
		IntervalStart: rec.IntervalStart,
		IntervalEnd:   rec.IntervalEnd,
		TickID:        aggregation.TickID(ctx),
	}

	data, err := protocol.EncodeAlertEvent(event)
	if err != nil {
		return false, fmt.Errorf("failed to encode alert: %w", err)
	}
	if err := w.publisher.Publish(ctx, rec.Pollutant, data); err != nil {
		return false, fmt.Errorf("failed to publish alert: %w", err)
	}

	w.logger.Warn("AQI threshold exceeded",
		"aqi", rec.AQI,
		"threshold", threshold,
		"pollutant", rec.Pollutant,
		"category", event.Category)
	return true, nil
}

// Hook adapts the watcher to an aggregation.RecordHook
func (w *Watcher) Hook() aggregation.RecordHook {
	return func(ctx context.Context, rec *database.AggregateRecord) {
		if _, err := w.Check(ctx, rec); err != nil {
			w.logger.Error("alert check failed", "error", err)
		}
	}
}
