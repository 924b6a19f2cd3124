package aggregation

import (
	"context"
	"log/slog"

	"github.com/smukkama/airquality-server/internal/database"
	"github.com/smukkama/airquality-server/internal/protocol"
)

// Publisher sends a keyed message to a topic
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// PublishHook announces every stored record on the aggregates topic, keyed
// by tick id. Failures are logged; the record is already persisted.
func PublishHook(p Publisher, logger *slog.Logger) RecordHook {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, rec *database.AggregateRecord) {
		tickID := TickID(ctx)
		data, err := protocol.EncodeAggregateMessage(protocol.NewAggregateMessage(tickID, rec))
		if err != nil {
			logger.Error("failed to encode aggregate event", "error", err)
			return
		}
		if err := p.Publish(ctx, tickID, data); err != nil {
			logger.Error("failed to publish aggregate event", "tick_id", tickID, "error", err)
		}
	}
}
