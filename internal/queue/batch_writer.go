package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/smukkama/airquality-server/internal/database"
	"github.com/smukkama/airquality-server/internal/protocol"
)

// MessageSource is the consuming side of a Kafka topic
type MessageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// ReadingWriter appends readings to the record store
type ReadingWriter interface {
	InsertReading(ctx context.Context, r *database.Reading) error
}

// BatchWriter consumes raw readings from Kafka and batch-writes them to the store
type BatchWriter struct {
	source        MessageSource
	store         ReadingWriter
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	stats BatchStats
}

// BatchStats counts ingest outcomes
type BatchStats struct {
	Stored   int
	Rejected int
	Failed   int
	Flushes  int
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(source MessageSource, store ReadingWriter, batchSize int, flushInterval time.Duration, logger *slog.Logger) *BatchWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchWriter{
		source:        source,
		store:         store,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		now:           time.Now,
	}
}

// Start begins consuming and writing to the store
func (bw *BatchWriter) Start(ctx context.Context) error {
	if bw.batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", bw.batchSize)
	}
	if bw.flushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %s", bw.flushInterval)
	}

	ctx, bw.cancel = context.WithCancel(ctx)
	bw.wg.Add(1)
	go bw.run(ctx)
	return nil
}

// Stop flushes the pending batch and stops the writer
func (bw *BatchWriter) Stop() {
	if bw.cancel != nil {
		bw.cancel()
	}
	bw.wg.Wait()
}

// Stats returns a snapshot of the ingest counters
func (bw *BatchWriter) Stats() BatchStats {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.stats
}

func (bw *BatchWriter) run(ctx context.Context) {
	defer bw.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	msgChan := make(chan kafka.Message, bw.batchSize)
	fetchDone := make(chan struct{})
	go func() {
		defer close(fetchDone)
		for {
			msg, err := bw.source.Consume(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				bw.logger.Warn("consumer error", "error", err)
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			select {
			case msgChan <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			<-fetchDone
			// drain what was already fetched, then flush with a fresh context
		drain:
			for {
				select {
				case msg := <-msgChan:
					batch = append(batch, msg)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				bw.flush(flushCtx, batch)
				cancel()
			}
			return

		case <-ticker.C:
			if len(batch) > 0 {
				bw.logger.Debug("flush interval reached", "messages", len(batch))
				bw.flush(ctx, batch)
				batch = nil
			}

		case msg := <-msgChan:
			batch = append(batch, msg)
			if len(batch) >= bw.batchSize {
				bw.logger.Debug("batch full", "messages", len(batch))
				bw.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) {
	var stored, rejected, failed int
	for _, msg := range batch {
		err := bw.processMessage(ctx, msg)
		var invalid *invalidMessageError
		switch {
		case errors.As(err, &invalid):
			// poison messages are committed so they are not redelivered forever
			rejected++
			bw.logger.Warn("rejected reading", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		case err != nil:
			failed++
			bw.logger.Error("failed to store reading", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		default:
			stored++
		}

		if err := bw.source.Commit(ctx, msg); err != nil {
			bw.logger.Error("failed to commit offset", "offset", msg.Offset, "error", err)
		}
	}

	bw.mu.Lock()
	bw.stats.Stored += stored
	bw.stats.Rejected += rejected
	bw.stats.Failed += failed
	bw.stats.Flushes++
	bw.mu.Unlock()

	bw.logger.Info("flushed readings", "stored", stored, "rejected", rejected, "failed", failed)
}

type invalidMessageError struct {
	err error
}

func (e *invalidMessageError) Error() string { return e.err.Error() }
func (e *invalidMessageError) Unwrap() error { return e.err }

func (bw *BatchWriter) processMessage(ctx context.Context, msg kafka.Message) error {
	readingMsg, err := protocol.DecodeReadingMessage(msg.Value)
	if err != nil {
		return &invalidMessageError{fmt.Errorf("failed to decode message: %w", err)}
	}

	receivedAt := msg.Time
	if receivedAt.IsZero() {
		receivedAt = bw.now()
	}

	reading, err := readingMsg.ToReading(receivedAt)
	if err != nil {
		return &invalidMessageError{fmt.Errorf("invalid reading: %w", err)}
	}

	if err := bw.store.InsertReading(ctx, reading); err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}
