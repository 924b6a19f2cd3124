package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/smukkama/airquality-server/internal/database"
	"github.com/smukkama/airquality-server/internal/timer"
)

const tickTaskID = "aqi-window-aggregation"

// Ticker is the unit of work the Scheduler runs each period.
type Ticker interface {
	Tick(ctx context.Context) (*database.AggregateRecord, error)
}

// SchedulerConfig controls tick cadence
type SchedulerConfig struct {
	Period      time.Duration
	TickTimeout time.Duration
}

// Scheduler fires a Ticker at a fixed cadence on a timer.TimerManager.
// At most one tick runs at a time; a firing that finds the previous tick
// still running is skipped.
type Scheduler struct {
	ticker Ticker
	timers *timer.TimerManager
	cfg    SchedulerConfig
	logger *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	nextRun time.Time
	started bool
	stopped bool

	inFlight  atomic.Bool
	completed atomic.Uint64
	empty     atomic.Uint64
	failed    atomic.Uint64
	skipped   atomic.Uint64
}

// SchedulerStats counts tick outcomes since Start
type SchedulerStats struct {
	Completed    uint64
	EmptyWindows uint64
	Failed       uint64
	SkippedTicks uint64
	NextRun      time.Time
}

// NewScheduler creates a stopped scheduler
func NewScheduler(ticker Ticker, timers *timer.TimerManager, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		ticker: ticker,
		timers: timers,
		cfg:    cfg,
		logger: logger,
	}
}

// Start schedules the first tick one period from now
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Period <= 0 {
		return fmt.Errorf("scheduler period must be positive, got %s", s.cfg.Period)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.New("scheduler already stopped")
	}
	if s.started {
		return errors.New("scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.nextRun = time.Now().Add(s.cfg.Period)
	if err := s.timers.Schedule(tickTaskID, s.nextRun, s.fire); err != nil {
		s.cancel()
		return fmt.Errorf("failed to schedule first tick: %w", err)
	}
	s.started = true

	s.logger.Info("aggregation scheduler started", "period", s.cfg.Period, "first_run", s.nextRun)
	return nil
}

// Stop cancels the pending tick and the context of a running one. It does
// not wait; stopping the TimerManager does.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		s.stopped = true
		return
	}
	s.stopped = true
	s.timers.Cancel(tickTaskID)
	s.cancel()
	s.logger.Info("aggregation scheduler stopped")
}

// Stats returns a snapshot of tick counters
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	next := s.nextRun
	s.mu.Unlock()

	return SchedulerStats{
		Completed:    s.completed.Load(),
		EmptyWindows: s.empty.Load(),
		Failed:       s.failed.Load(),
		SkippedTicks: s.skipped.Load(),
		NextRun:      next,
	}
}

// fire reschedules the next tick before running this one so the cadence
// does not drift with tick duration.
func (s *Scheduler) fire() {
	if !s.scheduleNext() {
		return
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Warn("previous aggregation tick still running, skipping")
		return
	}
	defer s.inFlight.Store(false)

	s.runTick()
}

func (s *Scheduler) scheduleNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}

	s.nextRun = s.nextRun.Add(s.cfg.Period)
	// after a long stall, resume from now instead of firing a backlog
	if now := time.Now(); s.nextRun.Before(now) {
		s.nextRun = now.Add(s.cfg.Period)
	}

	if err := s.timers.Schedule(tickTaskID, s.nextRun, s.fire); err != nil {
		s.logger.Error("failed to schedule next aggregation tick", "error", err)
	}
	return true
}

func (s *Scheduler) runTick() {
	tickID := uuid.NewString()
	logger := s.logger.With("tick_id", tickID)

	ctx := s.ctx
	var cancel context.CancelFunc
	if s.cfg.TickTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TickTimeout)
		defer cancel()
	}
	ctx = WithTickID(ctx, tickID)

	started := time.Now()
	rec, err := s.ticker.Tick(ctx)
	switch {
	case err != nil:
		s.failed.Add(1)
		logger.Error("aggregation tick failed", "error", err, "elapsed", time.Since(started))
	case rec == nil:
		s.empty.Add(1)
		logger.Info("aggregation tick found no readings")
	default:
		s.completed.Add(1)
		logger.Debug("aggregation tick completed", "aqi", rec.AQI, "elapsed", time.Since(started))
	}
}

type tickIDKey struct{}

// WithTickID attaches a tick identifier to ctx
func WithTickID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tickIDKey{}, id)
}

// TickID returns the identifier of the tick running under ctx, if any
func TickID(ctx context.Context) string {
	id, _ := ctx.Value(tickIDKey{}).(string)
	return id
}
