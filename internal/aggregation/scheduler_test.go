package aggregation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smukkama/airquality-server/internal/database"
	"github.com/smukkama/airquality-server/internal/timer"
)

type countingTicker struct {
	calls      atomic.Int32
	concurrent atomic.Int32
	maxSeen    atomic.Int32
	delay      time.Duration
	err        error
	rec        *database.AggregateRecord
	ids        chan string
}

func (c *countingTicker) Tick(ctx context.Context) (*database.AggregateRecord, error) {
	n := c.concurrent.Add(1)
	defer c.concurrent.Add(-1)
	for {
		seen := c.maxSeen.Load()
		if n <= seen || c.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	c.calls.Add(1)
	if c.ids != nil {
		select {
		case c.ids <- TickID(ctx):
		default:
		}
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
		}
	}
	return c.rec, c.err
}

func newTimers(t *testing.T) *timer.TimerManager {
	tm := timer.NewTimerManager()
	tm.Start()
	t.Cleanup(tm.Stop)
	return tm
}

func TestScheduler_TicksAtPeriod(t *testing.T) {
	ticker := &countingTicker{rec: &database.AggregateRecord{AQI: 42}}
	s := NewScheduler(ticker, newTimers(t), SchedulerConfig{Period: 20 * time.Millisecond, TickTimeout: time.Second}, nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return ticker.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.GreaterOrEqual(t, s.Stats().Completed, uint64(3))
}

func TestScheduler_CountsEmptyAndFailedTicks(t *testing.T) {
	empty := &countingTicker{}
	s := NewScheduler(empty, newTimers(t), SchedulerConfig{Period: 10 * time.Millisecond}, nil)
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.Stats().EmptyWindows >= 2 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	failing := &countingTicker{err: errors.New("store down")}
	s = NewScheduler(failing, newTimers(t), SchedulerConfig{Period: 10 * time.Millisecond}, nil)
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.Stats().Failed >= 2 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestScheduler_SkipsOverlappingTicks(t *testing.T) {
	ticker := &countingTicker{delay: 120 * time.Millisecond}
	s := NewScheduler(ticker, newTimers(t), SchedulerConfig{Period: 20 * time.Millisecond, TickTimeout: time.Second}, nil)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.Stats().SkippedTicks >= 2 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	require.Equal(t, int32(1), ticker.maxSeen.Load())
}

func TestScheduler_StopHaltsTicks(t *testing.T) {
	ticker := &countingTicker{}
	tm := newTimers(t)
	s := NewScheduler(ticker, tm, SchedulerConfig{Period: 10 * time.Millisecond}, nil)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return ticker.calls.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	// let any firing already dispatched finish
	time.Sleep(30 * time.Millisecond)
	after := ticker.calls.Load()
	time.Sleep(60 * time.Millisecond)

	require.Equal(t, after, ticker.calls.Load())
	require.Zero(t, tm.Stats().ScheduledTasks)
}

func TestScheduler_TickTimeoutCancelsContext(t *testing.T) {
	ticker := &countingTicker{delay: time.Hour}
	s := NewScheduler(ticker, newTimers(t), SchedulerConfig{Period: 10 * time.Millisecond, TickTimeout: 20 * time.Millisecond}, nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	// a tick that never returned would block every later one
	require.Eventually(t, func() bool { return ticker.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_TickIDOnContext(t *testing.T) {
	ticker := &countingTicker{ids: make(chan string, 1)}
	s := NewScheduler(ticker, newTimers(t), SchedulerConfig{Period: 10 * time.Millisecond}, nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case id := <-ticker.ids:
		require.NotEmpty(t, id)
	case <-time.After(2 * time.Second):
		t.Fatal("no tick ran")
	}
}

func TestScheduler_StartValidation(t *testing.T) {
	tm := newTimers(t)

	s := NewScheduler(&countingTicker{}, tm, SchedulerConfig{}, nil)
	require.Error(t, s.Start(context.Background()))

	s = NewScheduler(&countingTicker{}, tm, SchedulerConfig{Period: time.Hour}, nil)
	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()))
	require.False(t, s.Stats().NextRun.IsZero())

	s.Stop()
	require.Error(t, s.Start(context.Background()))
}
