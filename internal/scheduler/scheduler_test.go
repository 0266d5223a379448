package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Monday 2024-01-15 09:00 UTC
var start = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

type blocker interface {
	BlockUntilContext(ctx context.Context, n int) error
}

func newTestScheduler(t *testing.T, clock clockwork.Clock, timeout time.Duration) *Scheduler {
	t.Helper()

	s := New(Config{
		Clock:      clock,
		Logger:     slog.New(slog.DiscardHandler),
		JobTimeout: timeout,
	})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	return s
}

func waitTimers(t *testing.T, clock blocker, n int) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n), "expected %d pending timers", n)
}

func counting(calls *atomic.Int32) Handler {
	return func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}
}

func status(t *testing.T, s *Scheduler, name string) JobStatus {
	t.Helper()

	for _, st := range s.List() {
		if st.Name == name {
			return st
		}
	}
	t.Fatalf("job %s not listed", name)
	return JobStatus{}
}

func TestRegister_ThenStopLeavesNoPendingTimer(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 0)

	var calls atomic.Int32
	require.NoError(t, s.Register("tips", Every(time.Hour), counting(&calls), false))
	waitTimers(t, fc, 1)

	s.Stop("tips")
	waitTimers(t, fc, 0)

	fc.Advance(2 * time.Hour)
	assert.Never(t, func() bool { return calls.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	st := status(t, s, "tips")
	assert.False(t, st.Enabled)
	assert.Nil(t, st.NextRunAt)
	assert.Nil(t, st.LastRunAt)

	assert.NotPanics(t, func() {
		s.Stop("tips")
		s.StopAll()
	})
}

func TestRegister_RunImmediatelyExecutesOnceBeforeFirstDelayedRun(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 0)

	var calls atomic.Int32
	require.NoError(t, s.Register("platforms", Every(6*time.Hour), counting(&calls), true))

	require.Eventually(t, func() bool { return status(t, s, "platforms").Runs == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return calls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	st := status(t, s, "platforms")
	require.NotNil(t, st.NextRunAt)
	assert.Equal(t, start.Add(6*time.Hour), *st.NextRunAt)
	require.NotNil(t, st.LastRunAt)
	assert.Equal(t, start, *st.LastRunAt)

	waitTimers(t, fc, 1)
	fc.Advance(6 * time.Hour)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestRegister_WithoutRunImmediatelyWaitsForFirstSlot(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 0)

	var calls atomic.Int32
	require.NoError(t, s.Register("premium", Every(time.Hour), counting(&calls), false))

	assert.Never(t, func() bool { return calls.Load() > 0 }, 30*time.Millisecond, 5*time.Millisecond)

	waitTimers(t, fc, 1)
	fc.Advance(time.Hour)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestExecute_OverlappingFiringIsSkipped(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 0)

	started := make(chan struct{}, 10)
	release := make(chan struct{})
	handler := func(ctx context.Context) error {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}

	require.NoError(t, s.Register("odds", Every(time.Minute), handler, false))
	waitTimers(t, fc, 1)
	fc.Advance(time.Minute)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("handler did not start")
	}

	// the next slot is armed while the first run is still in flight
	waitTimers(t, fc, 1)
	fc.Advance(time.Minute)

	require.Eventually(t, func() bool { return status(t, s, "odds").Skipped == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, started, 0)
	assert.True(t, status(t, s, "odds").Running)

	close(release)
	require.Eventually(t, func() bool {
		st := status(t, s, "odds")
		return st.Runs == 1 && !st.Running
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, started, 0)
}

func TestRestart(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 0)

	var calls atomic.Int32
	require.NoError(t, s.Register("reports", WeeklyAt(time.Monday, 9, 0, time.UTC), counting(&calls), false))

	s.Stop("reports")
	assert.False(t, status(t, s, "reports").Enabled)

	s.Restart("reports")
	st := status(t, s, "reports")
	assert.True(t, st.Enabled)
	require.NotNil(t, st.NextRunAt)
	assert.True(t, st.NextRunAt.After(fc.Now()))
	assert.Equal(t, time.Date(2024, 1, 22, 9, 0, 0, 0, time.UTC), *st.NextRunAt)
	waitTimers(t, fc, 1)

	assert.NotPanics(t, func() {
		s.Restart("missing")
		s.Stop("missing")
	})
	assert.Len(t, s.List(), 1)
}

func TestStopAll_NoJobs(t *testing.T) {
	s := newTestScheduler(t, clockwork.NewFakeClockAt(start), 0)

	assert.NotPanics(t, func() { s.StopAll() })
	assert.Empty(t, s.List())
}

func TestRestartAll(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 0)

	var calls atomic.Int32
	require.NoError(t, s.Register("a", Every(time.Hour), counting(&calls), false))
	require.NoError(t, s.Register("b", DailyAt(10, 0, time.UTC), counting(&calls), false))

	s.StopAll()
	waitTimers(t, fc, 0)
	for _, st := range s.List() {
		assert.False(t, st.Enabled)
	}

	s.RestartAll()
	waitTimers(t, fc, 2)
	for _, st := range s.List() {
		assert.True(t, st.Enabled)
		require.NotNil(t, st.NextRunAt)
		assert.True(t, st.NextRunAt.After(fc.Now()))
	}
}

func TestDailyJob_FiresAtNextWallClockTarget(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 0)

	var calls atomic.Int32
	require.NoError(t, s.Register("daily", DailyAt(8, 0, time.UTC), counting(&calls), false))

	st := status(t, s, "daily")
	require.NotNil(t, st.NextRunAt)
	assert.Equal(t, time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC), *st.NextRunAt)

	waitTimers(t, fc, 1)
	fc.Advance(22 * time.Hour)
	assert.Never(t, func() bool { return calls.Load() > 0 }, 30*time.Millisecond, 5*time.Millisecond)

	fc.Advance(time.Hour)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	waitTimers(t, fc, 1)
	st = status(t, s, "daily")
	require.NotNil(t, st.NextRunAt)
	assert.Equal(t, time.Date(2024, 1, 17, 8, 0, 0, 0, time.UTC), *st.NextRunAt)
}

func TestExecute_FailuresDoNotStopTheJob(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 0)

	var calls atomic.Int32
	handler := func(ctx context.Context) error {
		switch calls.Add(1) {
		case 1:
			return errors.New("boom")
		case 2:
			panic("kaboom")
		}
		return nil
	}

	require.NoError(t, s.Register("flaky", Every(time.Hour), handler, false))

	for run := 1; run <= 3; run++ {
		waitTimers(t, fc, 1)
		fc.Advance(time.Hour)
		require.Eventually(t, func() bool { return status(t, s, "flaky").Runs == run }, time.Second, 5*time.Millisecond)

		st := status(t, s, "flaky")
		switch run {
		case 1:
			assert.Equal(t, "boom", st.LastError)
		case 2:
			assert.Contains(t, st.LastError, "panicked")
		}
	}

	st := status(t, s, "flaky")
	assert.Equal(t, 2, st.Failures)
	assert.Empty(t, st.LastError)
	assert.True(t, st.Enabled)
	require.NotNil(t, st.NextRunAt)
}

func TestExecute_TimeoutIsRecordedAsFailure(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 20*time.Millisecond)

	handler := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	require.NoError(t, s.Register("hung", Every(time.Hour), handler, true))

	require.Eventually(t, func() bool {
		st := status(t, s, "hung")
		return st.Runs == 1 && !st.Running
	}, time.Second, 5*time.Millisecond)

	st := status(t, s, "hung")
	assert.Equal(t, 1, st.Failures)
	assert.Contains(t, st.LastError, ErrHandlerTimeout.Error())
	assert.True(t, st.Enabled)
}

func TestExecute_AbandonedHandlerKeepsRunningGuard(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 20*time.Millisecond)

	var active, peak, calls atomic.Int32
	release := make(chan struct{})
	handler := func(ctx context.Context) error {
		calls.Add(1)
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		return nil
	}

	require.NoError(t, s.Register("stuck", Every(time.Minute), handler, true))

	require.Eventually(t, func() bool { return status(t, s, "stuck").Failures == 1 }, time.Second, 5*time.Millisecond)
	st := status(t, s, "stuck")
	assert.Contains(t, st.LastError, ErrHandlerTimeout.Error())
	assert.True(t, st.Running)

	waitTimers(t, fc, 1)
	fc.Advance(time.Minute)

	require.Eventually(t, func() bool { return status(t, s, "stuck").Skipped == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), peak.Load())

	close(release)
	require.Eventually(t, func() bool { return !status(t, s, "stuck").Running }, time.Second, 5*time.Millisecond)

	waitTimers(t, fc, 1)
	fc.Advance(time.Minute)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), peak.Load())
}

func TestShutdown_WaitsForAbandonedHandler(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 20*time.Millisecond)

	var finished atomic.Bool
	release := make(chan struct{})
	handler := func(ctx context.Context) error {
		<-release
		finished.Store(true)
		return nil
	}

	require.NoError(t, s.Register("stuck", Every(time.Minute), handler, true))
	require.Eventually(t, func() bool { return status(t, s, "stuck").Failures == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- s.Shutdown(ctx)
	}()

	select {
	case <-done:
		t.Fatal("shutdown returned while the handler was still running")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown did not return")
	}
	assert.True(t, finished.Load())
}

func TestRegister_RunImmediatelyRacingShutdown(t *testing.T) {
	for i := 0; i < 50; i++ {
		s := New(Config{
			Clock:  clockwork.NewFakeClockAt(start),
			Logger: slog.New(slog.DiscardHandler),
		})

		var stopped, late atomic.Bool
		handler := func(ctx context.Context) error {
			if stopped.Load() {
				late.Store(true)
			}
			return nil
		}

		registered := make(chan error, 1)
		go func() {
			registered <- s.Register("job", Every(time.Hour), handler, true)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		require.NoError(t, s.Shutdown(ctx))
		cancel()
		stopped.Store(true)

		err := <-registered
		if err != nil {
			require.ErrorIs(t, err, ErrSchedulerClosed)
		}
		assert.Never(t, late.Load, 10*time.Millisecond, 2*time.Millisecond)
	}
}

func TestRegister_ReplacesPreviousRegistration(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 0)

	var first, second atomic.Int32
	require.NoError(t, s.Register("job", Every(time.Hour), counting(&first), false))
	require.NoError(t, s.Register("job", Every(time.Hour), counting(&second), false))

	waitTimers(t, fc, 1)
	assert.Len(t, s.List(), 1)

	fc.Advance(time.Hour)
	require.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return first.Load() > 0 }, 30*time.Millisecond, 5*time.Millisecond)
}

func TestRegister_ReplacementSharesRunningGuard(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 0)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	slow := func(ctx context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	}

	require.NoError(t, s.Register("job", Every(time.Hour), slow, true))
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("handler did not start")
	}

	var replaced atomic.Int32
	require.NoError(t, s.Register("job", Every(time.Hour), counting(&replaced), true))

	assert.Equal(t, 1, status(t, s, "job").Skipped)
	assert.Never(t, func() bool { return replaced.Load() > 0 }, 30*time.Millisecond, 5*time.Millisecond)

	close(release)
}

func TestStop_DuringExecutionPreventsReschedule(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 0)

	var calls atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	handler := func(ctx context.Context) error {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return nil
	}

	require.NoError(t, s.Register("job", Every(time.Hour), handler, false))
	waitTimers(t, fc, 1)
	fc.Advance(time.Hour)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("handler did not start")
	}

	s.Stop("job")
	waitTimers(t, fc, 0)
	close(release)

	require.Eventually(t, func() bool { return status(t, s, "job").Runs == 1 }, time.Second, 5*time.Millisecond)

	fc.Advance(3 * time.Hour)
	assert.Never(t, func() bool { return calls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	st := status(t, s, "job")
	assert.False(t, st.Enabled)
	assert.NotNil(t, st.LastRunAt)
}

func TestRegister_Invalid(t *testing.T) {
	s := newTestScheduler(t, clockwork.NewFakeClockAt(start), 0)
	noop := func(ctx context.Context) error { return nil }

	assert.ErrorIs(t, s.Register("", Every(time.Hour), noop, false), ErrInvalidJob)
	assert.ErrorIs(t, s.Register("x", nil, noop, false), ErrInvalidJob)
	assert.ErrorIs(t, s.Register("x", Every(time.Hour), nil, false), ErrInvalidJob)
	assert.ErrorIs(t, s.Register("x", Every(0), noop, false), ErrInvalidRule)
	assert.Empty(t, s.List())
}

func TestShutdown_WaitsForInFlightHandlers(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 0)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	handler := func(ctx context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	}

	require.NoError(t, s.Register("job", Every(time.Hour), handler, true))
	<-started

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	st := status(t, s, "job")
	assert.Equal(t, 1, st.Runs)
	assert.False(t, st.Enabled)

	noop := func(ctx context.Context) error { return nil }
	assert.ErrorIs(t, s.Register("other", Every(time.Hour), noop, false), ErrSchedulerClosed)
}

func TestShutdown_DeadlineCancelsHandlers(t *testing.T) {
	fc := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(t, fc, 0)

	started := make(chan struct{}, 1)
	handler := func(ctx context.Context) error {
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}

	require.NoError(t, s.Register("job", Every(time.Hour), handler, true))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Shutdown(ctx), context.DeadlineExceeded)

	st := status(t, s, "job")
	assert.Equal(t, 1, st.Failures)
	assert.False(t, st.Running)
}
