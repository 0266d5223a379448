package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultJobTimeout bounds a single handler invocation when Config.JobTimeout is zero
const DefaultJobTimeout = 5 * time.Minute

var (
	// ErrInvalidJob is returned by Register for an empty name or nil rule/handler
	ErrInvalidJob = errors.New("invalid job registration")

	// ErrInvalidRule is returned when a rule does not produce a future time
	ErrInvalidRule = errors.New("schedule rule does not produce a future time")

	// ErrSchedulerClosed is returned by Register after Shutdown
	ErrSchedulerClosed = errors.New("scheduler is shut down")

	// ErrHandlerTimeout is recorded when a handler exceeds the job timeout
	ErrHandlerTimeout = errors.New("handler timed out")

	// ErrHandlerPanic is recorded when a handler panics
	ErrHandlerPanic = errors.New("handler panicked")
)

// Handler is the body of a recurring job
type Handler func(ctx context.Context) error

// Config holds scheduler dependencies
type Config struct {
	Clock      clockwork.Clock
	Logger     *slog.Logger
	JobTimeout time.Duration
}

// JobStatus is a read-only snapshot of one job
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Enabled   bool       `json:"enabled"`
	Running   bool       `json:"running"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Runs      int        `json:"runs"`
	Failures  int        `json:"failures"`
	Skipped   int        `json:"skipped"`
}

type job struct {
	name    string
	rule    Rule
	handler Handler

	enabled   bool
	lastRunAt time.Time
	nextRunAt time.Time
	lastErr   error
	runs      int
	failures  int
	skipped   int

	// running is shared with any job that replaces this one under the same name
	running *atomic.Bool

	gen   uint64
	timer clockwork.Timer
	stop  chan struct{}
}

// Scheduler runs named recurring jobs. Each job has at most one handler
// invocation in flight; a firing that finds it busy is skipped.
type Scheduler struct {
	clock      clockwork.Clock
	logger     *slog.Logger
	jobTimeout time.Duration

	mu     sync.Mutex
	jobs   map[string]*job
	closed bool

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler with no jobs
func New(cfg Config) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		clock:      clock,
		logger:     logger,
		jobTimeout: timeout,
		jobs:       make(map[string]*job),
		runCtx:     ctx,
		cancel:     cancel,
	}
}

// Register adds a job, replacing any job with the same name. The previous
// registration's pending timer is cancelled and its running guard carried
// over, so the two never overlap.
func (s *Scheduler) Register(name string, rule Rule, handler Handler, runImmediately bool) error {
	if name == "" || rule == nil || handler == nil {
		return ErrInvalidJob
	}

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}

	now := s.clock.Now()
	next := rule.Next(now)
	if !next.After(now) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidRule, rule)
	}

	j := &job{
		name:    name,
		rule:    rule,
		handler: handler,
		enabled: true,
		running: new(atomic.Bool),
	}

	if old, ok := s.jobs[name]; ok {
		s.disarm(old)
		old.enabled = false
		j.running = old.running
		j.lastRunAt = old.lastRunAt
		s.logger.Info("Replacing registered job",
			slog.String("job", name),
		)
	}

	s.jobs[name] = j
	s.arm(j, next)
	s.mu.Unlock()

	s.logger.Info("Job registered",
		slog.String("job", name),
		slog.String("schedule", rule.String()),
		slog.Time("next_run_at", next),
		slog.Bool("run_immediately", runImmediately),
	)

	if runImmediately {
		s.execute(j)
	}

	return nil
}

// Stop cancels the pending timer and disables the job. Unknown names are ignored.
func (s *Scheduler) Stop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return
	}
	s.stopLocked(j)
}

// StopAll stops every registered job
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		s.stopLocked(j)
	}
	s.logger.Info("All jobs stopped", slog.Int("count", len(s.jobs)))
}

func (s *Scheduler) stopLocked(j *job) {
	wasEnabled := j.enabled
	s.disarm(j)
	j.enabled = false
	j.nextRunAt = time.Time{}

	if wasEnabled {
		s.logger.Info("Job stopped", slog.String("job", j.name))
	}
}

// Restart re-enables a job and arms it from now. Unknown names are ignored.
func (s *Scheduler) Restart(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok || s.closed {
		return
	}
	s.restartLocked(j)
}

// RestartAll re-enables and re-arms every registered job
func (s *Scheduler) RestartAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	for _, j := range s.jobs {
		s.restartLocked(j)
	}
}

func (s *Scheduler) restartLocked(j *job) {
	s.disarm(j)
	j.enabled = true
	next := j.rule.Next(s.clock.Now())
	s.arm(j, next)

	s.logger.Info("Job restarted",
		slog.String("job", j.name),
		slog.Time("next_run_at", next),
	)
}

// List returns status snapshots sorted by job name
func (s *Scheduler) List() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := JobStatus{
			Name:     j.name,
			Schedule: j.rule.String(),
			Enabled:  j.enabled,
			Running:  j.running.Load(),
			Runs:     j.runs,
			Failures: j.failures,
			Skipped:  j.skipped,
		}
		if !j.lastRunAt.IsZero() {
			t := j.lastRunAt
			st.LastRunAt = &t
		}
		if !j.nextRunAt.IsZero() {
			t := j.nextRunAt
			st.NextRunAt = &t
		}
		if j.lastErr != nil {
			st.LastError = j.lastErr.Error()
		}
		out = append(out, st)
	}

	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Shutdown stops all jobs and waits for in-flight handlers, including ones
// abandoned after their timeout. When ctx ends first, handler contexts are
// cancelled, the wait continues until they return, and ctx.Err() is returned.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, j := range s.jobs {
		s.disarm(j)
		j.enabled = false
		j.nextRunAt = time.Time{}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		s.logger.Warn("Scheduler shutdown deadline reached, handlers cancelled")
		return ctx.Err()
	}
}

// arm creates the timer for at and starts its waiter. Caller holds s.mu.
func (s *Scheduler) arm(j *job, at time.Time) {
	j.gen++
	j.nextRunAt = at
	j.timer = s.clock.NewTimer(at.Sub(s.clock.Now()))
	j.stop = make(chan struct{})

	s.wg.Add(1)
	go s.wait(j, j.gen, j.timer, j.stop)
}

// disarm cancels the pending timer, if any. Caller holds s.mu.
func (s *Scheduler) disarm(j *job) {
	j.gen++
	if j.timer != nil {
		j.timer.Stop()
		j.timer = nil
	}
	if j.stop != nil {
		close(j.stop)
		j.stop = nil
	}
}

func (s *Scheduler) wait(j *job, gen uint64, timer clockwork.Timer, stop <-chan struct{}) {
	defer s.wg.Done()

	select {
	case <-stop:
		return
	case <-timer.Chan():
		s.fire(j, gen)
	}
}

// fire re-arms the job for its next slot, then executes it
func (s *Scheduler) fire(j *job, gen uint64) {
	s.mu.Lock()
	if s.closed || !j.enabled || j.gen != gen {
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()
	next := j.rule.Next(j.nextRunAt)
	if !next.After(now) {
		next = j.rule.Next(now)
	}
	j.timer = nil
	j.stop = nil
	s.arm(j, next)
	s.mu.Unlock()

	s.execute(j)
}

// execute runs the handler on its own goroutine unless the job is already
// running. A handler abandoned after its timeout keeps the running guard and
// the shutdown wait group until it returns.
func (s *Scheduler) execute(j *job) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !j.running.CompareAndSwap(false, true) {
		j.skipped++
		s.mu.Unlock()

		s.logger.Warn("Job still running, skipping this firing",
			slog.String("job", j.name),
		)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer j.running.Store(false)

		start := s.clock.Now()
		abandoned, err := s.invoke(j)
		s.record(j, err, start)

		if abandoned != nil {
			<-abandoned
			s.logger.Warn("Abandoned handler returned",
				slog.String("job", j.name),
				slog.Duration("duration", s.clock.Since(start)),
			)
		}
	}()
}

func (s *Scheduler) record(j *job, err error, start time.Time) {
	s.mu.Lock()
	j.lastRunAt = s.clock.Now()
	j.runs++
	j.lastErr = err
	if err != nil {
		j.failures++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Job failed",
			slog.String("job", j.name),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("Job completed",
		slog.String("job", j.name),
		slog.Duration("duration", s.clock.Since(start)),
	)
}

// invoke calls the handler with a timeout and converts panics into errors.
// When the handler outlives its context, the returned channel is closed once
// it finally exits; otherwise it is nil.
func (s *Scheduler) invoke(j *job) (<-chan struct{}, error) {
	ctx, cancel := context.WithTimeout(s.runCtx, s.jobTimeout)
	defer cancel()

	result := make(chan error, 1)
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			}
		}()
		result <- j.handler(ctx)
	}()

	select {
	case err := <-result:
		return nil, err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return returned, fmt.Errorf("%w after %s", ErrHandlerTimeout, s.jobTimeout)
		}
		return returned, ctx.Err()
	}
}
