// This file drives aggregation cycles on an interval.
// The goal of refresh is: "Keep data fresh without ever running two cycles at once"

package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/krisalay/analytics-cache/api"
	"github.com/krisalay/analytics-cache/types"
)

var (
	ErrInvalidInterval = errors.New("refresh interval must be positive")
	ErrCycleInFlight   = errors.New("a refresh cycle is already running")
	ErrShutdown        = errors.New("scheduler is shut down")
	ErrWarmUnsupported = errors.New("runner cannot warm part of a cycle")
)

var _ api.Scheduler = (*Scheduler)(nil)

/*
Runner is whatever a tick triggers. aggregate.Job is the usual one.
*/
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Warmer is implemented by runners that can refresh part of what a cycle
// covers. aggregate.Job does.
type Warmer interface {
	Warm(ctx context.Context, entityIDs, kinds []string) error
}

/*
Scheduler runs a Runner every policy interval.

BEHAVIOR:
  - Stopped -> Running -> Stopped, any number of times; Shutdown is terminal
  - at most one ticker exists at any time
  - a tick that fires while a cycle is still running is skipped and counted
  - Stop cancels the ticker immediately; a cycle already running finishes
    but cannot re-arm anything
*/
type Scheduler struct {
	runner  Runner
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics types.Metrics

	mu       sync.Mutex
	policy   types.RefreshPolicy
	running  bool
	shutdown bool
	parent   context.Context // Start's ctx, reused by SetInterval
	cancel   context.CancelFunc
	loopDone chan struct{}

	// baseCtx parents every cycle; cancelled by Shutdown only.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	inFlight atomic.Bool
	skipped  atomic.Int64
	cycles   sync.WaitGroup
}

type Option func(*Scheduler)

func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func WithMetrics(m types.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{runner: runner}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = types.NoopMetrics{}
	}
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	return s
}

/*
Start stores policy and, when it is enabled, starts ticking.

A running ticker is cancelled first. ctx bounds the tick loop: cancelling it
has the same effect as Stop. Counters of the stored policy (RunCount,
LastRunAt...) are kept.
*/
func (s *Scheduler) Start(ctx context.Context, policy types.RefreshPolicy) error {
	if policy.IntervalSeconds <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInterval, policy.IntervalSeconds)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return ErrShutdown
	}

	s.stopLocked()
	s.policy.IntervalSeconds = policy.IntervalSeconds
	s.policy.Enabled = policy.Enabled
	s.parent = ctx
	if policy.Enabled {
		s.startLocked()
	}
	return nil
}

// Stop cancels the ticker. Calling it on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.policy.Enabled = false
}

/*
SetInterval changes the interval. A running scheduler is restarted with the
new interval before SetInterval returns; a stopped one only stores it.
*/
func (s *Scheduler) SetInterval(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInterval, seconds)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return ErrShutdown
	}

	s.policy.IntervalSeconds = seconds
	if s.aliveLocked() {
		s.stopLocked()
		s.startLocked()
	}
	return nil
}

// CurrentPolicy returns a copy of the policy with its counters.
func (s *Scheduler) CurrentPolicy() types.RefreshPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliveLocked()
	p := s.policy
	p.SkippedTicks = int(s.skipped.Load())
	if p.LastRunAt != nil {
		t := *p.LastRunAt
		p.LastRunAt = &t
	}
	return p
}

// Running reports whether a ticker is active. Cancelling Start's ctx stops it
// as well.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliveLocked()
}

/*
RunNow runs one cycle synchronously, outside the tick schedule. It returns
ErrCycleInFlight without waiting when a cycle is already running, and the
runner error otherwise.
*/
func (s *Scheduler) RunNow(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return ErrShutdown
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return ErrCycleInFlight
	}
	s.cycles.Add(1)
	s.mu.Unlock()

	return s.runCycle(ctx, "manual")
}

/*
Warm refreshes the given entities and source kinds outside the tick
schedule; empty slices mean all of them. It does not count as a cycle and
may run alongside one. The runner must implement Warmer.
*/
func (s *Scheduler) Warm(ctx context.Context, entityIDs, kinds []string) error {
	w, ok := s.runner.(Warmer)
	if !ok {
		return ErrWarmUnsupported
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return ErrShutdown
	}
	s.cycles.Add(1)
	s.mu.Unlock()
	defer s.cycles.Done()

	err := safely(func() error { return w.Warm(ctx, entityIDs, kinds) })
	if err != nil {
		s.logger.Warn("cache warm-up failed",
			zap.Strings("entities", entityIDs), zap.Strings("kinds", kinds), zap.Error(err))
		return err
	}
	s.logger.Info("cache warm-up done", zap.Strings("entities", entityIDs), zap.Strings("kinds", kinds))
	return nil
}

/*
Shutdown stops the scheduler for good and waits for running cycles, or for
ctx to expire. Cycles still running when ctx expires are cancelled.
*/
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	s.stopLocked()
	s.policy.Enabled = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.cycles.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.baseCancel()
		return nil
	case <-ctx.Done():
		s.baseCancel()
		<-done
		return ctx.Err()
	}
}

// startLocked creates the ticker before returning so that callers observe
// exactly one ticker. Caller holds s.mu.
func (s *Scheduler) startLocked() {
	parent := s.parent
	if parent == nil {
		parent = s.baseCtx
	}
	ctx, cancel := context.WithCancel(parent)
	ticker := s.clock.NewTicker(s.policy.Interval())
	done := make(chan struct{})

	s.cancel = cancel
	s.loopDone = done
	s.running = true

	go s.loop(ctx, ticker, done)
	s.logger.Info("refresh scheduler started", zap.Int("interval_seconds", s.policy.IntervalSeconds))
}

// aliveLocked reports whether the tick loop is still running. A loop that
// exited on its own had its Start ctx cancelled; it is marked stopped so
// that SetInterval does not revive it. Caller holds s.mu.
func (s *Scheduler) aliveLocked() bool {
	if !s.running {
		return false
	}
	select {
	case <-s.loopDone:
		s.running = false
		s.cancel()
		s.cancel = nil
		s.loopDone = nil
		s.policy.Enabled = false
		s.logger.Info("refresh scheduler stopped, its context is done")
		return false
	default:
		return true
	}
}

// stopLocked cancels the tick loop and waits for it to exit. The loop must
// never take s.mu or this deadlocks. Caller holds s.mu.
func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	s.cancel()
	<-s.loopDone
	s.running = false
	s.cancel = nil
	s.loopDone = nil
	s.logger.Info("refresh scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.tick()
		}
	}
}

// tick starts a cycle in the background unless one is already running.
func (s *Scheduler) tick() {
	if !s.inFlight.CompareAndSwap(false, true) {
		n := s.skipped.Add(1)
		s.metrics.TickSkipped()
		s.logger.Debug("refresh tick skipped, previous cycle still running", zap.Int64("skipped_total", n))
		return
	}

	// The cycle outlives Stop, but not Shutdown.
	s.cycles.Add(1)
	go func() {
		_ = s.runCycle(s.baseCtx, "tick")
	}()
}

// runCycle runs the runner once. Caller has set inFlight and added to cycles.
func (s *Scheduler) runCycle(ctx context.Context, trigger string) error {
	defer s.cycles.Done()
	defer s.inFlight.Store(false)

	err := safely(func() error { return s.runner.Run(ctx) })
	now := s.clock.Now()

	s.mu.Lock()
	s.policy.RunCount++
	s.policy.LastRunAt = &now
	s.policy.LastError = ""
	if err != nil {
		s.policy.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("refresh cycle failed", zap.String("trigger", trigger), zap.Error(err))
	} else {
		s.logger.Debug("refresh cycle done", zap.String("trigger", trigger))
	}
	return err
}

func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh runner panicked: %v", r)
		}
	}()
	return fn()
}
