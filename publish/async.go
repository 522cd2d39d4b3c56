package publish

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/krisalay/analytics-cache/types"
)

type publishReq struct {
	ctx   context.Context
	stats *types.AggregatedStats
}

/*
AsyncSink queues snapshots and delivers them from one background worker.

Publish never blocks: when the queue is full the snapshot is dropped and
counted. Listeners therefore always see snapshots in publication order, but
may miss some under pressure.
*/
type AsyncSink struct {
	listeners []Listener
	logger    *zap.Logger

	ch      chan publishReq
	dropped atomic.Int64

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewAsyncSink creates an asynchronous sink holding up to buffer pending
// snapshots and starts its worker.
func NewAsyncSink(buffer int, logger *zap.Logger, listeners ...Listener) *AsyncSink {
	if buffer < 0 {
		buffer = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AsyncSink{
		listeners: listeners,
		logger:    logger,
		ch:        make(chan publishReq, buffer),
	}

	s.wg.Add(1)
	go s.worker()

	return s
}

// Publish queues stats. The context is detached from cancellation so a
// finished cycle does not cancel its own delivery.
func (s *AsyncSink) Publish(ctx context.Context, stats *types.AggregatedStats) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}

	select {
	case s.ch <- publishReq{ctx: context.WithoutCancel(ctx), stats: stats}:
	default:
		n := s.dropped.Add(1)
		s.logger.Warn("snapshot queue full, dropping snapshot", zap.Int64("dropped_total", n))
	}
}

// Dropped returns how many snapshots were never delivered.
func (s *AsyncSink) Dropped() int64 { return s.dropped.Load() }

func (s *AsyncSink) worker() {
	defer s.wg.Done()

	for req := range s.ch {
		deliver(req.ctx, s.logger, s.listeners, req.stats)
	}
}

/*
Close stops accepting snapshots, then waits for the worker to deliver the
ones already queued. Safe to call more than once.
*/
func (s *AsyncSink) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
	})
}
