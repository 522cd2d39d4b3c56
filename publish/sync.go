package publish

import (
	"context"

	"go.uber.org/zap"

	"github.com/krisalay/analytics-cache/types"
)

/*
SyncSink calls every listener, in order, before Publish returns.

A slow listener makes the publishing cycle slow. Listener errors are logged
and the remaining listeners are still called.
*/
type SyncSink struct {
	listeners []Listener
	logger    *zap.Logger
}

// NewSyncSink creates a synchronous sink. A nil logger disables logging.
func NewSyncSink(logger *zap.Logger, listeners ...Listener) *SyncSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncSink{listeners: listeners, logger: logger}
}

func (s *SyncSink) Publish(ctx context.Context, stats *types.AggregatedStats) {
	deliver(ctx, s.logger, s.listeners, stats)
}

// Close has nothing to release.
func (s *SyncSink) Close() {}

func deliver(ctx context.Context, logger *zap.Logger, listeners []Listener, stats *types.AggregatedStats) {
	for i, l := range listeners {
		if err := l.OnSnapshot(ctx, stats); err != nil {
			logger.Warn("snapshot listener failed", zap.Int("listener", i), zap.Error(err))
		}
	}
}
