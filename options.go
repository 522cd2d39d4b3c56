package cache

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/krisalay/analytics-cache/eviction"
	"github.com/krisalay/analytics-cache/expiration"
	"github.com/krisalay/analytics-cache/types"
)

const defaultShards = 16

type options struct {
	shards        int
	maxEntries    int
	eviction      eviction.PolicyType
	expiration    expiration.Strategy
	clock         clockwork.Clock
	metrics       types.Metrics
	logger        *zap.Logger
	sweepInterval time.Duration
}

// Option configures a TTLCache.
type Option func(*options)

// WithShards sets the number of independently locked shards.
func WithShards(n int) Option {
	return func(o *options) { o.shards = n }
}

// WithMaxEntries bounds the cache size. The bound is split evenly across
// shards (rounded up). 0 means unbounded.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// WithEviction selects the policy used when a shard is full.
func WithEviction(p eviction.PolicyType) Option {
	return func(o *options) { o.eviction = p }
}

// WithExpiration selects how TTLs are applied.
func WithExpiration(s expiration.Strategy) Option {
	return func(o *options) { o.expiration = s }
}

// WithClock injects the clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithMetrics reports cache events to m.
func WithMetrics(m types.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSweepInterval starts a background sweeper removing expired entries
// every d. 0 disables it; expired entries are then only removed lazily.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}
