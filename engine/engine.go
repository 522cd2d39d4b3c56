package engine

import (
	"time"

	"github.com/jonboulle/clockwork"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/krisalay/analytics-cache/expiration"
	"github.com/krisalay/analytics-cache/types"
)

/*
CacheEngine is the policy layer of the cache. It owns the rules, not the data.

It decides:
- What time it is (the clock is injectable so tests can fast-forward)
- When an entry is expired and how reads affect expiry
- How big a value is for reporting
- Where events are reported (metrics, logs)

It does NOT:
- Store data
- Handle sharding or locking
- Decide eviction order
*/
type CacheEngine struct {

	// Clock is the only source of "now" for the cache.
	Clock clockwork.Clock

	// Expiration decides how TTLs are applied. Defaults to expiration.Fixed.
	Expiration expiration.Strategy

	// Metrics receives cache events. Never nil.
	Metrics types.Metrics

	// Logger receives corruption reports and sweep summaries. Never nil.
	Logger *zap.Logger
}

/*
NewCacheEngine creates a CacheEngine. Every nil argument is replaced by a
working default so the cache never needs nil checks on its hot paths.
*/
func NewCacheEngine(
	clock clockwork.Clock,
	exp expiration.Strategy,
	metrics types.Metrics,
	logger *zap.Logger,
) *CacheEngine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if exp == nil {
		exp = expiration.Fixed{}
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheEngine{
		Clock:      clock,
		Expiration: exp,
		Metrics:    metrics,
		Logger:     logger,
	}
}

// Now returns the current time of the engine clock.
func (e *CacheEngine) Now() time.Time {
	return e.Clock.Now()
}

// IsExpired checks ent against the expiration strategy at now.
func (e *CacheEngine) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return e.Expiration.IsExpired(ent, now)
}

// OnRead is called after a hit, with the owning shard locked.
func (e *CacheEngine) OnRead(ent *types.CacheEntry, now time.Time) {
	ent.Hit()
	e.Expiration.OnAccess(ent, now)
	e.Metrics.Hit(ent.Category)
}

// Sizer lets a value report its own approximate size.
type Sizer interface {
	SizeBytes() int64
}

var sizeJSON = jsoniter.ConfigFastest

/*
SizeOf approximates the memory a value represents. It is used for reporting
only, so it favours cheap and stable over exact:

  - Sizer values report themselves
  - strings and byte slices use their length
  - everything else uses the length of its JSON encoding
  - values that cannot be encoded count as 0
*/
func SizeOf(value any) int64 {
	switch v := value.(type) {
	case nil:
		return 0
	case Sizer:
		return max(v.SizeBytes(), 0)
	case string:
		return int64(len(v))
	case []byte:
		return int64(len(v))
	}
	b, err := sizeJSON.Marshal(value)
	if err != nil {
		return 0
	}
	return int64(len(b))
}
