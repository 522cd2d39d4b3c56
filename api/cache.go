package api

import (
	"context"
	"time"

	"github.com/krisalay/analytics-cache/types"
)

/*
This package defines the surfaces the engine exposes to operators and to the
UI layer. They are contracts only; sharding, locking, fan-out and timers stay
hidden behind them.
*/

/*
Cache is the cache control surface.

BEHAVIOR:
---------
  - Set overwrites, restarts the TTL and keeps the key's hit/miss counters.
  - Get counts a hit for a live entry; an expired entry counts a miss and is
    removed on the spot; an absent key counts a miss.
  - Clear removes entries but never resets cumulative hit/miss totals.
  - Stats.HitRate is 0 until the first lookup.
*/
type Cache interface {
	Set(key string, value any, category string, ttl time.Duration) error
	Get(key string) (any, bool)
	Touch(key string, ttl time.Duration) bool
	TTL(key string) time.Duration
	Invalidate(key string) bool
	InvalidateCategory(category string) int
	InvalidatePrefix(prefix string) int
	Clear()
	Sweep() int
	Stats() types.CacheStats
	Entries() []types.EntrySnapshot
	Close()
}

/*
Inspector is the read-mostly reporting surface used by operational tooling.
The only mutating methods are the explicit invalidation passthroughs.
*/
type Inspector interface {
	TopEntries(n int, orderBy types.OrderBy) []types.EntrySnapshot
	HealthSnapshot() types.Health
	StatsByCategory() map[string]types.CategoryStats

	Invalidate(ctx context.Context, key string) bool
	InvalidateCategory(ctx context.Context, category string) int
	InvalidatePrefix(ctx context.Context, prefix string) int
	Clear(ctx context.Context)
	Sweep(ctx context.Context) int
}

/*
Scheduler is the refresh control surface.

BEHAVIOR:
---------
- Start replaces any running ticker; there is never more than one.
- Stop is idempotent and lets an in-flight cycle finish.
- SetInterval restarts the ticker when running, otherwise only stores it.
- Warm refreshes chosen entities or source kinds without publishing.
*/
type Scheduler interface {
	Start(ctx context.Context, policy types.RefreshPolicy) error
	Stop()
	SetInterval(seconds int) error
	CurrentPolicy() types.RefreshPolicy
	RunNow(ctx context.Context) error
	Warm(ctx context.Context, entityIDs, kinds []string) error
}
