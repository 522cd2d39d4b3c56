package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/krisalay/analytics-cache/api"
	"github.com/krisalay/analytics-cache/engine"
	"github.com/krisalay/analytics-cache/eviction"
	"github.com/krisalay/analytics-cache/shard"
	"github.com/krisalay/analytics-cache/types"
)

var _ api.Cache = (*TTLCache)(nil)

/*
TTLCache is a sharded, categorised key/value cache with per-entry TTLs.

It connects:
- shards (storage, locking, size and category accounting)
- the engine (clock, expiration, metrics, logging)
- eviction (only when a maximum size is configured)

Hit and miss totals are process-wide counters. They survive Clear and are
never reset for the lifetime of the cache.
*/
type TTLCache struct {
	shards   []*shard.Shard
	engine   *engine.CacheEngine
	selector shard.Selector

	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64

	stopSweep chan struct{}
	sweepDone sync.WaitGroup
	closeOnce sync.Once
}

// New creates a cache. It fails only on an invalid configuration.
func New(opts ...Option) (*TTLCache, error) {
	o := options{shards: defaultShards, eviction: eviction.LRU}
	for _, opt := range opts {
		opt(&o)
	}
	if o.shards <= 0 {
		return nil, fmt.Errorf("shard count must be positive, got %d", o.shards)
	}
	if o.maxEntries < 0 {
		return nil, fmt.Errorf("max entries must not be negative, got %d", o.maxEntries)
	}

	perShard := 0
	if o.maxEntries > 0 {
		perShard = (o.maxEntries + o.shards - 1) / o.shards
	}

	shards := make([]*shard.Shard, o.shards)
	for i := range shards {
		// Each shard gets its own eviction policy instance.
		policy, err := eviction.New(o.eviction)
		if err != nil {
			return nil, err
		}
		shards[i] = shard.New(policy, perShard)
	}

	c := &TTLCache{
		shards:    shards,
		engine:    engine.NewCacheEngine(o.clock, o.expiration, o.metrics, o.logger),
		selector:  shard.HashSelector{},
		stopSweep: make(chan struct{}),
	}
	if o.sweepInterval > 0 {
		c.startSweeper(o.sweepInterval)
	}
	return c, nil
}

/*
Set stores value under key, replacing any previous entry.

CreatedAt and ExpiresAt are reset; the key's hit and miss counters are kept.
A ttl of 0 means the entry never expires. If the owning shard is full, its
expired entries are dropped first and the eviction policy picks a victim only
if that was not enough.
*/
func (c *TTLCache) Set(key string, value any, category string, ttl time.Duration) error {
	if key == "" {
		return types.ErrInvalidKey
	}
	if ttl < 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidTTL, ttl)
	}

	// Sizing may encode the value, keep it out of the lock.
	size := engine.SizeOf(value)

	sh := c.selector.Select(key, c.shards)
	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	now := c.engine.Now()
	ent := types.NewCacheEntry(key, value, category, ttl, size, now)

	prev, exists, err := sh.Get(key)
	if err != nil {
		c.heal(sh, key, err)
	}
	if exists {
		ent.InheritCounters(prev)
	} else if sh.Full() {
		c.makeRoom(sh, now)
	}

	sh.Put(ent)
	return nil
}

/*
Get returns the value stored under key.

  - live entry: counts a hit on the entry and globally
  - expired entry: counts a miss on the entry and globally, removes it
  - no entry: counts a global miss
*/
func (c *TTLCache) Get(key string) (any, bool) {
	sh := c.selector.Select(key, c.shards)
	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	ent, ok, err := sh.Get(key)
	if err != nil {
		c.heal(sh, key, err)
	}
	if !ok {
		c.miss()
		return nil, false
	}

	now := c.engine.Now()
	if c.engine.IsExpired(ent, now) {
		ent.Miss()
		sh.Delete(key)
		c.expired(ent.Category, 1)
		c.miss()
		return nil, false
	}

	c.engine.OnRead(ent, now)
	sh.Touched(key)
	c.hits.Add(1)
	return ent.Value, true
}

// Touch resets the TTL of a live entry to ttl from now. It returns false when
// the key is absent or already expired.
func (c *TTLCache) Touch(key string, ttl time.Duration) bool {
	if ttl < 0 {
		return false
	}
	sh := c.selector.Select(key, c.shards)
	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	ent, ok, err := sh.Get(key)
	if err != nil {
		c.heal(sh, key, err)
	}
	now := c.engine.Now()
	if !ok || c.engine.IsExpired(ent, now) {
		return false
	}

	ent.TTL = ttl
	ent.ExpiresAt = time.Time{}
	if ttl > 0 {
		ent.ExpiresAt = now.Add(ttl)
	}
	return true
}

/*
TTL returns the remaining time-to-live of key without counting a lookup.

	> 0 : time left
	 -1 : the key exists and never expires
	 -2 : the key does not exist or is expired
*/
func (c *TTLCache) TTL(key string) time.Duration {
	sh := c.selector.Select(key, c.shards)
	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	ent, ok, _ := sh.Get(key)
	if !ok {
		return -2
	}
	if ent.ExpiresAt.IsZero() {
		return -1
	}
	now := c.engine.Now()
	if c.engine.IsExpired(ent, now) {
		return -2
	}
	return ent.ExpiresAt.Sub(now)
}

// Invalidate removes key. It returns false when there was nothing to remove.
func (c *TTLCache) Invalidate(key string) bool {
	sh := c.selector.Select(key, c.shards)
	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	ent, ok := sh.Delete(key)
	if ok {
		c.engine.Metrics.Invalidate(ent.Category, 1)
	}
	return ok
}

// InvalidateCategory removes exactly the entries of category and returns how
// many were removed.
func (c *TTLCache) InvalidateCategory(category string) int {
	return c.removeMatching(shard.InCategory(category))
}

// InvalidatePrefix removes every entry whose key starts with prefix.
func (c *TTLCache) InvalidatePrefix(prefix string) int {
	return c.removeMatching(shard.HasPrefix(prefix))
}

// Clear removes every entry. Cumulative hit/miss totals are kept.
func (c *TTLCache) Clear() {
	c.removeMatching(func(*types.CacheEntry) bool { return true })
}

/*
Sweep removes every expired entry and returns how many were removed.
It is safe to call at any time, concurrently with reads and writes.
*/
func (c *TTLCache) Sweep() int {
	total := 0
	for _, sh := range c.shards {
		sh.Mu.Lock()
		now := c.engine.Now()
		removed := sh.DeleteMatching(func(ent *types.CacheEntry) bool {
			return c.engine.IsExpired(ent, now)
		})
		sh.Mu.Unlock()

		for _, ent := range removed {
			c.expired(ent.Category, 1)
		}
		total += len(removed)
	}
	return total
}

/*
Stats reports totals, hit rate and the per-category breakdown.

All shards are locked for the duration of the call so the totals always
describe one consistent set of entries.
*/
func (c *TTLCache) Stats() types.CacheStats {
	unlock := c.lockAll()
	defer unlock()

	st := types.CacheStats{
		ByCategory:  make(map[string]types.CategoryStats),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}
	now := c.engine.Now()
	for _, sh := range c.shards {
		st.TotalEntries += sh.Len()
		sh.Range(func(ent *types.CacheEntry) {
			if c.engine.IsExpired(ent, now) {
				st.Expired++
			}
		})
		st.TotalSizeBytes += sh.SizeBytes()
		for name, cs := range sh.Categories() {
			agg := st.ByCategory[name]
			agg.Count += cs.Count
			agg.SizeBytes += cs.SizeBytes
			st.ByCategory[name] = agg
		}
	}

	st.Hits = c.hits.Load()
	st.Misses = c.misses.Load()
	if lookups := st.Hits + st.Misses; lookups > 0 {
		st.HitRate = float64(st.Hits) / float64(lookups)
	}
	return st
}

// Entries returns a read-time snapshot of every entry, expired ones included.
func (c *TTLCache) Entries() []types.EntrySnapshot {
	unlock := c.lockAll()
	defer unlock()

	now := c.engine.Now()
	var out []types.EntrySnapshot
	for _, sh := range c.shards {
		sh.Range(func(ent *types.CacheEntry) {
			out = append(out, ent.Snapshot(now))
		})
	}
	return out
}

// Close stops the background sweeper, if any. It is safe to call twice.
func (c *TTLCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopSweep)
		c.sweepDone.Wait()
	})
}

func (c *TTLCache) startSweeper(interval time.Duration) {
	ticker := c.engine.Clock.NewTicker(interval)
	c.sweepDone.Add(1)
	go func() {
		defer c.sweepDone.Done()
		defer ticker.Stop()
		for {
			select {
			case <-c.stopSweep:
				return
			case <-ticker.Chan():
				if n := c.Sweep(); n > 0 {
					c.engine.Logger.Debug("swept expired cache entries", zap.Int("removed", n))
				}
			}
		}
	}()
}

// makeRoom frees one slot in a full shard. Caller holds sh.Mu.
func (c *TTLCache) makeRoom(sh *shard.Shard, now time.Time) {
	expired := sh.DeleteMatching(func(ent *types.CacheEntry) bool {
		return c.engine.IsExpired(ent, now)
	})
	for _, ent := range expired {
		c.expired(ent.Category, 1)
	}
	if !sh.Full() {
		return
	}
	if victim, ok := sh.Evict(); ok {
		c.evictions.Add(1)
		c.engine.Metrics.Eviction(victim.Category)
	}
}

func (c *TTLCache) removeMatching(match func(*types.CacheEntry) bool) int {
	perCategory := make(map[string]int)
	total := 0
	for _, sh := range c.shards {
		sh.Mu.Lock()
		removed := sh.DeleteMatching(match)
		sh.Mu.Unlock()

		for _, ent := range removed {
			perCategory[ent.Category]++
		}
		total += len(removed)
	}
	for category, n := range perCategory {
		c.engine.Metrics.Invalidate(category, n)
	}
	return total
}

// heal drops a corrupted slot so the rest of the cache keeps working.
// Caller holds sh.Mu.
func (c *TTLCache) heal(sh *shard.Shard, key string, err error) {
	c.engine.Logger.Error("dropping corrupted cache entry", zap.String("key", key), zap.Error(err))
	sh.Drop(key)
}

func (c *TTLCache) miss() {
	c.misses.Add(1)
	c.engine.Metrics.Miss()
}

func (c *TTLCache) expired(category string, n int64) {
	c.expirations.Add(n)
	c.engine.Metrics.Expire(category)
}

// lockAll locks every shard in index order. Writers only ever hold one shard
// lock, so this cannot deadlock.
func (c *TTLCache) lockAll() func() {
	for _, sh := range c.shards {
		sh.Mu.Lock()
	}
	return func() {
		for i := len(c.shards) - 1; i >= 0; i-- {
			c.shards[i].Mu.Unlock()
		}
	}
}
