package types

import (
	"sync/atomic"
	"time"
)

// EntryStatus is derived from the clock every time an entry is inspected.
// It is never stored on the entry itself.
type EntryStatus string

const (
	StatusActive  EntryStatus = "active"
	StatusExpired EntryStatus = "expired"
)

/*
CacheEntry is one keyed value held by the cache.

The value, category, size and creation time are fixed when the entry is built
by Set. ExpiresAt may only move through Touch (or a sliding expiration
strategy). Reads never touch the value, they only bump the counters.
*/
type CacheEntry struct {
	Key       string
	Value     any
	Category  string
	CreatedAt time.Time
	ExpiresAt time.Time     // zero => no TTL
	TTL       time.Duration // 0 => no TTL
	SizeBytes int64

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCacheEntry builds an entry with ExpiresAt derived from ttl.
func NewCacheEntry(key string, value any, category string, ttl time.Duration, size int64, now time.Time) *CacheEntry {
	ent := &CacheEntry{
		Key:       key,
		Value:     value,
		Category:  category,
		CreatedAt: now,
		TTL:       ttl,
		SizeBytes: size,
	}
	if ttl > 0 {
		ent.ExpiresAt = now.Add(ttl)
	}
	return ent
}

// Hit records a successful read of this entry.
func (e *CacheEntry) Hit() { e.hits.Add(1) }

// Miss records a read that found this entry expired.
func (e *CacheEntry) Miss() { e.misses.Add(1) }

// HitCount returns the cumulative hits of the key.
func (e *CacheEntry) HitCount() int64 { return e.hits.Load() }

// MissCount returns the cumulative misses of the key.
func (e *CacheEntry) MissCount() int64 { return e.misses.Load() }

// InheritCounters carries cumulative counters over from the entry being replaced.
func (e *CacheEntry) InheritCounters(prev *CacheEntry) {
	if prev == nil {
		return
	}
	e.hits.Store(prev.hits.Load())
	e.misses.Store(prev.misses.Load())
}

// IsExpired reports whether the entry is expired at now (now >= ExpiresAt).
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Status resolves the entry status at now.
func (e *CacheEntry) Status(now time.Time) EntryStatus {
	if e.IsExpired(now) {
		return StatusExpired
	}
	return StatusActive
}

// Snapshot copies the entry for reporting. The value is not included.
func (e *CacheEntry) Snapshot(now time.Time) EntrySnapshot {
	return EntrySnapshot{
		Key:        e.Key,
		Category:   e.Category,
		CreatedAt:  e.CreatedAt,
		ExpiresAt:  e.ExpiresAt,
		TTLSeconds: int64(e.TTL / time.Second),
		HitCount:   e.HitCount(),
		MissCount:  e.MissCount(),
		SizeBytes:  e.SizeBytes,
		Status:     e.Status(now),
	}
}

// EntrySnapshot is a read-time copy of a CacheEntry used by reporting surfaces.
type EntrySnapshot struct {
	Key        string      `json:"key"`
	Category   string      `json:"category"`
	CreatedAt  time.Time   `json:"createdAt"`
	ExpiresAt  time.Time   `json:"expiresAt"`
	TTLSeconds int64       `json:"ttlSeconds"`
	HitCount   int64       `json:"hitCount"`
	MissCount  int64       `json:"missCount"`
	SizeBytes  int64       `json:"sizeBytes"`
	Status     EntryStatus `json:"status"`
}

// CategoryStats aggregates entries sharing a category.
type CategoryStats struct {
	Count     int   `json:"count"`
	SizeBytes int64 `json:"sizeBytes"`
}

// CacheStats is the cache-wide report returned by Stats.
type CacheStats struct {
	TotalEntries   int                      `json:"totalEntries"`
	TotalSizeBytes int64                    `json:"totalSizeBytes"`
	Hits           int64                    `json:"hits"`
	Misses         int64                    `json:"misses"`
	HitRate        float64                  `json:"hitRate"` // 0..1, 0 when no lookups
	Evictions      int64                    `json:"evictions"`
	Expirations    int64                    `json:"expirations"`
	Expired        int                      `json:"expired"` // stored but past their expiry, not yet removed
	ByCategory     map[string]CategoryStats `json:"byCategory"`
}
