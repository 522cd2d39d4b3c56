package shard

import (
	"strings"
	"sync"

	"github.com/krisalay/analytics-cache/eviction"
	"github.com/krisalay/analytics-cache/types"
)

/*
Shard is one independent slice of the cache. It owns its entries, its
eviction bookkeeping and the size/category accounting for those entries.

Every field below is guarded by Mu. The accounting (size, categories) is
only ever changed in the same critical section as the map, so a reader holding
Mu always sees totals that match the entries exactly.
*/
type Shard struct {
	Mu sync.Mutex

	entries    map[string]*types.CacheEntry
	eviction   eviction.Policy
	capacity   int // 0 => unbounded
	sizeBytes  int64
	categories map[string]types.CategoryStats
}

func New(policy eviction.Policy, capacity int) *Shard {
	return &Shard{
		entries:    make(map[string]*types.CacheEntry),
		eviction:   policy,
		capacity:   capacity,
		categories: make(map[string]types.CategoryStats),
	}
}

/*
Get returns the entry stored under key. Caller holds Mu.

A slot that breaks the entry invariants (nil entry, key mismatch, negative
size) is reported as a CacheCorruptionError together with ok=false; the
caller is expected to Drop it.
*/
func (s *Shard) Get(key string) (*types.CacheEntry, bool, error) {
	ent, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	switch {
	case ent == nil:
		return nil, false, &types.CacheCorruptionError{Key: key, Reason: "nil entry"}
	case ent.Key != key:
		return nil, false, &types.CacheCorruptionError{Key: key, Reason: "stored under foreign key " + ent.Key}
	case ent.SizeBytes < 0:
		return nil, false, &types.CacheCorruptionError{Key: key, Reason: "negative size"}
	}
	return ent, true, nil
}

// Touched records a read for the eviction policy. Caller holds Mu.
func (s *Shard) Touched(key string) {
	s.eviction.OnGet(key)
}

// Put stores ent, replacing any previous entry, and returns the replaced one.
// Caller holds Mu and has made room first (see Full/Evict).
func (s *Shard) Put(ent *types.CacheEntry) *types.CacheEntry {
	prev := s.entries[ent.Key]
	if prev != nil {
		s.unaccount(prev)
	}
	s.entries[ent.Key] = ent
	s.account(ent)
	s.eviction.OnPut(ent.Key)
	return prev
}

// Delete removes key and returns the removed entry. Caller holds Mu.
func (s *Shard) Delete(key string) (*types.CacheEntry, bool) {
	ent, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	delete(s.entries, key)
	s.unaccount(ent)
	s.eviction.Remove(key)
	return ent, true
}

// Full reports whether inserting a new key would exceed capacity. Caller holds Mu.
func (s *Shard) Full() bool {
	return s.capacity > 0 && len(s.entries) >= s.capacity
}

// Evict removes the policy's victim and returns it. Caller holds Mu.
func (s *Shard) Evict() (*types.CacheEntry, bool) {
	for s.eviction.Len() > 0 {
		key := s.eviction.Evict()
		ent, ok := s.entries[key]
		if !ok {
			// Policy tracked a key the map no longer has; skip it.
			continue
		}
		delete(s.entries, key)
		if ent == nil {
			// Corrupted slot: nothing was accounted for it, keep looking.
			continue
		}
		s.unaccount(ent)
		return ent, true
	}
	return nil, false
}

// DeleteMatching removes every entry for which match returns true and returns
// the removed entries. Caller holds Mu.
func (s *Shard) DeleteMatching(match func(*types.CacheEntry) bool) []*types.CacheEntry {
	var removed []*types.CacheEntry
	for key, ent := range s.entries {
		if ent != nil && !match(ent) {
			continue
		}
		delete(s.entries, key)
		s.eviction.Remove(key)
		if ent != nil {
			s.unaccount(ent)
			removed = append(removed, ent)
		}
	}
	return removed
}

// HasPrefix is a DeleteMatching helper for key prefixes.
func HasPrefix(prefix string) func(*types.CacheEntry) bool {
	return func(ent *types.CacheEntry) bool { return strings.HasPrefix(ent.Key, prefix) }
}

// InCategory is a DeleteMatching helper for categories.
func InCategory(category string) func(*types.CacheEntry) bool {
	return func(ent *types.CacheEntry) bool { return ent.Category == category }
}

// Range calls fn for every entry. Caller holds Mu.
func (s *Shard) Range(fn func(*types.CacheEntry)) {
	for _, ent := range s.entries {
		if ent != nil {
			fn(ent)
		}
	}
}

// Len returns the number of entries. Caller holds Mu.
func (s *Shard) Len() int { return len(s.entries) }

// SizeBytes returns the accounted size of all entries. Caller holds Mu.
func (s *Shard) SizeBytes() int64 { return s.sizeBytes }

// Categories returns the per-category accounting. Caller holds Mu and must
// not modify the map.
func (s *Shard) Categories() map[string]types.CategoryStats { return s.categories }

// Drop discards a corrupted slot, undoing whatever accounting it still holds.
// Caller holds Mu.
func (s *Shard) Drop(key string) {
	if ent := s.entries[key]; ent != nil {
		s.unaccount(ent)
	}
	delete(s.entries, key)
	s.eviction.Remove(key)
}

func (s *Shard) account(ent *types.CacheEntry) {
	s.sizeBytes += ent.SizeBytes
	c := s.categories[ent.Category]
	c.Count++
	c.SizeBytes += ent.SizeBytes
	s.categories[ent.Category] = c
}

func (s *Shard) unaccount(ent *types.CacheEntry) {
	s.sizeBytes -= ent.SizeBytes
	c := s.categories[ent.Category]
	c.Count--
	c.SizeBytes -= ent.SizeBytes
	if c.Count <= 0 {
		delete(s.categories, ent.Category)
		return
	}
	s.categories[ent.Category] = c
}
