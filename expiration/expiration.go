// This file defines how cache entries expire over time.

package expiration

import (
	"time"

	"github.com/krisalay/analytics-cache/types"
)

/*
Strategy decides when an entry stops being served. The TTL itself is chosen
per entry by the caller of Set; a strategy only decides how that TTL is
applied. Entries with a zero TTL never expire under any strategy.
*/
type Strategy interface {

	// IsExpired reports whether ent is expired at now.
	IsExpired(ent *types.CacheEntry, now time.Time) bool

	// OnAccess is called after a successful read.
	OnAccess(ent *types.CacheEntry, now time.Time)
}

/*
Fixed expires an entry TTL after it was written, regardless of reads.
This is the default strategy.
*/
type Fixed struct{}

func (Fixed) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return ent.IsExpired(now)
}

func (Fixed) OnAccess(*types.CacheEntry, time.Time) {}

/*
Sliding implements "expire after access": every successful read pushes
ExpiresAt forward by the entry's own TTL. Data that keeps being read stays
alive; data nobody reads for a full TTL expires.
*/
type Sliding struct{}

func (Sliding) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return ent.IsExpired(now)
}

// OnAccess is called with the owning shard locked.
func (Sliding) OnAccess(ent *types.CacheEntry, now time.Time) {
	if ent.TTL > 0 {
		ent.ExpiresAt = now.Add(ent.TTL)
	}
}

// ByName returns the strategy registered under name ("fixed" or "sliding").
func ByName(name string) (Strategy, bool) {
	switch name {
	case "", "fixed":
		return Fixed{}, true
	case "sliding":
		return Sliding{}, true
	default:
		return nil, false
	}
}
