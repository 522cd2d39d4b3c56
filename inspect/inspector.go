// Package inspect reports on a cache for operators and exposes the
// invalidation passthroughs they are allowed to use.
package inspect

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/krisalay/analytics-cache/api"
	"github.com/krisalay/analytics-cache/types"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"

	DefaultMinHitRate   = 0.6
	DefaultMaxSizeBytes = 80 << 20
)

var _ api.Inspector = (*Inspector)(nil)

// Thresholds above which HealthSnapshot reports a warning.
type Thresholds struct {
	MinHitRate   float64 // 0..1, only checked once the cache served a lookup
	MaxSizeBytes int64   // 0 disables the check
}

// Inspector reads a cache without changing it, except through the explicit
// invalidation methods, which are logged.
type Inspector struct {
	cache      api.Cache
	thresholds Thresholds
	logger     *zap.Logger
}

type Option func(*Inspector)

func WithThresholds(t Thresholds) Option {
	return func(i *Inspector) { i.thresholds = t }
}

func WithLogger(l *zap.Logger) Option {
	return func(i *Inspector) {
		if l != nil {
			i.logger = l
		}
	}
}

func New(cache api.Cache, opts ...Option) *Inspector {
	i := &Inspector{
		cache:      cache,
		thresholds: Thresholds{MinHitRate: DefaultMinHitRate, MaxSizeBytes: DefaultMaxSizeBytes},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

/*
TopEntries returns the n highest ranked entries, expired ones included.
Ties are broken by key so the report is stable. n <= 0 returns nothing.
*/
func (i *Inspector) TopEntries(n int, orderBy types.OrderBy) []types.EntrySnapshot {
	if n <= 0 {
		return []types.EntrySnapshot{}
	}
	entries := i.cache.Entries()

	rank := func(e types.EntrySnapshot) int64 { return e.HitCount }
	if orderBy == types.OrderBySize {
		rank = func(e types.EntrySnapshot) int64 { return e.SizeBytes }
	}
	sort.Slice(entries, func(a, b int) bool {
		ra, rb := rank(entries[a]), rank(entries[b])
		if ra != rb {
			return ra > rb
		}
		return entries[a].Key < entries[b].Key
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	if entries == nil {
		entries = []types.EntrySnapshot{}
	}
	return entries
}

// HealthSnapshot summarises the cache and flags a low hit rate or an
// oversized cache.
func (i *Inspector) HealthSnapshot() types.Health {
	st := i.cache.Stats()

	h := types.Health{
		Status:         StatusHealthy,
		HitRate:        st.HitRate,
		TotalEntries:   st.TotalEntries,
		TotalSizeBytes: st.TotalSizeBytes,
		ExpiredCount:   st.Expired,
		Warnings:       []string{},
	}

	if st.Hits+st.Misses > 0 && st.HitRate < i.thresholds.MinHitRate {
		h.Warnings = append(h.Warnings, fmt.Sprintf(
			"hit rate %.1f%% is below %.1f%%, consider longer TTLs or warming the cache",
			st.HitRate*100, i.thresholds.MinHitRate*100))
	}
	if i.thresholds.MaxSizeBytes > 0 && st.TotalSizeBytes > i.thresholds.MaxSizeBytes {
		h.Warnings = append(h.Warnings, fmt.Sprintf(
			"cache holds %d bytes, above the %d byte limit, consider clearing unused categories",
			st.TotalSizeBytes, i.thresholds.MaxSizeBytes))
	}
	if len(h.Warnings) > 0 {
		h.Status = StatusDegraded
	}
	return h
}

// StatsByCategory returns the per-category counts and sizes.
func (i *Inspector) StatsByCategory() map[string]types.CategoryStats {
	return i.cache.Stats().ByCategory
}

func (i *Inspector) Invalidate(ctx context.Context, key string) bool {
	ok := i.cache.Invalidate(key)
	i.audit(ctx, "invalidate key", zap.String("key", key), zap.Bool("removed", ok))
	return ok
}

func (i *Inspector) InvalidateCategory(ctx context.Context, category string) int {
	n := i.cache.InvalidateCategory(category)
	i.audit(ctx, "invalidate category", zap.String("category", category), zap.Int("removed", n))
	return n
}

func (i *Inspector) InvalidatePrefix(ctx context.Context, prefix string) int {
	n := i.cache.InvalidatePrefix(prefix)
	i.audit(ctx, "invalidate prefix", zap.String("prefix", prefix), zap.Int("removed", n))
	return n
}

func (i *Inspector) Clear(ctx context.Context) {
	before := i.cache.Stats().TotalEntries
	i.cache.Clear()
	i.audit(ctx, "clear cache", zap.Int("entries_before", before))
}

func (i *Inspector) Sweep(ctx context.Context) int {
	n := i.cache.Sweep()
	i.audit(ctx, "sweep expired entries", zap.Int("removed", n))
	return n
}

func (i *Inspector) audit(ctx context.Context, action string, fields ...zap.Field) {
	fields = append(fields, zap.String("operator", OperatorFrom(ctx)))
	i.logger.Info("operator action: "+action, fields...)
}
