// Package telemetry reports engine events as Prometheus metrics.
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/krisalay/analytics-cache/types"
)

const namespace = "analytics"

var _ types.Metrics = (*Prometheus)(nil)

// Prometheus implements types.Metrics with counters and histograms
// registered on one registerer.
type Prometheus struct {
	Hits          *prometheus.CounterVec
	Misses        prometheus.Counter
	Evictions     *prometheus.CounterVec
	Expirations   *prometheus.CounterVec
	Invalidations *prometheus.CounterVec

	Fetches       *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	SkippedTicks  prometheus.Counter
}

// NewPrometheus registers the engine metrics on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		Hits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache lookups that returned a live entry",
		}, []string{"category"}),
		Misses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache lookups that found nothing or an expired entry",
		}),
		Evictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries removed to make room",
		}, []string{"category"}),
		Expirations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_expirations_total",
			Help:      "Expired entries removed lazily or by a sweep",
		}, []string{"category"}),
		Invalidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Entries removed by invalidation or clear",
		}, []string{"category"}),
		Fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Source fetches by kind and outcome",
		}, []string{"source", "ok"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Source fetch duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		}, []string{"source"}),
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_cycles_total",
			Help:      "Aggregation cycles by final state",
		}, []string{"state"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_cycle_duration_seconds",
			Help:      "Aggregation cycle duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		SkippedTicks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_skipped_ticks_total",
			Help:      "Scheduler ticks skipped because a cycle was still running",
		}),
	}
}

func (p *Prometheus) Hit(category string)      { p.Hits.WithLabelValues(category).Inc() }
func (p *Prometheus) Miss()                    { p.Misses.Inc() }
func (p *Prometheus) Eviction(category string) { p.Evictions.WithLabelValues(category).Inc() }
func (p *Prometheus) Expire(category string)   { p.Expirations.WithLabelValues(category).Inc() }
func (p *Prometheus) TickSkipped()             { p.SkippedTicks.Inc() }

func (p *Prometheus) Invalidate(category string, removed int) {
	p.Invalidations.WithLabelValues(category).Add(float64(removed))
}

func (p *Prometheus) FetchDone(kind string, ok bool, d time.Duration) {
	p.Fetches.WithLabelValues(kind, strconv.FormatBool(ok)).Inc()
	p.FetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *Prometheus) CycleDone(state string, d time.Duration) {
	p.Cycles.WithLabelValues(state).Inc()
	p.CycleDuration.Observe(d.Seconds())
}
