package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	cache "github.com/krisalay/analytics-cache"
	"github.com/krisalay/analytics-cache/aggregate"
	"github.com/krisalay/analytics-cache/config"
	"github.com/krisalay/analytics-cache/eviction"
	"github.com/krisalay/analytics-cache/expiration"
	"github.com/krisalay/analytics-cache/inspect"
	"github.com/krisalay/analytics-cache/publish"
	"github.com/krisalay/analytics-cache/refresh"
	"github.com/krisalay/analytics-cache/telemetry"
	"github.com/krisalay/analytics-cache/types"
)

// engine is every component wired together from one configuration.
type engine struct {
	cache        *cache.TTLCache
	orchestrator *aggregate.Orchestrator
	scheduler    *refresh.Scheduler
	inspector    *inspect.Inspector
	sink         publish.Sink
}

func buildEngine(
	cfg *config.Config,
	log *zap.Logger,
	reg prometheus.Registerer,
	fetcher types.Fetcher,
	entities aggregate.EntityLister,
	listeners ...publish.Listener,
) (*engine, error) {
	var metrics types.Metrics = types.NoopMetrics{}
	if reg != nil {
		metrics = telemetry.NewPrometheus(reg)
	}

	exp, ok := expiration.ByName(cfg.Cache.Expiration)
	if !ok {
		return nil, fmt.Errorf("unknown expiration strategy %q", cfg.Cache.Expiration)
	}
	c, err := cache.New(
		cache.WithShards(cfg.Cache.Shards),
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithEviction(eviction.PolicyType(cfg.Cache.Eviction)),
		cache.WithExpiration(exp),
		cache.WithMetrics(metrics),
		cache.WithLogger(log.Named("cache")),
		cache.WithSweepInterval(seconds(cfg.Cache.SweepIntervalSeconds)),
	)
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}

	sink := publish.NewAsyncSink(16, log.Named("publish"), listeners...)

	agg := cfg.Aggregation
	o := aggregate.New(fetcher, c,
		aggregate.WithMaxInFlight(agg.MaxInFlight),
		aggregate.WithFetchTimeout(time.Duration(agg.FetchTimeoutMs)*time.Millisecond),
		aggregate.WithTTLs(seconds(agg.PayloadTTLSeconds), seconds(agg.EntityTTLSeconds), seconds(agg.SnapshotTTLSeconds)),
		aggregate.WithDefaults(aggregate.Defaults{Attendance: agg.DefaultAttendance, Grade: agg.DefaultGrade}),
		aggregate.WithMetrics(metrics),
		aggregate.WithLogger(log.Named("aggregate")),
		aggregate.WithSink(sink),
	)

	sources := make([]aggregate.FetchSpec, len(agg.Sources))
	for i, kind := range agg.Sources {
		sources[i] = aggregate.FetchSpec{Kind: kind}
	}
	job := aggregate.Job{Orchestrator: o, Entities: entities, Sources: sources}

	return &engine{
		cache:        c,
		orchestrator: o,
		scheduler:    refresh.NewScheduler(job, refresh.WithLogger(log.Named("refresh")), refresh.WithMetrics(metrics)),
		inspector: inspect.New(c,
			inspect.WithLogger(log.Named("inspect")),
			inspect.WithThresholds(inspect.Thresholds{
				MinHitRate:   cfg.Cache.HealthMinHitRate,
				MaxSizeBytes: int64(cfg.Cache.HealthMaxSizeMB) << 20,
			})),
		sink: sink,
	}, nil
}

func refreshPolicy(cfg config.RefreshConfig) types.RefreshPolicy {
	return types.RefreshPolicy{IntervalSeconds: cfg.IntervalSeconds, Enabled: cfg.Enabled}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// classes lists n simulated classes.
func classes(n int) aggregate.StaticEntities {
	out := make(aggregate.StaticEntities, n)
	for i := range out {
		out[i] = aggregate.EntityRef{ID: fmt.Sprintf("class-%d", i+1), Name: fmt.Sprintf("Class %d", i+1)}
	}
	return out
}
