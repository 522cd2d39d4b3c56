package config

import (
	"fmt"
	"slices"
)

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate returns every problem found, not only the first one.
func (c *Config) Validate() []error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Cache
	if c.Cache.Shards < 1 {
		add("cache.shards", "must be at least 1, got %d", c.Cache.Shards)
	}
	if c.Cache.MaxEntries < 0 {
		add("cache.max_entries", "must not be negative, got %d", c.Cache.MaxEntries)
	}
	if !slices.Contains([]string{"", "lru", "lfu", "fifo"}, c.Cache.Eviction) {
		add("cache.eviction", "must be one of lru, lfu, fifo, got %q", c.Cache.Eviction)
	}
	if !slices.Contains([]string{"", "fixed", "sliding"}, c.Cache.Expiration) {
		add("cache.expiration", "must be fixed or sliding, got %q", c.Cache.Expiration)
	}
	if c.Cache.SweepIntervalSeconds < 0 {
		add("cache.sweep_interval_seconds", "must not be negative, got %d", c.Cache.SweepIntervalSeconds)
	}
	if c.Cache.HealthMinHitRate < 0 || c.Cache.HealthMinHitRate > 1 {
		add("cache.health_min_hit_rate", "must be between 0 and 1, got %v", c.Cache.HealthMinHitRate)
	}
	if c.Cache.HealthMaxSizeMB < 0 {
		add("cache.health_max_size_mb", "must not be negative, got %d", c.Cache.HealthMaxSizeMB)
	}

	// Aggregation
	if c.Aggregation.MaxInFlight < 1 {
		add("aggregation.max_in_flight", "must be at least 1, got %d", c.Aggregation.MaxInFlight)
	}
	if c.Aggregation.FetchTimeoutMs < 1 {
		add("aggregation.fetch_timeout_ms", "must be positive, got %d", c.Aggregation.FetchTimeoutMs)
	}
	for field, v := range map[string]int{
		"aggregation.payload_ttl_seconds":  c.Aggregation.PayloadTTLSeconds,
		"aggregation.entity_ttl_seconds":   c.Aggregation.EntityTTLSeconds,
		"aggregation.snapshot_ttl_seconds": c.Aggregation.SnapshotTTLSeconds,
	} {
		if v < 0 {
			add(field, "must not be negative, got %d", v)
		}
	}
	if len(c.Aggregation.Sources) == 0 {
		add("aggregation.sources", "at least one source is required")
	}
	seen := make(map[string]bool, len(c.Aggregation.Sources))
	for _, s := range c.Aggregation.Sources {
		if s == "" || seen[s] {
			add("aggregation.sources", "sources must be non-empty and unique, got %q", c.Aggregation.Sources)
			break
		}
		seen[s] = true
	}

	// Refresh
	if c.Refresh.IntervalSeconds < 1 {
		add("refresh.interval_seconds", "must be at least 1, got %d", c.Refresh.IntervalSeconds)
	}

	// Logging
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		add("logging.level", "must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if !slices.Contains([]string{"json", "console"}, c.Logging.Format) {
		add("logging.format", "must be json or console, got %q", c.Logging.Format)
	}

	// Metrics
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		add("metrics.address", "is required when metrics are enabled")
	}

	return errs
}
