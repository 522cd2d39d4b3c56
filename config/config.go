// Package config loads the engine configuration from defaults, an optional
// YAML file and ANALYTICS_* environment variables, in increasing priority.
package config

// Config is the whole engine configuration.
type Config struct {
	Cache       CacheConfig
	Aggregation AggregationConfig
	Refresh     RefreshConfig
	Logging     LoggingConfig
	Metrics     MetricsConfig
}

type CacheConfig struct {
	Shards               int
	MaxEntries           int    // 0 = unbounded
	Eviction             string // lru, lfu, fifo
	Expiration           string // fixed, sliding
	SweepIntervalSeconds int    // 0 = lazy expiry only

	HealthMinHitRate float64 // 0..1
	HealthMaxSizeMB  int     // 0 = no size warning
}

type AggregationConfig struct {
	MaxInFlight        int
	FetchTimeoutMs     int
	PayloadTTLSeconds  int
	EntityTTLSeconds   int
	SnapshotTTLSeconds int
	DefaultAttendance  float64
	DefaultGrade       float64
	Sources            []string
}

type RefreshConfig struct {
	IntervalSeconds int
	Enabled         bool
}

type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	File       string // empty = stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type MetricsConfig struct {
	Enabled bool
	Address string
}
