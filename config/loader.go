package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "ANALYTICS"

/*
Load reads the configuration.

Priority, lowest first: DefaultConfig, the YAML file at path (skipped when
path is empty), ANALYTICS_<SECTION>_<KEY> environment variables. The result
is validated; every problem is reported in one error.
*/
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := unmarshal(v)
	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return nil, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Cache
	v.SetDefault("cache.shards", d.Cache.Shards)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.eviction", d.Cache.Eviction)
	v.SetDefault("cache.expiration", d.Cache.Expiration)
	v.SetDefault("cache.sweep_interval_seconds", d.Cache.SweepIntervalSeconds)
	v.SetDefault("cache.health_min_hit_rate", d.Cache.HealthMinHitRate)
	v.SetDefault("cache.health_max_size_mb", d.Cache.HealthMaxSizeMB)

	// Aggregation
	v.SetDefault("aggregation.max_in_flight", d.Aggregation.MaxInFlight)
	v.SetDefault("aggregation.fetch_timeout_ms", d.Aggregation.FetchTimeoutMs)
	v.SetDefault("aggregation.payload_ttl_seconds", d.Aggregation.PayloadTTLSeconds)
	v.SetDefault("aggregation.entity_ttl_seconds", d.Aggregation.EntityTTLSeconds)
	v.SetDefault("aggregation.snapshot_ttl_seconds", d.Aggregation.SnapshotTTLSeconds)
	v.SetDefault("aggregation.default_attendance", d.Aggregation.DefaultAttendance)
	v.SetDefault("aggregation.default_grade", d.Aggregation.DefaultGrade)
	v.SetDefault("aggregation.sources", d.Aggregation.Sources)

	// Refresh
	v.SetDefault("refresh.interval_seconds", d.Refresh.IntervalSeconds)
	v.SetDefault("refresh.enabled", d.Refresh.Enabled)

	// Logging
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	// Metrics
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.address", d.Metrics.Address)
}

func unmarshal(v *viper.Viper) *Config {
	cfg := &Config{}

	// Cache
	cfg.Cache.Shards = v.GetInt("cache.shards")
	cfg.Cache.MaxEntries = v.GetInt("cache.max_entries")
	cfg.Cache.Eviction = strings.ToLower(v.GetString("cache.eviction"))
	cfg.Cache.Expiration = strings.ToLower(v.GetString("cache.expiration"))
	cfg.Cache.SweepIntervalSeconds = v.GetInt("cache.sweep_interval_seconds")
	cfg.Cache.HealthMinHitRate = v.GetFloat64("cache.health_min_hit_rate")
	cfg.Cache.HealthMaxSizeMB = v.GetInt("cache.health_max_size_mb")

	// Aggregation
	cfg.Aggregation.MaxInFlight = v.GetInt("aggregation.max_in_flight")
	cfg.Aggregation.FetchTimeoutMs = v.GetInt("aggregation.fetch_timeout_ms")
	cfg.Aggregation.PayloadTTLSeconds = v.GetInt("aggregation.payload_ttl_seconds")
	cfg.Aggregation.EntityTTLSeconds = v.GetInt("aggregation.entity_ttl_seconds")
	cfg.Aggregation.SnapshotTTLSeconds = v.GetInt("aggregation.snapshot_ttl_seconds")
	cfg.Aggregation.DefaultAttendance = v.GetFloat64("aggregation.default_attendance")
	cfg.Aggregation.DefaultGrade = v.GetFloat64("aggregation.default_grade")
	cfg.Aggregation.Sources = splitList(v.GetStringSlice("aggregation.sources"))

	// Refresh
	cfg.Refresh.IntervalSeconds = v.GetInt("refresh.interval_seconds")
	cfg.Refresh.Enabled = v.GetBool("refresh.enabled")

	// Logging
	cfg.Logging.Level = strings.ToLower(v.GetString("logging.level"))
	cfg.Logging.Format = strings.ToLower(v.GetString("logging.format"))
	cfg.Logging.File = v.GetString("logging.file")
	cfg.Logging.MaxSizeMB = v.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = v.GetInt("logging.max_backups")
	cfg.Logging.MaxAgeDays = v.GetInt("logging.max_age_days")
	cfg.Logging.Compress = v.GetBool("logging.compress")

	// Metrics
	cfg.Metrics.Enabled = v.GetBool("metrics.enabled")
	cfg.Metrics.Address = v.GetString("metrics.address")

	return cfg
}

// splitList also accepts comma separated items, as env vars usually carry them.
func splitList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
