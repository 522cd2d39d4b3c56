package config

// DefaultConfig returns a configuration that passes Validate.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Shards:               16,
			MaxEntries:           0,
			Eviction:             "lru",
			Expiration:           "fixed",
			SweepIntervalSeconds: 60,
			HealthMinHitRate:     0.6,
			HealthMaxSizeMB:      80,
		},
		Aggregation: AggregationConfig{
			MaxInFlight:        8,
			FetchTimeoutMs:     10000,
			PayloadTTLSeconds:  300,
			EntityTTLSeconds:   300,
			SnapshotTTLSeconds: 300,
			DefaultAttendance:  85,
			DefaultGrade:       75,
			Sources:            []string{"students", "subjects", "exams", "assignments", "attendance", "grades"},
		},
		Refresh: RefreshConfig{
			IntervalSeconds: 300,
			Enabled:         true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
		},
	}
}
