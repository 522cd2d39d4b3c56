package types

import "time"

// RefreshPolicy describes how the scheduler drives aggregation cycles.
type RefreshPolicy struct {
	IntervalSeconds int        `json:"intervalSeconds"`
	Enabled         bool       `json:"enabled"`
	LastRunAt       *time.Time `json:"lastRunAt"`
	RunCount        int        `json:"runCount"`
	SkippedTicks    int        `json:"skippedTicks"`
	LastError       string     `json:"lastError,omitempty"`
}

// Interval returns the policy interval as a duration.
func (p RefreshPolicy) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}
