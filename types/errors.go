package types

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidKey = errors.New("cache key must not be empty")
	ErrInvalidTTL = errors.New("cache ttl must not be negative")
)

// FetchError is the failure of one (entity, source) fetch. It never escapes
// the orchestrator; it is only counted and logged.
type FetchError struct {
	EntityID string
	Kind     string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s for entity %q: %v", e.Kind, e.EntityID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// AggregationInputError rejects a cycle before any fetch is issued.
type AggregationInputError struct {
	Reason string
}

func (e *AggregationInputError) Error() string {
	return "invalid aggregation input: " + e.Reason
}

// CacheCorruptionError describes an entry that violates the cache invariants.
// The cache drops the entry and keeps serving.
type CacheCorruptionError struct {
	Key    string
	Reason string
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("corrupted cache entry %q: %s", e.Key, e.Reason)
}
