package eviction

import "fmt"

/*
This file defines how a full shard decides what to remove.
*/

/*
Policy is the contract every eviction strategy follows. Policies are not
safe for concurrent use: the owning shard calls them with its lock held.
*/
type Policy interface {

	// OnGet is called after a key was read successfully.
	OnGet(key string)

	// OnPut is called after a key was inserted or replaced.
	OnPut(key string)

	// Remove is called when a key leaves the shard for any other reason
	// (invalidation, expiry). Unknown keys are ignored.
	Remove(key string)

	// Evict picks a victim, forgets it and returns it. It returns "" when
	// nothing is tracked.
	Evict() string

	// Len returns the number of tracked keys.
	Len() int
}

// PolicyType identifies a supported eviction strategy.
type PolicyType string

const (
	// LRU evicts the key that was read or written least recently.
	LRU PolicyType = "lru"

	// LFU evicts the key with the fewest reads; ties go to the oldest insert.
	LFU PolicyType = "lfu"

	// FIFO evicts the oldest inserted key, ignoring reads.
	FIFO PolicyType = "fifo"
)

// New creates the policy for t.
func New(t PolicyType) (Policy, error) {
	switch t {
	case LRU, "":
		return newOrdered(true), nil
	case LFU:
		return newLFU(), nil
	case FIFO:
		return newOrdered(false), nil
	default:
		return nil, fmt.Errorf("unknown eviction policy %q", t)
	}
}
