package types

import "time"

// This file defines how the engine reports what it is doing.

/*
Metrics is the set of events the cache, the orchestrator and the scheduler
emit. Each method represents one event in the engine lifecycle; the
implementation decides what to do with it (Prometheus counters, logs, nothing).
*/
type Metrics interface {

	// Hit is called when a lookup returns a live entry.
	Hit(category string)

	// Miss is called when a lookup finds nothing or an expired entry.
	Miss()

	// Eviction is called when an entry is removed to make room.
	Eviction(category string)

	// Expire is called when an expired entry is removed (lazily or by a sweep).
	Expire(category string)

	// Invalidate is called after operator or orchestrator driven removals.
	Invalidate(category string, removed int)

	// FetchDone is called once per (entity, source) task with its outcome.
	FetchDone(kind string, ok bool, d time.Duration)

	// CycleDone is called when a cycle reaches Published or Failed.
	CycleDone(state string, d time.Duration)

	// TickSkipped is called when a scheduler tick fires while a cycle is in flight.
	TickSkipped()
}

/*
NoopMetrics ignores every event. Components fall back to it when no metrics
implementation is configured so the hot paths never need nil checks.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit(string)                            {}
func (NoopMetrics) Miss()                                 {}
func (NoopMetrics) Eviction(string)                       {}
func (NoopMetrics) Expire(string)                         {}
func (NoopMetrics) Invalidate(string, int)                {}
func (NoopMetrics) FetchDone(string, bool, time.Duration) {}
func (NoopMetrics) CycleDone(string, time.Duration)       {}
func (NoopMetrics) TickSkipped()                          {}
