// Package aggregate fans per-entity fetches out to a Fetcher, merges whatever
// came back into one AggregatedStats snapshot and publishes it.
package aggregate

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/krisalay/analytics-cache/types"
)

// State is the position of the most recent cycle in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateMerging   State = "merging"
	StatePublished State = "published"
	StateFailed    State = "failed"
)

// EntityRef names one entity to aggregate.
type EntityRef struct {
	ID   string
	Name string
}

// FetchSpec is one source fetched for every entity. A zero Timeout uses the
// orchestrator default.
type FetchSpec struct {
	Kind    string
	Timeout time.Duration
}

// Store is where merged artifacts are written. *cache.TTLCache satisfies it.
type Store interface {
	Set(key string, value any, category string, ttl time.Duration) error
}

// Cache categories of the artifacts written besides raw payloads, which use
// their source kind. Neither may be used as a source kind.
const (
	CategoryEntities   = "entities"
	CategoryAggregates = "aggregates"

	SnapshotKey = "stats:latest"
)

// PayloadKey is the cache key of one source payload of one entity. Source
// kinds never contain ':', so the key is unambiguous.
func PayloadKey(kind, entityID string) string { return "payload:" + kind + ":" + entityID }

// EntityKey is the cache key of one entity's merged stats.
func EntityKey(entityID string) string { return "entity:" + entityID }

/*
Orchestrator runs aggregation cycles.

Cycles may overlap; identical (entity, source) fetches that are in flight at
the same time are issued only once. A shared fetch is detached from the
callers' contexts: each caller stops waiting on its own cancellation or
timeout without failing the others. Readers of Latest always see a complete
snapshot, either the previous or the new one.
*/
type Orchestrator struct {
	fetcher types.Fetcher
	store   Store
	opts    options

	flight singleflight.Group
	state  atomic.Value
	latest atomic.Pointer[types.AggregatedStats]
}

// New creates an orchestrator. A nil store disables cache writes.
func New(fetcher types.Fetcher, store Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{fetcher: fetcher, store: store, opts: defaultOptions()}
	for _, opt := range opts {
		opt(&o.opts)
	}
	o.state.Store(StateIdle)
	return o
}

// State returns the state of the most recent cycle.
func (o *Orchestrator) State() State { return o.state.Load().(State) }

// Latest returns the last published snapshot, or nil before the first one.
func (o *Orchestrator) Latest() *types.AggregatedStats { return o.latest.Load() }

/*
RunCycle fetches every (entity, source) pair, waits for all of them, merges
the results and publishes the snapshot.

Individual fetch failures never fail the cycle, they are counted in the
snapshot. An error is returned only when:
  - the input is invalid (*types.AggregationInputError, nothing was fetched)
  - ctx was cancelled before merging (ctx.Err(), nothing was published)
*/
func (o *Orchestrator) RunCycle(ctx context.Context, entities []EntityRef, sources []FetchSpec) (*types.AggregatedStats, error) {
	began := time.Now()
	if err := validate(entities, sources); err != nil {
		o.finish(StateFailed, began)
		return nil, err
	}

	log := o.opts.logger.With(zap.String("cycle_id", uuid.NewString()))
	log.Debug("aggregation cycle started",
		zap.Int("entities", len(entities)),
		zap.Int("sources", len(sources)))

	o.state.Store(StateFetching)
	results := o.fanOut(ctx, log, entities, sources)

	if err := ctx.Err(); err != nil {
		log.Warn("aggregation cycle cancelled", zap.Error(err))
		o.finish(StateFailed, began)
		return nil, err
	}

	o.state.Store(StateMerging)
	stats := merge(entities, sources, results, o.opts.defaults, o.opts.clock.Now())

	o.writeEntities(log, entities, sources, results, stats.Entities)
	o.write(log, SnapshotKey, stats, CategoryAggregates, o.opts.snapshotTTL)
	o.latest.Store(stats)
	o.opts.sink.Publish(ctx, stats)
	o.finish(StatePublished, began)

	log.Info("aggregation cycle published",
		zap.Int("entities", stats.TotalEntities),
		zap.Int("calls", stats.SourceCallCount),
		zap.Int("failed_calls", stats.FailedCallCount),
		zap.Int("defaulted_entities", stats.DefaultedEntities),
		zap.Duration("took", time.Since(began)))
	return stats, nil
}

/*
Warm refreshes the cached payloads and entity stats of entities outside a
cycle. Nothing is published: Latest, State and the sink are left alone.
sources should be the full source set, since the entity stats written are
merged from them only; use WarmPayloads to refresh a subset of sources.
*/
func (o *Orchestrator) Warm(ctx context.Context, entities []EntityRef, sources []FetchSpec) (*WarmResult, error) {
	return o.warm(ctx, entities, sources, true)
}

// WarmPayloads refreshes only the cached payloads of entities for sources.
func (o *Orchestrator) WarmPayloads(ctx context.Context, entities []EntityRef, sources []FetchSpec) (*WarmResult, error) {
	return o.warm(ctx, entities, sources, false)
}

// WarmResult reports what a warm-up fetched.
type WarmResult struct {
	Calls  int
	Failed int
	// Entities is nil for WarmPayloads.
	Entities []types.EntityStats
}

func (o *Orchestrator) warm(ctx context.Context, entities []EntityRef, sources []FetchSpec, withEntities bool) (*WarmResult, error) {
	if err := validate(entities, sources); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, &types.AggregationInputError{Reason: "no entities to warm"}
	}

	log := o.opts.logger.With(zap.String("warm_id", uuid.NewString()))
	results := o.fanOut(ctx, log, entities, sources)
	if err := ctx.Err(); err != nil {
		log.Warn("cache warm-up cancelled", zap.Error(err))
		return nil, err
	}

	res := &WarmResult{Calls: len(results)}
	for _, r := range results {
		if r.err != nil {
			res.Failed++
		}
	}
	if withEntities {
		stats := merge(entities, sources, results, o.opts.defaults, o.opts.clock.Now())
		o.writeEntities(log, entities, sources, results, stats.Entities)
		res.Entities = stats.Entities
	} else {
		o.writePayloads(log, entities, sources, results)
	}

	log.Info("cache warmed",
		zap.Int("entities", len(entities)),
		zap.Int("sources", len(sources)),
		zap.Int("failed_calls", res.Failed))
	return res, nil
}

func (o *Orchestrator) finish(s State, began time.Time) {
	o.state.Store(s)
	o.opts.metrics.CycleDone(string(s), time.Since(began))
}

// result is the outcome of one fetch: a payload or a *types.FetchError.
type result struct {
	payload types.Payload
	err     error
}

// fanOut runs one task per (entity, source) with at most maxInFlight running.
// results[i*len(sources)+j] belongs to entities[i] and sources[j].
func (o *Orchestrator) fanOut(ctx context.Context, log *zap.Logger, entities []EntityRef, sources []FetchSpec) []result {
	results := make([]result, len(entities)*len(sources))

	// Plain group: one failing task must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(o.opts.maxInFlight)
	for i, ent := range entities {
		for j, src := range sources {
			idx := i*len(sources) + j
			g.Go(func() error {
				results[idx] = o.fetch(ctx, log, ent.ID, src)
				return nil
			})
		}
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) fetch(ctx context.Context, log *zap.Logger, entityID string, src FetchSpec) result {
	timeout := src.Timeout
	if timeout == 0 {
		timeout = o.opts.fetchTimeout
	}
	if err := ctx.Err(); err != nil {
		return result{err: &types.FetchError{EntityID: entityID, Kind: src.Kind, Err: err}}
	}

	began := time.Now()
	flight := o.flight.DoChan(PayloadKey(src.Kind, entityID), func() (any, error) {
		return o.call(context.WithoutCancel(ctx), entityID, src.Kind, timeout)
	})

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		v      any
		err    error
		shared bool
	)
	select {
	case r := <-flight:
		v, err, shared = r.Val, r.Err, r.Shared
	case <-waitCtx.Done():
		err = waitCtx.Err()
	}
	o.opts.metrics.FetchDone(src.Kind, err == nil, time.Since(began))

	if err != nil {
		log.Warn("source fetch failed",
			zap.String("entity_id", entityID),
			zap.String("source", src.Kind),
			zap.Bool("shared", shared),
			zap.Error(err))
		return result{err: &types.FetchError{EntityID: entityID, Kind: src.Kind, Err: err}}
	}

	p := v.(types.Payload)
	if p.Kind == "" {
		p.Kind = src.Kind
	}
	return result{payload: p}
}

// call bounds one Fetch by timeout even when the fetcher ignores its context.
// A fetcher that never returns leaks its goroutine, not the cycle.
func (o *Orchestrator) call(ctx context.Context, entityID, kind string, timeout time.Duration) (types.Payload, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("fetcher panicked: %v", r)}
			}
		}()
		p, err := o.fetcher.Fetch(callCtx, entityID, kind, timeout)
		done <- result{payload: p, err: err}
	}()

	select {
	case r := <-done:
		return r.payload, r.err
	case <-callCtx.Done():
		return types.Payload{}, callCtx.Err()
	}
}

// writeEntities stores the payloads that arrived and every entity's stats.
func (o *Orchestrator) writeEntities(log *zap.Logger, entities []EntityRef, sources []FetchSpec, results []result, stats []types.EntityStats) {
	o.writePayloads(log, entities, sources, results)
	for i, ent := range entities {
		o.write(log, EntityKey(ent.ID), stats[i], CategoryEntities, o.opts.entityTTL)
	}
}

func (o *Orchestrator) writePayloads(log *zap.Logger, entities []EntityRef, sources []FetchSpec, results []result) {
	for i, ent := range entities {
		for j, src := range sources {
			if r := results[i*len(sources)+j]; r.err == nil {
				o.write(log, PayloadKey(src.Kind, ent.ID), r.payload, src.Kind, o.opts.payloadTTL)
			}
		}
	}
}

// write stores one artifact. Store errors are logged only; the cycle goes on.
func (o *Orchestrator) write(log *zap.Logger, key string, value any, category string, ttl time.Duration) {
	if o.store == nil {
		return
	}
	if err := o.store.Set(key, value, category, ttl); err != nil {
		log.Warn("cache write failed", zap.String("key", key), zap.String("category", category), zap.Error(err))
	}
}

func validate(entities []EntityRef, sources []FetchSpec) error {
	if len(sources) == 0 {
		return &types.AggregationInputError{Reason: "no sources"}
	}
	kinds := make(map[string]struct{}, len(sources))
	for i, s := range sources {
		if s.Kind == "" {
			return &types.AggregationInputError{Reason: fmt.Sprintf("source %d has no kind", i)}
		}
		if strings.Contains(s.Kind, ":") {
			return &types.AggregationInputError{Reason: fmt.Sprintf("source kind %q contains ':'", s.Kind)}
		}
		if s.Kind == CategoryEntities || s.Kind == CategoryAggregates {
			return &types.AggregationInputError{Reason: fmt.Sprintf("source kind %q is reserved", s.Kind)}
		}
		if _, dup := kinds[s.Kind]; dup {
			return &types.AggregationInputError{Reason: fmt.Sprintf("duplicate source %q", s.Kind)}
		}
		if s.Timeout < 0 {
			return &types.AggregationInputError{Reason: fmt.Sprintf("source %q has a negative timeout", s.Kind)}
		}
		kinds[s.Kind] = struct{}{}
	}

	ids := make(map[string]struct{}, len(entities))
	for i, e := range entities {
		if e.ID == "" {
			return &types.AggregationInputError{Reason: fmt.Sprintf("entity %d has no id", i)}
		}
		if _, dup := ids[e.ID]; dup {
			return &types.AggregationInputError{Reason: fmt.Sprintf("duplicate entity %q", e.ID)}
		}
		ids[e.ID] = struct{}{}
	}
	return nil
}
