package aggregate

import (
	"context"
	"fmt"

	"github.com/krisalay/analytics-cache/types"
)

// EntityLister resolves the entities of a cycle at run time, so each
// scheduled cycle sees the current set (classes added or removed...).
type EntityLister interface {
	ListEntities(ctx context.Context) ([]EntityRef, error)
}

// EntityListerFunc adapts a function to EntityLister.
type EntityListerFunc func(ctx context.Context) ([]EntityRef, error)

func (f EntityListerFunc) ListEntities(ctx context.Context) ([]EntityRef, error) { return f(ctx) }

// StaticEntities is a fixed entity list.
type StaticEntities []EntityRef

func (s StaticEntities) ListEntities(context.Context) ([]EntityRef, error) { return s, nil }

// Job binds an orchestrator to its inputs so a scheduler can run it.
type Job struct {
	Orchestrator *Orchestrator
	Entities     EntityLister
	Sources      []FetchSpec
}

// Run lists the entities and runs one cycle over them.
func (j Job) Run(ctx context.Context) error {
	entities, err := j.Entities.ListEntities(ctx)
	if err != nil {
		return fmt.Errorf("list entities: %w", err)
	}
	if _, err := j.Orchestrator.RunCycle(ctx, entities, j.Sources); err != nil {
		return fmt.Errorf("run aggregation cycle: %w", err)
	}
	return nil
}

/*
Warm refreshes cached artifacts outside the schedule.

  - entityIDs narrows the listed entities; empty means all of them
  - kinds narrows the job's sources; empty means all of them, and only then
    are entity stats rewritten as well

Unknown ids or kinds are rejected with *types.AggregationInputError before
anything is fetched.
*/
func (j Job) Warm(ctx context.Context, entityIDs, kinds []string) error {
	listed, err := j.Entities.ListEntities(ctx)
	if err != nil {
		return fmt.Errorf("list entities: %w", err)
	}
	entities, err := pick(listed, entityIDs, func(e EntityRef) string { return e.ID }, "entity")
	if err != nil {
		return err
	}
	sources, err := pick(j.Sources, kinds, func(s FetchSpec) string { return s.Kind }, "source")
	if err != nil {
		return err
	}

	warm := j.Orchestrator.Warm
	if len(kinds) > 0 && len(sources) < len(j.Sources) {
		warm = j.Orchestrator.WarmPayloads
	}
	if _, err := warm(ctx, entities, sources); err != nil {
		return fmt.Errorf("warm cache: %w", err)
	}
	return nil
}

// pick returns the items named by names, in the order of names. No names
// selects every item.
func pick[T any](items []T, names []string, name func(T) string, what string) ([]T, error) {
	if len(names) == 0 {
		return items, nil
	}
	byName := make(map[string]T, len(items))
	for _, it := range items {
		byName[name(it)] = it
	}
	out := make([]T, 0, len(names))
	for _, n := range names {
		it, ok := byName[n]
		if !ok {
			return nil, &types.AggregationInputError{Reason: fmt.Sprintf("unknown %s %q", what, n)}
		}
		out = append(out, it)
	}
	return out, nil
}
