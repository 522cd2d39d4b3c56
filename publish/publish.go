package publish

import (
	"context"

	"github.com/krisalay/analytics-cache/types"
)

/*
This file defines how a freshly published snapshot reaches its readers
(dashboards, websocket hubs, exporters...).

Different readers have different needs:
- Some want to see the snapshot before the cycle returns (synchronous)
- Some must never slow down a cycle (asynchronous, buffered)
*/

// Listener receives every published snapshot. Snapshots are immutable and
// shared, listeners must not modify them.
type Listener interface {
	OnSnapshot(ctx context.Context, stats *types.AggregatedStats) error
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(ctx context.Context, stats *types.AggregatedStats) error

func (f ListenerFunc) OnSnapshot(ctx context.Context, stats *types.AggregatedStats) error {
	return f(ctx, stats)
}

/*
Sink is the contract the orchestrator publishes through.
It does not care which delivery strategy is used.
*/
type Sink interface {

	// Publish hands a snapshot to the listeners. It never fails the cycle.
	Publish(ctx context.Context, stats *types.AggregatedStats)

	// Close releases background workers, delivering what is still queued.
	Close()
}
