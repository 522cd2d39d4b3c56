package types

import (
	"context"
	"time"
)

// Fetcher is the contract between the aggregation engine and the transport
// that actually retrieves entity data (REST, GraphQL, a database...).
type Fetcher interface {

	/*
		Fetch retrieves one facet (sourceKind) of one entity.

		Implementations are expected to honour ctx and the timeout. The
		orchestrator wraps every call in its own deadline anyway, so a
		transport that cannot guarantee this will not hang a cycle.
	*/
	Fetch(ctx context.Context, entityID, sourceKind string, timeout time.Duration) (Payload, error)
}
