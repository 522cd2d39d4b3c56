// Package fetch contains ready-made types.Fetcher implementations.
package fetch

import (
	"context"
	"time"

	"github.com/krisalay/analytics-cache/types"
)

// FetcherFunc adapts a function to types.Fetcher.
type FetcherFunc func(ctx context.Context, entityID, sourceKind string, timeout time.Duration) (types.Payload, error)

func (f FetcherFunc) Fetch(ctx context.Context, entityID, sourceKind string, timeout time.Duration) (types.Payload, error) {
	return f(ctx, entityID, sourceKind, timeout)
}
