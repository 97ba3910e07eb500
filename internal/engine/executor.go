package engine

import (
	"context"

	"github.com/roach88/querymate/internal/queryir"
)

// Executor runs plans against a data store.
//
// Implementations must return rows in the plan's sort order (with the root
// primary key as the final tie breaker) and group counts in ascending key
// order. *store.Store is the SQLite implementation.
type Executor interface {
	// Fetch returns the rows of the plan's window.
	Fetch(ctx context.Context, p *queryir.Plan) ([]queryir.Row, error)

	// Count returns the number of distinct root records matching the plan.
	Count(ctx context.Context, p *queryir.Plan) (int, error)

	// GroupCounts returns each group key with its distinct root count.
	GroupCounts(ctx context.Context, p *queryir.Plan) ([]queryir.GroupCount, error)

	// FetchGroup returns the rows of one group with an explicit window.
	FetchGroup(ctx context.Context, p *queryir.Plan, key any, limit, offset int) ([]queryir.Row, error)
}
