// Package quotes fetches live position snapshots from the portfolio feed.
package quotes

import (
	"context"

	"options-position-lab/internal/domain"
)

// Fetcher fetches one position snapshot on demand. A nil snapshot with a nil
// error means the feed answered with an empty book and there is nothing to
// persist for the tick.
type Fetcher interface {
	Fetch(ctx context.Context) (*domain.Snapshot, error)
}
