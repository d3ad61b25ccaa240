// Package backend defines the paginated-range service every score source
// implements, plus decorators shared by all implementations.
package backend

import (
	"context"

	"github.com/okian/ladder/internal/domain/model"
)

// Backend is one score source. Implementations must be safe for concurrent use.
type Backend interface {
	// TopCursor returns a cursor positioned at rank 1 for the given filters.
	TopCursor(ctx context.Context, filters model.Filters) (model.PageCursor, error)
	// FetchPage returns one page of at most size rows at cursor.
	FetchPage(ctx context.Context, cursor model.PageCursor, size int) (model.Page, error)
	// FetchDetail resolves a player's display name and avatar reference.
	FetchDetail(ctx context.Context, playerID string) (model.Detail, error)
	// FetchSelf returns the requesting player as this source knows them.
	FetchSelf(ctx context.Context) (model.Player, error)
	// FetchSummary returns the requesting player's own row on the board for
	// filters, or ErrNotFound when they have no score there.
	FetchSummary(ctx context.Context, filters model.Filters) (model.RawRow, error)
	// Submit records the requesting player's score. Callers do not wait on it
	// for correctness; the error is informational.
	Submit(ctx context.Context, value int64) error
}
