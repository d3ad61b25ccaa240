package rangefetch

import (
	"github.com/okian/ladder/internal/domain/identity"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/logger"
)

const defaultPageSize = 25

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithPageSize sets the fixed page size requested from the backend.
func WithPageSize(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.pageSize = n
		}
	}
}

// WithFilters sets the social and time scope of the walked leaderboard.
func WithFilters(filters model.Filters) Option {
	return func(f *Fetcher) { f.filters = filters }
}

// WithIdentity sets the accessor used to recognise the requesting player.
func WithIdentity(a *identity.Accessor) Option {
	return func(f *Fetcher) { f.identity = a }
}

// WithAvatarFetcher sets the image collaborator triggered after a fetch.
func WithAvatarFetcher(a AvatarFetcher) Option {
	return func(f *Fetcher) { f.avatars = a }
}

// WithAvatarCallback sets the function run when a triggered avatar arrives.
func WithAvatarCallback(fn func(cacheKey string, err error)) Option {
	return func(f *Fetcher) { f.onAvatar = fn }
}

// WithDetailConcurrency bounds concurrent detail lookups per page; 0 means one per entry.
func WithDetailConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.detailLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}
