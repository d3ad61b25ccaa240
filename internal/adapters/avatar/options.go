package avatar

import (
	"time"

	"github.com/okian/ladder/pkg/logger"
)

const (
	defaultQueueSize = 256
	defaultWorkers   = 4
	defaultCacheSize = 2048
	defaultTTL       = 30 * time.Minute
	defaultTimeout   = 5 * time.Second
	maxImageBytes    = 1 << 20
)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithGetter replaces the HTTP image getter.
func WithGetter(g ImageGetter) Option {
	return func(f *Fetcher) {
		if g != nil {
			f.getter = g
		}
	}
}

// WithQueueSize bounds the number of pending downloads.
func WithQueueSize(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.queueSize = n
		}
	}
}

// WithWorkers sets the number of concurrent downloads.
func WithWorkers(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

// WithCacheSize bounds the number of cached images.
func WithCacheSize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.cacheSize = n
		}
	}
}

// WithTTL sets how long a downloaded image stays cached.
func WithTTL(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.ttl = d
		}
	}
}

// WithTimeout bounds a single download.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}
