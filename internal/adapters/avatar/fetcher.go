// Package avatar downloads player images in the background and keeps them
// in a bounded cache keyed by avatar cache key.
package avatar

import (
	"context"
	"fmt"
	"sync"
	"time"

	cache "github.com/unkn0wn-root/kioshun"

	"github.com/okian/ladder/internal/adapters/mq/queue"
	"github.com/okian/ladder/internal/adapters/mq/worker"
	"github.com/okian/ladder/internal/domain/dedupe"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

const queueName = "avatar"

// Callback is told when an image for cacheKey has arrived or failed.
type Callback func(cacheKey string, err error)

type request struct {
	ref string
	key string
}

// Fetcher is the image-fetch collaborator used by range fetchers.
// Concurrent requests for one key share a single download.
type Fetcher struct {
	getter    ImageGetter
	queueSize int
	workers   int
	cacheSize int64
	ttl       time.Duration
	timeout   time.Duration
	log       logger.Logger

	images   *cache.InMemoryCache[string, []byte]
	queue    *queue.InMemoryQueue[request]
	pool     *worker.Pool[request]
	inflight dedupe.Deduper

	mu      sync.Mutex
	waiters map[string][]Callback
}

// New creates a Fetcher. Call Start before requesting images.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		getter:    HTTPGetter{},
		queueSize: defaultQueueSize,
		workers:   defaultWorkers,
		cacheSize: defaultCacheSize,
		ttl:       defaultTTL,
		timeout:   defaultTimeout,
		waiters:   make(map[string][]Callback),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.Get().Named("avatar")
	}

	cfg := cache.DefaultConfig()
	cfg.MaxSize = f.cacheSize
	cfg.DefaultTTL = f.ttl
	cfg.EvictionPolicy = cache.LRU
	f.images = cache.New[string, []byte](cfg)

	f.queue = queue.NewInMemoryQueue[request](queue.WithName(queueName), queue.WithCapacity(f.queueSize))
	f.pool = worker.NewPool[request](f.workers, f.queue, f.download,
		worker.WithName("avatar-worker"), worker.WithLogger(f.log))
	f.inflight = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(f.queueSize + f.workers))
	return f
}

// Start launches the download workers.
func (f *Fetcher) Start(ctx context.Context) {
	f.pool.Start(ctx)
}

// Shutdown drains pending downloads and releases the cache.
func (f *Fetcher) Shutdown(ctx context.Context) error {
	err := f.pool.Shutdown(ctx)
	f.failWaiting(fmt.Errorf("%w: shutting down", ErrRejected))
	if cerr := f.images.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// FetchAvatarImage requests the image behind ref. onArrived runs at most once,
// immediately when the image is already cached.
func (f *Fetcher) FetchAvatarImage(ref, cacheKey string, onArrived func(cacheKey string, err error)) {
	cb := Callback(onArrived)
	if cb == nil {
		cb = func(string, error) {}
	}
	if ref == "" || cacheKey == "" {
		cb(cacheKey, ErrEmptyRef)
		return
	}
	if _, ok := f.images.Get(cacheKey); ok {
		cb(cacheKey, nil)
		return
	}

	ctx := context.Background()
	f.mu.Lock()
	if f.inflight.SeenAndRecord(ctx, cacheKey) {
		f.waiters[cacheKey] = append(f.waiters[cacheKey], cb)
		f.mu.Unlock()
		return
	}
	f.waiters[cacheKey] = []Callback{cb}
	f.mu.Unlock()

	if err := f.queue.TryEnqueue(ctx, request{ref: ref, key: cacheKey}); err != nil {
		f.log.Warn(ctx, "avatar request dropped", logger.String("key", cacheKey), logger.Error(err))
		f.finish(cacheKey, fmt.Errorf("%w: %w", ErrRejected, err))
	}
}

// Image returns the cached bytes for key.
func (f *Fetcher) Image(key string) ([]byte, bool) {
	return f.images.Get(key)
}

// Size returns the number of cached images.
func (f *Fetcher) Size() int64 {
	return f.images.Size()
}

// Pending returns the number of queued downloads.
func (f *Fetcher) Pending() int {
	return f.queue.Len()
}

func (f *Fetcher) download(ctx context.Context, r request) error {
	dctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	body, err := f.getter.Get(dctx, r.ref)
	if err == nil {
		err = f.images.Set(r.key, body, f.ttl)
		metrics.UpdateAvatarCacheSize(f.images.Size())
	}
	f.finish(r.key, err)
	if err != nil {
		return fmt.Errorf("avatar %s: %w", r.key, err)
	}
	return nil
}

// finish releases the in-flight claim on key and notifies its waiters.
func (f *Fetcher) finish(key string, err error) {
	f.mu.Lock()
	cbs := f.waiters[key]
	delete(f.waiters, key)
	f.inflight.Unrecord(context.Background(), key)
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(key, err)
	}
}

func (f *Fetcher) failWaiting(err error) {
	f.mu.Lock()
	keys := make([]string, 0, len(f.waiters))
	for k := range f.waiters {
		keys = append(keys, k)
	}
	f.mu.Unlock()
	for _, k := range keys {
		f.finish(k, err)
	}
}
