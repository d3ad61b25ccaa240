// Package service wires score sources, range fetchers and the merged
// leaderboard into the operations exposed by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ladder/internal/adapters/avatar"
	"github.com/okian/ladder/internal/adapters/backend"
	"github.com/okian/ladder/internal/adapters/backend/httpsrc"
	"github.com/okian/ladder/internal/adapters/backend/memory"
	"github.com/okian/ladder/internal/adapters/backend/redisz"
	"github.com/okian/ladder/internal/adapters/mq/queue"
	"github.com/okian/ladder/internal/adapters/mq/worker"
	"github.com/okian/ladder/internal/config"
	"github.com/okian/ladder/internal/domain/aggregate"
	"github.com/okian/ladder/internal/domain/identity"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/rangefetch"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

const (
	submitTimeout   = 10 * time.Second
	identityTimeout = 10 * time.Second
)

// sourceHandle is one configured source. fetcher is nil when the source is
// disabled or could not be opened.
type sourceHandle struct {
	cfg     config.Source
	guarded *backend.Breaker
	fetcher *rangefetch.Fetcher
	closer  io.Closer

	// last summary served for the current player
	summary atomic.Pointer[model.ScoreEntry]
}

type submitJob struct {
	ID     string
	Source string
	Value  int64
}

// components exist between Start and Stop.
type components struct {
	filters     model.Filters
	identity    *identity.Accessor
	identityCtx context.Context
	stopLookups context.CancelFunc
	lookups     sync.WaitGroup
	avatars     *avatar.Fetcher
	sources     []*sourceHandle
	byID        map[string]*sourceHandle
	aggregator  *aggregate.Aggregator
	submitQueue *queue.InMemoryQueue[submitJob]
	submitPool  *worker.Pool[submitJob]
	stopCh      chan struct{}
	loopDone    chan struct{}
}

// Service implements the API dependencies for the aggregated leaderboard.
type Service struct {
	mu sync.RWMutex

	cfg         *config.Config
	overrides   map[string]backend.Backend
	imageGetter avatar.ImageGetter

	rt *components

	logger logger.Logger
}

// New constructs a Service. Nothing is opened until Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:       config.New(),
		overrides: make(map[string]backend.Backend),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens every configured source, starts the background pipelines and
// kicks off the first rebuild. Sources that fail to open stay registered as
// unavailable.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rt != nil {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	filters, err := s.cfg.Filters()
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "starting leaderboard service...")
	bg := context.WithoutCancel(ctx)

	rt := &components{
		filters:  filters,
		identity: identity.New(),
		byID:     make(map[string]*sourceHandle, len(s.cfg.Sources)),
		stopCh:   make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	rt.identityCtx, rt.stopLookups = context.WithCancel(bg)

	avatarOpts := []avatar.Option{
		avatar.WithQueueSize(s.cfg.AvatarQueueSize),
		avatar.WithWorkers(s.cfg.AvatarWorkers),
		avatar.WithCacheSize(s.cfg.AvatarCacheSize),
		avatar.WithTimeout(s.cfg.AvatarTimeout()),
		avatar.WithLogger(s.logger.Named("avatar")),
	}
	if s.imageGetter != nil {
		avatarOpts = append(avatarOpts, avatar.WithGetter(s.imageGetter))
	}
	rt.avatars = avatar.New(avatarOpts...)
	rt.avatars.Start(bg)

	pullers := make([]aggregate.Source, 0, len(s.cfg.Sources))
	for _, sc := range s.cfg.Sources {
		h := s.openSource(ctx, rt, sc, filters)
		rt.sources = append(rt.sources, h)
		rt.byID[sc.Name] = h

		src := aggregate.Source{ID: sc.Name}
		if h.fetcher != nil {
			src.Puller = h.fetcher
		}
		pullers = append(pullers, src)
	}

	agg, err := aggregate.New(pullers,
		aggregate.WithPersonalBestLabel(s.cfg.PersonalBestLabel),
		aggregate.WithLogger(s.logger.Named("aggregate")),
	)
	if err != nil {
		rt.stopLookups()
		_ = rt.avatars.Shutdown(ctx)
		_ = closeSources(rt.sources)
		return fmt.Errorf("aggregator: %w", err)
	}
	rt.aggregator = agg
	s.resolveIdentity(rt, s.cfg.PlayerID)

	rt.submitQueue = queue.NewInMemoryQueue[submitJob](
		queue.WithName("submit"),
		queue.WithCapacity(s.cfg.SubmitQueueSize),
	)
	rt.submitPool = worker.NewPool[submitJob](s.cfg.SubmitWorkers, rt.submitQueue, submitHandler(rt.byID),
		worker.WithName("submit-worker"),
		worker.WithLogger(s.logger.Named("submit")),
	)
	rt.submitPool.Start(bg)

	agg.Rebuild(bg)
	go rebuildLoop(bg, agg, s.cfg.RebuildInterval(), rt.stopCh, rt.loopDone)

	s.rt = rt
	s.logger.Info(ctx, "leaderboard service started",
		logger.Int("sources", len(rt.sources)),
		logger.Int("submit_workers", rt.submitPool.Size()),
		logger.Duration("rebuild_interval", s.cfg.RebuildInterval()),
	)
	return nil
}

func (s *Service) openSource(ctx context.Context, rt *components, sc config.Source, filters model.Filters) *sourceHandle {
	h := &sourceHandle{cfg: sc}
	log := s.logger.With(logger.String("source", sc.Name), logger.String("kind", sc.Kind))
	if !sc.Enabled {
		log.Info(ctx, "source disabled")
		return h
	}

	raw, closer, err := s.openBackend(ctx, sc)
	if err != nil {
		metrics.RecordSourceFailure(sc.Name)
		log.Warn(ctx, "source unavailable", logger.Error(err))
		return h
	}
	h.closer = closer
	h.guarded = backend.NewBreaker(sc.Name, raw,
		backend.WithMaxFailures(s.cfg.BreakerMaxFailures),
		backend.WithOpenTimeout(s.cfg.BreakerTimeout()),
		backend.WithBreakerLogger(s.logger.Named("breaker")),
	)
	h.fetcher = rangefetch.New(sc.Name, h.guarded,
		rangefetch.WithPageSize(s.cfg.PageSize),
		rangefetch.WithFilters(filters),
		rangefetch.WithIdentity(rt.identity),
		rangefetch.WithAvatarFetcher(rt.avatars),
		rangefetch.WithAvatarCallback(s.avatarArrived),
		rangefetch.WithDetailConcurrency(s.cfg.DetailConcurrency),
		rangefetch.WithLogger(s.logger.Named("rangefetch")),
	)
	log.Info(ctx, "source opened")
	return h
}

func (s *Service) openBackend(ctx context.Context, sc config.Source) (backend.Backend, io.Closer, error) {
	if b, ok := s.overrides[sc.Name]; ok {
		return b, nil, nil
	}
	switch sc.Kind {
	case config.KindMemory:
		lo, hi := sc.Latency()
		return memory.New(sc.Name,
			memory.WithPlayers(sc.Players...),
			memory.WithSelf(s.cfg.PlayerID),
			memory.WithLatencyRange(lo, hi),
		), nil, nil
	case config.KindRedis:
		client, err := redisz.NewClient(ctx, sc.Addr)
		if err != nil {
			return nil, nil, err
		}
		return redisz.New(sc.Name, client,
			redisz.WithKeyPrefix(sc.KeyPrefix),
			redisz.WithSelf(s.cfg.PlayerID),
		), client, nil
	case config.KindHTTP:
		return httpsrc.New(sc.URL, httpsrc.WithSelf(s.cfg.PlayerID)), nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: kind %q", config.ErrInvalidConfig, sc.Kind)
	}
}

func (s *Service) avatarArrived(key string, err error) {
	if err == nil {
		s.logger.Debug(context.Background(), "avatar cached", logger.String("key", key))
	}
}

// resolveIdentity starts the one-time lookup of the requesting player. Walks
// wait on it. An empty id resolves at once as anonymous.
func (s *Service) resolveIdentity(rt *components, id string) {
	if id == "" {
		rt.identity.Set(model.Player{})
		return
	}
	rt.lookups.Add(1)
	go func() {
		defer rt.lookups.Done()
		ctx, cancel := context.WithTimeout(rt.identityCtx, identityTimeout)
		defer cancel()
		p, err := rt.identity.Resolve(ctx, fetchSelf(rt.sources))
		if err != nil {
			s.logger.Warn(ctx, "player identity lookup failed",
				logger.String("player_id", id),
				logger.Error(err),
			)
			return
		}
		s.logger.Info(ctx, "player identity resolved",
			logger.String("player_id", p.ID),
			logger.String("display_name", p.DisplayName),
		)
	}()
}

// fetchSelf asks each available source in configuration order until one
// knows the requesting player.
func fetchSelf(sources []*sourceHandle) identity.FetchFunc {
	return func(ctx context.Context) (model.Player, error) {
		errs := []error{ErrNoIdentitySource}
		for _, h := range sources {
			if h.guarded == nil {
				continue
			}
			p, err := h.guarded.FetchSelf(ctx)
			if err == nil {
				return p, nil
			}
			errs = append(errs, fmt.Errorf("%s: %w", h.cfg.Name, err))
			if ctx.Err() != nil {
				break
			}
		}
		return model.Player{}, errors.Join(errs...)
	}
}

func rebuildLoop(ctx context.Context, agg *aggregate.Aggregator, every time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if every <= 0 {
		<-stop
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			agg.Rebuild(ctx)
		}
	}
}

func submitHandler(byID map[string]*sourceHandle) worker.Handler[submitJob] {
	return func(ctx context.Context, job submitJob) error {
		h := byID[job.Source]
		if h == nil || h.guarded == nil {
			return fmt.Errorf("%w: %s", ErrSourceUnavailable, job.Source)
		}
		ctx, cancel := context.WithTimeout(ctx, submitTimeout)
		defer cancel()
		if err := h.guarded.Submit(ctx, job.Value); err != nil {
			metrics.RecordErrorByComponent("submit", job.Source)
			return fmt.Errorf("submit %s to %s: %w", job.ID, job.Source, err)
		}
		return nil
	}
}

func closeSources(sources []*sourceHandle) error {
	var errs []error
	for _, h := range sources {
		if h.closer != nil {
			if err := h.closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", h.cfg.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Stop drains the submission and avatar pipelines and closes the sources.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	rt := s.rt
	s.rt = nil
	s.mu.Unlock()

	if rt == nil {
		return nil
	}
	s.logger.Info(ctx, "stopping leaderboard service...")

	close(rt.stopCh)
	<-rt.loopDone
	rt.stopLookups()
	rt.lookups.Wait()

	var errs []error
	if err := rt.submitPool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := rt.avatars.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := closeSources(rt.sources); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info(ctx, "leaderboard service stopped")
	return errors.Join(errs...)
}

func (s *Service) running() (*components, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rt == nil {
		return nil, ErrNotStarted
	}
	return s.rt, nil
}

// FetchRange returns the entries of source ranked first..last.
func (s *Service) FetchRange(ctx context.Context, source string, first, last int, includeDetails bool) (rangefetch.Result, error) {
	rt, err := s.running()
	if err != nil {
		return rangefetch.Result{}, err
	}
	h, ok := rt.byID[source]
	if !ok {
		return rangefetch.Result{}, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	if h.fetcher == nil {
		return rangefetch.Result{}, fmt.Errorf("%w: %s", ErrSourceUnavailable, source)
	}
	return h.fetcher.FetchRange(ctx, first, last, includeDetails)
}

// Rebuild starts a merged rebuild. The channel closes once it, or a newer
// one, is live.
func (s *Service) Rebuild(ctx context.Context) (<-chan struct{}, error) {
	rt, err := s.running()
	if err != nil {
		return nil, err
	}
	return rt.aggregator.Rebuild(ctx), nil
}

// WaitReady blocks until the first merged leaderboard is live.
func (s *Service) WaitReady(ctx context.Context) error {
	rt, err := s.running()
	if err != nil {
		return err
	}
	return rt.aggregator.WaitReady(ctx)
}

// NextAbove returns the merged entry to beat for threshold.
func (s *Service) NextAbove(threshold int64) (model.ScoreEntry, error) {
	rt, err := s.running()
	if err != nil {
		return model.ScoreEntry{}, err
	}
	return rt.aggregator.NextAbove(threshold), nil
}

// Leaderboard returns up to limit merged entries.
func (s *Service) Leaderboard(limit int) ([]model.ScoreEntry, error) {
	rt, err := s.running()
	if err != nil {
		return nil, err
	}
	return rt.aggregator.Top(limit), nil
}

// PersonalBest returns the requesting player's merged row.
func (s *Service) PersonalBest() (model.ScoreEntry, error) {
	rt, err := s.running()
	if err != nil {
		return model.ScoreEntry{}, err
	}
	return rt.aggregator.PersonalBest(), nil
}

// PlayerScore returns the requesting player's own rank and value on source
// for the configured filters, named after the resolved identity. When the
// source fails, the last summary served for this player is returned instead.
func (s *Service) PlayerScore(ctx context.Context, source string) (model.ScoreEntry, error) {
	rt, err := s.running()
	if err != nil {
		return model.ScoreEntry{}, err
	}
	h, ok := rt.byID[source]
	if !ok {
		return model.ScoreEntry{}, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	if h.guarded == nil {
		return model.ScoreEntry{}, fmt.Errorf("%w: %s", ErrSourceUnavailable, source)
	}

	row, err := h.guarded.FetchSummary(ctx, rt.filters)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return model.ScoreEntry{}, fmt.Errorf("%w on %s", ErrNoScore, source)
	case err != nil:
		if prev := h.summary.Load(); prev != nil {
			s.logger.Warn(ctx, "player score lookup failed, serving previous",
				logger.String("source", source),
				logger.Error(err),
			)
			return *prev, nil
		}
		return model.ScoreEntry{}, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, source, err)
	}

	e := model.ScoreEntry{
		Rank:               row.Rank,
		Value:              row.Value,
		DisplayName:        row.DisplayName,
		IsRequestingPlayer: true,
		PlayerID:           row.PlayerID,
		Source:             source,
	}
	if p, err := rt.identity.Player(ctx); err == nil && p.DisplayName != "" {
		e.DisplayName = p.DisplayName
	}
	h.summary.Store(&e)
	return e, nil
}

// SubmitCurrentScore queues value for every available source and returns
// the number of submissions queued. Delivery failures are logged and
// counted by the submit workers, never returned.
func (s *Service) SubmitCurrentScore(ctx context.Context, value int64) (int, error) {
	rt, err := s.running()
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, h := range rt.sources {
		if h.guarded == nil {
			continue
		}
		job := submitJob{ID: uuid.NewString(), Source: h.cfg.Name, Value: value}
		if err := rt.submitQueue.TryEnqueue(ctx, job); err != nil {
			s.logger.Warn(ctx, "score submission dropped",
				logger.String("job_id", job.ID),
				logger.String("source", job.Source),
				logger.Error(err),
			)
			continue
		}
		queued++
	}
	s.logger.Debug(ctx, "score submitted", logger.Int64("value", value), logger.Int("queued", queued))
	return queued, nil
}

// Authenticate switches the requesting player and rebuilds the merged
// leaderboard for them.
func (s *Service) Authenticate(ctx context.Context, playerID string) error {
	rt, err := s.running()
	if err != nil {
		return err
	}
	id := strings.TrimSpace(playerID)
	if id == "" {
		return ErrInvalidPlayer
	}

	rt.identity.Reset()
	for _, h := range rt.sources {
		h.summary.Store(nil)
		if h.guarded != nil {
			h.guarded.SetSelf(id)
		}
	}
	s.resolveIdentity(rt, id)
	s.logger.Info(ctx, "player authenticated", logger.String("player_id", id))

	rt.aggregator.Rebuild(context.WithoutCancel(ctx))
	return nil
}

// Avatar returns a cached avatar image.
func (s *Service) Avatar(key string) ([]byte, bool) {
	rt, err := s.running()
	if err != nil {
		return nil, false
	}
	return rt.avatars.Image(key)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	rt, err := s.running()
	if err != nil {
		return map[string]any{"started": false}
	}

	sources := make([]map[string]any, 0, len(rt.sources))
	for _, h := range rt.sources {
		src := map[string]any{
			"name":      h.cfg.Name,
			"kind":      h.cfg.Kind,
			"available": h.fetcher != nil,
		}
		if h.guarded != nil {
			src["breaker"] = h.guarded.State().String()
		}
		sources = append(sources, src)
	}

	return map[string]any{
		"started":             true,
		"ready":               rt.aggregator.Ready(),
		"rebuilding":          rt.aggregator.InFlight(),
		"generation":          rt.aggregator.Generation(),
		"merged_entries":      rt.aggregator.Len(),
		"identity_resolved":   rt.identity.Resolved(),
		"submit_queue_length": rt.submitQueue.Len(),
		"submit_processed":    rt.submitPool.Processed(),
		"avatar_queue_length": rt.avatars.Pending(),
		"avatar_cache_size":   rt.avatars.Size(),
		"sources":             sources,
	}
}
