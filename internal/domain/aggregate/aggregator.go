// Package aggregate merges full-range pulls from several sources into one
// ranked leaderboard and answers "next score to beat" queries against it.
package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/rangefetch"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// Puller produces a rank window from one source. *rangefetch.Fetcher is one.
type Puller interface {
	FetchRange(ctx context.Context, first, last int, includeDetails bool) (rangefetch.Result, error)
}

// Source is a registered score source. A nil Puller marks a source that is
// configured but unavailable; it reports empty on every rebuild.
type Source struct {
	ID     string
	Puller Puller
}

// nextCache is the last nextAbove answer.
type nextCache struct {
	valid     bool
	gen       uint64
	threshold int64
	found     bool
	answer    model.ScoreEntry
}

// Aggregator owns the merged leaderboard. All merge state is guarded by mu.
type Aggregator struct {
	sources []Source
	order   repository.Order
	label   string
	log     logger.Logger

	mu           sync.Mutex
	gen          uint64 // latest started rebuild
	liveGen      uint64 // rebuild currently served, 0 before the first
	tracker      CompletionTracker
	staging      *repository.OrderedSet
	live         *repository.OrderedSet
	personalBest model.ScoreEntry
	started      time.Time
	rebuildID    string
	pending      []chan struct{}
	ready        chan struct{}
	next         nextCache
}

// New registers sources. Ids must be unique and non-empty.
func New(sources []Source, opts ...Option) (*Aggregator, error) {
	if len(sources) > MaxSources {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySources, len(sources), MaxSources)
	}
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		if s.ID == "" {
			return nil, ErrEmptySourceID
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, s.ID)
		}
		seen[s.ID] = struct{}{}
	}

	a := &Aggregator{
		sources:      append([]Source(nil), sources...),
		order:        repository.Descending{},
		label:        DefaultPersonalBestLabel,
		tracker:      NewCompletionTracker(len(sources)),
		personalBest: model.NoScore(),
		ready:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Get().Named("aggregate")
	}
	return a, nil
}

// Sources returns the registered source ids in registration order.
func (a *Aggregator) Sources() []string {
	out := make([]string, len(a.sources))
	for i, s := range a.sources {
		out[i] = s.ID
	}
	return out
}

// Rebuild starts a full pull of every source and returns a channel closed
// once a build at least this recent is live. A rebuild started while another
// is in flight supersedes it: late reports of the older one are dropped.
// The pulls are not cancelled by ctx.
func (a *Aggregator) Rebuild(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	a.mu.Lock()
	if a.gen != a.liveGen {
		metrics.RecordRebuild("superseded")
		a.log.Info(ctx, "rebuild superseded",
			logger.String("rebuild_id", a.rebuildID),
			logger.Int("pending_sources", a.tracker.Pending()),
		)
	}
	a.gen++
	gen := a.gen
	a.tracker.Reset()
	a.staging = repository.NewOrderedSet(a.order, repository.Deduplicate())
	a.started = time.Now()
	a.rebuildID = uuid.NewString()
	a.pending = append(a.pending, done)
	a.log.Debug(ctx, "rebuild started",
		logger.String("rebuild_id", a.rebuildID),
		logger.Uint64("generation", gen),
		logger.Int("sources", len(a.sources)),
	)
	if len(a.sources) == 0 {
		a.publish(ctx, gen)
	}
	a.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	for i, src := range a.sources {
		go a.pull(bg, gen, i, src)
	}
	return done
}

func (a *Aggregator) pull(ctx context.Context, gen uint64, idx int, src Source) {
	var entries []model.ScoreEntry
	if src.Puller == nil {
		metrics.RecordSourceFailure(src.ID)
		a.log.Debug(ctx, "source unavailable", logger.String("source", src.ID))
	} else {
		res, err := src.Puller.FetchRange(ctx, 1, model.Unbounded, false)
		if err != nil {
			metrics.RecordSourceFailure(src.ID)
			a.log.Warn(ctx, "source pull failed, contributing nothing",
				logger.String("source", src.ID),
				logger.Error(err),
			)
		} else {
			entries = res.Entries
		}
	}
	a.merge(ctx, gen, idx, src.ID, entries)
}

// merge folds one source's report into the staging set.
func (a *Aggregator) merge(ctx context.Context, gen uint64, idx int, id string, entries []model.ScoreEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen {
		a.log.Debug(ctx, "dropping stale source report",
			logger.String("source", id),
			logger.Uint64("generation", gen),
			logger.Uint64("current", a.gen),
		)
		return
	}
	dropped := 0
	for _, e := range entries {
		if e.Source == "" {
			e.Source = id
		}
		if !a.staging.Insert(e) {
			dropped++
		}
	}
	if dropped > 0 {
		metrics.RecordMergeDuplicates(id, dropped)
		a.log.Debug(ctx, "dropped duplicate rows",
			logger.String("source", id),
			logger.Int("dropped", dropped),
		)
	}
	a.tracker.Mark(idx)
	if a.tracker.Done() {
		a.publish(ctx, gen)
	}
}

// publish swaps staging in as the live leaderboard. Caller holds mu.
func (a *Aggregator) publish(ctx context.Context, gen uint64) {
	live := a.staging
	a.staging = nil

	pb := model.NoScore()
	if mine := live.Extract(func(e model.ScoreEntry) bool { return e.IsRequestingPlayer }); len(mine) > 0 {
		pb = mine[0]
		pb.DisplayName = a.label
		pb.Rank = 1
		if ahead, ok := live.NextAbove(pb.Value); ok {
			pb.Rank = ahead.Rank + 1
		}
	}

	a.live = live
	a.liveGen = gen
	a.personalBest = pb
	a.next = nextCache{}

	elapsed := time.Since(a.started)
	metrics.RecordRebuild("ok")
	metrics.RecordRebuildDuration(float64(elapsed.Milliseconds()))
	metrics.UpdateMergedEntries(live.Len())
	metrics.UpdateMergeGeneration(gen)
	a.log.Info(ctx, "merged leaderboard ready",
		logger.String("rebuild_id", a.rebuildID),
		logger.Uint64("generation", gen),
		logger.Int("entries", live.Len()),
		logger.Bool("personal_best", !pb.IsNoScore()),
		logger.Duration("elapsed", elapsed),
	)

	for _, ch := range a.pending {
		close(ch)
	}
	a.pending = nil
	select {
	case <-a.ready:
	default:
		close(a.ready)
	}
}

// NextAbove returns the lowest-ranked live entry whose value ranks strictly
// ahead of threshold, or model.MaxEntry() when there is none.
// Non-decreasing thresholds are served from the previous answer while it holds.
func (a *Aggregator) NextAbove(threshold int64) model.ScoreEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.live == nil {
		metrics.RecordNextAbove("not_ready")
		return model.MaxEntry()
	}

	c := a.next
	if c.valid && c.gen == a.liveGen && threshold >= c.threshold &&
		(!c.found || a.order.Before(c.answer.Value, threshold)) {
		metrics.RecordNextAbove("cached")
		return c.result()
	}

	e, ok := a.live.NextAbove(threshold)
	a.next = nextCache{valid: true, gen: a.liveGen, threshold: threshold, found: ok, answer: e}
	if ok {
		metrics.RecordNextAbove("hit")
	} else {
		metrics.RecordNextAbove("miss")
	}
	return a.next.result()
}

func (c nextCache) result() model.ScoreEntry {
	if !c.found {
		return model.MaxEntry()
	}
	return c.answer
}

// PersonalBest returns the requesting player's extracted row, or
// model.NoScore() when the live build has none.
func (a *Aggregator) PersonalBest() model.ScoreEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.personalBest
}

// Top returns up to n live entries with merged ranks.
func (a *Aggregator) Top(n int) []model.ScoreEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.live == nil || n < 1 {
		return []model.ScoreEntry{}
	}
	out, err := a.live.Top(n)
	if err != nil {
		return []model.ScoreEntry{}
	}
	return out
}

// Len returns the number of ranked live entries.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.live == nil {
		return 0
	}
	return a.live.Len()
}

// Ready reports whether any build has gone live.
func (a *Aggregator) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.liveGen > 0
}

// WaitReady blocks until the first build is live or ctx is done.
func (a *Aggregator) WaitReady(ctx context.Context) error {
	select {
	case <-a.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
	}
}

// Generation returns the generation of the live build, 0 before the first.
func (a *Aggregator) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.liveGen
}

// InFlight reports whether a rebuild is still collecting sources.
func (a *Aggregator) InFlight() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen != a.liveGen
}
