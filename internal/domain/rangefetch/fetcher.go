// Package rangefetch materialises an arbitrary rank window from a
// cursor-paginated backend, reusing cached cursors for abutting requests.
package rangefetch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/okian/ladder/internal/adapters/backend"
	"github.com/okian/ladder/internal/domain/identity"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// AvatarFetcher downloads player images in the background. onArrived runs at
// most once per call.
type AvatarFetcher interface {
	FetchAvatarImage(ref, cacheKey string, onArrived func(cacheKey string, err error))
}

// Result is a fetched rank window.
type Result struct {
	Anchor  int
	Entries []model.ScoreEntry
}

// FailedAnchor is the anchor a Handler receives when the fetch failed.
const FailedAnchor = -1

// Handler receives the outcome of FetchRangeAsync. errMessage is empty on
// success; on failure anchor is FailedAnchor and entries is empty.
type Handler func(anchor int, entries []model.ScoreEntry, errMessage string)

// Fetcher walks one source. It is safe for concurrent use; concurrent walks
// share only the cursor cache.
type Fetcher struct {
	source      string
	src         backend.Backend
	pageSize    int
	filters     model.Filters
	detailLimit int
	cache       PageCursorCache
	identity    *identity.Accessor
	avatars     AvatarFetcher
	onAvatar    func(cacheKey string, err error)
	log         logger.Logger
}

// New creates a Fetcher for source backed by src.
func New(source string, src backend.Backend, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:   source,
		src:      src,
		pageSize: defaultPageSize,
		filters:  model.DefaultFilters(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.Get().Named("rangefetch")
	}
	f.log = f.log.With(logger.String("source", source))
	return f
}

// Source returns the source id.
func (f *Fetcher) Source() string { return f.source }

// PageSize returns the page size used for every request.
func (f *Fetcher) PageSize() int { return f.pageSize }

// Cache exposes the cursor cache.
func (f *Fetcher) Cache() *PageCursorCache { return &f.cache }

// walk is the state of one single-direction pagination.
type walk struct {
	direction Direction
	anchor    int // first rank of the page cursor fetches
	cursor    model.PageCursor
	entries   []model.ScoreEntry
	avatars   []avatarRequest
}

type avatarRequest struct {
	ref string
	key string
}

// FetchRange returns the entries ranked first..last inclusive, in rank order.
// last may be model.Unbounded. Either every requested entry that exists is
// returned or an error is; partial windows are never returned.
func (f *Fetcher) FetchRange(ctx context.Context, first, last int, includeDetails bool) (Result, error) {
	start := time.Now()
	res, err := f.fetchRange(ctx, first, last, includeDetails)
	ms := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordRangeFetch(f.source, "error", ms)
		f.log.Warn(ctx, "range fetch failed",
			logger.Int("first", first),
			logger.Int("last", last),
			logger.Error(err),
		)
		return Result{}, err
	}
	metrics.RecordRangeFetch(f.source, "ok", ms)
	return res, nil
}

// FetchRangeAsync runs FetchRange in the background and reports to h. The
// fetch runs to completion even if ctx is cancelled.
func (f *Fetcher) FetchRangeAsync(ctx context.Context, first, last int, includeDetails bool, h Handler) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		res, err := f.FetchRange(ctx, first, last, includeDetails)
		if err != nil {
			h(FailedAnchor, []model.ScoreEntry{}, err.Error())
			return
		}
		h(res.Anchor, res.Entries, "")
	}()
}

func (f *Fetcher) fetchRange(ctx context.Context, first, last int, includeDetails bool) (Result, error) {
	if first < 1 || last < first {
		return Result{}, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, first, last)
	}

	self := f.requestingPlayer(ctx)

	w, err := f.begin(ctx, first, last)
	if err != nil {
		return Result{}, err
	}
	startAnchor := w.anchor
	f.log.Debug(ctx, "walk started",
		logger.String("direction", w.direction.String()),
		logger.Int("anchor", w.anchor),
		logger.Int("first", first),
		logger.Int("last", last),
	)

	if err := f.run(ctx, &w, first, last, self, includeDetails); err != nil {
		return Result{}, err
	}

	for _, a := range w.avatars {
		f.triggerAvatar(a)
	}

	anchor := startAnchor
	if len(w.entries) > 0 {
		anchor = w.entries[0].Rank
	}
	return Result{Anchor: anchor, Entries: w.entries}, nil
}

// begin picks the starting cursor: a cached backward cursor on last's page,
// then a cached forward cursor on first's page, then the top of the board.
func (f *Fetcher) begin(ctx context.Context, first, last int) (walk, error) {
	if s := f.cache.Get(Backward); !s.Empty() && samePage(s.Anchor, last, f.pageSize) {
		metrics.RecordCursorCache(f.source, Backward.String(), "hit")
		return f.resume(s, first), nil
	}
	if s := f.cache.Get(Forward); !s.Empty() && samePage(s.Anchor, first, f.pageSize) {
		metrics.RecordCursorCache(f.source, Forward.String(), "hit")
		return f.resume(s, first), nil
	}
	metrics.RecordCursorCache(f.source, "none", "miss")

	c, err := f.src.TopCursor(ctx, f.filters)
	if err != nil {
		return walk{}, fmt.Errorf("%w: %s: top cursor: %w", ErrPageFetch, f.source, err)
	}
	return walk{direction: Forward, anchor: 1, cursor: c}, nil
}

func (f *Fetcher) resume(s Slot, first int) walk {
	d := Forward
	if s.Anchor > first {
		d = Backward
	}
	return walk{direction: d, anchor: s.Anchor, cursor: s.Cursor}
}

// run drives w page by page until the range is covered or the board ends.
func (f *Fetcher) run(ctx context.Context, w *walk, first, last int, self string, includeDetails bool) error {
	var (
		prevFirst = -1
		firstPage = true
	)
	for {
		page, err := f.fetchPage(ctx, w)
		if err != nil {
			return err
		}
		if len(page.Rows) == 0 {
			f.cache.Set(w.direction, 0, model.PageCursor{})
			return nil
		}
		pageFirst := page.FirstRank()
		if prevFirst >= 0 && !advanced(w.direction, prevFirst, pageFirst) {
			return fmt.Errorf("%w: %s: cursor did not advance past rank %d", ErrPageFetch, f.source, prevFirst)
		}
		prevFirst = pageFirst

		if firstPage {
			// keep the way back for an opposite-direction request
			if w.direction == Forward {
				f.cache.Set(Backward, pageFirst-f.pageSize, page.Previous)
			} else {
				f.cache.Set(Forward, pageFirst+f.pageSize, page.Next)
			}
			firstPage = false
		}

		matched := f.intersect(page.Rows, first, last, self)
		var refs []avatarRequest
		if includeDetails && len(matched) > 0 {
			if refs, err = f.details(ctx, matched); err != nil {
				return err
			}
		}
		if w.direction == Forward {
			w.entries = append(w.entries, matched...)
			w.avatars = append(w.avatars, refs...)
		} else {
			w.entries = append(matched, w.entries...)
			w.avatars = append(refs, w.avatars...)
		}

		if w.direction == Forward {
			if !page.Next.Valid || page.LastRank() >= last {
				f.cache.Set(Forward, pageFirst+f.pageSize, page.Next)
				return nil
			}
			w.cursor, w.anchor = page.Next, pageFirst+f.pageSize
		} else {
			if !page.Previous.Valid || pageFirst <= first {
				f.cache.Set(Backward, pageFirst-f.pageSize, page.Previous)
				return nil
			}
			w.cursor, w.anchor = page.Previous, pageFirst-f.pageSize
		}
	}
}

func advanced(d Direction, prev, cur int) bool {
	if d == Forward {
		return cur > prev
	}
	return cur < prev
}

func (f *Fetcher) fetchPage(ctx context.Context, w *walk) (model.Page, error) {
	start := time.Now()
	page, err := f.src.FetchPage(ctx, w.cursor, f.pageSize)
	metrics.RecordPageFetchLatency(f.source, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordPageFetch(f.source, w.direction.String(), "error")
		return model.Page{}, fmt.Errorf("%w: %s: rank %d: %w", ErrPageFetch, f.source, w.anchor, err)
	}
	metrics.RecordPageFetch(f.source, w.direction.String(), "ok")
	return page, nil
}

// intersect copies the rows ranked within [first, last].
func (f *Fetcher) intersect(rows []model.RawRow, first, last int, self string) []model.ScoreEntry {
	var out []model.ScoreEntry
	for _, r := range rows {
		if r.Rank < first || r.Rank > last {
			continue
		}
		out = append(out, model.ScoreEntry{
			Rank:               r.Rank,
			Value:              r.Value,
			DisplayName:        r.DisplayName,
			IsRequestingPlayer: r.IsSelf || (self != "" && r.PlayerID == self),
			PlayerID:           r.PlayerID,
			Source:             f.source,
		})
	}
	return out
}

// details resolves names and avatars for entries in place. Every lookup is
// awaited before returning; any failure fails the page.
func (f *Fetcher) details(ctx context.Context, entries []model.ScoreEntry) ([]avatarRequest, error) {
	refs := make([]string, len(entries))
	var g errgroup.Group
	if f.detailLimit > 0 {
		g.SetLimit(f.detailLimit)
	}
	for i := range entries {
		g.Go(func() error {
			d, err := f.src.FetchDetail(ctx, entries[i].PlayerID)
			if err != nil {
				metrics.RecordDetailLookup(f.source, "error")
				return fmt.Errorf("%s: %w", entries[i].PlayerID, err)
			}
			metrics.RecordDetailLookup(f.source, "ok")
			if d.DisplayName != "" {
				entries[i].DisplayName = d.DisplayName
			}
			refs[i] = d.AvatarRef
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDetailLookup, f.source, err)
	}

	var out []avatarRequest
	for i, ref := range refs {
		if ref == "" {
			continue
		}
		key := AvatarKey(f.source, entries[i].PlayerID, ref)
		entries[i].AvatarKey = key
		out = append(out, avatarRequest{ref: ref, key: key})
	}
	return out, nil
}

func (f *Fetcher) triggerAvatar(a avatarRequest) {
	if f.avatars == nil {
		return
	}
	f.avatars.FetchAvatarImage(a.ref, a.key, func(key string, err error) {
		if err != nil {
			f.log.Debug(context.Background(), "avatar fetch failed", logger.String("key", key), logger.Error(err))
		}
		if f.onAvatar != nil {
			f.onAvatar(key, err)
		}
	})
}

// requestingPlayer waits for the identity fetch. A failed fetch means no
// row is marked unless the backend marks it itself.
func (f *Fetcher) requestingPlayer(ctx context.Context) string {
	if f.identity == nil {
		return ""
	}
	id, err := f.identity.PlayerID(ctx)
	if err != nil && !errors.Is(err, identity.ErrNotResolved) {
		f.log.Warn(ctx, "player identity unavailable", logger.Error(err))
	}
	return id
}

// AvatarKey derives the image cache key for a player's avatar reference.
func AvatarKey(source, playerID, ref string) string {
	h := xxhash.New()
	_, _ = h.WriteString(source)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(playerID)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(ref)
	return strconv.FormatUint(h.Sum64(), 16)
}
