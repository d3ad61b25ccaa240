// Package memory provides a deterministic in-process paginated leaderboard.
// It backs local runs and tests and can simulate latency and failures.
package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/ladder/internal/adapters/backend"
	"github.com/okian/ladder/internal/adapters/backend/cursor"
	"github.com/okian/ladder/internal/domain/model"
)

const defaultRandomSeed = 42

// Player is a row of the in-memory board.
type Player struct {
	ID        string `koanf:"id"`
	Name      string `koanf:"name"`
	Value     int64  `koanf:"value"`
	AvatarRef string `koanf:"avatar"`
	Friend    bool   `koanf:"friend"`
}

// Option configures a Backend.
type Option func(*Backend)

// WithPlayers seeds the board.
func WithPlayers(players ...Player) Option {
	return func(b *Backend) {
		for _, p := range players {
			b.players[p.ID] = p
		}
	}
}

// WithSelf marks id as the requesting player; its rows carry IsSelf and
// Submit writes to it.
func WithSelf(id string) Option {
	return func(b *Backend) { b.self.Set(id) }
}

// WithLatencyRange sets the simulated latency range for every call.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(b *Backend) {
		if minLatency >= 0 && maxLatency > minLatency {
			b.minLatency = minLatency
			b.maxLatency = maxLatency
		}
	}
}

// Backend is an in-memory implementation of backend.Backend.
type Backend struct {
	source string
	self   backend.Self

	mu      sync.RWMutex
	players map[string]Player

	pageErr    error
	detailErrs map[string]error
	down       bool

	minLatency time.Duration
	maxLatency time.Duration
	rngMu      sync.Mutex
	rng        *rand.Rand

	topCalls    atomic.Int64
	pageCalls   atomic.Int64
	detailCalls atomic.Int64
}

// New creates a board for source.
func New(source string, opts ...Option) *Backend {
	b := &Backend{
		source:     source,
		players:    make(map[string]Player),
		detailErrs: make(map[string]error),
		rng:        rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // latency jitter only
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetSelf implements backend.SelfSetter.
func (b *Backend) SetSelf(id string) { b.self.Set(id) }

// FailPages makes every FetchPage return err until cleared with nil.
func (b *Backend) FailPages(err error) {
	b.mu.Lock()
	b.pageErr = err
	b.mu.Unlock()
}

// FailDetail makes FetchDetail for playerID return err until cleared with nil.
func (b *Backend) FailDetail(playerID string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.detailErrs, playerID)
		return
	}
	b.detailErrs[playerID] = err
}

// SetUnavailable makes every call fail with backend.ErrUnavailable.
func (b *Backend) SetUnavailable(down bool) {
	b.mu.Lock()
	b.down = down
	b.mu.Unlock()
}

// TopCursorCalls reports how many fresh top cursors were handed out.
func (b *Backend) TopCursorCalls() int64 { return b.topCalls.Load() }

// PageCalls reports how many pages were requested.
func (b *Backend) PageCalls() int64 { return b.pageCalls.Load() }

// DetailCalls reports how many detail lookups were requested.
func (b *Backend) DetailCalls() int64 { return b.detailCalls.Load() }

// Score returns the stored value for id.
func (b *Backend) Score(id string) (int64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.players[id]
	return p.Value, ok
}

func (b *Backend) sleep(ctx context.Context) error {
	if b.maxLatency <= 0 {
		return ctx.Err()
	}
	b.rngMu.Lock()
	latency := b.minLatency + time.Duration(b.rng.Int63n(int64(b.maxLatency-b.minLatency)))
	b.rngMu.Unlock()

	t := time.NewTimer(latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

func (b *Backend) available() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.down {
		return fmt.Errorf("%w: %s", backend.ErrUnavailable, b.source)
	}
	return nil
}

// ranked returns the board for filters, best first. Time scopes share one
// board; the friends scope keeps friends and the requesting player.
func (b *Backend) ranked(filters model.Filters) []Player {
	self := b.self.ID()
	b.mu.RLock()
	out := make([]Player, 0, len(b.players))
	for _, p := range b.players {
		if filters.Social == model.SocialFriends && !p.Friend && p.ID != self {
			continue
		}
		out = append(out, p)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TopCursor implements backend.Backend.
func (b *Backend) TopCursor(ctx context.Context, filters model.Filters) (model.PageCursor, error) {
	b.topCalls.Add(1)
	if err := b.available(); err != nil {
		return model.PageCursor{}, err
	}
	if err := b.sleep(ctx); err != nil {
		return model.PageCursor{}, err
	}
	return cursor.Encode(cursor.New(b.source, filters, 0))
}

// FetchPage implements backend.Backend.
func (b *Backend) FetchPage(ctx context.Context, c model.PageCursor, size int) (model.Page, error) {
	b.pageCalls.Add(1)
	if err := b.available(); err != nil {
		return model.Page{}, err
	}
	if size < 1 {
		return model.Page{}, fmt.Errorf("%w: page size %d", backend.ErrPermanent, size)
	}
	st, err := cursor.Decode(c)
	if err != nil {
		return model.Page{}, fmt.Errorf("%w: %v", backend.ErrInvalidCursor, err)
	}
	if st.Source != b.source {
		return model.Page{}, fmt.Errorf("%w: cursor for %q presented to %q", backend.ErrInvalidCursor, st.Source, b.source)
	}
	if err := b.sleep(ctx); err != nil {
		return model.Page{}, err
	}

	b.mu.RLock()
	pageErr := b.pageErr
	b.mu.RUnlock()
	if pageErr != nil {
		return model.Page{}, pageErr
	}

	board := b.ranked(st.Filters())
	if st.Offset >= len(board) {
		return model.Page{}, nil
	}
	end := min(st.Offset+size, len(board))
	self := b.self.ID()
	rows := make([]model.RawRow, 0, end-st.Offset)
	for i := st.Offset; i < end; i++ {
		p := board[i]
		rows = append(rows, model.RawRow{
			Rank:        i + 1,
			Value:       p.Value,
			PlayerID:    p.ID,
			DisplayName: p.Name,
			IsSelf:      self != "" && p.ID == self,
		})
	}
	next, prev, err := cursor.Around(st, size, len(board))
	if err != nil {
		return model.Page{}, err
	}
	return model.Page{Rows: rows, Next: next, Previous: prev}, nil
}

// FetchDetail implements backend.Backend.
func (b *Backend) FetchDetail(ctx context.Context, playerID string) (model.Detail, error) {
	b.detailCalls.Add(1)
	if err := b.available(); err != nil {
		return model.Detail{}, err
	}
	if err := b.sleep(ctx); err != nil {
		return model.Detail{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err, ok := b.detailErrs[playerID]; ok {
		return model.Detail{}, err
	}
	p, ok := b.players[playerID]
	if !ok {
		return model.Detail{}, fmt.Errorf("%w: %s", backend.ErrNotFound, playerID)
	}
	return model.Detail{DisplayName: p.Name, AvatarRef: p.AvatarRef}, nil
}

// FetchSelf implements backend.Backend. A signed-in player without a row is
// named by their id.
func (b *Backend) FetchSelf(ctx context.Context) (model.Player, error) {
	if err := b.available(); err != nil {
		return model.Player{}, err
	}
	self := b.self.ID()
	if self == "" {
		return model.Player{}, fmt.Errorf("%w: no requesting player on %s", backend.ErrPermanent, b.source)
	}
	if err := b.sleep(ctx); err != nil {
		return model.Player{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	name := self
	if p, ok := b.players[self]; ok && p.Name != "" {
		name = p.Name
	}
	return model.Player{ID: self, DisplayName: name}, nil
}

// FetchSummary implements backend.Backend.
func (b *Backend) FetchSummary(ctx context.Context, filters model.Filters) (model.RawRow, error) {
	if err := b.available(); err != nil {
		return model.RawRow{}, err
	}
	self := b.self.ID()
	if self == "" {
		return model.RawRow{}, fmt.Errorf("%w: no requesting player on %s", backend.ErrPermanent, b.source)
	}
	if err := b.sleep(ctx); err != nil {
		return model.RawRow{}, err
	}
	for i, p := range b.ranked(filters) {
		if p.ID == self {
			return model.RawRow{Rank: i + 1, Value: p.Value, PlayerID: p.ID, DisplayName: p.Name, IsSelf: true}, nil
		}
	}
	return model.RawRow{}, fmt.Errorf("%w: %s has no score on %s", backend.ErrNotFound, self, b.source)
}

// Submit implements backend.Backend. The requesting player keeps its best value.
func (b *Backend) Submit(ctx context.Context, value int64) error {
	if err := b.available(); err != nil {
		return err
	}
	self := b.self.ID()
	if self == "" {
		return fmt.Errorf("%w: no requesting player on %s", backend.ErrPermanent, b.source)
	}
	if err := b.sleep(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.players[self]
	if !ok {
		p = Player{ID: self, Name: self, Value: value}
	} else if value > p.Value {
		p.Value = value
	}
	b.players[self] = p
	return nil
}
