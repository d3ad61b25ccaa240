// Package redisz serves a paginated leaderboard out of Redis sorted sets.
//
// Layout:
//
//	<prefix>:<social>:<time>   ZSET member=player id, score=value
//	<prefix>:player:<id>       HASH name, avatar
//
// Sorted-set scores are float64, so values are limited to
// [-MaxExactValue, MaxExactValue]; Submit and Seed refuse anything wider.
package redisz

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/okian/ladder/internal/adapters/backend"
	"github.com/okian/ladder/internal/adapters/backend/cursor"
	"github.com/okian/ladder/internal/domain/model"
)

const defaultKeyPrefix = "ladder"

// MaxExactValue is the largest magnitude a float64 score holds exactly.
const MaxExactValue = 1 << 53

// ErrValueRange is returned for values a sorted set cannot store exactly.
var ErrValueRange = errors.New("value outside the exact score range")

func checkValue(value int64) error {
	if value > MaxExactValue || value < -MaxExactValue {
		return fmt.Errorf("%w: %w: %d", backend.ErrPermanent, ErrValueRange, value)
	}
	return nil
}

// Option configures a Backend.
type Option func(*Backend)

// WithKeyPrefix sets the key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(b *Backend) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// WithSelf sets the requesting player's member id.
func WithSelf(id string) Option {
	return func(b *Backend) { b.self.Set(id) }
}

// Backend implements backend.Backend on top of a redis client.
type Backend struct {
	source string
	client redis.UniversalClient
	prefix string
	self   backend.Self
}

// New creates a Redis-backed source.
func New(source string, client redis.UniversalClient, opts ...Option) *Backend {
	b := &Backend{source: source, client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetSelf implements backend.SelfSetter.
func (b *Backend) SetSelf(id string) { b.self.Set(id) }

// NewClient dials addr and verifies the connection.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is empty")
	}
	rc := redis.NewClient(&redis.Options{Addr: addr, PoolSize: 10})
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("redis connect error: %w", err)
	}
	return rc, nil
}

// BoardKey returns the sorted-set key for filters.
func (b *Backend) BoardKey(filters model.Filters) string {
	return fmt.Sprintf("%s:%s:%s", b.prefix, filters.Social, filters.Time)
}

// PlayerKey returns the player hash key.
func (b *Backend) PlayerKey(id string) string {
	return fmt.Sprintf("%s:player:%s", b.prefix, id)
}

// classify maps client errors onto the backend error kinds.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, redis.Nil):
		return fmt.Errorf("%s: %w", op, backend.ErrNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, backend.ErrTransient, err)
	}
}

// TopCursor implements backend.Backend.
func (b *Backend) TopCursor(_ context.Context, filters model.Filters) (model.PageCursor, error) {
	return cursor.Encode(cursor.New(b.source, filters, 0))
}

// FetchPage implements backend.Backend.
func (b *Backend) FetchPage(ctx context.Context, c model.PageCursor, size int) (model.Page, error) {
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

	key := b.BoardKey(st.Filters())
	pipe := b.client.Pipeline()
	card := pipe.ZCard(ctx, key)
	rng := pipe.ZRevRangeWithScores(ctx, key, int64(st.Offset), int64(st.Offset+size-1))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return model.Page{}, classify("fetch page", err)
	}
	members := rng.Val()
	if len(members) == 0 {
		return model.Page{}, nil
	}

	ids := make([]string, len(members))
	names := b.client.Pipeline()
	nameCmds := make([]*redis.StringCmd, len(members))
	for i, z := range members {
		ids[i] = fmt.Sprint(z.Member)
		nameCmds[i] = names.HGet(ctx, b.PlayerKey(ids[i]), "name")
	}
	if _, err := names.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return model.Page{}, classify("fetch names", err)
	}

	self := b.self.ID()
	rows := make([]model.RawRow, len(members))
	for i, z := range members {
		rows[i] = model.RawRow{
			Rank:        st.Offset + i + 1,
			Value:       int64(z.Score),
			PlayerID:    ids[i],
			DisplayName: nameCmds[i].Val(),
			IsSelf:      self != "" && ids[i] == self,
		}
	}
	next, prev, err := cursor.Around(st, size, int(card.Val()))
	if err != nil {
		return model.Page{}, err
	}
	return model.Page{Rows: rows, Next: next, Previous: prev}, nil
}

// FetchDetail implements backend.Backend.
func (b *Backend) FetchDetail(ctx context.Context, playerID string) (model.Detail, error) {
	fields, err := b.client.HGetAll(ctx, b.PlayerKey(playerID)).Result()
	if err != nil {
		return model.Detail{}, classify("fetch detail", err)
	}
	if len(fields) == 0 {
		return model.Detail{}, fmt.Errorf("%w: %s", backend.ErrNotFound, playerID)
	}
	return model.Detail{DisplayName: fields["name"], AvatarRef: fields["avatar"]}, nil
}

// FetchSelf implements backend.Backend. A player without a hash is named by
// their id.
func (b *Backend) FetchSelf(ctx context.Context) (model.Player, error) {
	self := b.self.ID()
	if self == "" {
		return model.Player{}, fmt.Errorf("%w: no requesting player on %s", backend.ErrPermanent, b.source)
	}
	name, err := b.client.HGet(ctx, b.PlayerKey(self), "name").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return model.Player{}, classify("fetch self", err)
	}
	if name == "" {
		name = self
	}
	return model.Player{ID: self, DisplayName: name}, nil
}

// FetchSummary implements backend.Backend.
func (b *Backend) FetchSummary(ctx context.Context, filters model.Filters) (model.RawRow, error) {
	self := b.self.ID()
	if self == "" {
		return model.RawRow{}, fmt.Errorf("%w: no requesting player on %s", backend.ErrPermanent, b.source)
	}
	key := b.BoardKey(filters)
	pipe := b.client.Pipeline()
	rank := pipe.ZRevRank(ctx, key, self)
	score := pipe.ZScore(ctx, key, self)
	name := pipe.HGet(ctx, b.PlayerKey(self), "name")
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return model.RawRow{}, classify("fetch summary", err)
	}
	if errors.Is(rank.Err(), redis.Nil) {
		return model.RawRow{}, fmt.Errorf("%w: %s has no score on %s", backend.ErrNotFound, self, key)
	}
	display := name.Val()
	if display == "" {
		display = self
	}
	return model.RawRow{
		Rank:        int(rank.Val()) + 1,
		Value:       int64(score.Val()),
		PlayerID:    self,
		DisplayName: display,
		IsSelf:      true,
	}, nil
}

// Submit implements backend.Backend. Every board keeps the player's best value.
func (b *Backend) Submit(ctx context.Context, value int64) error {
	self := b.self.ID()
	if self == "" {
		return fmt.Errorf("%w: no requesting player on %s", backend.ErrPermanent, b.source)
	}
	if err := checkValue(value); err != nil {
		return err
	}
	member := redis.Z{Score: float64(value), Member: self}
	pipe := b.client.TxPipeline()
	for _, f := range boards() {
		pipe.ZAddGT(ctx, b.BoardKey(f), member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return classify("submit", err)
	}
	return nil
}

// Seed writes a player and its value on every board. Used by local tooling.
func (b *Backend) Seed(ctx context.Context, id, name, avatar string, value int64) error {
	if err := checkValue(value); err != nil {
		return err
	}
	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, b.PlayerKey(id), "name", name, "avatar", avatar)
	for _, f := range boards() {
		pipe.ZAdd(ctx, b.BoardKey(f), redis.Z{Score: float64(value), Member: id})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return classify("seed", err)
	}
	return nil
}

func boards() []model.Filters {
	socials := []model.SocialScope{model.SocialGlobal, model.SocialFriends}
	times := []model.TimeScope{model.TimeAllTime, model.TimeWeekly, model.TimeDaily}
	out := make([]model.Filters, 0, len(socials)*len(times))
	for _, s := range socials {
		for _, t := range times {
			out = append(out, model.Filters{Social: s, Time: t})
		}
	}
	return out
}
