package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// Default breaker settings.
const (
	defaultBreakerMaxFailures = 5
	defaultBreakerTimeout     = 10 * time.Second
	defaultBreakerInterval    = 30 * time.Second
	breakerHalfOpenRequests   = 1
)

// BreakerOption configures a Breaker.
type BreakerOption func(*breakerConfig)

type breakerConfig struct {
	maxFailures uint32
	timeout     time.Duration
	interval    time.Duration
	logger      logger.Logger
}

// WithMaxFailures sets the consecutive failures that open the breaker.
func WithMaxFailures(n int) BreakerOption {
	return func(c *breakerConfig) {
		if n > 0 {
			c.maxFailures = uint32(n)
		}
	}
}

// WithOpenTimeout sets how long the breaker stays open before probing.
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(c *breakerConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBreakerLogger sets the logger used for state transitions.
func WithBreakerLogger(l logger.Logger) BreakerOption {
	return func(c *breakerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Breaker guards a Backend with a circuit breaker. Only transient failures
// count against the breaker; permanent answers (bad cursor, unknown player)
// are the backend working correctly.
type Breaker struct {
	next Backend
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next in a breaker named after source.
func NewBreaker(source string, next Backend, opts ...BreakerOption) *Breaker {
	cfg := breakerConfig{
		maxFailures: defaultBreakerMaxFailures,
		timeout:     defaultBreakerTimeout,
		interval:    defaultBreakerInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("breaker")
	}
	log := cfg.logger

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        source,
		MaxRequests: breakerHalfOpenRequests,
		Interval:    cfg.interval,
		Timeout:     cfg.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateBreakerState(name, int(to))
			log.Warn(context.Background(), "backend breaker state changed",
				logger.String("source", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	metrics.UpdateBreakerState(source, int(gobreaker.StateClosed))
	return &Breaker{next: next, cb: cb}
}

// State exposes the breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) execute(fn func() (any, error)) (any, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, b.cb.Name(), err)
	}
	return res, err
}

// TopCursor implements Backend.
func (b *Breaker) TopCursor(ctx context.Context, filters model.Filters) (model.PageCursor, error) {
	res, err := b.execute(func() (any, error) { return b.next.TopCursor(ctx, filters) })
	if err != nil {
		return model.PageCursor{}, err
	}
	return res.(model.PageCursor), nil
}

// FetchPage implements Backend.
func (b *Breaker) FetchPage(ctx context.Context, c model.PageCursor, size int) (model.Page, error) {
	res, err := b.execute(func() (any, error) { return b.next.FetchPage(ctx, c, size) })
	if err != nil {
		return model.Page{}, err
	}
	return res.(model.Page), nil
}

// FetchDetail implements Backend.
func (b *Breaker) FetchDetail(ctx context.Context, playerID string) (model.Detail, error) {
	res, err := b.execute(func() (any, error) { return b.next.FetchDetail(ctx, playerID) })
	if err != nil {
		return model.Detail{}, err
	}
	return res.(model.Detail), nil
}

// FetchSelf implements Backend.
func (b *Breaker) FetchSelf(ctx context.Context) (model.Player, error) {
	res, err := b.execute(func() (any, error) { return b.next.FetchSelf(ctx) })
	if err != nil {
		return model.Player{}, err
	}
	return res.(model.Player), nil
}

// FetchSummary implements Backend.
func (b *Breaker) FetchSummary(ctx context.Context, filters model.Filters) (model.RawRow, error) {
	res, err := b.execute(func() (any, error) { return b.next.FetchSummary(ctx, filters) })
	if err != nil {
		return model.RawRow{}, err
	}
	return res.(model.RawRow), nil
}

// Submit implements Backend.
func (b *Breaker) Submit(ctx context.Context, value int64) error {
	_, err := b.execute(func() (any, error) { return nil, b.next.Submit(ctx, value) })
	return err
}

// SetSelf forwards to the wrapped backend when it tracks a requesting player.
func (b *Breaker) SetSelf(id string) {
	if s, ok := b.next.(SelfSetter); ok {
		s.SetSelf(id)
	}
}
