// Package identity tracks the requesting player, who is fetched once after
// authentication and awaited by anything that needs their id or name.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/ladder/internal/domain/model"
)

var (
	// ErrNotResolved is returned when waiting for the player ends before the fetch completes.
	ErrNotResolved = errors.New("player identity not resolved")
	// ErrFetchPanicked is the outcome of a fetch that panicked.
	ErrFetchPanicked = errors.New("player identity fetch panicked")
)

// FetchFunc loads the player from the authentication provider.
type FetchFunc func(ctx context.Context) (model.Player, error)

// attempt is one identity fetch; done closes once player and err are set.
type attempt struct {
	done    chan struct{}
	started bool
	player  model.Player
	err     error
}

func newAttempt() *attempt { return &attempt{done: make(chan struct{})} }

func (a *attempt) wait(ctx context.Context) (model.Player, error) {
	select {
	case <-a.done:
		return a.player, a.err
	case <-ctx.Done():
		return model.Player{}, fmt.Errorf("%w: %w", ErrNotResolved, ctx.Err())
	}
}

// run calls fetch and publishes its outcome. done closes even if fetch
// panics; waiters then see ErrFetchPanicked and the panic propagates.
func (a *attempt) run(ctx context.Context, fetch FetchFunc) {
	defer close(a.done)
	a.err = ErrFetchPanicked
	p, err := fetch(ctx)
	a.player, a.err = p, err
}

// Accessor holds the one-time identity fetch.
type Accessor struct {
	mu  sync.Mutex
	cur *attempt
}

// New returns an Accessor awaiting its first Resolve.
func New() *Accessor {
	return &Accessor{cur: newAttempt()}
}

// Resolve runs fetch unless a fetch already started since the last Reset.
// Later callers share the first caller's outcome.
func (a *Accessor) Resolve(ctx context.Context, fetch FetchFunc) (model.Player, error) {
	a.mu.Lock()
	at := a.cur
	if at.started {
		a.mu.Unlock()
		return at.wait(ctx)
	}
	at.started = true
	a.mu.Unlock()

	at.run(ctx, fetch)
	return at.player, at.err
}

// Set resolves the identity directly.
func (a *Accessor) Set(p model.Player) {
	_, _ = a.Resolve(context.Background(), func(context.Context) (model.Player, error) { return p, nil })
}

// Player blocks until the current identity fetch has completed or ctx is
// done. A failed fetch yields a zero player and its error.
func (a *Accessor) Player(ctx context.Context) (model.Player, error) {
	a.mu.Lock()
	at := a.cur
	a.mu.Unlock()
	return at.wait(ctx)
}

// PlayerID is Player reduced to the id.
func (a *Accessor) PlayerID(ctx context.Context) (string, error) {
	p, err := a.Player(ctx)
	return p.ID, err
}

// Resolved reports whether the current fetch has completed.
func (a *Accessor) Resolved() bool {
	a.mu.Lock()
	at := a.cur
	a.mu.Unlock()
	select {
	case <-at.done:
		return true
	default:
		return false
	}
}

// Reset forgets the identity so the next Resolve fetches again. Callers
// already waiting keep the outcome of the fetch they were waiting on.
func (a *Accessor) Reset() {
	a.mu.Lock()
	a.cur = newAttempt()
	a.mu.Unlock()
}
