// Package queue provides a bounded in-memory job queue with non-blocking
// enqueue and channel-based dequeue.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/ladder/pkg/metrics"
)

const (
	defaultQueueCapacity = 1024
	defaultQueueName     = "default"
)

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue[T any] interface {
	// Enqueue adds an item. Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, item T) bool

	// TryEnqueue is Enqueue reporting ErrFull, ErrClosed or the context error.
	TryEnqueue(ctx context.Context, item T) error

	// Dequeue returns a channel that receives items as they become available.
	// The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan T

	// Len returns the number of queued items.
	Len() int

	// Close stops accepting items; queued items can still be dequeued.
	Close() error

	// IsClosed returns true once Close has been called.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue[T any] struct {
	name     string
	items    chan T
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	s := settings{capacity: defaultQueueCapacity, name: defaultQueueName}
	for _, opt := range opts {
		opt(&s)
	}
	q := &InMemoryQueue[T]{
		name:     s.name,
		items:    make(chan T, s.capacity),
		capacity: s.capacity,
	}
	metrics.UpdateQueueSize(q.name, 0)
	return q
}

// Name returns the queue name.
func (q *InMemoryQueue[T]) Name() string { return q.name }

// Capacity returns the maximum number of queued items.
func (q *InMemoryQueue[T]) Capacity() int { return q.capacity }

// Enqueue adds an item to the queue.
func (q *InMemoryQueue[T]) Enqueue(ctx context.Context, item T) bool {
	return q.TryEnqueue(ctx, item) == nil
}

// TryEnqueue adds an item and reports why it was refused.
func (q *InMemoryQueue[T]) TryEnqueue(ctx context.Context, item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.reject("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		q.reject("context_cancelled")
		return fmt.Errorf("enqueue: %w", err)
	}

	select {
	case q.items <- item:
		metrics.UpdateQueueSize(q.name, len(q.items))
		return nil
	default:
		q.reject("queue_full")
		return fmt.Errorf("%w: %s at capacity %d", ErrFull, q.name, q.capacity)
	}
}

func (q *InMemoryQueue[T]) reject(reason string) {
	metrics.RecordQueueRejection(q.name, reason)
	metrics.RecordErrorByComponent("queue", reason)
}

// Dequeue returns a channel that receives items as they become available.
// The forwarding goroutine exits when the queue is drained after Close or
// when ctx is done.
func (q *InMemoryQueue[T]) Dequeue(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case item, ok := <-q.items:
				if !ok {
					return
				}
				select {
				case out <- item:
					metrics.UpdateQueueSize(q.name, len(q.items))
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued items.
func (q *InMemoryQueue[T]) Len() int {
	return len(q.items)
}

// Close stops accepting new items.
func (q *InMemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue[T]) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
