// Package memory provides the in-memory command queues connecting crawlers
// to scraper workers.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sailingchannels/crawler/internal/domain"
	"github.com/sailingchannels/crawler/internal/metrics"
)

// Queue is a bounded in-memory queue with context-aware operations. The
// backlog is exported as a gauge so a stalled consumer is observable before
// producers start blocking.
type Queue[T any] struct {
	name string
	ch   chan T
	done chan struct{}
	once sync.Once
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue[T any](name string, capacity int) *Queue[T] {
	return &Queue[T]{
		name: name,
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a command into the queue or returns if the context ends.
// Enqueue on a closed queue returns domain.ErrQueueClosed, which producers
// treat as fatal.
func (q *Queue[T]) Enqueue(ctx context.Context, item T) error {
	select {
	case <-q.done:
		return domain.ErrQueueClosed
	default:
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return domain.ErrQueueClosed
	case q.ch <- item:
		metrics.ObserveEnqueue(q.name)
		metrics.SetQueueBacklog(q.name, len(q.ch))
		return nil
	}
}

// Dequeue pops the next command, respecting context cancellation. After
// Close, buffered commands are drained before domain.ErrQueueClosed is
// returned.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item := <-q.ch:
		metrics.SetQueueBacklog(q.name, len(q.ch))
		return item, nil
	case <-q.done:
		select {
		case item := <-q.ch:
			metrics.SetQueueBacklog(q.name, len(q.ch))
			return item, nil
		default:
			return zero, domain.ErrQueueClosed
		}
	}
}

// Close marks the queue closed for shutdown. Safe to call multiple times.
func (q *Queue[T]) Close() {
	q.once.Do(func() {
		close(q.done)
	})
}

// Len reports the current backlog.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}
