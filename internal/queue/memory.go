package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryQueue is the in-process backend: a buffered channel. Exclusive
// delivery comes from channel semantics; a receive consumes the id.
type MemoryQueue struct {
	ch chan uuid.UUID

	mu     sync.Mutex
	closed bool
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 128
	}
	return &MemoryQueue{ch: make(chan uuid.UUID, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, taskID uuid.UUID) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.mu.Unlock()

	select {
	case q.ch <- taskID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	select {
	case id, ok := <-q.ch:
		if !ok {
			return uuid.Nil, ErrClosed
		}
		return id, nil
	case <-ctx.Done():
		// Drain wins over cancellation when both are ready so shutdown
		// does not drop an already-queued task.
		select {
		case id, ok := <-q.ch:
			if !ok {
				return uuid.Nil, ErrClosed
			}
			return id, nil
		default:
		}
		return uuid.Nil, ctx.Err()
	}
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}

// Len reports the number of queued ids. Used by tests.
func (q *MemoryQueue) Len() int { return len(q.ch) }

var _ Queue = (*MemoryQueue)(nil)
