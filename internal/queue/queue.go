package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrClosed is returned by Dequeue once the queue has been closed and
// drained.
var ErrClosed = errors.New("queue closed")

// Queue carries task ids from the orchestrator to the worker pool. Each
// enqueued id is delivered to exactly one dequeuer under normal operation.
type Queue interface {
	// Enqueue hands a task id to the pool. Transient delivery failures are
	// returned to the caller; the queue does not retry.
	Enqueue(ctx context.Context, taskID uuid.UUID) error
	// Dequeue blocks until a task id is available, the context is done, or
	// the queue is closed.
	Dequeue(ctx context.Context) (uuid.UUID, error)
	// Close stops delivery. Pending ids may still be drained by Dequeue.
	Close() error
}
