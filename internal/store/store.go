package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/radiumworks/imagepipe/pkg/models"
)

// ErrNotFound covers both "no such record" and "record owned by someone
// else". Callers must not be able to tell the two apart, so the store
// collapses them before anything above it can leak the difference.
var ErrNotFound = errors.New("resource not found")

// ErrInvalidTransition is returned when a task status update would move the
// state machine backwards or sideways.
var ErrInvalidTransition = errors.New("invalid task status transition")

// Store is the registry for jobs and their tasks. All job and task state goes
// through here. Implementations must be safe for concurrent use: workers
// mutate disjoint tasks while any number of status polls read.
type Store interface {
	Ping(ctx context.Context) error

	// CreateJob persists the job and its PENDING tasks as one unit.
	CreateJob(ctx context.Context, job *models.Job, tasks []*models.Task) error
	// GetJob returns the job only when ownerID matches the recorded owner.
	GetJob(ctx context.Context, id uuid.UUID, ownerID string) (*models.Job, error)
	// JobOwner is the worker-side owner lookup, used to resolve the
	// artifact namespace. It never reaches a request handler.
	JobOwner(ctx context.Context, id uuid.UUID) (string, error)
	// DeleteJob removes the job and its tasks. Used to roll back a fan-out
	// whose enqueue step failed.
	DeleteJob(ctx context.Context, id uuid.UUID) error

	// GetTask is the worker-side lookup; it is not owner-scoped.
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
	// GetTaskForOwner scopes a task read through its owning job.
	GetTaskForOwner(ctx context.Context, id uuid.UUID, ownerID string) (*models.Task, error)
	// JobTasks returns the job's tasks in original submission order.
	JobTasks(ctx context.Context, jobID uuid.UUID) ([]models.Task, error)

	// MarkRunning claims a task: PENDING -> RUNNING with progress 0.
	MarkRunning(ctx context.Context, id uuid.UUID) error
	// SetProgress updates a RUNNING task's progress; decreases are rejected.
	SetProgress(ctx context.Context, id uuid.UUID, progress int) error
	// SetSuccess moves RUNNING -> SUCCESS, forces progress to 100 and
	// records the result in the same mutation.
	SetSuccess(ctx context.Context, id uuid.UUID, result models.TaskResult) error
	// SetFailed moves RUNNING -> FAILED, freezing progress at its last
	// value. The result never carries an output file.
	SetFailed(ctx context.Context, id uuid.UUID, result models.TaskResult) error
}

var validTransitions = map[string][]string{
	models.TaskStatusPending: {models.TaskStatusRunning},
	models.TaskStatusRunning: {models.TaskStatusSuccess, models.TaskStatusFailed},
}

func transitionAllowed(from, to string) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
