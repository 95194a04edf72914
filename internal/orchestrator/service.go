// Package orchestrator owns the job lifecycle: batch validation, fan-out into
// tasks, status aggregation and owner-scoped retrieval. Every read applies
// the isolation rule through the store's owner-scoped lookups, so an unknown
// id and a foreign id are indistinguishable to the caller.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/radiumworks/imagepipe/internal/artifact"
	"github.com/radiumworks/imagepipe/internal/metrics"
	"github.com/radiumworks/imagepipe/internal/queue"
	"github.com/radiumworks/imagepipe/internal/store"
	"github.com/radiumworks/imagepipe/pkg/models"
)

// ErrValidation marks batch rejections that happen before any state is
// created. Wrapped errors carry the specific reason.
var ErrValidation = errors.New("invalid batch")

// FileUpload is one input file of a batch.
type FileUpload struct {
	Name    string
	Content io.Reader
}

type Service struct {
	store     store.Store
	artifacts artifact.Store
	queue     queue.Queue
}

func New(s store.Store, a artifact.Store, q queue.Queue) *Service {
	return &Service{store: s, artifacts: a, queue: q}
}

// CreateJob validates the batch, stages every input, persists the job with
// one PENDING task per file (submission order preserved) and enqueues the
// task ids. Validation failures create no state at all; a failure after
// staging rolls back everything created so far.
func (s *Service) CreateJob(ctx context.Context, ownerID string, files []FileUpload, operation string) (*models.Job, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: missing owner id", ErrValidation)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrValidation)
	}
	if !models.ValidOperation(operation) {
		return nil, fmt.Errorf("%w: unknown operation %q", ErrValidation, operation)
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("%w: file with empty name", ErrValidation)
		}
		if strings.ContainsAny(f.Name, "/\\") || strings.Contains(f.Name, "..") {
			return nil, fmt.Errorf("%w: invalid filename %q", ErrValidation, f.Name)
		}
		if f.Content == nil {
			return nil, fmt.Errorf("%w: file %q has no content", ErrValidation, f.Name)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("%w: duplicate filename %q", ErrValidation, f.Name)
		}
		seen[f.Name] = true
	}

	jobID := uuid.New()

	staged := make([]string, 0, len(files))
	for _, f := range files {
		written, err := s.artifacts.Save(ctx, ownerID, jobID, f.Name, f.Content)
		if err != nil {
			s.unstage(ctx, ownerID, jobID, staged)
			return nil, fmt.Errorf("stage input %q: %w", f.Name, err)
		}
		if written == 0 {
			s.unstage(ctx, ownerID, jobID, append(staged, f.Name))
			return nil, fmt.Errorf("%w: file %q is empty", ErrValidation, f.Name)
		}
		staged = append(staged, f.Name)
	}

	job := &models.Job{
		ID:        jobID,
		OwnerID:   ownerID,
		TaskIDs:   make([]uuid.UUID, 0, len(files)),
		CreatedAt: time.Now().UTC(),
	}
	tasks := make([]*models.Task, 0, len(files))
	for _, f := range files {
		t := &models.Task{
			ID:        uuid.New(),
			JobID:     jobID,
			Status:    models.TaskStatusPending,
			InputFile: f.Name,
			Operation: operation,
		}
		job.TaskIDs = append(job.TaskIDs, t.ID)
		tasks = append(tasks, t)
	}

	if err := s.store.CreateJob(ctx, job, tasks); err != nil {
		s.unstage(ctx, ownerID, jobID, staged)
		return nil, fmt.Errorf("create job: %w", err)
	}

	for _, t := range tasks {
		if err := s.queue.Enqueue(ctx, t.ID); err != nil {
			// Queue is unavailable: undo the fan-out so the caller can
			// retry without leaving a half-scheduled job behind.
			if derr := s.store.DeleteJob(ctx, jobID); derr != nil {
				slog.Error("rollback job after enqueue failure",
					"job_id", jobID, "error", derr)
			}
			s.unstage(ctx, ownerID, jobID, staged)
			return nil, fmt.Errorf("enqueue task: %w", err)
		}
	}

	metrics.IncJobCreated(operation)
	slog.Info("job created",
		"job_id", jobID,
		"owner_id", ownerID,
		"operation", operation,
		"tasks", len(tasks),
	)
	return job, nil
}

// GetJobStatus folds the job's current task states into the aggregate view.
// Recomputed fresh on every call; never cached or stored.
func (s *Service) GetJobStatus(ctx context.Context, ownerID string, jobID uuid.UUID) (*models.JobStatusView, error) {
	job, err := s.store.GetJob(ctx, jobID, ownerID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.JobTasks(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	status, progress := Aggregate(tasks)
	return &models.JobStatusView{
		JobID:       job.ID,
		Status:      status,
		Progress:    progress,
		TaskResults: tasks,
		Message:     statusMessage(status),
	}, nil
}

// GetTask returns a single task view, isolation-scoped through the owning job.
func (s *Service) GetTask(ctx context.Context, ownerID string, taskID uuid.UUID) (*models.Task, error) {
	return s.store.GetTaskForOwner(ctx, taskID, ownerID)
}

// GetOutputFile streams a processed artifact. The filename must match the
// output of a SUCCESS task of the caller's own job; anything else is the
// same uniform not-found the status endpoints give.
func (s *Service) GetOutputFile(ctx context.Context, ownerID string, jobID uuid.UUID, filename string) (io.ReadCloser, int64, error) {
	job, err := s.store.GetJob(ctx, jobID, ownerID)
	if err != nil {
		return nil, 0, err
	}

	tasks, err := s.store.JobTasks(ctx, job.ID)
	if err != nil {
		return nil, 0, err
	}

	var produced bool
	for _, t := range tasks {
		if t.Status == models.TaskStatusSuccess && t.Result != nil && t.Result.OutputFile == filename {
			produced = true
			break
		}
	}
	if !produced {
		return nil, 0, store.ErrNotFound
	}

	rc, size, err := s.artifacts.Open(ctx, ownerID, jobID, filename)
	if errors.Is(err, artifact.ErrNotFound) {
		return nil, 0, store.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open output: %w", err)
	}
	return rc, size, nil
}

func (s *Service) unstage(ctx context.Context, ownerID string, jobID uuid.UUID, names []string) {
	for _, name := range names {
		if err := s.artifacts.Delete(ctx, ownerID, jobID, name); err != nil && !errors.Is(err, artifact.ErrNotFound) {
			slog.Warn("delete staged input", "job_id", jobID, "file", name, "error", err)
		}
	}
}
