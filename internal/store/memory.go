package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/radiumworks/imagepipe/pkg/models"
)

// MemoryStore is the reference registry backend: process-lifetime state held
// in maps behind one mutex. It is constructed once in main and injected, so a
// durable backend can replace it without touching orchestration code.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[uuid.UUID]*models.Job
	tasks map[uuid.UUID]*models.Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:  make(map[uuid.UUID]*models.Job),
		tasks: make(map[uuid.UUID]*models.Task),
	}
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) CreateJob(_ context.Context, job *models.Job, tasks []*models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := *job
	j.TaskIDs = append([]uuid.UUID(nil), job.TaskIDs...)
	s.jobs[j.ID] = &j

	for _, t := range tasks {
		tc := *t
		s.tasks[tc.ID] = &tc
	}
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id uuid.UUID, ownerID string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok || j.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return copyJob(j), nil
}

func (s *MemoryStore) JobOwner(_ context.Context, id uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return "", ErrNotFound
	}
	return j.OwnerID, nil
}

func (s *MemoryStore) DeleteJob(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	for _, tid := range j.TaskIDs {
		delete(s.tasks, tid)
	}
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id uuid.UUID) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTask(t), nil
}

func (s *MemoryStore) GetTaskForOwner(_ context.Context, id uuid.UUID, ownerID string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	j, ok := s.jobs[t.JobID]
	if !ok || j.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return copyTask(t), nil
}

func (s *MemoryStore) JobTasks(_ context.Context, jobID uuid.UUID) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}

	// Order comes from the job's task id sequence, never from map iteration.
	tasks := make([]models.Task, 0, len(j.TaskIDs))
	for _, tid := range j.TaskIDs {
		t, ok := s.tasks[tid]
		if !ok {
			return nil, ErrNotFound
		}
		tasks = append(tasks, *copyTask(t))
	}
	return tasks, nil
}

func (s *MemoryStore) MarkRunning(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if !transitionAllowed(t.Status, models.TaskStatusRunning) {
		return ErrInvalidTransition
	}
	t.Status = models.TaskStatusRunning
	t.Progress = 0
	return nil
}

func (s *MemoryStore) SetProgress(_ context.Context, id uuid.UUID, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status != models.TaskStatusRunning {
		return ErrInvalidTransition
	}
	if progress > 100 {
		progress = 100
	}
	if progress > t.Progress {
		t.Progress = progress
	}
	return nil
}

func (s *MemoryStore) SetSuccess(_ context.Context, id uuid.UUID, result models.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if !transitionAllowed(t.Status, models.TaskStatusSuccess) {
		return ErrInvalidTransition
	}
	// Status, progress and result change under the same lock hold, so a
	// concurrent read can never observe SUCCESS with an empty result.
	t.Status = models.TaskStatusSuccess
	t.Progress = 100
	t.Result = &result
	return nil
}

func (s *MemoryStore) SetFailed(_ context.Context, id uuid.UUID, result models.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if !transitionAllowed(t.Status, models.TaskStatusFailed) {
		return ErrInvalidTransition
	}
	result.OutputFile = ""
	t.Status = models.TaskStatusFailed
	t.Result = &result
	return nil
}

func copyJob(j *models.Job) *models.Job {
	c := *j
	c.TaskIDs = append([]uuid.UUID(nil), j.TaskIDs...)
	return &c
}

func copyTask(t *models.Task) *models.Task {
	c := *t
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	return &c
}
