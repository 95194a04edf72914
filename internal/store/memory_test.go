package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/radiumworks/imagepipe/internal/store"
	"github.com/radiumworks/imagepipe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedJob(t *testing.T, s store.Store, ownerID string, numTasks int) (*models.Job, []*models.Task) {
	t.Helper()

	job := &models.Job{ID: uuid.New(), OwnerID: ownerID}
	tasks := make([]*models.Task, 0, numTasks)
	for i := 0; i < numTasks; i++ {
		task := &models.Task{
			ID:        uuid.New(),
			JobID:     job.ID,
			Status:    models.TaskStatusPending,
			InputFile: "scan.png",
			Operation: models.OperationBlur,
		}
		job.TaskIDs = append(job.TaskIDs, task.ID)
		tasks = append(tasks, task)
	}

	require.NoError(t, s.CreateJob(context.Background(), job, tasks))
	return job, tasks
}

func TestMemoryStore_GetJob_OwnerScoped(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	job, _ := seedJob(t, s, "alice", 2)

	got, err := s.GetJob(ctx, job.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.TaskIDs, got.TaskIDs)

	// Another owner and an unknown id produce the identical error.
	_, errForeign := s.GetJob(ctx, job.ID, "bob")
	_, errMissing := s.GetJob(ctx, uuid.New(), "alice")
	assert.ErrorIs(t, errForeign, store.ErrNotFound)
	assert.ErrorIs(t, errMissing, store.ErrNotFound)
	assert.Equal(t, errMissing, errForeign)
}

func TestMemoryStore_GetTaskForOwner(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	_, tasks := seedJob(t, s, "alice", 1)

	got, err := s.GetTaskForOwner(ctx, tasks[0].ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, got.Status)

	_, err = s.GetTaskForOwner(ctx, tasks[0].ID, "bob")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryStore_JobTasks_SubmissionOrder(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	job, tasks := seedJob(t, s, "alice", 5)

	// Complete the tasks in reverse; read order must not change.
	for i := len(tasks) - 1; i >= 0; i-- {
		require.NoError(t, s.MarkRunning(ctx, tasks[i].ID))
		require.NoError(t, s.SetSuccess(ctx, tasks[i].ID, models.TaskResult{
			InputFile:  tasks[i].InputFile,
			OutputFile: "scan_processed.png",
			Operation:  tasks[i].Operation,
		}))
	}

	got, err := s.JobTasks(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, task := range got {
		assert.Equal(t, job.TaskIDs[i], task.ID)
	}
}

func TestMemoryStore_Transitions(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	_, tasks := seedJob(t, s, "alice", 1)
	id := tasks[0].ID

	// PENDING task cannot jump straight to a terminal state.
	err := s.SetSuccess(ctx, id, models.TaskResult{})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
	err = s.SetFailed(ctx, id, models.TaskResult{})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	require.NoError(t, s.MarkRunning(ctx, id))

	// Second claim of the same task fails.
	err = s.MarkRunning(ctx, id)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	require.NoError(t, s.SetSuccess(ctx, id, models.TaskResult{
		InputFile: "scan.png", OutputFile: "scan_processed.png", Operation: models.OperationBlur,
	}))

	// Terminal is terminal.
	assert.ErrorIs(t, s.MarkRunning(ctx, id), store.ErrInvalidTransition)
	assert.ErrorIs(t, s.SetFailed(ctx, id, models.TaskResult{}), store.ErrInvalidTransition)
}

func TestMemoryStore_SetSuccess_AtomicResult(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	_, tasks := seedJob(t, s, "alice", 1)
	id := tasks[0].ID

	require.NoError(t, s.MarkRunning(ctx, id))
	require.NoError(t, s.SetSuccess(ctx, id, models.TaskResult{
		InputFile: "scan.png", OutputFile: "scan_processed.png", Operation: models.OperationBlur,
	}))

	got, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSuccess, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Result)
	assert.Equal(t, "scan_processed.png", got.Result.OutputFile)
}

func TestMemoryStore_SetFailed_NoOutputFile(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	_, tasks := seedJob(t, s, "alice", 1)
	id := tasks[0].ID

	require.NoError(t, s.MarkRunning(ctx, id))
	require.NoError(t, s.SetProgress(ctx, id, 50))
	require.NoError(t, s.SetFailed(ctx, id, models.TaskResult{
		InputFile: "scan.png", OutputFile: "should-be-dropped", Operation: models.OperationBlur,
	}))

	got, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.Equal(t, 50, got.Progress, "failure freezes progress")
	require.NotNil(t, got.Result)
	assert.Empty(t, got.Result.OutputFile)
}

func TestMemoryStore_SetProgress_Monotone(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	_, tasks := seedJob(t, s, "alice", 1)
	id := tasks[0].ID

	require.NoError(t, s.MarkRunning(ctx, id))
	require.NoError(t, s.SetProgress(ctx, id, 50))
	require.NoError(t, s.SetProgress(ctx, id, 10)) // stale report, ignored
	require.NoError(t, s.SetProgress(ctx, id, 250))

	got, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
}

func TestMemoryStore_DeleteJob(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	job, tasks := seedJob(t, s, "alice", 3)

	require.NoError(t, s.DeleteJob(ctx, job.ID))

	_, err := s.GetJob(ctx, job.ID, "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
	for _, task := range tasks {
		_, err := s.GetTask(ctx, task.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}

	assert.ErrorIs(t, s.DeleteJob(ctx, job.ID), store.ErrNotFound)
}

func TestMemoryStore_CopyOnRead(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	job, _ := seedJob(t, s, "alice", 1)

	got, err := s.GetJob(ctx, job.ID, "alice")
	require.NoError(t, err)
	got.OwnerID = "mallory"
	got.TaskIDs[0] = uuid.New()

	again, err := s.GetJob(ctx, job.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", again.OwnerID)
	assert.Equal(t, job.TaskIDs, again.TaskIDs)
}

func TestMemoryStore_ConcurrentWorkersAndPolls(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	job, tasks := seedJob(t, s, "alice", 20)

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			require.NoError(t, s.MarkRunning(ctx, id))
			for _, p := range []int{10, 50, 90} {
				require.NoError(t, s.SetProgress(ctx, id, p))
			}
			require.NoError(t, s.SetSuccess(ctx, id, models.TaskResult{
				InputFile: "scan.png", OutputFile: "scan_processed.png", Operation: models.OperationBlur,
			}))
		}(task.ID)
	}

	// Poll while workers mutate; every snapshot must be internally coherent.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			got, err := s.JobTasks(ctx, job.ID)
			require.NoError(t, err)
			for _, task := range got {
				if task.Status == models.TaskStatusSuccess {
					require.NotNil(t, task.Result, "terminal status visible without result")
					require.Equal(t, 100, task.Progress)
				}
			}
		}
	}()

	wg.Wait()
	<-done

	got, err := s.JobTasks(ctx, job.ID)
	require.NoError(t, err)
	for _, task := range got {
		assert.Equal(t, models.TaskStatusSuccess, task.Status)
	}
}
