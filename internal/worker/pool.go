// Package worker runs the bounded pool that drains the task queue. Each
// worker claims one task at a time; no two workers ever touch the same task.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/radiumworks/imagepipe/internal/artifact"
	"github.com/radiumworks/imagepipe/internal/imaging"
	"github.com/radiumworks/imagepipe/internal/metrics"
	"github.com/radiumworks/imagepipe/internal/queue"
	"github.com/radiumworks/imagepipe/internal/store"
	"github.com/radiumworks/imagepipe/pkg/models"
	"golang.org/x/sync/errgroup"
)

type Pool struct {
	size      int
	store     store.Store
	artifacts artifact.Store
	queue     queue.Queue
}

func NewPool(size int, s store.Store, a artifact.Store, q queue.Queue) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{size: size, store: s, artifacts: a, queue: q}
}

// Run starts the workers and blocks until the context is cancelled and all
// workers have returned.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		worker := i
		g.Go(func() error {
			p.runWorker(ctx, worker)
			return nil
		})
	}
	slog.Info("worker pool started", "workers", p.size)
	return g.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	for {
		taskID, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrClosed) {
				slog.Info("worker stopping", "worker", id)
				return
			}
			slog.Warn("dequeue", "worker", id, "error", err)
			continue
		}

		p.handle(ctx, taskID)
	}
}

// handle claims the task and runs its executor to a terminal state. The
// claim is the only PENDING -> RUNNING transition, so a duplicate delivery
// of the same id fails the claim and is dropped.
func (p *Pool) handle(ctx context.Context, taskID uuid.UUID) {
	task, err := p.store.GetTask(ctx, taskID)
	if err != nil {
		slog.Error("load task", "task_id", taskID, "error", err)
		return
	}

	if err := p.store.MarkRunning(ctx, taskID); err != nil {
		slog.Warn("claim task", "task_id", taskID, "error", err)
		return
	}

	metrics.WorkerBusy(true)
	defer metrics.WorkerBusy(false)

	result := models.TaskResult{
		InputFile: task.InputFile,
		Operation: task.Operation,
	}

	err = p.execute(ctx, task)
	if err != nil {
		// Failure detail stays in the logs; callers only ever see FAILED.
		slog.Error("task failed",
			"task_id", taskID,
			"job_id", task.JobID,
			"operation", task.Operation,
			"error", err,
		)
		if serr := p.store.SetFailed(ctx, taskID, result); serr != nil {
			slog.Error("record task failure", "task_id", taskID, "error", serr)
		}
		metrics.IncTaskProcessed(models.TaskStatusFailed)
		return
	}

	result.OutputFile = imaging.OutputName(task.InputFile)
	if serr := p.store.SetSuccess(ctx, taskID, result); serr != nil {
		slog.Error("record task success", "task_id", taskID, "error", serr)
		return
	}
	metrics.IncTaskProcessed(models.TaskStatusSuccess)
	slog.Info("task done", "task_id", taskID, "job_id", task.JobID)
}

// execute runs the imaging operation against the staged input and saves the
// output artifact. A panicking executor is recovered and reported as an
// error, which the caller records as FAILED.
func (p *Pool) execute(ctx context.Context, task *models.Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("executor panic: %v", rec)
		}
	}()

	// Artifacts are namespaced by owner; resolve it through the job.
	owner, err := p.store.JobOwner(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("resolve job owner: %w", err)
	}

	in, _, err := p.artifacts.Open(ctx, owner, task.JobID, task.InputFile)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	var out bytes.Buffer
	report := func(percent int) {
		if perr := p.store.SetProgress(ctx, task.ID, percent); perr != nil {
			slog.Warn("report progress", "task_id", task.ID, "error", perr)
		}
	}

	if err := imaging.Process(ctx, task.Operation, in, &out, report); err != nil {
		return err
	}

	outputName := imaging.OutputName(task.InputFile)
	if _, err := p.artifacts.Save(ctx, owner, task.JobID, outputName, &out); err != nil {
		return fmt.Errorf("save output: %w", err)
	}
	return nil
}
