package orchestrator

import (
	"github.com/radiumworks/imagepipe/pkg/models"
)

// Aggregate derives the job-level status and progress from the current task
// states. It is a pure fold: same multiset of task states, same answer,
// regardless of completion order or how often it is called.
//
//	any FAILED            -> FAILED
//	else all SUCCESS      -> SUCCESS
//	else any past PENDING -> RUNNING
//	else                  -> PENDING
//
// Progress is floor(mean(task progress)).
func Aggregate(tasks []models.Task) (string, int) {
	if len(tasks) == 0 {
		return models.TaskStatusPending, 0
	}

	var (
		total      int
		anyFailed  bool
		anyStarted bool
		allSuccess = true
	)
	for _, t := range tasks {
		total += t.Progress
		switch t.Status {
		case models.TaskStatusFailed:
			anyFailed = true
			allSuccess = false
			anyStarted = true
		case models.TaskStatusSuccess:
			anyStarted = true
		case models.TaskStatusRunning:
			allSuccess = false
			anyStarted = true
		default:
			allSuccess = false
		}
	}

	progress := total / len(tasks)

	switch {
	case anyFailed:
		return models.TaskStatusFailed, progress
	case allSuccess:
		return models.TaskStatusSuccess, progress
	case anyStarted:
		return models.TaskStatusRunning, progress
	default:
		return models.TaskStatusPending, progress
	}
}

func statusMessage(status string) string {
	switch status {
	case models.TaskStatusPending:
		return "Waiting to start..."
	case models.TaskStatusRunning:
		return "Processing..."
	case models.TaskStatusSuccess:
		return "All tasks completed successfully"
	default:
		return "Job failed"
	}
}
