package models

import (
	"github.com/google/uuid"
)

const (
	TaskStatusPending = "PENDING"
	TaskStatusRunning = "RUNNING"
	TaskStatusSuccess = "SUCCESS"
	TaskStatusFailed  = "FAILED"
)

// Terminal reports whether a task status permits no further transitions.
func Terminal(status string) bool {
	return status == TaskStatusSuccess || status == TaskStatusFailed
}

// Task is one unit of work: one input file processed by one operation.
// A task is created PENDING at job fan-out, claimed by exactly one worker,
// and never leaves SUCCESS or FAILED once it gets there.
type Task struct {
	ID       uuid.UUID   `db:"id"       json:"task_id"`
	JobID    uuid.UUID   `db:"job_id"   json:"job_id"`
	Status   string      `db:"status"   json:"status"`
	Progress int         `db:"progress" json:"progress"`
	Result   *TaskResult `db:"result"   json:"result,omitempty"`

	// Execution inputs, fixed at fan-out. Surfaced to callers only through
	// Result once the task is terminal.
	InputFile string `db:"input_file" json:"-"`
	Operation string `db:"operation"  json:"-"`
}

// TaskResult is set exactly once, when the task reaches a terminal status.
// OutputFile is present only on SUCCESS.
type TaskResult struct {
	InputFile  string `json:"input_file"`
	OutputFile string `json:"output_file,omitempty"`
	Operation  string `json:"operation"`
}
