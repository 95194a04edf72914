package models

import (
	"time"

	"github.com/google/uuid"
)

// Job is one caller-submitted batch. The task id sequence is fixed at creation
// (submission order) and the owner id is the sole authorization key for every
// read of the job and its outputs. Status and progress are never stored on the
// job; they are derived from the current task states on each read.
type Job struct {
	ID        uuid.UUID   `db:"id"         json:"job_id"`
	OwnerID   string      `db:"owner_id"   json:"owner_id"`
	TaskIDs   []uuid.UUID `db:"task_ids"   json:"task_ids"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// JobStatusView is the aggregate returned to a polling caller: the derived
// status/progress plus per-task views in original submission order.
type JobStatusView struct {
	JobID       uuid.UUID `json:"job_id"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	TaskResults []Task    `json:"task_results"`
	Message     string    `json:"message,omitempty"`
}
