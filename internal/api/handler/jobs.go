package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/radiumworks/imagepipe/internal/api/middleware"
	"github.com/radiumworks/imagepipe/internal/api/response"
	"github.com/radiumworks/imagepipe/internal/orchestrator"
	"github.com/radiumworks/imagepipe/internal/store"
	"github.com/radiumworks/imagepipe/pkg/models"
)

// Orchestrator defines the interface the handlers depend on.
type Orchestrator interface {
	CreateJob(ctx context.Context, ownerID string, files []orchestrator.FileUpload, operation string) (*models.Job, error)
	GetJobStatus(ctx context.Context, ownerID string, jobID uuid.UUID) (*models.JobStatusView, error)
	GetTask(ctx context.Context, ownerID string, taskID uuid.UUID) (*models.Task, error)
	GetOutputFile(ctx context.Context, ownerID string, jobID uuid.UUID, filename string) (io.ReadCloser, int64, error)
}

type createJobResponse struct {
	JobID     uuid.UUID   `json:"job_id"`
	OwnerID   string      `json:"owner_id"`
	Status    string      `json:"status"`
	TaskIDs   []uuid.UUID `json:"task_ids"`
	CreatedAt string      `json:"created_at"`
}

// NewCreateJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
// The request is multipart: repeated "files" parts plus an "operation" field.
func NewCreateJobHandler(svc Orchestrator, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_IDENTITY", "Missing caller identity", nil)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse multipart form", nil)
			return
		}

		operation := r.FormValue("operation")
		if operation == "" {
			operation = models.OperationBlur
		}

		var parts []orchestrator.FileUpload
		if r.MultipartForm != nil {
			for _, fh := range r.MultipartForm.File["files"] {
				f, err := fh.Open()
				if err != nil {
					response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read uploaded file", nil)
					return
				}
				defer f.Close()
				parts = append(parts, orchestrator.FileUpload{Name: fh.Filename, Content: f})
			}
		}

		job, err := svc.CreateJob(r.Context(), ownerID, parts, operation)
		if err != nil {
			writeJobError(w, err)
			return
		}

		response.Created(w, createJobResponse{
			JobID:     job.ID,
			OwnerID:   job.OwnerID,
			Status:    models.TaskStatusPending,
			TaskIDs:   job.TaskIDs,
			CreatedAt: job.CreatedAt.Format("2006-01-02T15:04:05.999999Z07:00"),
		})
	}
}

// NewJobStatusHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewJobStatusHandler(svc Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_IDENTITY", "Missing caller identity", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			// A malformed id can't name any job; same uniform signal.
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Job not found", nil)
			return
		}

		view, err := svc.GetJobStatus(r.Context(), ownerID, jobID)
		if err != nil {
			writeJobError(w, err)
			return
		}
		response.JSON(w, view)
	}
}

// writeJobError maps service errors to the wire taxonomy. Ownership
// mismatches arrive here already collapsed into store.ErrNotFound.
func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrValidation):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Job not found", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
