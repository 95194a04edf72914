package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/radiumworks/imagepipe/internal/api/middleware"
	"github.com/radiumworks/imagepipe/internal/api/response"
	"github.com/radiumworks/imagepipe/internal/store"
)

// NewTaskStatusHandler returns an http.HandlerFunc for GET /api/v1/tasks/{taskID}.
// The isolation rule applies through the task's owning job.
func NewTaskStatusHandler(svc Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_IDENTITY", "Missing caller identity", nil)
			return
		}

		taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Task not found", nil)
			return
		}

		task, err := svc.GetTask(r.Context(), ownerID, taskID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Task not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		response.JSON(w, task)
	}
}
