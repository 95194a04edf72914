package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/radiumworks/imagepipe/internal/api/middleware"
	"github.com/radiumworks/imagepipe/internal/api/response"
	"github.com/radiumworks/imagepipe/internal/store"
)

// NewFileHandler returns an http.HandlerFunc for
// GET /api/v1/files/{jobID}/{filename}: the raw bytes of one processed
// output, gated by the same uniform not-found as the status endpoints.
func NewFileHandler(svc Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_IDENTITY", "Missing caller identity", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "File not found", nil)
			return
		}
		filename := chi.URLParam(r, "filename")

		rc, size, err := svc.GetOutputFile(r.Context(), ownerID, jobID, filename)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "File not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		if size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		}
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, rc); err != nil {
			slog.Error("send file", "job_id", jobID, "file", filename, "error", err)
		}
	}
}
