package handler

import (
	"context"
	"net/http"

	"github.com/radiumworks/imagepipe/internal/api/response"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler reports liveness of the registry and, when configured,
// the rate-limit cache.
func NewHealthHandler(registry, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}

		status := http.StatusOK
		if err := registry.Ping(r.Context()); err != nil {
			checks["registry"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			checks["registry"] = "ok"
		}

		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				checks["cache"] = "down"
				status = http.StatusServiceUnavailable
			} else {
				checks["cache"] = "ok"
			}
		}

		if status != http.StatusOK {
			response.Error(w, status, "UNHEALTHY", "One or more dependencies are down", checks)
			return
		}
		response.JSON(w, checks)
	}
}
