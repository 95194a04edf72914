package middleware

import (
	"net/http"
	"strings"

	"github.com/radiumworks/imagepipe/internal/api/response"
)

// IdentityHeader carries the caller identity. It is a tenant key, not an
// authentication mechanism: whatever identity the caller presents scopes
// every read they make.
const IdentityHeader = "X-User-ID"

// Identity requires the identity header and puts the owner id in the
// request context for handlers and the rate limiter.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := strings.TrimSpace(r.Header.Get(IdentityHeader))
		if ownerID == "" {
			response.Error(w, http.StatusUnauthorized,
				"MISSING_IDENTITY", "X-User-ID header is required", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetOwnerID(r.Context(), ownerID)))
	})
}
