package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mw "github.com/radiumworks/imagepipe/internal/api/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock Cache ---

type mockCache struct {
	counter int64
	err     error
}

func (m *mockCache) Ping(_ context.Context) error { return nil }
func (m *mockCache) Close() error                 { return nil }
func (m *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.counter++
	return m.counter, nil
}

// --- helpers ---

func okHandler(t *testing.T, wantOwner string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if wantOwner != "" {
			owner, ok := mw.GetOwnerID(r)
			require.True(t, ok)
			assert.Equal(t, wantOwner, owner)
		}
		w.WriteHeader(http.StatusOK)
	}
}

// --- Identity ---

func TestIdentity_HeaderRequired(t *testing.T) {
	h := mw.Identity(okHandler(t, ""))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/x", nil)
	req.Header.Set(mw.IdentityHeader, "   ")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentity_SetsOwner(t *testing.T) {
	h := mw.Identity(okHandler(t, "alice"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/x", nil)
	req.Header.Set(mw.IdentityHeader, "alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- RateLimit ---

func limitedRequest(t *testing.T, h http.Handler, owner string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/x", nil)
	req.Header.Set(mw.IdentityHeader, owner)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{}, 3)
	h := mw.Identity(rl.Limit(okHandler(t, "")))

	for i := 0; i < 3; i++ {
		rec := limitedRequest(t, h, "alice")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := limitedRequest(t, h, "alice")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimit_FailsOpenOnCacheError(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{err: context.DeadlineExceeded}, 1)
	h := mw.Identity(rl.Limit(okHandler(t, "")))

	for i := 0; i < 5; i++ {
		rec := limitedRequest(t, h, "alice")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_NilCachePassesThrough(t *testing.T) {
	rl := mw.NewRateLimit(nil, 1)
	h := mw.Identity(rl.Limit(okHandler(t, "")))

	for i := 0; i < 5; i++ {
		rec := limitedRequest(t, h, "alice")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
