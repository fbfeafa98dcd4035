package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(GetOrganizationFromContext(r.Context())))
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(map[string]string{"org-1": "key-1"})(http.HandlerFunc(okHandler))

	cases := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"public path", "/health", "", http.StatusOK, ""},
		{"missing header", "/v1/org-1/audits", "", http.StatusUnauthorized, ""},
		{"bad key", "/v1/org-1/audits", "Bearer nope", http.StatusUnauthorized, ""},
		{"bearer", "/v1/org-1/audits", "Bearer key-1", http.StatusOK, "org-1"},
		{"bare key", "/v1/org-1/audits", "key-1", http.StatusOK, "org-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestRequireOrganization(t *testing.T) {
	r := chi.NewRouter()
	r.Use(APIKeyAuth(map[string]string{"org-1": "key-1", "org-2": "key-2"}))
	r.With(RequireOrganization).Get("/v1/{org}/audits", okHandler)

	do := func(path, key string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+key)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, do("/v1/org-1/audits", "key-1"))
	assert.Equal(t, http.StatusForbidden, do("/v1/org-1/audits", "key-2"))
	assert.Equal(t, http.StatusBadRequest, do("/v1/bad$org/audits", "key-1"))
}

func TestTokenBucket(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tb := NewTokenBucket(2, 0.5, t0)

	ok, _ := tb.Allow(t0)
	assert.True(t, ok)
	ok, _ = tb.Allow(t0)
	assert.True(t, ok)
	ok, wait := tb.Allow(t0)
	assert.False(t, ok)
	assert.Equal(t, 2*time.Second, wait)

	ok, _ = tb.Allow(t0.Add(2 * time.Second))
	assert.True(t, ok)
}

func TestRateLimitMiddleware(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 1)
	limiter.now = func() time.Time { return now }
	h := RateLimitMiddleware(limiter)(http.HandlerFunc(okHandler))

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/org-1/audits", nil)
		req = req.WithContext(context.WithValue(req.Context(), OrganizationKey, "org-1"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusOK, call().Code)
	rec := call()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	now = now.Add(time.Hour)
	assert.Equal(t, 1, limiter.Sweep(time.Minute))
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/org-1/rules", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Equal(t, float64(2), entry["bytes"])
	assert.Equal(t, "/v1/org-1/rules", entry["path"])
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"db":    CheckFunc(func(context.Context) error { return nil }),
		"redis": CheckFunc(func(context.Context) error { return errors.New("down") }),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var hs HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hs))
	assert.Equal(t, "unhealthy", hs.Status)
	assert.Equal(t, "down", hs.Checks["redis"].Message)
	assert.Equal(t, "healthy", hs.Checks["db"].Status)
}

func TestHealthHandler_OptionalDegrades(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"database": CheckFunc(func(context.Context) error { return nil }),
		"redis":    Optional(CheckFunc(func(context.Context) error { return errors.New("down") })),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var hs HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hs))
	assert.Equal(t, "degraded", hs.Status)
	assert.Equal(t, "unhealthy", hs.Checks["redis"].Status)
}

func TestMetricsHandler(t *testing.T) {
	rec := AuditRecorder{}
	rec.AuditQueued()
	rec.AuditStarted()
	rec.AuditFinished(true)

	w := httptest.NewRecorder()
	MetricsHandler(map[string]Gauge{
		"queue_depth": func(context.Context) (int64, error) { return 3, nil },
	}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	var m Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, int64(3), m.Gauges["queue_depth"])
	assert.GreaterOrEqual(t, m.Audits.Failed, uint64(1))
	assert.GreaterOrEqual(t, m.Audits.Running, int64(0))
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateOrganizationID("org_1-A"))
	assert.Error(t, ValidateOrganizationID(""))
	assert.Error(t, ValidateOrganizationID("org/1"))

	assert.NoError(t, ValidateID("audit", "7f1d2c4e-2b7a-4c1e-9d3f-1a2b3c4d5e6f"))
	assert.Error(t, ValidateID("audit", "a-1"))

	assert.NoError(t, ValidateFileName("costs 2026.csv"))
	assert.Error(t, ValidateFileName("../etc/passwd"))
	assert.Error(t, ValidateFileName("a;rm.csv"))

	assert.Equal(t, "ab", SanitizeString(" a\x00b\x07 "))
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 100, ValidateLimit(1000))
	assert.Equal(t, 1, ValidatePage(-3))
}
