package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthChecker is one dependency probed by /health.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function, e.g. a Redis ping, to HealthChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// DatabaseHealthChecker pings the audit database.
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

type optionalCheck struct{ HealthChecker }

// Optional marks a dependency whose failure degrades the service without
// making it unavailable (the queue: uploads and reads still work).
func Optional(c HealthChecker) HealthChecker { return optionalCheck{c} }

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

type CheckStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// HealthHandler runs all checks in parallel, 2s each. Any required failure
// answers 503; optional failures only downgrade the status to degraded.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			mu     sync.Mutex
			wg     sync.WaitGroup
			result = HealthStatus{
				Status:    statusHealthy,
				Timestamp: time.Now().UTC(),
				Checks:    make(map[string]CheckStatus, len(checkers)),
			}
		)

		for name, c := range checkers {
			wg.Add(1)
			go func(name string, c HealthChecker) {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
				defer cancel()

				start := time.Now()
				err := c.Check(ctx)
				cs := CheckStatus{Status: statusHealthy, LatencyMs: time.Since(start).Milliseconds()}

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					cs.Status, cs.Message = statusUnhealthy, err.Error()
					_, optional := c.(optionalCheck)
					switch {
					case !optional:
						result.Status = statusUnhealthy
					case result.Status == statusHealthy:
						result.Status = statusDegraded
					}
				}
				result.Checks[name] = cs
			}(name, c)
		}
		wg.Wait()

		code := http.StatusOK
		if result.Status == statusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(result)
	}
}

// LivenessHandler answers as long as the process serves HTTP.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
