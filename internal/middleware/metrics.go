package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

type counters struct {
	requestsTotal    atomic.Uint64
	requestsInFlight atomic.Int64
	requestsOK       atomic.Uint64
	requestsFailed   atomic.Uint64

	auditsQueued    atomic.Uint64
	auditsRunning   atomic.Int64
	auditsCompleted atomic.Uint64
	auditsFailed    atomic.Uint64

	started time.Time
}

var metrics = &counters{started: time.Now()}

// AuditRecorder feeds audit lifecycle events into the process metrics.
type AuditRecorder struct{}

func (AuditRecorder) AuditQueued()  { metrics.auditsQueued.Add(1) }
func (AuditRecorder) AuditStarted() { metrics.auditsRunning.Add(1) }

// AuditFinished is also called for stale audits that never reported start
// in this process, so running never goes below zero.
func (AuditRecorder) AuditFinished(failed bool) {
	for {
		cur := metrics.auditsRunning.Load()
		if cur <= 0 || metrics.auditsRunning.CompareAndSwap(cur, cur-1) {
			break
		}
	}
	if failed {
		metrics.auditsFailed.Add(1)
	} else {
		metrics.auditsCompleted.Add(1)
	}
}

// Gauge is sampled on every metrics request, e.g. queue depth.
type Gauge func(ctx context.Context) (int64, error)

type RequestStats struct {
	Total    uint64 `json:"total"`
	InFlight int64  `json:"in_flight"`
	Success  uint64 `json:"success"`
	Failed   uint64 `json:"failed"`
}

type AuditStats struct {
	Queued    uint64 `json:"queued"`
	Running   int64  `json:"running"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
}

// Snapshot is the /metrics response body.
type Snapshot struct {
	Requests      RequestStats     `json:"requests"`
	Audits        AuditStats       `json:"audits"`
	Gauges        map[string]int64 `json:"gauges,omitempty"`
	UptimeSeconds float64          `json:"uptime_seconds"`
	Goroutines    int              `json:"goroutines"`
	HeapBytes     uint64           `json:"heap_alloc_bytes"`
	NumGC         uint32           `json:"num_gc"`
}

// GetMetrics returns current metrics
func GetMetrics() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Snapshot{
		Requests: RequestStats{
			Total:    metrics.requestsTotal.Load(),
			InFlight: metrics.requestsInFlight.Load(),
			Success:  metrics.requestsOK.Load(),
			Failed:   metrics.requestsFailed.Load(),
		},
		Audits: AuditStats{
			Queued:    metrics.auditsQueued.Load(),
			Running:   metrics.auditsRunning.Load(),
			Completed: metrics.auditsCompleted.Load(),
			Failed:    metrics.auditsFailed.Load(),
		},
		UptimeSeconds: time.Since(metrics.started).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		HeapBytes:     m.HeapAlloc,
		NumGC:         m.NumGC,
	}
}

// MetricsMiddleware counts requests; 4xx and 5xx count as failed.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.requestsTotal.Add(1)
		metrics.requestsInFlight.Add(1)
		defer metrics.requestsInFlight.Add(-1)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode < 400 {
			metrics.requestsOK.Add(1)
		} else {
			metrics.requestsFailed.Add(1)
		}
	})
}

// MetricsHandler serves a Snapshot; gauges that error are left out.
func MetricsHandler(gauges map[string]Gauge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := GetMetrics()
		if len(gauges) > 0 {
			out.Gauges = make(map[string]int64, len(gauges))
			for name, g := range gauges {
				if v, err := g(r.Context()); err == nil {
					out.Gauges[name] = v
				}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}
