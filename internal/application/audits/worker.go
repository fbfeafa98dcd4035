package audits

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audits"
)

// Worker drains the processing queue.
type Worker struct {
	Service *Service
	Queue   domain.Queue
	Log     *slog.Logger
	// Backoff after a queue error, default 1s.
	Backoff time.Duration
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	log := w.Log
	if log == nil {
		log = slog.Default()
	}
	backoff := w.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	log.Info("audit worker started")
	for {
		job, err := w.Queue.Dequeue(ctx)
		if ctx.Err() != nil {
			log.Info("audit worker stopped")
			return nil
		}
		if err != nil {
			log.Error("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			continue
		}
		if job == nil {
			continue
		}

		a, err := w.Service.Process(ctx, job.OrganizationID, job.AuditID)
		switch {
		case err == nil:
			log.Debug("job done", "audit_id", a.ID, "status", a.Status)
		case IsGateError(err):
			// already picked up elsewhere or deleted
			log.Warn("job skipped", "audit_id", job.AuditID, "error", err)
		default:
			log.Error("job failed", "audit_id", job.AuditID, "error", err)
		}
	}
}

// RunReaper calls ReapStale every interval until ctx is cancelled.
func RunReaper(ctx context.Context, s *Service, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.ReapStale(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger().Error("reap stale audits", "error", err)
				continue
			}
			if n > 0 {
				s.logger().Warn("stale audits marked failed", "count", n)
			}
		}
	}
}
