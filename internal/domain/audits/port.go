package audits

import (
	"context"
	"io"
	"time"

	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

// Repository port (persistence of audits)
type Repository interface {
	Create(ctx context.Context, a *Audit) error
	Get(ctx context.Context, org string, id AuditID) (*Audit, error)
	List(ctx context.Context, org string, page, pageSize int) ([]*Audit, error)

	// MarkProcessing persists Start. It must only succeed while the stored
	// row is still pending, so that one audit is never processed twice.
	MarkProcessing(ctx context.Context, a *Audit) error
	// MarkCompleted persists Complete; the stored row must be processing.
	MarkCompleted(ctx context.Context, a *Audit) error
	// MarkFailed persists Fail; the stored row must not be terminal.
	MarkFailed(ctx context.Context, a *Audit) error

	// ListStale returns processing audits started before the cutoff.
	ListStale(ctx context.Context, before time.Time, limit int) ([]*Audit, error)
	Summary(ctx context.Context, org string) (Summary, error)
}

// UploadStore port (object storage for uploaded files)
type UploadStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// RowParser port (turns an uploaded file into rows)
type RowParser interface {
	Parse(fileName string, r io.Reader) ([]rules.Row, error)
}

// ProcessJob asks a worker to evaluate one audit.
type ProcessJob struct {
	AuditID        AuditID `json:"audit_id"`
	OrganizationID string  `json:"organization_id"`
	EnqueuedAt     int64   `json:"enqueued_at"`
}

// Queue port (hand-off of processing jobs to workers)
type Queue interface {
	Enqueue(ctx context.Context, job ProcessJob) error
	// Dequeue blocks until a job is available, the wait times out (nil, nil)
	// or ctx is cancelled.
	Dequeue(ctx context.Context) (*ProcessJob, error)
}
