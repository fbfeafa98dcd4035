package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audits"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditColumns = `id, organization_id, audit_type, file_name, file_key, status, created_by,
       created_at, started_at, completed_at, optimization_score, total_cost_or_revenue,
       findings_total, error_message`

func scanAudit(s scanner) (*domain.Audit, error) {
	var (
		a                  domain.Audit
		createdBy          string
		started, completed sql.NullTime
		score              sql.NullInt64
		impact             sql.NullFloat64
	)
	if err := s.Scan(
		&a.ID, &a.OrganizationID, &a.Type, &a.FileName, &a.FileKey, &a.Status, &createdBy,
		&a.CreatedAt, &started, &completed, &score, &impact,
		&a.FindingsTotal, &a.ErrorMessage,
	); err != nil {
		return nil, err
	}
	a.CreatedBy = dashToEmpty(createdBy)
	a.CreatedAt = a.CreatedAt.UTC()
	a.StartedAt = timePtr(started)
	a.CompletedAt = timePtr(completed)
	a.Score = intPtr(score)
	a.TotalImpact = floatPtr(impact)
	return &a, nil
}

// Create insert audit baru (status pending)
func (r *AuditRepository) Create(ctx context.Context, a *domain.Audit) error {
	const q = `
INSERT INTO audits
(id, organization_id, audit_type, file_name, file_key, status, created_by,
 created_at, started_at, completed_at, optimization_score, total_cost_or_revenue,
 findings_total, error_message)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);
`
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.OrganizationID, a.Type, a.FileName, a.FileKey, a.Status, stringOrDash(a.CreatedBy),
		created, nullTime(a.StartedAt), nullTime(a.CompletedAt), nullInt(a.Score), nullFloat(a.TotalImpact),
		a.FindingsTotal, a.ErrorMessage,
	)
	return err
}

// Get by ID + Organization
func (r *AuditRepository) Get(ctx context.Context, org string, id domain.AuditID) (*domain.Audit, error) {
	q := `SELECT ` + auditColumns + `
FROM audits
WHERE organization_id=$1 AND id=$2 LIMIT 1;`
	a, err := scanAudit(r.db.QueryRowContext(ctx, q, org, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// List audits per organization, newest first
func (r *AuditRepository) List(ctx context.Context, org string, page, pageSize int) ([]*domain.Audit, error) {
	limit, offset := pageWindow(page, pageSize)
	q := `SELECT ` + auditColumns + `
FROM audits
WHERE organization_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;`
	return r.query(ctx, q, org, limit, offset)
}

// ListStale returns audits stuck in processing, across organizations.
func (r *AuditRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]*domain.Audit, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + auditColumns + `
FROM audits
WHERE status='processing' AND started_at < $1
ORDER BY started_at ASC
LIMIT $2;`
	return r.query(ctx, q, before, limit)
}

func (r *AuditRepository) query(ctx context.Context, q string, args ...any) ([]*domain.Audit, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audits: %w", err)
	}
	defer rows.Close()

	var out []*domain.Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkProcessing is a compare-and-set on status=pending.
func (r *AuditRepository) MarkProcessing(ctx context.Context, a *domain.Audit) error {
	const q = `
UPDATE audits
SET status = $1, started_at = $2
WHERE organization_id = $3 AND id = $4 AND status = 'pending';`
	res, err := r.db.ExecContext(ctx, q, a.Status, nullTime(a.StartedAt), a.OrganizationID, a.ID)
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, res, a, domain.EventStart)
}

// MarkCompleted simpan hasil evaluasi
func (r *AuditRepository) MarkCompleted(ctx context.Context, a *domain.Audit) error {
	const q = `
UPDATE audits
SET status = $1,
    completed_at = $2,
    optimization_score = $3,
    total_cost_or_revenue = $4,
    findings_total = $5,
    error_message = ''
WHERE organization_id = $6 AND id = $7 AND status = 'processing';`
	res, err := r.db.ExecContext(ctx, q,
		a.Status, nullTime(a.CompletedAt), nullInt(a.Score), nullFloat(a.TotalImpact), a.FindingsTotal,
		a.OrganizationID, a.ID,
	)
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, res, a, domain.EventComplete)
}

// MarkFailed simpan status failed + pesan error
func (r *AuditRepository) MarkFailed(ctx context.Context, a *domain.Audit) error {
	const q = `
UPDATE audits
SET status = $1, completed_at = $2, error_message = $3
WHERE organization_id = $4 AND id = $5 AND status IN ('pending','processing');`
	res, err := r.db.ExecContext(ctx, q, a.Status, nullTime(a.CompletedAt), a.ErrorMessage, a.OrganizationID, a.ID)
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, res, a, domain.EventFail)
}

// checkTransition turns "no row updated" into not found or a transition
// error carrying the stored status.
func (r *AuditRepository) checkTransition(ctx context.Context, res sql.Result, a *domain.Audit, ev domain.Event) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var current domain.Status
	err = r.db.QueryRowContext(ctx, `SELECT status FROM audits WHERE organization_id=$1 AND id=$2;`, a.OrganizationID, a.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return &domain.TransitionError{From: current, Event: ev}
}

// Summary counts audits and averages completed scores
func (r *AuditRepository) Summary(ctx context.Context, org string) (domain.Summary, error) {
	const q = `
SELECT COUNT(*) AS total_audits,
       COALESCE(SUM(CASE WHEN status='completed' THEN 1 ELSE 0 END),0) AS completed,
       AVG(CASE WHEN status='completed' THEN optimization_score END)   AS avg_score
FROM audits
WHERE organization_id=$1;`
	var (
		s   domain.Summary
		avg sql.NullFloat64
	)
	if err := r.db.QueryRowContext(ctx, q, org).Scan(&s.Total, &s.Completed, &avg); err != nil {
		return domain.Summary{}, err
	}
	s.AverageScore = floatPtr(avg)
	return s, nil
}
