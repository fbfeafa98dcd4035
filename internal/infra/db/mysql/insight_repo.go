package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/insights"
)

type InsightRepository struct {
	db *sql.DB
}

func NewInsightRepository(db *sql.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

// Save inserts an insight record
func (r *InsightRepository) Save(ctx context.Context, in *domain.Insight) error {
	const q = `
INSERT INTO audit_insights
  (id, organization_id, audit_id, result_json, created_at)
VALUES (?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  organization_id=VALUES(organization_id), audit_id=VALUES(audit_id), result_json=VALUES(result_json);
`
	org := stringOrDash(in.OrganizationID)
	result := in.Result
	if strings.TrimSpace(result) == "" {
		// result_json column requires valid JSON; use empty object
		result = "{}"
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q, in.ID, org, in.AuditID, result, createdAt)
	return err
}

// Paginate returns a page of insights ordered by created_at desc
func (r *InsightRepository) Paginate(ctx context.Context, org string, page, pageSize int) ([]*domain.Insight, error) {
	limit, offset := pageWindow(page, pageSize)
	const q = `
SELECT id, organization_id, audit_id, result_json, created_at
FROM audit_insights
WHERE organization_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, org, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Insight
	for rows.Next() {
		in, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// LatestByAudit returns nil, nil when the audit has no insight yet
func (r *InsightRepository) LatestByAudit(ctx context.Context, org, auditID string) (*domain.Insight, error) {
	const q = `
SELECT id, organization_id, audit_id, result_json, created_at
FROM audit_insights
WHERE organization_id=? AND audit_id=?
ORDER BY created_at DESC, id DESC
LIMIT 1;
`
	in, err := scanInsight(r.db.QueryRowContext(ctx, q, org, auditID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return in, err
}

func scanInsight(s scanner) (*domain.Insight, error) {
	var in domain.Insight
	if err := s.Scan(&in.ID, &in.OrganizationID, &in.AuditID, &in.Result, &in.CreatedAt); err != nil {
		return nil, err
	}
	in.CreatedAt = in.CreatedAt.UTC()
	return &in, nil
}
