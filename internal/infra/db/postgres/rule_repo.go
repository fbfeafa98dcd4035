package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

type RuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `id, organization_id, name, description, audit_type, conditions, severity,
       is_active, created_by, created_at, updated_at`

func scanRule(s scanner) (*domain.Rule, error) {
	var (
		r         domain.Rule
		cond      []byte
		createdBy string
	)
	if err := s.Scan(
		&r.ID, &r.OrganizationID, &r.Name, &r.Description, &r.AuditType, &cond, &r.Severity,
		&r.IsActive, &createdBy, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	// malformed JSON leaves an empty condition, which never matches
	_ = json.Unmarshal(cond, &r.Condition)
	r.CreatedBy = dashToEmpty(createdBy)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

// Create insert rule baru
func (r *RuleRepository) Create(ctx context.Context, rule *domain.Rule) error {
	const q = `
INSERT INTO audit_rules
(id, organization_id, name, description, audit_type, conditions, severity,
 is_active, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);
`
	cond, err := json.Marshal(rule.Condition)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q,
		rule.ID, rule.OrganizationID, rule.Name, rule.Description, rule.AuditType, string(cond), rule.Severity,
		rule.IsActive, stringOrDash(rule.CreatedBy), rule.CreatedAt, rule.UpdatedAt,
	)
	return err
}

// Get by ID + Organization
func (r *RuleRepository) Get(ctx context.Context, org string, id domain.RuleID) (*domain.Rule, error) {
	q := `SELECT ` + ruleColumns + `
FROM audit_rules
WHERE organization_id=$1 AND id=$2 LIMIT 1;`
	rule, err := scanRule(r.db.QueryRowContext(ctx, q, org, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rule, err
}

// List all rules of an organization, oldest first
func (r *RuleRepository) List(ctx context.Context, org string) ([]*domain.Rule, error) {
	q := `SELECT ` + ruleColumns + `
FROM audit_rules
WHERE organization_id=$1
ORDER BY created_at ASC, id ASC;`
	return r.query(ctx, q, org)
}

// ListActive returns the rules applied when processing an audit of auditType.
// Creation order is kept so findings come out in a stable order.
func (r *RuleRepository) ListActive(ctx context.Context, org, auditType string) ([]*domain.Rule, error) {
	q := `SELECT ` + ruleColumns + `
FROM audit_rules
WHERE organization_id=$1 AND audit_type=$2 AND is_active=TRUE
ORDER BY created_at ASC, id ASC;`
	return r.query(ctx, q, org, auditType)
}

func (r *RuleRepository) query(ctx context.Context, q string, args ...any) ([]*domain.Rule, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var out []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Update overwrite kolom yang bisa diubah
func (r *RuleRepository) Update(ctx context.Context, rule *domain.Rule) error {
	const q = `
UPDATE audit_rules
SET name = $1,
    description = $2,
    conditions = $3,
    severity = $4,
    is_active = $5,
    updated_at = $6
WHERE organization_id = $7 AND id = $8;`
	cond, err := json.Marshal(rule.Condition)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q,
		rule.Name, rule.Description, string(cond), rule.Severity, rule.IsActive, rule.UpdatedAt,
		rule.OrganizationID, rule.ID,
	)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, domain.ErrNotFound)
}

// Delete hapus rule; findings keep their rule_id
func (r *RuleRepository) Delete(ctx context.Context, org string, id domain.RuleID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_rules WHERE organization_id = $1 AND id = $2;`, org, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, domain.ErrNotFound)
}

// CountActive jumlah rule aktif per organization
func (r *RuleRepository) CountActive(ctx context.Context, org string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_rules WHERE organization_id = $1 AND is_active = TRUE;`, org,
	).Scan(&n)
	return n, err
}

func affectedOrNotFound(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
