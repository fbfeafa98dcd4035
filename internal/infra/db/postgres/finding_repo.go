package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

type FindingRepository struct {
	db *sql.DB
}

func NewFindingRepository(db *sql.DB) *FindingRepository {
	return &FindingRepository{db: db}
}

// SaveBatch replaces the findings of an audit in one transaction. seq
// keeps the evaluation order.
func (r *FindingRepository) SaveBatch(ctx context.Context, auditID string, list []*findings.Finding) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM audit_findings WHERE audit_id = $1;`, auditID); err != nil {
		return fmt.Errorf("clear findings: %w", err)
	}

	if len(list) > 0 {
		stmt, perr := tx.PrepareContext(ctx, `
INSERT INTO audit_findings
(id, audit_id, rule_id, seq, title, description, severity,
 cost_impact, evidence, recommendation, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`)
		if perr != nil {
			err = perr
			return err
		}
		defer stmt.Close()

		for i, f := range list {
			evidence, jerr := json.Marshal(f.Evidence)
			if jerr != nil {
				err = fmt.Errorf("encode evidence: %w", jerr)
				return err
			}
			if _, err = stmt.ExecContext(ctx,
				f.ID, auditID, f.RuleID, i, f.Title, f.Description, f.Severity,
				nullFloat(f.CostImpact), string(evidence), f.Recommendation, f.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert finding %d: %w", i, err)
			}
		}
	}
	return tx.Commit()
}

// ListByAudit returns findings in evaluation order
func (r *FindingRepository) ListByAudit(ctx context.Context, auditID string) ([]*findings.Finding, error) {
	const q = `
SELECT id, audit_id, rule_id, title, description, severity,
       cost_impact, evidence, recommendation, created_at
FROM audit_findings
WHERE audit_id = $1
ORDER BY seq ASC;`
	rows, err := r.db.QueryContext(ctx, q, auditID)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	var out []*findings.Finding
	for rows.Next() {
		var (
			f        findings.Finding
			impact   sql.NullFloat64
			evidence []byte
		)
		if err := rows.Scan(
			&f.ID, &f.AuditID, &f.RuleID, &f.Title, &f.Description, &f.Severity,
			&impact, &evidence, &f.Recommendation, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		f.CostImpact = floatPtr(impact)
		f.CreatedAt = f.CreatedAt.UTC()
		f.Evidence = decodeEvidence(evidence)
		out = append(out, &f)
	}
	return out, rows.Err()
}

// CountByOrganization counts findings across all audits of an organization
func (r *FindingRepository) CountByOrganization(ctx context.Context, org string) (int, error) {
	const q = `
SELECT COUNT(*)
FROM audit_findings f
JOIN audits a ON a.id = f.audit_id
WHERE a.organization_id = $1;`
	var n int
	err := r.db.QueryRowContext(ctx, q, org).Scan(&n)
	return n, err
}

func decodeEvidence(b []byte) rules.Row {
	row := rules.Row{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&row); err != nil {
		return rules.Row{}
	}
	return row
}
