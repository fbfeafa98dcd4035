package evaluation

import (
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

// DefaultCostField is the column read for a finding's cost impact.
const DefaultCostField = "cost"

// Engine evaluates rules over rows. The zero value is ready to use.
// An Engine holds no per-audit state and is safe for concurrent use.
type Engine struct {
	// Weights defaults to DefaultWeights.
	Weights Weights
	// CostField defaults to DefaultCostField.
	CostField string
	// NewID defaults to random UUIDs.
	NewID func() string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result is everything an audit needs once evaluation is done.
type Result struct {
	Findings    []*findings.Finding     `json:"findings"`
	Score       int                     `json:"optimization_score"`
	TotalImpact float64                 `json:"total_cost_or_revenue"`
	Counts      findings.SeverityCounts `json:"counts"`
}

// Process evaluates every active rule of the audit's type against every row.
func (e *Engine) Process(a *audits.Audit, active []*rules.Rule, rows []rules.Row) Result {
	applicable := make([]*rules.Rule, 0, len(active))
	for _, r := range active {
		if r != nil && r.IsActive && r.AppliesTo(string(a.Type)) {
			applicable = append(applicable, r)
		}
	}

	now := e.now()
	out := make([]*findings.Finding, 0)
	for _, row := range rows {
		for _, r := range applicable {
			if !r.Evaluate(row) {
				continue
			}
			out = append(out, e.newFinding(a.ID, r, row, now))
		}
	}

	return Result{
		Findings:    out,
		Score:       e.weights().Score(out),
		TotalImpact: TotalImpact(out),
		Counts:      findings.CountBySeverity(out),
	}
}

func (e *Engine) newFinding(auditID audits.AuditID, r *rules.Rule, row rules.Row, now time.Time) *findings.Finding {
	f := &findings.Finding{
		ID:             findings.FindingID(e.newID()),
		AuditID:        string(auditID),
		RuleID:         r.ID,
		Title:          title(r),
		Description:    description(r),
		Severity:       r.Severity,
		Evidence:       row.Clone(),
		Recommendation: Recommendation(r.Severity),
		CreatedAt:      now,
	}
	if v, ok := row.Number(e.costField()); ok {
		f.CostImpact = &v
	}
	return f
}

func (e *Engine) weights() Weights {
	if e.Weights == nil {
		return DefaultWeights
	}
	return e.Weights
}

func (e *Engine) costField() string {
	if e.CostField == "" {
		return DefaultCostField
	}
	return e.CostField
}

func (e *Engine) newID() string {
	if e.NewID == nil {
		return uuid.NewString()
	}
	return e.NewID()
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now()
}
