package prompt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
)

// Output matches the schema in GetSystemPrompt.
type Output struct {
	AuditID          string  `json:"audit_id"`
	Summary          string  `json:"summary"`
	TopIssues        []Issue `json:"top_issues"`
	EstimatedSavings float64 `json:"estimated_savings"`
	Advice           string  `json:"advice"`
}

// Offline writes the insight without calling a model. It is used when no
// OpenAI key is configured.
type Offline struct{}

func (Offline) Summarize(_ context.Context, a *audits.Audit, list []*findings.Finding) (string, error) {
	in := BuildInput(a, list)
	out := Output{AuditID: in.AuditID, TopIssues: in.Issues}
	if out.TopIssues == nil {
		out.TopIssues = []Issue{}
	}

	score := 100
	if a.Score != nil {
		score = *a.Score
	}
	switch {
	case in.Counts.Total == 0:
		out.Summary = fmt.Sprintf("No rule was triggered in %s; optimization score %d.", a.FileName, score)
		out.Advice = "Keep the current configuration and review the rule set periodically."
	default:
		out.Summary = fmt.Sprintf("%d findings in %s (%d critical, %d high, %d medium, %d low); optimization score %d.",
			in.Counts.Total, a.FileName, in.Counts.Critical, in.Counts.High, in.Counts.Medium, in.Counts.Low, score)
		out.Advice = in.Issues[0].Recommendation
		if in.Urgent > 0 {
			out.Summary += fmt.Sprintf(" %d need attention first.", in.Urgent)
		}
	}

	// Issues are capped, the audit total is not.
	if a.TotalImpact != nil {
		out.EstimatedSavings = *a.TotalImpact
	} else {
		for _, is := range in.Issues {
			out.EstimatedSavings += is.CostImpact
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal insight: %w", err)
	}
	return string(b), nil
}
