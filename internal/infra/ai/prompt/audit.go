package prompt

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

// maxIssues caps how many grouped issues are sent to the model.
const maxIssues = 25

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior operations analyst reviewing the result of an automated audit. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- Use lowercase severity values: critical, high, medium, low.
- Base every statement on the findings provided; do not invent data.
- top_issues is ordered by business impact, highest first. Keep items concise.
- Findings counted in urgent_findings (critical, or with a cost impact of at least 1000) come first in the summary.
- estimated_savings is a number in the same currency as the cost impacts, or 0 when unknown.

Schema (example with empty values):
{
  "audit_id": "<string>",
  "summary": "<string>",
  "top_issues": [
    {
      "title": "<string>",
      "severity": "<critical|high|medium|low>",
      "occurrences": 0,
      "cost_impact": 0,
      "recommendation": "<string>"
    }
  ],
  "estimated_savings": 0,
  "advice": "<string>"
}`
}

// Issue groups the findings produced by one rule.
type Issue struct {
	RuleID         rules.RuleID   `json:"rule_id"`
	Title          string         `json:"title"`
	Severity       rules.Severity `json:"severity"`
	Occurrences    int            `json:"occurrences"`
	CostImpact     float64        `json:"cost_impact"`
	Recommendation string         `json:"recommendation"`
}

// Input is the user message payload.
type Input struct {
	AuditID     string                  `json:"audit_id"`
	AuditType   string                  `json:"audit_type"`
	FileName    string                  `json:"file_name"`
	Score       *int                    `json:"optimization_score"`
	TotalImpact *float64                `json:"total_cost_or_revenue"`
	Counts      findings.SeverityCounts `json:"counts"`
	// Urgent counts critical findings plus those with a significant impact.
	Urgent int     `json:"urgent_findings"`
	Issues []Issue `json:"issues"`
}

// BuildInput groups findings per rule, ordered by severity then impact.
func BuildInput(a *audits.Audit, list []*findings.Finding) Input {
	in := Input{
		AuditID:     string(a.ID),
		AuditType:   string(a.Type),
		FileName:    a.FileName,
		Score:       a.Score,
		TotalImpact: a.TotalImpact,
		Counts:      findings.CountBySeverity(list),
	}

	byRule := map[rules.RuleID]*Issue{}
	var order []rules.RuleID
	for _, f := range list {
		if f.IsCritical() || f.HasSignificantImpact(findings.DefaultSignificantImpact) {
			in.Urgent++
		}
		is, ok := byRule[f.RuleID]
		if !ok {
			is = &Issue{RuleID: f.RuleID, Title: f.Title, Severity: f.Severity, Recommendation: f.Recommendation}
			byRule[f.RuleID] = is
			order = append(order, f.RuleID)
		}
		is.Occurrences++
		if f.CostImpact != nil {
			is.CostImpact += *f.CostImpact
		}
	}
	for _, id := range order {
		in.Issues = append(in.Issues, *byRule[id])
	}
	sort.SliceStable(in.Issues, func(i, j int) bool {
		ri, rj := severityRank(in.Issues[i].Severity), severityRank(in.Issues[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return in.Issues[i].CostImpact > in.Issues[j].CostImpact
	})
	if len(in.Issues) > maxIssues {
		in.Issues = in.Issues[:maxIssues]
	}
	return in
}

// GetUserPrompt builds a compact user message around the audit result.
func GetUserPrompt(a *audits.Audit, list []*findings.Finding) (string, error) {
	b, err := json.Marshal(BuildInput(a, list))
	if err != nil {
		return "", fmt.Errorf("failed to marshal audit input: %w", err)
	}
	return fmt.Sprintf("Summarize this audit result and respond with the JSON per schema. Audit: %s", b), nil
}

func severityRank(s rules.Severity) int {
	switch s {
	case rules.SeverityCritical:
		return 4
	case rules.SeverityHigh:
		return 3
	case rules.SeverityMedium:
		return 2
	case rules.SeverityLow:
		return 1
	default:
		return 0
	}
}
