package evaluation

import (
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

// MaxPenalty caps the summed severity weights.
const MaxPenalty = 100

// Weights maps severities to score penalties. Weights must grow with severity.
type Weights map[rules.Severity]int

// DefaultWeights is the canonical penalty table.
var DefaultWeights = Weights{
	rules.SeverityLow:      1,
	rules.SeverityMedium:   3,
	rules.SeverityHigh:     7,
	rules.SeverityCritical: 15,
}

// Of returns the penalty for sev. Unknown severities weigh like low.
func (w Weights) Of(sev rules.Severity) int {
	if v, ok := w[sev]; ok {
		return v
	}
	if v, ok := w[rules.SeverityLow]; ok {
		return v
	}
	return 1
}

// Score computes 100 - min(sum(weights), 100). No findings scores 100.
func (w Weights) Score(list []*findings.Finding) int {
	penalty := 0
	for _, f := range list {
		penalty += w.Of(f.Severity)
		if penalty >= MaxPenalty {
			return 0
		}
	}
	score := 100 - penalty
	if score < 0 {
		return 0
	}
	return score
}

// TotalImpact sums the cost impact of findings that carry one. Findings
// without an impact contribute nothing; the result is 0 when none do.
func TotalImpact(list []*findings.Finding) float64 {
	total := 0.0
	for _, f := range list {
		if f.CostImpact != nil {
			total += *f.CostImpact
		}
	}
	return total
}
