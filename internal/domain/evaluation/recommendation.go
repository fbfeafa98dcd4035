package evaluation

import (
	"fmt"

	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

// Recommendation returns the remediation advice for a severity.
func Recommendation(sev rules.Severity) string {
	switch sev {
	case rules.SeverityCritical:
		return "Immediate action required to address this issue."
	case rules.SeverityHigh:
		return "High priority - should be addressed soon."
	case rules.SeverityMedium:
		return "Review and plan remediation."
	default:
		return "Monitor and address when convenient."
	}
}

func title(r *rules.Rule) string {
	return fmt.Sprintf("%s violation", r.Name)
}

func description(r *rules.Rule) string {
	if r.Description != "" {
		return r.Description
	}
	return fmt.Sprintf("Rule %s was triggered", r.Name)
}
