package findings

import (
	"math"
	"time"

	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

// FindingID identifier type
type FindingID string

// DefaultSignificantImpact is the cost impact above which a finding is
// highlighted as significant.
const DefaultSignificantImpact = 1000.0

// Finding is one rule match against one row. It is created during evaluation
// and never changes afterwards.
type Finding struct {
	ID          FindingID      `json:"id"`
	AuditID     string         `json:"audit_id"`
	RuleID      rules.RuleID   `json:"rule_id,omitempty"` // weak reference, the rule may be deleted later
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Severity    rules.Severity `json:"severity"`
	// CostImpact is nil when the row carried no parsable cost, which is not
	// the same as a zero impact.
	CostImpact     *float64  `json:"cost_impact"`
	Evidence       rules.Row `json:"evidence"`
	Recommendation string    `json:"recommendation"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasSignificantImpact reports whether |CostImpact| >= threshold.
func (f *Finding) HasSignificantImpact(threshold float64) bool {
	if f.CostImpact == nil {
		return false
	}
	return math.Abs(*f.CostImpact) >= threshold
}

func (f *Finding) IsCritical() bool {
	return f.Severity == rules.SeverityCritical
}

// SeverityCounts value object
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// CountBySeverity buckets findings; unknown severities only count towards Total.
func CountBySeverity(list []*Finding) SeverityCounts {
	var c SeverityCounts
	for _, f := range list {
		switch f.Severity {
		case rules.SeverityCritical:
			c.Critical++
		case rules.SeverityHigh:
			c.High++
		case rules.SeverityMedium:
			c.Medium++
		case rules.SeverityLow:
			c.Low++
		}
		c.Total++
	}
	return c
}
