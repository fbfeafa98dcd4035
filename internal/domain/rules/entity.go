package rules

import (
	"strings"
	"time"
)

// RuleID identifier type
type RuleID string

// Severity of a rule and of every finding it produces
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid reports whether s is one of the four known severities.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// ParseSeverity accepts any casing, e.g. "HIGH" or "High".
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.IsValid() {
		return "", invalidf("invalid severity %q (allowed: low, medium, high, critical)", s)
	}
	return sev, nil
}

// Rule is a stored predicate plus severity, scoped to one organization and
// one audit type.
type Rule struct {
	ID             RuleID    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	AuditType      string    `json:"audit_type"`
	Condition      Condition `json:"conditions"`
	Severity       Severity  `json:"severity"`
	IsActive       bool      `json:"is_active"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AppliesTo reports whether the rule is scoped to the given audit type.
func (r *Rule) AppliesTo(auditType string) bool {
	return r.AuditType == auditType
}

func (r *Rule) Activate(now time.Time) {
	r.IsActive = true
	r.UpdatedAt = now
}

func (r *Rule) Deactivate(now time.Time) {
	r.IsActive = false
	r.UpdatedAt = now
}

func (r *Rule) UpdateSeverity(sev Severity, now time.Time) {
	r.Severity = sev
	r.UpdatedAt = now
}
