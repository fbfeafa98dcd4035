package audits

import (
	"fmt"
	"strings"
	"time"
)

// AuditID identifier type
type AuditID string

// Type of data an audit analyses. Rules only apply to audits of their type.
type Type string

const (
	TypeCloud       Type = "cloud"
	TypeHospitality Type = "hospitality"
	TypeBusiness    Type = "business"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeCloud, TypeHospitality, TypeBusiness:
		return true
	default:
		return false
	}
}

// ParseType normalises and validates an audit type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q (allowed: cloud, hospitality, business)", ErrInvalidType, s)
	}
	return t, nil
}

// Status enum
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal is true for completed and failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Aggregate Root: Audit
//
// One upload is one audit. Status only changes through the transition methods
// in fsm.go.
type Audit struct {
	ID             AuditID    `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Type           Type       `json:"audit_type"`
	FileName       string     `json:"file_name"`
	FileKey        string     `json:"file_key"`
	Status         Status     `json:"status"`
	CreatedBy      string     `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Score          *int       `json:"optimization_score"`
	TotalImpact    *float64   `json:"total_cost_or_revenue"`
	FindingsTotal  int        `json:"findings_total"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

// New creates an audit in the pending state.
func New(id AuditID, org string, t Type, fileName, fileKey, createdBy string, now time.Time) *Audit {
	return &Audit{
		ID:             id,
		OrganizationID: org,
		Type:           t,
		FileName:       fileName,
		FileKey:        fileKey,
		Status:         StatusPending,
		CreatedBy:      createdBy,
		CreatedAt:      now,
	}
}

// IsEditable reports whether the audit may still be changed by its owner.
func (a *Audit) IsEditable() bool {
	return a.Status == StatusPending
}

// Summary aggregates the audits of one organization.
type Summary struct {
	Total     int
	Completed int
	// AverageScore over completed audits with a score, nil when there are none.
	AverageScore *float64
}
