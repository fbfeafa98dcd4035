package insights

import "time"

// InsightID identifier type
type InsightID string

// Insight is an AI generated narrative about one completed audit, stored for
// later retrieval.
type Insight struct {
	ID             InsightID `json:"id"`
	OrganizationID string    `json:"organization_id"`
	AuditID        string    `json:"audit_id"`
	Result         string    `json:"result"` // JSON string from AI
	CreatedAt      time.Time `json:"created_at"`
}
