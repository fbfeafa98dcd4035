package findings

import "context"

// Repository port (persistence of findings)
type Repository interface {
	// SaveBatch stores all findings of one audit in a single transaction.
	SaveBatch(ctx context.Context, auditID string, list []*Finding) error
	ListByAudit(ctx context.Context, auditID string) ([]*Finding, error)
	CountByOrganization(ctx context.Context, org string) (int, error)
}
