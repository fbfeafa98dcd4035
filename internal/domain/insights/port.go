package insights

import "context"

// Repository port for persisting and querying insights
type Repository interface {
	Save(ctx context.Context, in *Insight) error
	Paginate(ctx context.Context, org string, page, pageSize int) ([]*Insight, error)
	// LatestByAudit returns nil, nil when the audit has no insight yet.
	LatestByAudit(ctx context.Context, org string, auditID string) (*Insight, error)
}
