package rules

import "context"

// Repository port (persistence of rules)
type Repository interface {
	Create(ctx context.Context, r *Rule) error
	Get(ctx context.Context, org string, id RuleID) (*Rule, error)
	List(ctx context.Context, org string) ([]*Rule, error)
	// ListActive returns active rules of one organization and audit type,
	// ordered by created_at then id.
	ListActive(ctx context.Context, org, auditType string) ([]*Rule, error)
	Update(ctx context.Context, r *Rule) error
	Delete(ctx context.Context, org string, id RuleID) error
	CountActive(ctx context.Context, org string) (int, error)
}
