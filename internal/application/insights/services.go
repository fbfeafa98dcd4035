package insights

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bryanwahyu/automaton-audit/internal/application"
	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	"github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	domain "github.com/bryanwahyu/automaton-audit/internal/domain/insights"
)

// ErrAuditNotCompleted is returned when insights are requested too early.
var ErrAuditNotCompleted = errors.New("audit is not completed")

type Service struct {
	client   ai.Client
	audits   audits.Repository
	findings findings.Repository
	repo     domain.Repository
	clock    application.Clock
}

func NewService(client ai.Client, a audits.Repository, f findings.Repository, repo domain.Repository, clock application.Clock) *Service {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Service{client: client, audits: a, findings: f, repo: repo, clock: clock}
}

// Generate asks the AI client for a narrative about a completed audit and
// stores the result.
func (s *Service) Generate(ctx context.Context, org string, id audits.AuditID) (*domain.Insight, error) {
	if s.client == nil {
		return nil, ai.ErrDisabled
	}
	a, err := s.audits.Get(ctx, org, id)
	if err != nil {
		return nil, err
	}
	if a.Status != audits.StatusCompleted {
		return nil, fmt.Errorf("%w: status %s", ErrAuditNotCompleted, a.Status)
	}
	list, err := s.findings.ListByAudit(ctx, string(a.ID))
	if err != nil {
		return nil, err
	}

	result, err := s.client.Summarize(ctx, a, list)
	if err != nil {
		return nil, err
	}

	in := &domain.Insight{
		ID:             domain.InsightID(uuid.New().String()),
		OrganizationID: org,
		AuditID:        string(a.ID),
		Result:         result,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.repo.Save(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// Latest returns the newest stored insight of an audit, nil when none.
func (s *Service) Latest(ctx context.Context, org string, id audits.AuditID) (*domain.Insight, error) {
	if _, err := s.audits.Get(ctx, org, id); err != nil {
		return nil, err
	}
	return s.repo.LatestByAudit(ctx, org, string(id))
}

func (s *Service) List(ctx context.Context, org string, page, pageSize int) ([]*domain.Insight, error) {
	return s.repo.Paginate(ctx, org, page, pageSize)
}
