package insights

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-audit/internal/application"
	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	"github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	domain "github.com/bryanwahyu/automaton-audit/internal/domain/insights"
)

var now = time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

type stubAudits struct {
	audits.Repository
	a *audits.Audit
}

func (s stubAudits) Get(_ context.Context, org string, id audits.AuditID) (*audits.Audit, error) {
	if s.a == nil || s.a.OrganizationID != org || s.a.ID != id {
		return nil, audits.ErrNotFound
	}
	return s.a, nil
}

type stubFindings struct {
	findings.Repository
	list []*findings.Finding
}

func (s stubFindings) ListByAudit(context.Context, string) ([]*findings.Finding, error) {
	return s.list, nil
}

type memInsights struct{ saved []*domain.Insight }

func (m *memInsights) Save(_ context.Context, in *domain.Insight) error {
	m.saved = append(m.saved, in)
	return nil
}

func (m *memInsights) Paginate(context.Context, string, int, int) ([]*domain.Insight, error) {
	return m.saved, nil
}

func (m *memInsights) LatestByAudit(_ context.Context, _ string, auditID string) (*domain.Insight, error) {
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].AuditID == auditID {
			return m.saved[i], nil
		}
	}
	return nil, nil
}

type fakeClient struct {
	got int
	err error
}

func (f *fakeClient) Summarize(_ context.Context, _ *audits.Audit, list []*findings.Finding) (string, error) {
	f.got = len(list)
	return `{"summary":"ok"}`, f.err
}

func completedAudit(t *testing.T) *audits.Audit {
	a := audits.New("a-1", "org-1", audits.TypeBusiness, "q1.xlsx", "k", "", now)
	require.NoError(t, a.Start(now))
	require.NoError(t, a.Complete(97, 0, 1, now))
	return a
}

func TestGenerate(t *testing.T) {
	client := &fakeClient{}
	repo := &memInsights{}
	svc := NewService(client, stubAudits{a: completedAudit(t)}, stubFindings{list: []*findings.Finding{{ID: "f-1"}}}, repo, application.FixedClock{At: now})

	in, err := svc.Generate(context.Background(), "org-1", "a-1")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, in.Result)
	assert.Equal(t, "a-1", in.AuditID)
	assert.Equal(t, now, in.CreatedAt)
	assert.Equal(t, 1, client.got)

	latest, err := svc.Latest(context.Background(), "org-1", "a-1")
	require.NoError(t, err)
	assert.Same(t, in, latest)
}

func TestGenerate_Errors(t *testing.T) {
	pending := audits.New("a-1", "org-1", audits.TypeCloud, "a.csv", "k", "", now)

	svc := NewService(nil, stubAudits{a: pending}, stubFindings{}, &memInsights{}, nil)
	_, err := svc.Generate(context.Background(), "org-1", "a-1")
	assert.ErrorIs(t, err, ai.ErrDisabled)

	svc = NewService(&fakeClient{}, stubAudits{a: pending}, stubFindings{}, &memInsights{}, nil)
	_, err = svc.Generate(context.Background(), "org-1", "a-1")
	assert.ErrorIs(t, err, ErrAuditNotCompleted)

	_, err = svc.Generate(context.Background(), "org-2", "a-1")
	assert.ErrorIs(t, err, audits.ErrNotFound)

	repo := &memInsights{}
	svc = NewService(&fakeClient{err: ai.ErrQuotaExceeded}, stubAudits{a: completedAudit(t)}, stubFindings{}, repo, nil)
	_, err = svc.Generate(context.Background(), "org-1", "a-1")
	assert.True(t, errors.Is(err, ai.ErrQuotaExceeded))
	assert.Empty(t, repo.saved)
}
