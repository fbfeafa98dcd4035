package rules

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-audit/internal/application"
	"github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	domain "github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

type memRepo struct {
	items map[domain.RuleID]domain.Rule
}

func (m *memRepo) Create(_ context.Context, r *domain.Rule) error {
	m.items[r.ID] = *r
	return nil
}

func (m *memRepo) Get(_ context.Context, org string, id domain.RuleID) (*domain.Rule, error) {
	r, ok := m.items[id]
	if !ok || r.OrganizationID != org {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *memRepo) List(_ context.Context, org string) ([]*domain.Rule, error) {
	var out []*domain.Rule
	for _, r := range m.items {
		if r.OrganizationID == org {
			r := r
			out = append(out, &r)
		}
	}
	return out, nil
}

func (m *memRepo) ListActive(ctx context.Context, org, auditType string) ([]*domain.Rule, error) {
	all, _ := m.List(ctx, org)
	var out []*domain.Rule
	for _, r := range all {
		if r.IsActive && r.AppliesTo(auditType) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) Update(_ context.Context, r *domain.Rule) error {
	m.items[r.ID] = *r
	return nil
}

func (m *memRepo) Delete(_ context.Context, org string, id domain.RuleID) error {
	if _, err := m.Get(context.Background(), org, id); err != nil {
		return err
	}
	delete(m.items, id)
	return nil
}

func (m *memRepo) CountActive(ctx context.Context, org string) (int, error) {
	all, _ := m.List(ctx, org)
	n := 0
	for _, r := range all {
		if r.IsActive {
			n++
		}
	}
	return n, nil
}

var t0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func newService() (*Service, *memRepo) {
	repo := &memRepo{items: map[domain.RuleID]domain.Rule{}}
	return &Service{Repo: repo, Clock: application.FixedClock{At: t0}}, repo
}

func validCommand() CreateCommand {
	return CreateCommand{
		OrganizationID: "org-1",
		Name:           "  High spend ",
		AuditType:      "CLOUD",
		Condition:      domain.Condition{Field: "cost", Operator: domain.OpGreater, Threshold: domain.NumberThreshold(1000)},
		Severity:       "HIGH",
	}
}

func TestCreate(t *testing.T) {
	svc, repo := newService()

	r, err := svc.Create(context.Background(), validCommand())
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "High spend", r.Name)
	assert.Equal(t, "cloud", r.AuditType)
	assert.Equal(t, domain.SeverityHigh, r.Severity)
	assert.True(t, r.IsActive)
	assert.Equal(t, t0, r.CreatedAt)
	assert.Len(t, repo.items, 1)
}

func TestCreate_Defaults(t *testing.T) {
	svc, _ := newService()
	cmd := validCommand()
	cmd.Severity = ""
	off := false
	cmd.IsActive = &off

	r, err := svc.Create(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityMedium, r.Severity)
	assert.False(t, r.IsActive)
}

func TestCreate_Invalid(t *testing.T) {
	cases := map[string]func(c *CreateCommand){
		"blank name":      func(c *CreateCommand) { c.Name = "  " },
		"long name":       func(c *CreateCommand) { c.Name = strings.Repeat("x", 256) },
		"bad severity":    func(c *CreateCommand) { c.Severity = "urgent" },
		"bad type":        func(c *CreateCommand) { c.AuditType = "retail" },
		"no operator":     func(c *CreateCommand) { c.Condition.Operator = "" },
		"unknown op":      func(c *CreateCommand) { c.Condition.Operator = "contains" },
		"text with order": func(c *CreateCommand) { c.Condition.Threshold = domain.TextThreshold("abc") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc, repo := newService()
			cmd := validCommand()
			mutate(&cmd)
			_, err := svc.Create(context.Background(), cmd)
			assert.ErrorIs(t, err, domain.ErrInvalidRule)
			assert.Empty(t, repo.items)
		})
	}
}

func TestCreate_BadTypeKeepsTypeError(t *testing.T) {
	svc, _ := newService()
	cmd := validCommand()
	cmd.AuditType = "retail"
	_, err := svc.Create(context.Background(), cmd)
	assert.ErrorIs(t, err, audits.ErrInvalidType)
}

func TestUpdate_Partial(t *testing.T) {
	svc, _ := newService()
	r, err := svc.Create(context.Background(), validCommand())
	require.NoError(t, err)

	later := t0.Add(time.Hour)
	svc.Clock = application.FixedClock{At: later}
	sev := "critical"
	got, err := svc.Update(context.Background(), "org-1", r.ID, UpdateCommand{Severity: &sev})
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityCritical, got.Severity)
	assert.Equal(t, "High spend", got.Name)
	assert.Equal(t, r.Condition, got.Condition)
	assert.Equal(t, later, got.UpdatedAt)
	assert.Equal(t, t0, got.CreatedAt)

	bad := ""
	_, err = svc.Update(context.Background(), "org-1", r.ID, UpdateCommand{Name: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidRule)
}

func TestActivateDeactivate(t *testing.T) {
	svc, _ := newService()
	r, err := svc.Create(context.Background(), validCommand())
	require.NoError(t, err)

	got, err := svc.Deactivate(context.Background(), "org-1", r.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	active, _ := svc.Repo.ListActive(context.Background(), "org-1", "cloud")
	assert.Empty(t, active)

	got, err = svc.Activate(context.Background(), "org-1", r.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestOrganizationScoping(t *testing.T) {
	svc, _ := newService()
	r, err := svc.Create(context.Background(), validCommand())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "org-2", r.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "org-2", r.ID), domain.ErrNotFound)
	require.NoError(t, svc.Delete(context.Background(), "org-1", r.ID))
}
