package rules

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/bryanwahyu/automaton-audit/internal/application"
	"github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	domain "github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

const maxNameLength = 255

// Service implements use-cases untuk Rule
type Service struct {
	Repo  domain.Repository
	Clock application.Clock
}

// CreateCommand untuk bikin rule baru
type CreateCommand struct {
	OrganizationID string
	Name           string
	Description    string
	AuditType      string
	Condition      domain.Condition
	Severity       string
	IsActive       *bool
	CreatedBy      string
}

// Create validates and stores a new rule. Severity defaults to medium and
// new rules are active unless IsActive says otherwise.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*domain.Rule, error) {
	name, err := validName(cmd.Name)
	if err != nil {
		return nil, err
	}
	t, err := audits.ParseType(cmd.AuditType)
	if err != nil {
		return nil, invalid(err)
	}
	sev := domain.SeverityMedium
	if strings.TrimSpace(cmd.Severity) != "" {
		if sev, err = domain.ParseSeverity(cmd.Severity); err != nil {
			return nil, err
		}
	}
	if err := cmd.Condition.Validate(); err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	r := &domain.Rule{
		ID:             domain.RuleID(uuid.New().String()),
		OrganizationID: cmd.OrganizationID,
		Name:           name,
		Description:    strings.TrimSpace(cmd.Description),
		AuditType:      string(t),
		Condition:      cmd.Condition,
		Severity:       sev,
		IsActive:       cmd.IsActive == nil || *cmd.IsActive,
		CreatedBy:      cmd.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Repo.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Get ambil 1 rule
func (s *Service) Get(ctx context.Context, org string, id domain.RuleID) (*domain.Rule, error) {
	return s.Repo.Get(ctx, org, id)
}

// List semua rule milik organization
func (s *Service) List(ctx context.Context, org string) ([]*domain.Rule, error) {
	return s.Repo.List(ctx, org)
}

// UpdateCommand is a partial update; nil fields are left unchanged.
type UpdateCommand struct {
	Name        *string
	Description *string
	Condition   *domain.Condition
	Severity    *string
	IsActive    *bool
}

// Update applies a partial change. The audit type of a rule is fixed.
func (s *Service) Update(ctx context.Context, org string, id domain.RuleID, cmd UpdateCommand) (*domain.Rule, error) {
	r, err := s.Repo.Get(ctx, org, id)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()

	if cmd.Name != nil {
		if r.Name, err = validName(*cmd.Name); err != nil {
			return nil, err
		}
	}
	if cmd.Description != nil {
		r.Description = strings.TrimSpace(*cmd.Description)
	}
	if cmd.Condition != nil {
		if err := cmd.Condition.Validate(); err != nil {
			return nil, err
		}
		r.Condition = *cmd.Condition
	}
	if cmd.Severity != nil {
		sev, err := domain.ParseSeverity(*cmd.Severity)
		if err != nil {
			return nil, err
		}
		r.UpdateSeverity(sev, now)
	}
	if cmd.IsActive != nil {
		if *cmd.IsActive {
			r.Activate(now)
		} else {
			r.Deactivate(now)
		}
	}
	r.UpdatedAt = now

	if err := s.Repo.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Activate turns a rule back on for future audits.
func (s *Service) Activate(ctx context.Context, org string, id domain.RuleID) (*domain.Rule, error) {
	on := true
	return s.Update(ctx, org, id, UpdateCommand{IsActive: &on})
}

// Deactivate excludes a rule from future audits. Findings already produced by
// the rule are kept.
func (s *Service) Deactivate(ctx context.Context, org string, id domain.RuleID) (*domain.Rule, error) {
	off := false
	return s.Update(ctx, org, id, UpdateCommand{IsActive: &off})
}

// Delete hapus rule
func (s *Service) Delete(ctx context.Context, org string, id domain.RuleID) error {
	return s.Repo.Delete(ctx, org, id)
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", invalid(errors.New("name is required"))
	case len(name) > maxNameLength:
		return "", invalid(errors.New("name must be at most 255 characters"))
	}
	return name, nil
}
