package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apprules "github.com/bryanwahyu/automaton-audit/internal/application/rules"
	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
	"github.com/bryanwahyu/automaton-audit/internal/middleware"
)

type ruleBody struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	AuditType   *string          `json:"audit_type"`
	Conditions  *rules.Condition `json:"conditions"`
	Severity    *string          `json:"severity"`
	IsActive    *bool            `json:"is_active"`
	CreatedBy   *string          `json:"created_by"`
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return middleware.SanitizeString(*p)
}

// POST /v1/{org}/rules
func (r *Router) handleCreateRule(w http.ResponseWriter, req *http.Request) error {
	var body ruleBody
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}
	cmd := apprules.CreateCommand{
		OrganizationID: chi.URLParam(req, "org"),
		Name:           deref(body.Name),
		Description:    deref(body.Description),
		AuditType:      deref(body.AuditType),
		Severity:       deref(body.Severity),
		IsActive:       body.IsActive,
		CreatedBy:      deref(body.CreatedBy),
	}
	if body.Conditions != nil {
		cmd.Condition = *body.Conditions
	}

	rule, err := r.rules.Create(req.Context(), cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, rule)
}

// GET /v1/{org}/rules
func (r *Router) handleListRules(w http.ResponseWriter, req *http.Request) error {
	list, err := r.rules.List(req.Context(), chi.URLParam(req, "org"))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*rules.Rule{}
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{org}/rules/{id}
func (r *Router) handleGetRule(w http.ResponseWriter, req *http.Request) error {
	id, err := ruleID(req)
	if err != nil {
		return err
	}
	rule, err := r.rules.Get(req.Context(), chi.URLParam(req, "org"), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rule)
}

// PATCH /v1/{org}/rules/{id}
func (r *Router) handleUpdateRule(w http.ResponseWriter, req *http.Request) error {
	id, err := ruleID(req)
	if err != nil {
		return err
	}
	var body ruleBody
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}
	if body.AuditType != nil {
		return errBadRequest("audit_type cannot be changed")
	}

	cmd := apprules.UpdateCommand{
		Condition: body.Conditions,
		Severity:  body.Severity,
		IsActive:  body.IsActive,
	}
	if body.Name != nil {
		name := deref(body.Name)
		cmd.Name = &name
	}
	if body.Description != nil {
		desc := deref(body.Description)
		cmd.Description = &desc
	}

	rule, err := r.rules.Update(req.Context(), chi.URLParam(req, "org"), id, cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rule)
}

// DELETE /v1/{org}/rules/{id}
func (r *Router) handleDeleteRule(w http.ResponseWriter, req *http.Request) error {
	id, err := ruleID(req)
	if err != nil {
		return err
	}
	if err := r.rules.Delete(req.Context(), chi.URLParam(req, "org"), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// POST /v1/{org}/rules/{id}/activate
func (r *Router) handleActivateRule(w http.ResponseWriter, req *http.Request) error {
	id, err := ruleID(req)
	if err != nil {
		return err
	}
	rule, err := r.rules.Activate(req.Context(), chi.URLParam(req, "org"), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rule)
}

// POST /v1/{org}/rules/{id}/deactivate
func (r *Router) handleDeactivateRule(w http.ResponseWriter, req *http.Request) error {
	id, err := ruleID(req)
	if err != nil {
		return err
	}
	rule, err := r.rules.Deactivate(req.Context(), chi.URLParam(req, "org"), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rule)
}
