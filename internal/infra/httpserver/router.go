package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appaudits "github.com/bryanwahyu/automaton-audit/internal/application/audits"
	appinsights "github.com/bryanwahyu/automaton-audit/internal/application/insights"
	apprules "github.com/bryanwahyu/automaton-audit/internal/application/rules"
	domai "github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	"github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
	"github.com/bryanwahyu/automaton-audit/internal/middleware"
)

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Audits   *appaudits.Service
	Rules    *apprules.Service
	Insights *appinsights.Service

	APIKeys        map[string]string
	Limiter        *middleware.RateLimiter
	Health         map[string]middleware.HealthChecker
	Gauges         map[string]middleware.Gauge
	AllowedOrigins []string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type Router struct {
	audits    *appaudits.Service
	rules     *apprules.Service
	insights  *appinsights.Service
	maxUpload int64
	log       *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	r := &Router{
		audits:    d.Audits,
		rules:     d.Rules,
		insights:  d.Insights,
		maxUpload: d.MaxUploadBytes,
		log:       d.Logger,
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.maxUpload <= 0 {
		r.maxUpload = 10 << 20
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.LoggingMiddleware(r.log))
	if len(d.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	mux.Use(middleware.APIKeyAuth(d.APIKeys))
	if d.Limiter != nil {
		mux.Use(middleware.RateLimitMiddleware(d.Limiter))
	}

	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/healthz", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler(d.Gauges))

	mux.Route("/v1/{org}", func(rt chi.Router) {
		rt.Use(middleware.RequireOrganization)

		rt.Post("/audits", r.wrap(r.handleUpload))
		rt.Get("/audits", r.wrap(r.handleListAudits))
		rt.Get("/audits/{id}", r.wrap(r.handleGetAudit))
		rt.Post("/audits/{id}/process", r.wrap(r.handleProcess))
		rt.Get("/audits/{id}/findings", r.wrap(r.handleFindings))
		rt.Post("/audits/{id}/insights", r.wrap(r.handleGenerateInsight))
		rt.Get("/audits/{id}/insights", r.wrap(r.handleLatestInsight))
		rt.Get("/insights", r.wrap(r.handleListInsights))

		rt.Post("/rules", r.wrap(r.handleCreateRule))
		rt.Get("/rules", r.wrap(r.handleListRules))
		rt.Get("/rules/{id}", r.wrap(r.handleGetRule))
		rt.Patch("/rules/{id}", r.wrap(r.handleUpdateRule))
		rt.Delete("/rules/{id}", r.wrap(r.handleDeleteRule))
		rt.Post("/rules/{id}/activate", r.wrap(r.handleActivateRule))
		rt.Post("/rules/{id}/deactivate", r.wrap(r.handleDeactivateRule))

		rt.Get("/dashboard", r.wrap(r.handleDashboard))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks errors raised by request decoding in this package.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func errBadRequest(msg string) error { return &badRequest{msg: msg} }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			r.log.Error("request failed", "path", req.URL.Path, "error", err)
			writeJSON(w, status, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
	}
}

func statusOf(err error) int {
	var br *badRequest
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &br),
		errors.Is(err, rules.ErrInvalidRule),
		errors.Is(err, audits.ErrInvalidType),
		errors.Is(err, audits.ErrUnsupportedFile):
		return http.StatusBadRequest
	case errors.Is(err, audits.ErrNotFound), errors.Is(err, rules.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, audits.ErrInvalidTransition), errors.Is(err, appinsights.ErrAuditNotCompleted):
		return http.StatusConflict
	case errors.Is(err, audits.ErrFileTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domai.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, domai.ErrDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errBadRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

func pagination(req *http.Request) (int, int) {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))
	return middleware.ValidatePage(page), middleware.ValidateLimit(size)
}

func auditID(req *http.Request) (audits.AuditID, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateID("audit", id); err != nil {
		return "", errBadRequest(err.Error())
	}
	return audits.AuditID(id), nil
}

func ruleID(req *http.Request) (rules.RuleID, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateID("rule", id); err != nil {
		return "", errBadRequest(err.Error())
	}
	return rules.RuleID(id), nil
}

// POST /v1/{org}/audits (multipart: file, audit_type)
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	org := chi.URLParam(req, "org")

	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+1<<20)
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return audits.ErrFileTooLarge
		}
		return errBadRequest("invalid multipart form: " + err.Error())
	}
	defer req.MultipartForm.RemoveAll()

	file, header, err := req.FormFile("file")
	if err != nil {
		return errBadRequest("file is required")
	}
	defer file.Close()

	name := middleware.SanitizeString(header.Filename)
	if err := middleware.ValidateFileName(name); err != nil {
		return errBadRequest(err.Error())
	}

	a, err := r.audits.Upload(req.Context(), appaudits.UploadCommand{
		OrganizationID: org,
		AuditType:      req.FormValue("audit_type"),
		FileName:       name,
		ContentType:    header.Header.Get("Content-Type"),
		Size:           header.Size,
		Content:        file,
		CreatedBy:      middleware.SanitizeString(req.FormValue("created_by")),
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, a)
}

// GET /v1/{org}/audits?page=&page_size=
func (r *Router) handleListAudits(w http.ResponseWriter, req *http.Request) error {
	org := chi.URLParam(req, "org")
	page, size := pagination(req)

	list, err := r.audits.List(req.Context(), org, page, size)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*audits.Audit{}
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{org}/audits/{id}
func (r *Router) handleGetAudit(w http.ResponseWriter, req *http.Request) error {
	id, err := auditID(req)
	if err != nil {
		return err
	}
	a, err := r.audits.Get(req.Context(), chi.URLParam(req, "org"), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// POST /v1/{org}/audits/{id}/process
func (r *Router) handleProcess(w http.ResponseWriter, req *http.Request) error {
	id, err := auditID(req)
	if err != nil {
		return err
	}
	org := chi.URLParam(req, "org")

	a, err := r.audits.Enqueue(req.Context(), org, id)
	if err != nil {
		return err
	}

	// 🔙 langsung balikin respons ke client
	return writeJSON(w, http.StatusAccepted, map[string]any{
		"id":       a.ID,
		"status":   "queued",
		"message":  "audit processing started in background",
		"queuedAt": time.Now().UTC(),
	})
}

// GET /v1/{org}/audits/{id}/findings
func (r *Router) handleFindings(w http.ResponseWriter, req *http.Request) error {
	id, err := auditID(req)
	if err != nil {
		return err
	}
	list, err := r.audits.ListFindings(req.Context(), chi.URLParam(req, "org"), id)
	if err != nil {
		return err
	}
	resp := findingsResponse{AuditID: id, Counts: findings.CountBySeverity(list), Findings: list}
	if resp.Findings == nil {
		resp.Findings = []*findings.Finding{}
	}
	return writeJSON(w, http.StatusOK, resp)
}

// POST /v1/{org}/audits/{id}/insights
func (r *Router) handleGenerateInsight(w http.ResponseWriter, req *http.Request) error {
	id, err := auditID(req)
	if err != nil {
		return err
	}
	in, err := r.insights.Generate(req.Context(), chi.URLParam(req, "org"), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, in)
}

// GET /v1/{org}/audits/{id}/insights
func (r *Router) handleLatestInsight(w http.ResponseWriter, req *http.Request) error {
	id, err := auditID(req)
	if err != nil {
		return err
	}
	in, err := r.insights.Latest(req.Context(), chi.URLParam(req, "org"), id)
	if err != nil {
		return err
	}
	if in == nil {
		return writeJSON(w, http.StatusNotFound, map[string]string{"error": "no insight for this audit yet"})
	}
	return writeJSON(w, http.StatusOK, in)
}

// GET /v1/{org}/insights?page=&page_size=
func (r *Router) handleListInsights(w http.ResponseWriter, req *http.Request) error {
	page, size := pagination(req)
	list, err := r.insights.List(req.Context(), chi.URLParam(req, "org"), page, size)
	if err != nil {
		return err
	}
	if list == nil {
		return writeJSON(w, http.StatusOK, []any{})
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{org}/dashboard
func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) error {
	m, err := r.audits.Dashboard(req.Context(), chi.URLParam(req, "org"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, m)
}

type findingsResponse struct {
	AuditID  audits.AuditID          `json:"audit_id"`
	Counts   findings.SeverityCounts `json:"counts"`
	Findings []*findings.Finding     `json:"findings"`
}
