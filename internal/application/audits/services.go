package audits

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/automaton-audit/internal/application"
	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	"github.com/bryanwahyu/automaton-audit/internal/domain/evaluation"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

// Recorder receives audit lifecycle events, e.g. for metrics.
type Recorder interface {
	AuditQueued()
	AuditStarted()
	AuditFinished(failed bool)
}

type nopRecorder struct{}

func (nopRecorder) AuditQueued()       {}
func (nopRecorder) AuditStarted()      {}
func (nopRecorder) AuditFinished(bool) {}

// UploadLimits bounds what Upload accepts.
type UploadLimits struct {
	MaxBytes          int64
	AllowedExtensions []string
}

// Service implements use-cases untuk Audit
// Service is safe for concurrent use; one audit is never processed twice
// because Process goes through the pending -> processing gate.
type Service struct {
	Audits   domain.Repository
	Rules    rules.Repository
	Findings findings.Repository
	Uploads  domain.UploadStore
	Parser   domain.RowParser
	Engine   *evaluation.Engine
	// Queue is optional; without it Enqueue processes in a goroutine.
	Queue      domain.Queue
	Clock      application.Clock
	Log        *slog.Logger
	Recorder   Recorder
	Limits     UploadLimits
	StaleAfter time.Duration
}

//
// ==== USE CASES ====
//

// UploadCommand untuk membuat audit dari file upload
type UploadCommand struct {
	OrganizationID string
	AuditType      string
	FileName       string
	ContentType    string
	Size           int64
	Content        io.Reader
	CreatedBy      string
}

// Upload stores the file and creates a pending audit.
func (s *Service) Upload(ctx context.Context, cmd UploadCommand) (*domain.Audit, error) {
	t, err := domain.ParseType(cmd.AuditType)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(strings.TrimSpace(cmd.FileName))
	if err := s.checkExtension(name); err != nil {
		return nil, err
	}
	if max := s.Limits.MaxBytes; max > 0 && cmd.Size > max {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", domain.ErrFileTooLarge, cmd.Size, max)
	}

	id := domain.AuditID(uuid.New().String())
	key := fmt.Sprintf("%s/%s/%s", cmd.OrganizationID, id, name)

	content := cmd.Content
	var guard *sizeGuard
	if max := s.Limits.MaxBytes; max > 0 {
		guard = &sizeGuard{r: io.LimitReader(content, max+1), max: max}
		content = guard
	}
	_, err = s.Uploads.Put(ctx, key, content, cmd.Size, cmd.ContentType)
	if err == nil && guard != nil {
		// a store trusting cmd.Size may stop early; anything left means the
		// declared size was wrong and the stored object is truncated
		if n, _ := io.CopyN(io.Discard, guard, 1); n > 0 && !guard.over {
			err = fmt.Errorf("content longer than declared size %d", cmd.Size)
		}
	}
	if guard != nil && guard.over {
		s.removeUpload(ctx, key)
		return nil, fmt.Errorf("%w: more than %d bytes", domain.ErrFileTooLarge, guard.max)
	}
	if err != nil {
		s.removeUpload(ctx, key)
		return nil, fmt.Errorf("store upload: %w", err)
	}

	a := domain.New(id, cmd.OrganizationID, t, name, key, cmd.CreatedBy, s.Clock.Now())
	if err := s.Audits.Create(ctx, a); err != nil {
		s.removeUpload(ctx, key)
		return nil, fmt.Errorf("create audit: %w", err)
	}

	s.logger().Info("audit created", "audit_id", a.ID, "organization_id", a.OrganizationID, "audit_type", a.Type, "file", a.FileName)
	return a, nil
}

func (s *Service) removeUpload(ctx context.Context, key string) {
	if err := s.Uploads.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger().Warn("failed to remove orphaned upload", "key", key, "error", err)
	}
}

// sizeGuard fails the read once more than max bytes came through.
type sizeGuard struct {
	r    io.Reader
	n    int64
	max  int64
	over bool
}

func (g *sizeGuard) Read(p []byte) (int, error) {
	n, err := g.r.Read(p)
	g.n += int64(n)
	if g.n > g.max {
		g.over = true
		return n, domain.ErrFileTooLarge
	}
	return n, err
}

func (s *Service) checkExtension(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	allowed := s.Limits.AllowedExtensions
	if len(allowed) == 0 {
		allowed = []string{".csv", ".xlsx"}
	}
	for _, a := range allowed {
		if strings.EqualFold(a, ext) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (allowed: %s)", domain.ErrUnsupportedFile, ext, strings.Join(allowed, ", "))
}

// Enqueue schedules processing of a pending audit.
func (s *Service) Enqueue(ctx context.Context, org string, id domain.AuditID) (*domain.Audit, error) {
	a, err := s.Audits.Get(ctx, org, id)
	if err != nil {
		return nil, err
	}
	if !a.IsEditable() {
		return nil, &domain.TransitionError{From: a.Status, Event: domain.EventStart}
	}

	s.recorder().AuditQueued()
	if s.Queue != nil {
		job := domain.ProcessJob{AuditID: a.ID, OrganizationID: org, EnqueuedAt: s.Clock.Now().UnixMilli()}
		if err := s.Queue.Enqueue(ctx, job); err != nil {
			return nil, fmt.Errorf("enqueue audit: %w", err)
		}
		return a, nil
	}

	// 🚀 Jalankan di background, biar jalan sampai selesai
	go func() {
		if _, err := s.Process(context.Background(), org, id); err != nil {
			s.logger().Error("background processing error", "audit_id", id, "organization_id", org, "error", err)
		}
	}()
	return a, nil
}

// Process runs the evaluation for one audit and records the outcome.
//
// Errors returned are gate errors (not found, not pending, lost race).
// Once the audit is processing, any failure ends in the failed state and the
// audit is returned with a nil error.
func (s *Service) Process(ctx context.Context, org string, id domain.AuditID) (*domain.Audit, error) {
	a, err := s.Audits.Get(ctx, org, id)
	if err != nil {
		return nil, err
	}
	if err := a.Start(s.Clock.Now()); err != nil {
		return nil, err
	}
	if err := s.Audits.MarkProcessing(ctx, a); err != nil {
		return nil, err
	}
	s.recorder().AuditStarted()
	log := s.logger().With("audit_id", a.ID, "organization_id", a.OrganizationID)
	log.Info("audit processing started", "audit_type", a.Type)

	res, err := s.evaluate(ctx, a)
	if err == nil {
		err = a.Complete(res.Score, res.TotalImpact, len(res.Findings), s.Clock.Now())
	}
	if err == nil {
		err = s.Audits.MarkCompleted(ctx, a)
	}
	if err != nil {
		s.fail(ctx, a, err)
		return a, nil
	}

	s.recorder().AuditFinished(false)
	log.Info("audit completed", "findings", len(res.Findings), "score", res.Score, "total_impact", res.TotalImpact)
	return a, nil
}

func (s *Service) evaluate(ctx context.Context, a *domain.Audit) (res evaluation.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluation panic: %v", r)
		}
	}()

	active, err := s.Rules.ListActive(ctx, a.OrganizationID, string(a.Type))
	if err != nil {
		return res, fmt.Errorf("load rules: %w", err)
	}

	rc, err := s.Uploads.Open(ctx, a.FileKey)
	if err != nil {
		return res, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	rows, err := s.Parser.Parse(a.FileName, rc)
	if err != nil {
		return res, fmt.Errorf("parse upload: %w", err)
	}

	res = s.engine().Process(a, active, rows)
	if err := s.Findings.SaveBatch(ctx, string(a.ID), res.Findings); err != nil {
		return res, fmt.Errorf("save findings: %w", err)
	}
	return res, nil
}

func (s *Service) fail(ctx context.Context, a *domain.Audit, cause error) {
	log := s.logger().With("audit_id", a.ID, "organization_id", a.OrganizationID)
	s.recorder().AuditFinished(true)

	// Complete may have run before the repository rejected it.
	if a.Status == domain.StatusCompleted {
		a.Status = domain.StatusProcessing
	}
	if err := a.Fail(cause.Error(), s.Clock.Now()); err != nil {
		log.Error("cannot mark audit failed", "cause", cause, "error", err)
		return
	}
	if err := s.Audits.MarkFailed(context.WithoutCancel(ctx), a); err != nil {
		log.Error("persist failed status", "cause", cause, "error", err)
		return
	}
	log.Warn("audit failed", "error", cause)
}

// ReapStale fails audits stuck in processing for longer than StaleAfter.
func (s *Service) ReapStale(ctx context.Context) (int, error) {
	if s.StaleAfter <= 0 {
		return 0, nil
	}
	cutoff := s.Clock.Now().Add(-s.StaleAfter)
	stale, err := s.Audits.ListStale(ctx, cutoff, 100)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range stale {
		if err := a.Fail(fmt.Sprintf("processing timed out after %s", s.StaleAfter), s.Clock.Now()); err != nil {
			continue
		}
		if err := s.Audits.MarkFailed(ctx, a); err != nil {
			s.logger().Error("reap stale audit", "audit_id", a.ID, "error", err)
			continue
		}
		s.recorder().AuditFinished(true)
		n++
	}
	return n, nil
}

// Get ambil 1 audit by id
func (s *Service) Get(ctx context.Context, org string, id domain.AuditID) (*domain.Audit, error) {
	return s.Audits.Get(ctx, org, id)
}

// List audits of an organization, newest first
func (s *Service) List(ctx context.Context, org string, page, pageSize int) ([]*domain.Audit, error) {
	return s.Audits.List(ctx, org, page, pageSize)
}

// ListFindings returns the findings of one audit, after checking the audit belongs to org.
func (s *Service) ListFindings(ctx context.Context, org string, id domain.AuditID) ([]*findings.Finding, error) {
	a, err := s.Audits.Get(ctx, org, id)
	if err != nil {
		return nil, err
	}
	return s.Findings.ListByAudit(ctx, string(a.ID))
}

// DashboardMetrics rekap per organization
type DashboardMetrics struct {
	TotalAudits     int      `json:"total_audits"`
	CompletedAudits int      `json:"completed_audits"`
	TotalFindings   int      `json:"total_findings"`
	AvgScore        *float64 `json:"avg_optimization_score"`
	ActiveRules     int      `json:"active_rules"`
}

// Dashboard aggregates audits, findings and rules of one organization.
func (s *Service) Dashboard(ctx context.Context, org string) (DashboardMetrics, error) {
	sum, err := s.Audits.Summary(ctx, org)
	if err != nil {
		return DashboardMetrics{}, fmt.Errorf("audit summary: %w", err)
	}
	total, err := s.Findings.CountByOrganization(ctx, org)
	if err != nil {
		return DashboardMetrics{}, fmt.Errorf("count findings: %w", err)
	}
	active, err := s.Rules.CountActive(ctx, org)
	if err != nil {
		return DashboardMetrics{}, fmt.Errorf("count rules: %w", err)
	}

	m := DashboardMetrics{
		TotalAudits:     sum.Total,
		CompletedAudits: sum.Completed,
		TotalFindings:   total,
		ActiveRules:     active,
	}
	if sum.AverageScore != nil {
		avg := math.Round(*sum.AverageScore*10) / 10
		m.AvgScore = &avg
	}
	return m, nil
}

// IsGateError reports whether err came from the pending -> processing gate
// rather than from the repository.
func IsGateError(err error) bool {
	return errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound)
}

func (s *Service) engine() *evaluation.Engine {
	if s.Engine == nil {
		return &evaluation.Engine{}
	}
	return s.Engine
}

func (s *Service) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

func (s *Service) recorder() Recorder {
	if s.Recorder == nil {
		return nopRecorder{}
	}
	return s.Recorder
}
