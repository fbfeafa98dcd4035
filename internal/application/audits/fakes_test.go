package audits

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

type memAudits struct {
	mu      sync.Mutex
	items   map[domain.AuditID]domain.Audit
	failAll error
}

func newMemAudits() *memAudits { return &memAudits{items: map[domain.AuditID]domain.Audit{}} }

func (m *memAudits) Create(_ context.Context, a *domain.Audit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	m.items[a.ID] = *a
	return nil
}

func (m *memAudits) Get(_ context.Context, org string, id domain.AuditID) (*domain.Audit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok || a.OrganizationID != org {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (m *memAudits) List(_ context.Context, org string, _, _ int) ([]*domain.Audit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Audit
	for _, a := range m.items {
		if a.OrganizationID == org {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memAudits) transition(a *domain.Audit, from ...domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[a.ID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, s := range from {
		if cur.Status == s {
			m.items[a.ID] = *a
			return nil
		}
	}
	return &domain.TransitionError{From: cur.Status, Event: domain.EventStart}
}

func (m *memAudits) MarkProcessing(_ context.Context, a *domain.Audit) error {
	return m.transition(a, domain.StatusPending)
}

func (m *memAudits) MarkCompleted(_ context.Context, a *domain.Audit) error {
	return m.transition(a, domain.StatusProcessing)
}

func (m *memAudits) MarkFailed(_ context.Context, a *domain.Audit) error {
	return m.transition(a, domain.StatusPending, domain.StatusProcessing)
}

func (m *memAudits) ListStale(_ context.Context, before time.Time, _ int) ([]*domain.Audit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Audit
	for _, a := range m.items {
		if a.Status == domain.StatusProcessing && a.StartedAt != nil && a.StartedAt.Before(before) {
			a := a
			out = append(out, &a)
		}
	}
	return out, nil
}

func (m *memAudits) Summary(_ context.Context, org string) (domain.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s domain.Summary
	sum, n := 0, 0
	for _, a := range m.items {
		if a.OrganizationID != org {
			continue
		}
		s.Total++
		if a.Status == domain.StatusCompleted {
			s.Completed++
			if a.Score != nil {
				sum += *a.Score
				n++
			}
		}
	}
	if n > 0 {
		avg := float64(sum) / float64(n)
		s.AverageScore = &avg
	}
	return s, nil
}

func (m *memAudits) status(id domain.AuditID) domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].Status
}

type memRules struct {
	list []*rules.Rule
	err  error
}

func (m *memRules) Create(context.Context, *rules.Rule) error { return nil }
func (m *memRules) Get(context.Context, string, rules.RuleID) (*rules.Rule, error) {
	return nil, rules.ErrNotFound
}
func (m *memRules) List(context.Context, string) ([]*rules.Rule, error) { return m.list, nil }
func (m *memRules) ListActive(_ context.Context, org, auditType string) ([]*rules.Rule, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*rules.Rule
	for _, r := range m.list {
		if r.OrganizationID == org && r.IsActive && r.AppliesTo(auditType) {
			out = append(out, r)
		}
	}
	return out, nil
}
func (m *memRules) Update(context.Context, *rules.Rule) error { return nil }
func (m *memRules) Delete(context.Context, string, rules.RuleID) error { return nil }
func (m *memRules) CountActive(_ context.Context, org string) (int, error) {
	n := 0
	for _, r := range m.list {
		if r.OrganizationID == org && r.IsActive {
			n++
		}
	}
	return n, nil
}

type memFindings struct {
	mu      sync.Mutex
	byAudit map[string][]*findings.Finding
	err     error
}

func newMemFindings() *memFindings { return &memFindings{byAudit: map[string][]*findings.Finding{}} }

func (m *memFindings) SaveBatch(_ context.Context, auditID string, list []*findings.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.byAudit[auditID] = list
	return nil
}

func (m *memFindings) ListByAudit(_ context.Context, auditID string) ([]*findings.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byAudit[auditID], nil
}

func (m *memFindings) CountByOrganization(context.Context, string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.byAudit {
		n += len(l)
	}
	return n, nil
}

type memUploads struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemUploads() *memUploads { return &memUploads{objects: map[string][]byte{}} }

func (m *memUploads) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return key, nil
}

func (m *memUploads) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memUploads) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// staticParser ignores the content and returns fixed rows.
type staticParser struct {
	rows  []rules.Row
	err   error
	panic bool
}

func (p staticParser) Parse(string, io.Reader) ([]rules.Row, error) {
	if p.panic {
		panic("boom")
	}
	return p.rows, p.err
}

type countingRecorder struct {
	mu                         sync.Mutex
	queued, started, ok, fails int
}

func (c *countingRecorder) AuditQueued() {
	c.mu.Lock()
	c.queued++
	c.mu.Unlock()
}

func (c *countingRecorder) AuditStarted() {
	c.mu.Lock()
	c.started++
	c.mu.Unlock()
}

func (c *countingRecorder) AuditFinished(failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if failed {
		c.fails++
	} else {
		c.ok++
	}
}

type chanQueue struct{ jobs chan domain.ProcessJob }

func (q *chanQueue) Enqueue(_ context.Context, job domain.ProcessJob) error {
	q.jobs <- job
	return nil
}

func (q *chanQueue) Dequeue(ctx context.Context) (*domain.ProcessJob, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case j := <-q.jobs:
		return &j, nil
	}
}
