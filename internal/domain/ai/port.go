package ai

import (
	"context"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
)

// Client writes a narrative for a completed audit. Implementations return
// a JSON document as a string.
type Client interface {
	Summarize(ctx context.Context, a *audits.Audit, list []*findings.Finding) (string, error)
}
