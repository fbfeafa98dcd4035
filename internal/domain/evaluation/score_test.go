package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

func withSeverities(sevs ...rules.Severity) []*findings.Finding {
	out := make([]*findings.Finding, 0, len(sevs))
	for _, s := range sevs {
		out = append(out, &findings.Finding{Severity: s})
	}
	return out
}

func TestWeights_MonotonicInSeverity(t *testing.T) {
	order := []rules.Severity{rules.SeverityLow, rules.SeverityMedium, rules.SeverityHigh, rules.SeverityCritical}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, DefaultWeights.Of(order[i]), DefaultWeights.Of(order[i-1]))
	}
	assert.Equal(t, 1, DefaultWeights.Of("unknown"))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		sevs []rules.Severity
		want int
	}{
		{"no findings", nil, 100},
		{"one low", []rules.Severity{rules.SeverityLow}, 99},
		{"one medium", []rules.Severity{rules.SeverityMedium}, 97},
		{"one high", []rules.Severity{rules.SeverityHigh}, 93},
		{"critical plus low", []rules.Severity{rules.SeverityCritical, rules.SeverityLow}, 84},
		{"exactly max penalty", []rules.Severity{
			rules.SeverityCritical, rules.SeverityCritical, rules.SeverityCritical,
			rules.SeverityCritical, rules.SeverityCritical, rules.SeverityCritical,
			rules.SeverityHigh, rules.SeverityLow, rules.SeverityLow, rules.SeverityLow,
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultWeights.Score(withSeverities(tt.sevs...)))
		})
	}
}

func TestScore_NonIncreasingAndBounded(t *testing.T) {
	cycle := []rules.Severity{rules.SeverityLow, rules.SeverityCritical, rules.SeverityMedium, rules.SeverityHigh, "other"}
	var list []*findings.Finding
	prev := DefaultWeights.Score(list)
	for i := 0; i < 40; i++ {
		list = append(list, &findings.Finding{Severity: cycle[i%len(cycle)]})
		got := DefaultWeights.Score(list)
		assert.LessOrEqual(t, got, prev)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, 100)
		prev = got
	}
	assert.Equal(t, 0, prev)
}

func TestTotalImpact(t *testing.T) {
	v1, v2 := 100.25, -20.0
	list := []*findings.Finding{{CostImpact: &v1}, {}, {CostImpact: &v2}}
	assert.Equal(t, 80.25, TotalImpact(list))
	assert.Equal(t, 0.0, TotalImpact(nil))
}

func TestRecommendation(t *testing.T) {
	assert.Equal(t, "Immediate action required to address this issue.", Recommendation(rules.SeverityCritical))
	assert.Equal(t, "Review and plan remediation.", Recommendation(rules.SeverityMedium))
	assert.Equal(t, "Monitor and address when convenient.", Recommendation(rules.SeverityLow))
	assert.Equal(t, "Monitor and address when convenient.", Recommendation("other"))
}
