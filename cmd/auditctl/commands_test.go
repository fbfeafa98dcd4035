package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesYAML = `
rules:
  - name: Expensive instance
    audit_type: cloud
    severity: critical
    conditions:
      field: cost
      operator: ">="
      threshold: 1000
  - name: Idle
    audit_type: cloud
    severity: low
    conditions: {field: cpu, operator: "<", threshold: 5}
  - name: Wrong type
    audit_type: business
    conditions: {field: cost, operator: ">", threshold: 0}
`

func writeFiles(t *testing.T) (rulesPath, dataPath string) {
	t.Helper()
	dir := t.TempDir()
	rulesPath = filepath.Join(dir, "rules.yaml")
	dataPath = filepath.Join(dir, "costs.csv")
	require.NoError(t, os.WriteFile(rulesPath, []byte(rulesYAML), 0o600))
	require.NoError(t, os.WriteFile(dataPath, []byte("service,cost,cpu\nec2,1200,2\ns3,30,50\n"), 0o600))
	return rulesPath, dataPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestEvaluate_JSON(t *testing.T) {
	rulesPath, dataPath := writeFiles(t)

	out, err := run(t, "evaluate", "--rules", rulesPath, "--type", "cloud", "--json", dataPath)
	require.NoError(t, err)

	var res struct {
		Score       int     `json:"optimization_score"`
		TotalImpact float64 `json:"total_cost_or_revenue"`
		Findings    []any   `json:"findings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	// critical (15) + low (1)
	assert.Equal(t, 84, res.Score)
	assert.Len(t, res.Findings, 2)
	assert.Equal(t, 2400.0, res.TotalImpact)
}

func TestEvaluate_Table(t *testing.T) {
	rulesPath, dataPath := writeFiles(t)

	out, err := run(t, "evaluate", "--rules", rulesPath, "--type", "cloud", dataPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Findings: 2")
	assert.Contains(t, out, "Score: 84/100")
	assert.Contains(t, out, "critical")
}

func TestEvaluate_InvalidType(t *testing.T) {
	rulesPath, dataPath := writeFiles(t)
	_, err := run(t, "evaluate", "--rules", rulesPath, "--type", "retail", dataPath)
	assert.Error(t, err)
}

func TestLoadRules_RejectsBadOperator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - name: x\n    audit_type: cloud\n    conditions: {field: cost, operator: \"=~\", threshold: 1}\n"), 0o600))
	_, err := loadRules(path)
	assert.Error(t, err)
}

func TestEvaluate_StrictMissingColumn(t *testing.T) {
	rulesPath, _ := writeFiles(t)
	dataPath := filepath.Join(t.TempDir(), "nocpu.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte("service,cost\nec2,1200\n"), 0o600))

	_, err := run(t, "evaluate", "--rules", rulesPath, "--type", "cloud", "--strict", dataPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cpu")

	out, err := run(t, "evaluate", "--rules", rulesPath, "--type", "cloud", dataPath)
	require.NoError(t, err)
	assert.Contains(t, out, "warning:")
	assert.Contains(t, out, "Findings: 1")
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "auditctl version dev")
}
