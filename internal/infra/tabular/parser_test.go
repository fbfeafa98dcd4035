package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

func TestParseCSV(t *testing.T) {
	in := "\ufeffresource, cost ,owner,cost\n" +
		"vm-1,1500,,9\n" +
		"vm-2,  20 ,team-a\n" +
		",,,\n" +
		"vm-3,abc,team-b,1,extra\n"

	rows, err := Parser{}.Parse("costs.CSV", strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, rules.Row{"resource": "vm-1", "cost": "1500", "cost.1": "9"}, rows[0])
	assert.Equal(t, rules.Row{"resource": "vm-2", "cost": "20", "owner": "team-a"}, rows[1])
	assert.Equal(t, "abc", rows[2]["cost"])

	_, present := rows[0].Lookup("owner")
	assert.False(t, present)
}

func TestParseCSV_Empty(t *testing.T) {
	rows, err := Parser{}.Parse("empty.csv", strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParse_MaxRows(t *testing.T) {
	_, err := Parser{MaxRows: 1}.Parse("a.csv", strings.NewReader("x\n1\n2\n"))
	assert.Error(t, err)
}

func TestParse_Unsupported(t *testing.T) {
	_, err := Parser{}.Parse("report.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, audits.ErrUnsupportedFile)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"room", "occupancy", "revenue"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"101", 0.45, 120}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"102", nil, 300}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, err := Parser{}.Parse("rooms.xlsx", &buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, rules.Row{"room": "101", "occupancy": "0.45", "revenue": "120"}, rows[0])
	assert.Equal(t, rules.Row{"room": "102", "revenue": "300"}, rows[1])

	r := &rules.Rule{IsActive: true, Condition: rules.Condition{Field: "occupancy", Operator: rules.OpLess, Threshold: rules.NumberThreshold(0.5)}}
	assert.True(t, r.Evaluate(rows[0]))
	assert.False(t, r.Evaluate(rows[1]))
}

func TestRequireColumns(t *testing.T) {
	rows := []rules.Row{{"cost": "1"}, {"owner": "a"}}
	assert.NoError(t, RequireColumns(rows, "cost", "owner"))

	err := RequireColumns(rows, "cost", "region", "tag")
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "region, tag")
}
