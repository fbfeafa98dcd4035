// Package tabular turns uploaded spreadsheets into rows keyed by header.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

// ErrMissingColumns is returned by RequireColumns.
var ErrMissingColumns = errors.New("missing columns")

// Parser implements audits.RowParser for .csv and .xlsx files.
type Parser struct {
	// MaxRows stops parsing with an error once exceeded; 0 means no limit.
	MaxRows int
}

// Parse dispatches on the file extension.
func (p Parser) Parse(fileName string, r io.Reader) ([]rules.Row, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return p.parseCSV(r)
	case ".xlsx":
		return p.parseXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", audits.ErrUnsupportedFile, filepath.Ext(fileName))
	}
}

func (p Parser) parseCSV(r io.Reader) ([]rules.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	keys := headerKeys(header)

	var out []rules.Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if row := toRow(keys, rec); row != nil {
			if p.MaxRows > 0 && len(out) >= p.MaxRows {
				return nil, fmt.Errorf("file has more than %d rows", p.MaxRows)
			}
			out = append(out, row)
		}
	}
	return out, nil
}

func (p Parser) parseXLSX(r io.Reader) ([]rules.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	it, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	defer it.Close()

	var (
		keys []string
		out  []rules.Row
	)
	for it.Next() {
		cols, err := it.Columns()
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
		}
		if keys == nil {
			if isBlank(cols) {
				continue
			}
			keys = headerKeys(cols)
			continue
		}
		if row := toRow(keys, cols); row != nil {
			if p.MaxRows > 0 && len(out) >= p.MaxRows {
				return nil, fmt.Errorf("file has more than %d rows", p.MaxRows)
			}
			out = append(out, row)
		}
	}
	return out, it.Error()
}

// headerKeys trims names and suffixes duplicates: cost, cost.1, cost.2.
// Blank header cells map to "" and their column is skipped.
func headerKeys(header []string) []string {
	seen := make(map[string]int, len(header))
	keys := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			keys[i] = h + "." + strconv.Itoa(n+1)
			continue
		}
		seen[h] = 0
		keys[i] = h
	}
	return keys
}

// toRow returns nil for rows with no values.
func toRow(keys, cells []string) rules.Row {
	row := rules.Row{}
	for i, v := range cells {
		if i >= len(keys) || keys[i] == "" {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		row[keys[i]] = v
	}
	if len(row) == 0 {
		return nil
	}
	return row
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// RequireColumns reports columns that appear in no row at all.
func RequireColumns(rows []rules.Row, cols ...string) error {
	var missing []string
	for _, c := range cols {
		found := false
		for _, r := range rows {
			if _, ok := r.Lookup(c); ok {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}
