package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Row is one record of uploaded data: column name to scalar value.
type Row map[string]any

// Lookup returns the value of a column. Absent and nil values both report false.
func (r Row) Lookup(field string) (any, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Number parses the column as a float64.
func (r Row) Number(field string) (float64, bool) {
	v, ok := r.Lookup(field)
	if !ok {
		return 0, false
	}
	f, err := toNumber(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Clone returns a shallow copy, enough for scalar values.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func toNumber(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		return parseNumber(t)
	case json.Number:
		return parseNumber(t.String())
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case uint:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// toText is the string form used by == and !=.
func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case bool:
		// capitalised, so stored rules written as "True"/"False" keep matching
		if t {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(t)
	}
}
