package rules

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Operator is one of the six single-field comparisons a rule may use.
type Operator string

const (
	OpGreater        Operator = ">"
	OpLess           Operator = "<"
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
)

// IsValid reports whether op is one of the supported operators.
func (op Operator) IsValid() bool {
	switch op {
	case OpGreater, OpLess, OpGreaterOrEqual, OpLessOrEqual, OpEqual, OpNotEqual:
		return true
	default:
		return false
	}
}

// IsOrdering is true for >, <, >= and <=, which compare numerically.
func (op Operator) IsOrdering() bool {
	switch op {
	case OpGreater, OpLess, OpGreaterOrEqual, OpLessOrEqual:
		return true
	default:
		return false
	}
}

// Threshold keeps the literal text of the configured comparison value and
// whether it was given as a number or as a string.
type Threshold struct {
	Text    string
	Numeric bool
}

// IsSet reports whether a usable threshold was supplied.
func (t Threshold) IsSet() bool {
	return strings.TrimSpace(t.Text) != ""
}

// NumberThreshold builds a numeric threshold.
func NumberThreshold(f float64) Threshold {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Threshold{Text: strconv.FormatFloat(f, 'f', -1, 64)}
	}
	return Threshold{Text: strconv.FormatFloat(f, 'f', -1, 64), Numeric: true}
}

// TextThreshold builds a string threshold.
func TextThreshold(s string) Threshold {
	return Threshold{Text: s}
}

// Condition is the predicate of a rule: row[Field] <Operator> Threshold.
//
// Conditions decoded from arbitrary input never fail to decode. Anything that
// does not fit the {field, operator, threshold} shape leaves the offending part
// empty, and an incomplete condition simply never matches.
type Condition struct {
	Field     string
	Operator  Operator
	Threshold Threshold
}

// ParseCondition converts a loosely typed mapping (decoded JSON or YAML) into
// a Condition. It never returns an error.
func ParseCondition(raw map[string]any) Condition {
	var c Condition
	if raw == nil {
		return c
	}
	if f, ok := raw["field"].(string); ok {
		c.Field = strings.TrimSpace(f)
	}
	if op, ok := raw["operator"].(string); ok {
		c.Operator = Operator(strings.TrimSpace(op))
	}
	c.Threshold = parseThreshold(raw["threshold"])
	return c
}

func parseThreshold(v any) Threshold {
	switch t := v.(type) {
	case string:
		return TextThreshold(t)
	case json.Number:
		return Threshold{Text: t.String(), Numeric: true}
	case float64:
		return NumberThreshold(t)
	case float32:
		return NumberThreshold(float64(t))
	case int:
		return Threshold{Text: strconv.Itoa(t), Numeric: true}
	case int64:
		return Threshold{Text: strconv.FormatInt(t, 10), Numeric: true}
	case int32:
		return Threshold{Text: strconv.FormatInt(int64(t), 10), Numeric: true}
	case uint64:
		return Threshold{Text: strconv.FormatUint(t, 10), Numeric: true}
	case uint:
		return Threshold{Text: strconv.FormatUint(uint64(t), 10), Numeric: true}
	default:
		return Threshold{}
	}
}

// Complete reports whether field, operator and threshold are all present.
// The operator is not checked against the supported set here.
func (c Condition) Complete() bool {
	return c.Field != "" && c.Operator != "" && c.Threshold.IsSet()
}

// Validate explains why a condition cannot match anything. Rule creation uses
// it to reject bad input; evaluation never calls it.
func (c Condition) Validate() error {
	if c.Field == "" {
		return invalidf("conditions.field is required")
	}
	if c.Operator == "" {
		return invalidf("conditions.operator is required")
	}
	if !c.Operator.IsValid() {
		return invalidf("conditions.operator %q is not supported (allowed: >, <, >=, <=, ==, !=)", c.Operator)
	}
	if !c.Threshold.IsSet() {
		return invalidf("conditions.threshold is required")
	}
	if c.Operator.IsOrdering() {
		if _, err := parseNumber(c.Threshold.Text); err != nil {
			return invalidf("conditions.threshold %q must be numeric for operator %s", c.Threshold.Text, c.Operator)
		}
	}
	return nil
}

// Map returns the condition as a plain mapping, the shape stored and served.
func (c Condition) Map() map[string]any {
	m := map[string]any{
		"field":    c.Field,
		"operator": string(c.Operator),
	}
	if c.Threshold.Numeric {
		m["threshold"] = json.Number(c.Threshold.Text)
	} else {
		m["threshold"] = c.Threshold.Text
	}
	return m
}

func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

// UnmarshalJSON accepts any JSON value. Non-object input yields an empty
// condition rather than an error.
func (c *Condition) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		*c = Condition{}
		return nil
	}
	m, _ := raw.(map[string]any)
	*c = ParseCondition(m)
	return nil
}

// UnmarshalYAML lets rules files written in YAML use the same shape. The
// threshold keeps its literal text, so `10.0` stays "10.0" as with JSON.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	*c = Condition{}
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "field":
			if isYAMLString(val) {
				c.Field = strings.TrimSpace(val.Value)
			}
		case "operator":
			if isYAMLString(val) {
				c.Operator = Operator(strings.TrimSpace(val.Value))
			}
		case "threshold":
			c.Threshold = yamlThreshold(val)
		}
	}
	return nil
}

func isYAMLString(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str"
}

func yamlThreshold(n *yaml.Node) Threshold {
	if n.Kind != yaml.ScalarNode {
		return Threshold{}
	}
	switch n.ShortTag() {
	case "!!str":
		return TextThreshold(n.Value)
	case "!!int", "!!float":
		if f, err := strconv.ParseFloat(n.Value, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return Threshold{Text: n.Value, Numeric: true}
		}
		// 1_000, 0x1F, .inf: let yaml resolve the value
		var v any
		if err := n.Decode(&v); err != nil {
			return Threshold{}
		}
		return parseThreshold(v)
	default:
		return Threshold{}
	}
}
