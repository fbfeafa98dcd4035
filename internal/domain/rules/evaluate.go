package rules

// Evaluate reports whether the rule fires for row. It never panics and never
// returns an error: inactive rules, incomplete conditions, missing columns and
// unparsable numbers all resolve to false.
func (r *Rule) Evaluate(row Row) bool {
	if r == nil || !r.IsActive {
		return false
	}
	return r.Condition.Match(row)
}

// Match applies the condition to row without looking at rule state.
func (c Condition) Match(row Row) bool {
	if !c.Complete() {
		return false
	}
	v, ok := row.Lookup(c.Field)
	if !ok {
		return false
	}

	switch c.Operator {
	case OpGreater, OpLess, OpGreaterOrEqual, OpLessOrEqual:
		left, err := toNumber(v)
		if err != nil {
			return false
		}
		right, err := parseNumber(c.Threshold.Text)
		if err != nil {
			return false
		}
		return compare(c.Operator, left, right)
	case OpEqual:
		return toText(v) == c.Threshold.Text
	case OpNotEqual:
		return toText(v) != c.Threshold.Text
	default:
		return false
	}
}

func compare(op Operator, left, right float64) bool {
	switch op {
	case OpGreater:
		return left > right
	case OpLess:
		return left < right
	case OpGreaterOrEqual:
		return left >= right
	case OpLessOrEqual:
		return left <= right
	}
	return false
}
