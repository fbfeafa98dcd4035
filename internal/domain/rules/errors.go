package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by repositories when no rule matches.
	ErrNotFound = errors.New("rule not found")

	// ErrInvalidRule marks input rejected by rule validation.
	ErrInvalidRule = errors.New("invalid rule")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRule, fmt.Sprintf(format, args...))
}
