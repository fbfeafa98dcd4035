package rules

import (
	"fmt"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/rules"
)

// invalid marks err as a validation failure of the rule input.
func invalid(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrInvalidRule, err)
}
