package engine

import (
	"fmt"

	"forgeline/anvil/pkg/rules"
)

// RuleError wraps a failure raised while evaluating or applying one rule.
// It carries enough context to identify the rule in a batch without
// re-deriving it from logs.
type RuleError struct {
	// Rule is the failing rule's identifier.
	Rule string

	// Phase is the inspection phase the batch ran in.
	Phase rules.Phase

	// Err is the underlying failure.
	Err error
}

// Error returns the error message.
func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s (phase %s): %v", e.Rule, e.Phase, e.Err)
}

// Unwrap returns the underlying failure.
func (e *RuleError) Unwrap() error {
	return e.Err
}
