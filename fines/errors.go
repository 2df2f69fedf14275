/*
errors.go - Error types for the fine calculation engine

ERROR CATEGORIES:
  1. Lookup errors - rule or calculation missing from a store
  2. Input errors - CalculationInput outside the rule's factor tables
  3. Rule errors - a rule definition that breaks an invariant
  4. Lifecycle errors - one-way approval violated

None of these are retryable: the caller must fix the request.
*/
package fines

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRuleNotFound is returned when a rule ID cannot be resolved.
	ErrRuleNotFound = errors.New("calculation rule not found")

	// ErrInvalidInput is returned when an input enum is not a factor-table key.
	ErrInvalidInput = errors.New("invalid calculation input")

	// ErrInvalidRule is returned when a rule definition breaks an invariant.
	ErrInvalidRule = errors.New("invalid calculation rule")

	// ErrRuleExists is returned when creating a rule whose ID is taken.
	ErrRuleExists = errors.New("calculation rule already exists")

	// ErrCalculationNotFound is returned when a history entry ID is unknown.
	ErrCalculationNotFound = errors.New("calculation not found")

	// ErrCalculationExists is returned when saving a history entry whose ID is taken.
	ErrCalculationExists = errors.New("calculation already exists")

	// ErrAlreadyApproved is returned when approving an approved calculation.
	ErrAlreadyApproved = errors.New("calculation already approved")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InputError names the offending input field.
type InputError struct {
	Field string
	Value string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid calculation input: %s %q is not a key of the rule's factor table", e.Field, e.Value)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// RuleValidationError lists every problem found in a rule.
type RuleValidationError struct {
	RuleID   RuleID
	Problems []string
}

func (e *RuleValidationError) Error() string {
	return fmt.Sprintf("invalid calculation rule %s: %s", e.RuleID, strings.Join(e.Problems, "; "))
}

func (e *RuleValidationError) Unwrap() error { return ErrInvalidRule }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing rule or calculation.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound) || errors.Is(err, ErrCalculationNotFound)
}

// IsClientError returns true if the error is due to a bad request.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrRuleExists) ||
		errors.Is(err, ErrCalculationExists) ||
		errors.Is(err, ErrAlreadyApproved)
}
