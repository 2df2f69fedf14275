package fines_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customs-les/case-engine/fines"
)

func TestValidateRule_AcceptsCompleteRule(t *testing.T) {
	assert.NoError(t, fines.ValidateRule(neutralRule()))
}

func TestValidateRule_ReportsEveryProblem(t *testing.T) {
	// GIVEN: A rule breaking several invariants at once
	// WHEN: ValidateRule
	// THEN: One RuleValidationError lists all of them

	rule := neutralRule()
	rule.MinimumAmount = dp("9000")
	rule.MaximumAmount = dp("1000")
	rule.ReductionFactors.ImmediatePayment = d("1.0")
	rule.Currency = "GBP"
	delete(rule.MultiplierFactors.Cooperation, fines.CooperationNone)

	err := fines.ValidateRule(rule)
	require.Error(t, err)
	assert.ErrorIs(t, err, fines.ErrInvalidRule)

	var vErr *fines.RuleValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, rule.ID, vErr.RuleID)
	assert.Len(t, vErr.Problems, 4)
	assert.Contains(t, err.Error(), "minimum_amount 9000 exceeds maximum_amount 1000")
	assert.Contains(t, err.Error(), "immediate_payment")
	assert.Contains(t, err.Error(), "cooperation.none")
}

func TestValidateRule_RejectsNonPositiveMultipliers(t *testing.T) {
	rule := neutralRule()
	rule.MultiplierFactors.RepeatOffense = decimal.Zero
	rule.MultiplierFactors.Severity[fines.SeverityMinor] = d("-1")

	var vErr *fines.RuleValidationError
	require.ErrorAs(t, fines.ValidateRule(rule), &vErr)
	assert.Len(t, vErr.Problems, 2)
}

func TestValidateRule_RequiresIdentityAndDates(t *testing.T) {
	rule := neutralRule()
	rule.ID = ""
	rule.ViolationType = ""
	expiry := rule.EffectiveDate.Add(-24 * time.Hour)
	rule.ExpiryDate = &expiry

	var vErr *fines.RuleValidationError
	require.ErrorAs(t, fines.ValidateRule(rule), &vErr)
	assert.Len(t, vErr.Problems, 3)
}

func TestRule_IsActiveAt(t *testing.T) {
	rule := neutralRule()
	expiry := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)
	rule.ExpiryDate = &expiry

	assert.False(t, rule.IsActiveAt(time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)), "before effective date")
	assert.True(t, rule.IsActiveAt(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)), "inside window")
	assert.False(t, rule.IsActiveAt(time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)), "after expiry")

	rule.IsActive = false
	assert.False(t, rule.IsActiveAt(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)), "deactivated")
}
