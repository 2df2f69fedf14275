package fines

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ValidateRule checks a rule definition and reports every problem at once.
// Returns nil or a *RuleValidationError.
func ValidateRule(r CalculationRule) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if r.ID == "" {
		add("id is required")
	}
	if r.ViolationType == "" {
		add("violation_type is required")
	}
	if r.ViolationCode == "" {
		add("violation_code is required")
	}
	if r.BaseAmount.IsNegative() {
		add("base_amount must not be negative")
	}
	if !r.Currency.IsValid() {
		add("currency %q is not supported", r.Currency)
	}
	if !r.CalculationType.IsValid() {
		add("calculation_type %q is not supported", r.CalculationType)
	}
	if r.PercentageRate != nil && !r.PercentageRate.IsPositive() {
		add("percentage_rate must be positive")
	}
	if r.MinimumAmount != nil && r.MinimumAmount.IsNegative() {
		add("minimum_amount must not be negative")
	}
	if r.MinimumAmount != nil && r.MaximumAmount != nil && r.MinimumAmount.GreaterThan(*r.MaximumAmount) {
		add("minimum_amount %s exceeds maximum_amount %s", r.MinimumAmount, r.MaximumAmount)
	}
	if r.ExpiryDate != nil && r.ExpiryDate.Before(r.EffectiveDate) {
		add("expiry_date is before effective_date")
	}

	m := r.MultiplierFactors
	if !m.FirstOffense.IsPositive() {
		add("multiplier first_offense must be positive")
	}
	if !m.RepeatOffense.IsPositive() {
		add("multiplier repeat_offense must be positive")
	}
	for _, k := range SeverityLevels {
		if f, ok := m.Severity[k]; !ok || !f.IsPositive() {
			add("multiplier severity.%s must be present and positive", k)
		}
	}
	for _, k := range CooperationLevels {
		if f, ok := m.Cooperation[k]; !ok || !f.IsPositive() {
			add("multiplier cooperation.%s must be present and positive", k)
		}
	}
	for _, k := range EconomicImpacts {
		if f, ok := m.EconomicImpact[k]; !ok || !f.IsPositive() {
			add("multiplier economic_impact.%s must be present and positive", k)
		}
	}

	for _, rf := range r.ReductionFactors.named() {
		if rf.value.IsNegative() || rf.value.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			add("reduction %s must be in [0,1)", rf.key)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &RuleValidationError{RuleID: r.ID, Problems: problems}
}

// IsActiveAt reports whether the rule is active and within its effective window.
func (r CalculationRule) IsActiveAt(t time.Time) bool {
	if !r.IsActive {
		return false
	}
	if t.Before(r.EffectiveDate) {
		return false
	}
	if r.ExpiryDate != nil && t.After(*r.ExpiryDate) {
		return false
	}
	return true
}

type namedReduction struct {
	key   string
	label string
	value decimal.Decimal
}

// named returns the five reductions in their fixed application order.
func (rf ReductionFactors) named() []namedReduction {
	return []namedReduction{
		{"voluntary_disclosure", "Voluntary disclosure", rf.VoluntaryDisclosure},
		{"immediate_payment", "Immediate payment", rf.ImmediatePayment},
		{"first_time_offender", "First-time offender", rf.FirstTimeOffender},
		{"cooperative_subject", "Cooperative subject", rf.CooperativeSubject},
		{"minor_technical_error", "Minor technical error", rf.MinorTechnicalError},
	}
}

// flags returns the input's reduction booleans in the same order as named().
func (in CalculationInput) flags() []bool {
	return []bool{
		in.IsVoluntaryDisclosure,
		in.IsImmediatePayment,
		in.IsFirstTimeOffender,
		in.IsCooperativeSubject,
		in.IsMinorTechnicalError,
	}
}
