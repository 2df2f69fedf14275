package fines_test

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customs-les/case-engine/fines"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

// neutralRule has every multiplier at 1.0 and every reduction at 0.2.
func neutralRule() fines.CalculationRule {
	return fines.CalculationRule{
		ID:              "SMUGGLING_001",
		ViolationCode:   "SMG-001",
		ViolationType:   "SMUGGLING",
		LegalBasis:      "Customs Code Art. 273",
		BaseAmount:      d("5000"),
		Currency:        fines.CurrencyEUR,
		CalculationType: fines.CalculationFixed,
		MultiplierFactors: fines.MultiplierFactors{
			FirstOffense:  d("1.0"),
			RepeatOffense: d("2.0"),
			Severity: map[fines.SeverityLevel]decimal.Decimal{
				fines.SeverityMinor: d("0.5"), fines.SeverityModerate: d("1.0"),
				fines.SeveritySevere: d("1.5"), fines.SeverityCritical: d("3.0"),
			},
			Cooperation: map[fines.CooperationLevel]decimal.Decimal{
				fines.CooperationFull: d("0.6"), fines.CooperationPartial: d("1.0"), fines.CooperationNone: d("1.3"),
			},
			EconomicImpact: map[fines.EconomicImpact]decimal.Decimal{
				fines.ImpactLow: d("0.8"), fines.ImpactMedium: d("1.0"),
				fines.ImpactHigh: d("1.4"), fines.ImpactCritical: d("2.0"),
			},
		},
		ReductionFactors: fines.ReductionFactors{
			VoluntaryDisclosure: d("0.2"),
			ImmediatePayment:    d("0.2"),
			FirstTimeOffender:   d("0.2"),
			CooperativeSubject:  d("0.2"),
			MinorTechnicalError: d("0.2"),
		},
		IsActive:      true,
		EffectiveDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Version:       1,
		CreatedBy:     "legal-dept",
	}
}

func neutralInput() fines.CalculationInput {
	return fines.CalculationInput{
		ViolationType:    "SMUGGLING",
		SeverityLevel:    fines.SeverityModerate,
		CooperationLevel: fines.CooperationPartial,
		EconomicImpact:   fines.ImpactMedium,
	}
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "%s: expected %s, got %s", msg, want, got)
}

// =============================================================================
// PIPELINE SCENARIOS
// =============================================================================

func TestCalculate_NeutralFactorsKeepBaseAmount(t *testing.T) {
	// GIVEN: Base 5000, all relevant factors 1.0, no reduction flags set
	// WHEN: Calculate
	// THEN: Final amount is 5000 and the breakdown has 5 steps (base + 4 multipliers)

	result, err := fines.Calculate(neutralRule(), neutralInput())
	require.NoError(t, err)

	assertAmount(t, "5000", result.MultipliedAmount, "multiplied")
	assertAmount(t, "5000", result.ReducedAmount, "reduced")
	assertAmount(t, "5000", result.FinalAmount, "final")
	assert.Equal(t, fines.CurrencyEUR, result.Currency)
	assert.Equal(t, "Customs Code Art. 273", result.LegalBasis)
	assert.Empty(t, result.AppliedReductions)
	assert.Len(t, result.AppliedMultipliers, 4)
	require.Len(t, result.Breakdown, 5)
	for i, step := range result.Breakdown {
		assert.Equal(t, i+1, step.Step, "steps are numbered in application order")
	}
	assertAmount(t, "1", result.Breakdown[0].Factor, "base step factor")
}

func TestCalculate_RepeatOffenseWithFirstTimeReduction(t *testing.T) {
	// GIVEN: Repeat offense (x2.0) and first-time-offender flag (0.2)
	// WHEN: Calculate
	// THEN: multiplied=10000, reduced=8000, final=8000

	input := neutralInput()
	input.IsRepeatOffense = true
	input.IsFirstTimeOffender = true

	result, err := fines.Calculate(neutralRule(), input)
	require.NoError(t, err)

	assertAmount(t, "10000", result.MultipliedAmount, "multiplied")
	assertAmount(t, "8000", result.ReducedAmount, "reduced")
	assertAmount(t, "8000", result.FinalAmount, "final")
	assert.Equal(t, []string{"First-time offender (-20%)"}, result.AppliedReductions)

	require.Len(t, result.Breakdown, 6)
	reduction := result.Breakdown[5]
	assertAmount(t, "0.8", reduction.Factor, "reduction factor")
	assertAmount(t, "8000", reduction.Amount, "reduction amount")
}

func TestCalculate_ClampsUpToMinimum(t *testing.T) {
	// GIVEN: Minimum 5000, full cooperation (x0.6) brings the amount to 3000
	// WHEN: Calculate
	// THEN: reduced=3000, final clamped up to 5000 with a clamp step

	rule := neutralRule()
	rule.MinimumAmount = dp("5000")
	input := neutralInput()
	input.CooperationLevel = fines.CooperationFull

	result, err := fines.Calculate(rule, input)
	require.NoError(t, err)

	assertAmount(t, "3000", result.ReducedAmount, "reduced")
	assertAmount(t, "5000", result.FinalAmount, "final")
	last := result.Breakdown[len(result.Breakdown)-1]
	assert.Contains(t, last.Description, "minimum")
	assertAmount(t, "5000", last.Amount, "clamp step amount")
}

func TestCalculate_ClampsDownToMaximum(t *testing.T) {
	// GIVEN: Maximum 10000, critical severity (x3.0) gives 15000
	// WHEN: Calculate
	// THEN: final is 10000

	rule := neutralRule()
	rule.MinimumAmount = dp("1000")
	rule.MaximumAmount = dp("10000")
	input := neutralInput()
	input.SeverityLevel = fines.SeverityCritical

	result, err := fines.Calculate(rule, input)
	require.NoError(t, err)

	assertAmount(t, "15000", result.MultipliedAmount, "multiplied")
	assertAmount(t, "10000", result.FinalAmount, "final")
	assert.Contains(t, result.Breakdown[len(result.Breakdown)-1].Description, "maximum")
	assert.Equal(t, rule.MaximumAmount, result.MaximumAmount)
}

func TestCalculate_ReductionCappedAtSeventyPercent(t *testing.T) {
	// GIVEN: All five reductions set, 0.2 each (sum 1.0)
	// WHEN: Calculate
	// THEN: Only 70% is taken off, and a cap note is appended

	input := neutralInput()
	input.IsVoluntaryDisclosure = true
	input.IsImmediatePayment = true
	input.IsFirstTimeOffender = true
	input.IsCooperativeSubject = true
	input.IsMinorTechnicalError = true

	result, err := fines.Calculate(neutralRule(), input)
	require.NoError(t, err)

	assertAmount(t, "1500", result.ReducedAmount, "reduced")
	ratio := result.ReducedAmount.Div(result.MultipliedAmount)
	assert.True(t, ratio.GreaterThanOrEqual(d("0.3")), "never discounted more than 70%%, ratio %s", ratio)
	require.Len(t, result.AppliedReductions, 6)
	assert.Contains(t, result.AppliedReductions[5], "capped at 70%")
}

func TestCalculate_NoReductionStepWhenReductionsAreZero(t *testing.T) {
	// GIVEN: Flag set, but the rule's factor for it is 0
	// WHEN: Calculate
	// THEN: No reduction step is recorded

	rule := neutralRule()
	rule.ReductionFactors.ImmediatePayment = decimal.Zero
	input := neutralInput()
	input.IsImmediatePayment = true

	result, err := fines.Calculate(rule, input)
	require.NoError(t, err)
	assert.Len(t, result.Breakdown, 5)
	assertAmount(t, "5000", result.ReducedAmount, "reduced")
}

func TestCalculate_PercentageOverride(t *testing.T) {
	// GIVEN: PERCENTAGE rule with rate 30% and base 100
	// WHEN: Violation value is 1000, then 100
	// THEN: 30% of 1000 = 300 wins over base; 30% of 100 = 30 falls back to base

	rule := neutralRule()
	rule.CalculationType = fines.CalculationPercentage
	rule.BaseAmount = d("100")
	rule.PercentageRate = dp("30")

	input := neutralInput()
	input.ViolationValue = dp("1000")
	result, err := fines.Calculate(rule, input)
	require.NoError(t, err)
	require.Len(t, result.Breakdown, 6)
	assertAmount(t, "0.3", result.Breakdown[1].Factor, "percentage step factor")
	assertAmount(t, "300", result.FinalAmount, "percentage wins")

	input.ViolationValue = dp("100")
	result, err = fines.Calculate(rule, input)
	require.NoError(t, err)
	assertAmount(t, "100", result.FinalAmount, "base is the floor")
}

func TestCalculate_PercentageWithoutValueSkipsOverride(t *testing.T) {
	// GIVEN: PERCENTAGE rule but no violation value
	// WHEN: Calculate
	// THEN: No percentage step; the base amount flows through

	rule := neutralRule()
	rule.CalculationType = fines.CalculationPercentage
	rule.PercentageRate = dp("30")

	result, err := fines.Calculate(rule, neutralInput())
	require.NoError(t, err)
	assert.Len(t, result.Breakdown, 5)
	assertAmount(t, "5000", result.FinalAmount, "final")
}

func TestCalculate_PercentageRateDefaultsToHundred(t *testing.T) {
	rule := neutralRule()
	rule.CalculationType = fines.CalculationPercentage
	rule.BaseAmount = d("10")

	input := neutralInput()
	input.ViolationValue = dp("250")

	result, err := fines.Calculate(rule, input)
	require.NoError(t, err)
	assertAmount(t, "1", result.Breakdown[1].Factor, "default rate factor")
	assertAmount(t, "250", result.FinalAmount, "final")
}

func TestCalculate_RoundsFinalAmountToWholeUnits(t *testing.T) {
	// GIVEN: Base 1001, minor severity (x0.5), low impact (x0.8)
	// WHEN: Calculate
	// THEN: 400.4 rounds to 400; the reduced amount keeps the fraction

	rule := neutralRule()
	rule.BaseAmount = d("1001")
	input := neutralInput()
	input.SeverityLevel = fines.SeverityMinor
	input.EconomicImpact = fines.ImpactLow

	result, err := fines.Calculate(rule, input)
	require.NoError(t, err)
	assertAmount(t, "400.4", result.ReducedAmount, "reduced")
	assertAmount(t, "400", result.FinalAmount, "final")
}

// =============================================================================
// INPUT ERRORS
// =============================================================================

func TestCalculate_UnknownEnumIsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*fines.CalculationInput)
		field string
	}{
		{"severity", func(in *fines.CalculationInput) { in.SeverityLevel = "extreme" }, "severity_level"},
		{"cooperation", func(in *fines.CalculationInput) { in.CooperationLevel = "" }, "cooperation_level"},
		{"impact", func(in *fines.CalculationInput) { in.EconomicImpact = "catastrophic" }, "economic_impact"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := neutralInput()
			tt.mod(&input)

			_, err := fines.Calculate(neutralRule(), input)
			require.Error(t, err)
			assert.ErrorIs(t, err, fines.ErrInvalidInput)
			assert.True(t, fines.IsClientError(err))

			var inErr *fines.InputError
			require.ErrorAs(t, err, &inErr)
			assert.Equal(t, tt.field, inErr.Field)
		})
	}
}

func TestCalculate_MissingFactorKeyIsInvalidInput(t *testing.T) {
	// GIVEN: A rule whose severity table lacks "critical"
	// WHEN: Input asks for critical severity
	// THEN: ErrInvalidInput rather than a zero multiplier

	rule := neutralRule()
	delete(rule.MultiplierFactors.Severity, fines.SeverityCritical)
	input := neutralInput()
	input.SeverityLevel = fines.SeverityCritical

	_, err := fines.Calculate(rule, input)
	assert.ErrorIs(t, err, fines.ErrInvalidInput)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestCalculate_Deterministic(t *testing.T) {
	rule := neutralRule()
	rule.MinimumAmount = dp("500")
	rule.MaximumAmount = dp("20000")
	input := neutralInput()
	input.IsRepeatOffense = true
	input.SeverityLevel = fines.SeveritySevere
	input.IsCooperativeSubject = true
	input.IsImmediatePayment = true

	first, err := fines.Calculate(rule, input)
	require.NoError(t, err)
	second, err := fines.Calculate(rule, input)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCalculate_ConcurrentCallsAgree(t *testing.T) {
	rule := neutralRule()
	input := neutralInput()
	input.IsRepeatOffense = true
	want, err := fines.Calculate(rule, input)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]fines.CalculationResult, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = fines.Calculate(rule, input)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.True(t, want.FinalAmount.Equal(got.FinalAmount))
		assert.Len(t, got.Breakdown, len(want.Breakdown))
	}
}

func TestCalculate_ClampBoundsHoldAcrossInputs(t *testing.T) {
	// GIVEN: A bounded rule
	// WHEN: Every severity/cooperation/impact combination is calculated
	// THEN: Final amount always lies within [min, max]

	rule := neutralRule()
	rule.MinimumAmount = dp("2000")
	rule.MaximumAmount = dp("12000")

	for _, sev := range fines.SeverityLevels {
		for _, coop := range fines.CooperationLevels {
			for _, impact := range fines.EconomicImpacts {
				input := neutralInput()
				input.SeverityLevel = sev
				input.CooperationLevel = coop
				input.EconomicImpact = impact
				input.IsRepeatOffense = true
				input.IsVoluntaryDisclosure = true

				result, err := fines.Calculate(rule, input)
				require.NoError(t, err)
				assert.True(t, result.FinalAmount.GreaterThanOrEqual(*rule.MinimumAmount), "%s/%s/%s below minimum", sev, coop, impact)
				assert.True(t, result.FinalAmount.LessThanOrEqual(*rule.MaximumAmount), "%s/%s/%s above maximum", sev, coop, impact)
			}
		}
	}
}
