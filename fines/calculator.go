/*
calculator.go - The fine calculation pipeline

PIPELINE (each step's amount feeds the next):
  1. Base amount
  2. Percentage override (PERCENTAGE rules with a violation value)
  3. Offense multiplier (first vs repeat)
  4. Severity multiplier
  5. Cooperation multiplier
  6. Economic impact multiplier      -> MultipliedAmount
  7. Reductions, capped at 70%        -> ReducedAmount
  8. Minimum / maximum clamp, round   -> FinalAmount

Calculate is a pure function: no I/O, no shared state, safe for concurrent
use. Identical (rule, input) pairs yield identical results, breakdown order
included.
*/
package fines

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxReduction is the policy ceiling on the combined discount.
var MaxReduction = decimal.RequireFromString("0.7")

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Calculate runs the pipeline for one rule and one input.
func Calculate(rule CalculationRule, input CalculationInput) (CalculationResult, error) {
	severity, cooperation, impact, err := lookupFactors(rule, input)
	if err != nil {
		return CalculationResult{}, err
	}

	b := &breakdown{}
	amount := rule.BaseAmount
	b.record(fmt.Sprintf("Base amount under %s", legalBasisOrCode(rule)), one, amount)

	if rule.CalculationType == CalculationPercentage && input.ViolationValue != nil {
		rate := hundred
		if rule.PercentageRate != nil {
			rate = *rule.PercentageRate
		}
		factor := rate.Div(hundred)
		pct := input.ViolationValue.Mul(rate).Div(hundred)
		amount = decimal.Max(pct, rule.BaseAmount)
		b.record(fmt.Sprintf("%s%% of violation value %s (never below base amount)", rate, input.ViolationValue), factor, amount)
	}

	var multipliers []string

	offense, offenseLabel := rule.MultiplierFactors.FirstOffense, "First offense"
	if input.IsRepeatOffense {
		offense, offenseLabel = rule.MultiplierFactors.RepeatOffense, "Repeat offense"
	}
	amount = amount.Mul(offense)
	b.record(offenseLabel, offense, amount)
	multipliers = append(multipliers, fmt.Sprintf("%s (x%s)", offenseLabel, offense))

	amount = amount.Mul(severity)
	label := fmt.Sprintf("Severity: %s", input.SeverityLevel)
	b.record(label, severity, amount)
	multipliers = append(multipliers, fmt.Sprintf("%s (x%s)", label, severity))

	amount = amount.Mul(cooperation)
	label = fmt.Sprintf("Cooperation: %s", input.CooperationLevel)
	b.record(label, cooperation, amount)
	multipliers = append(multipliers, fmt.Sprintf("%s (x%s)", label, cooperation))

	amount = amount.Mul(impact)
	label = fmt.Sprintf("Economic impact: %s", input.EconomicImpact)
	b.record(label, impact, amount)
	multipliers = append(multipliers, fmt.Sprintf("%s (x%s)", label, impact))

	multiplied := amount

	// Reductions
	reductions := []string{}
	total := decimal.Zero
	flags := input.flags()
	for i, rf := range rule.ReductionFactors.named() {
		if !flags[i] {
			continue
		}
		total = total.Add(rf.value)
		reductions = append(reductions, fmt.Sprintf("%s (-%s%%)", rf.label, rf.value.Mul(hundred)))
	}
	capped := decimal.Min(total, MaxReduction)
	if total.GreaterThan(MaxReduction) {
		reductions = append(reductions, fmt.Sprintf("Combined reduction %s%% capped at %s%%",
			total.Mul(hundred), MaxReduction.Mul(hundred)))
	}
	if capped.IsPositive() {
		factor := one.Sub(capped)
		amount = amount.Mul(factor)
		b.record(fmt.Sprintf("Reductions applied (-%s%%)", capped.Mul(hundred)), factor, amount)
	}

	reduced := amount

	// Bounds: minimum wins when both could apply.
	if rule.MinimumAmount != nil && amount.LessThan(*rule.MinimumAmount) {
		amount = *rule.MinimumAmount
		b.record(fmt.Sprintf("Raised to minimum amount %s", rule.MinimumAmount), one, amount)
	} else if rule.MaximumAmount != nil && amount.GreaterThan(*rule.MaximumAmount) {
		amount = *rule.MaximumAmount
		b.record(fmt.Sprintf("Limited to maximum amount %s", rule.MaximumAmount), one, amount)
	}

	return CalculationResult{
		BaseAmount:         rule.BaseAmount,
		MultipliedAmount:   multiplied,
		ReducedAmount:      reduced,
		FinalAmount:        amount.Round(0),
		Currency:           rule.Currency,
		AppliedMultipliers: multipliers,
		AppliedReductions:  reductions,
		Breakdown:          b.steps,
		LegalBasis:         rule.LegalBasis,
		MinimumAmount:      rule.MinimumAmount,
		MaximumAmount:      rule.MaximumAmount,
	}, nil
}

// lookupFactors resolves the three table factors or reports the bad field.
func lookupFactors(rule CalculationRule, input CalculationInput) (severity, cooperation, impact decimal.Decimal, err error) {
	var ok bool
	if severity, ok = rule.MultiplierFactors.Severity[input.SeverityLevel]; !ok || !input.SeverityLevel.IsValid() {
		return severity, cooperation, impact, &InputError{Field: "severity_level", Value: string(input.SeverityLevel)}
	}
	if cooperation, ok = rule.MultiplierFactors.Cooperation[input.CooperationLevel]; !ok || !input.CooperationLevel.IsValid() {
		return severity, cooperation, impact, &InputError{Field: "cooperation_level", Value: string(input.CooperationLevel)}
	}
	if impact, ok = rule.MultiplierFactors.EconomicImpact[input.EconomicImpact]; !ok || !input.EconomicImpact.IsValid() {
		return severity, cooperation, impact, &InputError{Field: "economic_impact", Value: string(input.EconomicImpact)}
	}
	return severity, cooperation, impact, nil
}

func legalBasisOrCode(rule CalculationRule) string {
	if rule.LegalBasis != "" {
		return rule.LegalBasis
	}
	return rule.ViolationCode
}

type breakdown struct {
	steps []Step
}

func (b *breakdown) record(description string, factor, amount decimal.Decimal) {
	b.steps = append(b.steps, Step{
		Step:        len(b.steps) + 1,
		Description: description,
		Factor:      factor,
		Amount:      amount,
	})
}
