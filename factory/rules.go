/*
Package factory provides JSON/YAML to Go rule conversion.

PURPOSE:
  Converts rule definition documents into fines.CalculationRule values.
  This enables rule configuration without code changes - legal staff
  can define fine rules in a file, and the factory creates the proper
  Go structs with decimal amounts.

DOCUMENT SCHEMA (JSON shown, YAML uses the same keys):
  {
    "id": "CONTRABAND_001",
    "violation_type": "CONTRABAND",
    "violation_code": "KV-273",
    "legal_basis": "Article 273, Customs Code",
    "base_amount": 5000,
    "currency": "EUR",
    "calculation_type": "PERCENTAGE",
    "percentage_rate": 200,
    "minimum_amount": 5000,
    "maximum_amount": 100000,
    "multiplier_factors": {
      "first_offense": 1.0,
      "repeat_offense": 2.0,
      "severity": {"minor": 0.5, "moderate": 1.0, "severe": 1.5, "critical": 2.0},
      "cooperation": {"full": 0.8, "partial": 1.0, "none": 1.5},
      "economic_impact": {"low": 0.8, "medium": 1.0, "high": 1.3, "critical": 1.8}
    },
    "reduction_factors": {"voluntary_disclosure": 0.3, ...},
    "effective_date": "2024-01-01"
  }

  A seed file holds either a single rule or {"rules": [...]}.

KEY FEATURES:
  - Float amounts converted to decimal at the boundary
  - Sensible defaults (currency EUR, FIXED, active, first offense x1)
  - Every parsed rule passes fines.ValidateRule

USAGE:
  f := NewRuleFactory()
  rule, err := f.ParseRule(ContrabandRuleJSON())

  rules, err := LoadRules("rules.yaml")
  created, err := Seed(ctx, store, rules)

SEE ALSO:
  - fines/types.go: CalculationRule definition
  - fines/rule.go: ValidateRule
*/
package factory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/customs-les/case-engine/fines"
)

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// RuleJSON is the document representation of a rule.
type RuleJSON struct {
	ID              string   `json:"id" yaml:"id"`
	ViolationType   string   `json:"violation_type" yaml:"violation_type"`
	ViolationCode   string   `json:"violation_code" yaml:"violation_code"`
	ViolationName   string   `json:"violation_name,omitempty" yaml:"violation_name,omitempty"`
	LegalBasis      string   `json:"legal_basis" yaml:"legal_basis"`
	BaseAmount      float64  `json:"base_amount" yaml:"base_amount"`
	Currency        string   `json:"currency,omitempty" yaml:"currency,omitempty"`
	CalculationType string   `json:"calculation_type,omitempty" yaml:"calculation_type,omitempty"`
	PercentageRate  *float64 `json:"percentage_rate,omitempty" yaml:"percentage_rate,omitempty"`
	MinimumAmount   *float64 `json:"minimum_amount,omitempty" yaml:"minimum_amount,omitempty"`
	MaximumAmount   *float64 `json:"maximum_amount,omitempty" yaml:"maximum_amount,omitempty"`

	Multipliers MultipliersJSON `json:"multiplier_factors" yaml:"multiplier_factors"`
	Reductions  ReductionsJSON  `json:"reduction_factors" yaml:"reduction_factors"`

	IsActive      *bool  `json:"is_active,omitempty" yaml:"is_active,omitempty"` // Default true
	EffectiveDate string `json:"effective_date,omitempty" yaml:"effective_date,omitempty"`
	ExpiryDate    string `json:"expiry_date,omitempty" yaml:"expiry_date,omitempty"`
	Notes         string `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedBy     string `json:"created_by,omitempty" yaml:"created_by,omitempty"`
}

// MultipliersJSON represents the multiplier factor tables.
type MultipliersJSON struct {
	FirstOffense   *float64           `json:"first_offense,omitempty" yaml:"first_offense,omitempty"` // Default 1
	RepeatOffense  float64            `json:"repeat_offense" yaml:"repeat_offense"`
	Severity       map[string]float64 `json:"severity" yaml:"severity"`
	Cooperation    map[string]float64 `json:"cooperation" yaml:"cooperation"`
	EconomicImpact map[string]float64 `json:"economic_impact" yaml:"economic_impact"`
}

// ReductionsJSON represents the five reduction fractions.
type ReductionsJSON struct {
	VoluntaryDisclosure float64 `json:"voluntary_disclosure,omitempty" yaml:"voluntary_disclosure,omitempty"`
	ImmediatePayment    float64 `json:"immediate_payment,omitempty" yaml:"immediate_payment,omitempty"`
	FirstTimeOffender   float64 `json:"first_time_offender,omitempty" yaml:"first_time_offender,omitempty"`
	CooperativeSubject  float64 `json:"cooperative_subject,omitempty" yaml:"cooperative_subject,omitempty"`
	MinorTechnicalError float64 `json:"minor_technical_error,omitempty" yaml:"minor_technical_error,omitempty"`
}

// RuleDocument is a seed file holding several rules.
type RuleDocument struct {
	Rules []RuleJSON `json:"rules" yaml:"rules"`
}

const dateLayout = "2006-01-02"

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts rule documents to fines.CalculationRule.
type RuleFactory struct {
	// Now stamps CreatedAt on parsed rules.
	Now func() time.Time
}

// NewRuleFactory creates a new rule factory.
func NewRuleFactory() *RuleFactory {
	return &RuleFactory{
		Now: func() time.Time { return time.Now().UTC() },
	}
}

// ParseRule parses a JSON string into a validated rule.
func (f *RuleFactory) ParseRule(jsonStr string) (fines.CalculationRule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return fines.CalculationRule{}, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts RuleJSON to a validated fines.CalculationRule.
func (f *RuleFactory) FromJSON(rj RuleJSON) (fines.CalculationRule, error) {
	rule := fines.CalculationRule{
		ID:              fines.RuleID(rj.ID),
		ViolationType:   rj.ViolationType,
		ViolationCode:   rj.ViolationCode,
		ViolationName:   rj.ViolationName,
		LegalBasis:      rj.LegalBasis,
		BaseAmount:      decimal.NewFromFloat(rj.BaseAmount),
		Currency:        fines.CurrencyEUR,
		CalculationType: fines.CalculationFixed,
		PercentageRate:  decimalPtr(rj.PercentageRate),
		MinimumAmount:   decimalPtr(rj.MinimumAmount),
		MaximumAmount:   decimalPtr(rj.MaximumAmount),
		MultiplierFactors: fines.MultiplierFactors{
			FirstOffense:   decimal.NewFromInt(1),
			RepeatOffense:  decimal.NewFromFloat(rj.Multipliers.RepeatOffense),
			Severity:       factorTable[fines.SeverityLevel](rj.Multipliers.Severity),
			Cooperation:    factorTable[fines.CooperationLevel](rj.Multipliers.Cooperation),
			EconomicImpact: factorTable[fines.EconomicImpact](rj.Multipliers.EconomicImpact),
		},
		ReductionFactors: fines.ReductionFactors{
			VoluntaryDisclosure: decimal.NewFromFloat(rj.Reductions.VoluntaryDisclosure),
			ImmediatePayment:    decimal.NewFromFloat(rj.Reductions.ImmediatePayment),
			FirstTimeOffender:   decimal.NewFromFloat(rj.Reductions.FirstTimeOffender),
			CooperativeSubject:  decimal.NewFromFloat(rj.Reductions.CooperativeSubject),
			MinorTechnicalError: decimal.NewFromFloat(rj.Reductions.MinorTechnicalError),
		},
		IsActive:  true,
		Notes:     rj.Notes,
		Version:   1,
		CreatedBy: rj.CreatedBy,
		CreatedAt: f.Now(),
	}

	if rj.Currency != "" {
		rule.Currency = fines.Currency(strings.ToUpper(rj.Currency))
	}
	if rj.CalculationType != "" {
		rule.CalculationType = fines.CalculationType(strings.ToUpper(rj.CalculationType))
	}
	if rj.Multipliers.FirstOffense != nil {
		rule.MultiplierFactors.FirstOffense = decimal.NewFromFloat(*rj.Multipliers.FirstOffense)
	}
	if rj.IsActive != nil {
		rule.IsActive = *rj.IsActive
	}
	if rule.CreatedBy == "" {
		rule.CreatedBy = "system"
	}

	if rj.EffectiveDate != "" {
		t, err := time.Parse(dateLayout, rj.EffectiveDate)
		if err != nil {
			return fines.CalculationRule{}, fmt.Errorf("rule %s: invalid effective_date: %w", rj.ID, err)
		}
		rule.EffectiveDate = t
	} else {
		rule.EffectiveDate = rule.CreatedAt.Truncate(24 * time.Hour)
	}
	if rj.ExpiryDate != "" {
		t, err := time.Parse(dateLayout, rj.ExpiryDate)
		if err != nil {
			return fines.CalculationRule{}, fmt.Errorf("rule %s: invalid expiry_date: %w", rj.ID, err)
		}
		rule.ExpiryDate = &t
	}

	if err := fines.ValidateRule(rule); err != nil {
		return fines.CalculationRule{}, err
	}
	return rule, nil
}

// ToJSON converts a rule back to its document form.
func (f *RuleFactory) ToJSON(rule fines.CalculationRule) RuleJSON {
	active := rule.IsActive
	first := rule.MultiplierFactors.FirstOffense.InexactFloat64()
	rj := RuleJSON{
		ID:              string(rule.ID),
		ViolationType:   rule.ViolationType,
		ViolationCode:   rule.ViolationCode,
		ViolationName:   rule.ViolationName,
		LegalBasis:      rule.LegalBasis,
		BaseAmount:      rule.BaseAmount.InexactFloat64(),
		Currency:        string(rule.Currency),
		CalculationType: string(rule.CalculationType),
		PercentageRate:  floatPtr(rule.PercentageRate),
		MinimumAmount:   floatPtr(rule.MinimumAmount),
		MaximumAmount:   floatPtr(rule.MaximumAmount),
		Multipliers: MultipliersJSON{
			FirstOffense:   &first,
			RepeatOffense:  rule.MultiplierFactors.RepeatOffense.InexactFloat64(),
			Severity:       floatTable(rule.MultiplierFactors.Severity),
			Cooperation:    floatTable(rule.MultiplierFactors.Cooperation),
			EconomicImpact: floatTable(rule.MultiplierFactors.EconomicImpact),
		},
		Reductions: ReductionsJSON{
			VoluntaryDisclosure: rule.ReductionFactors.VoluntaryDisclosure.InexactFloat64(),
			ImmediatePayment:    rule.ReductionFactors.ImmediatePayment.InexactFloat64(),
			FirstTimeOffender:   rule.ReductionFactors.FirstTimeOffender.InexactFloat64(),
			CooperativeSubject:  rule.ReductionFactors.CooperativeSubject.InexactFloat64(),
			MinorTechnicalError: rule.ReductionFactors.MinorTechnicalError.InexactFloat64(),
		},
		IsActive:      &active,
		EffectiveDate: rule.EffectiveDate.Format(dateLayout),
		Notes:         rule.Notes,
		CreatedBy:     rule.CreatedBy,
	}
	if rule.ExpiryDate != nil {
		rj.ExpiryDate = rule.ExpiryDate.Format(dateLayout)
	}
	return rj
}

// =============================================================================
// SEED FILES
// =============================================================================

// ParseRules decodes a seed document. format is "json" or "yaml".
func (f *RuleFactory) ParseRules(data []byte, format string) ([]fines.CalculationRule, error) {
	var doc RuleDocument
	switch format {
	case "json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse rules JSON: %w", err)
		}
		if doc.Rules == nil {
			var single RuleJSON
			if err := json.Unmarshal(data, &single); err == nil && single.ID != "" {
				doc.Rules = []RuleJSON{single}
			}
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
		}
		if doc.Rules == nil {
			var single RuleJSON
			if err := yaml.Unmarshal(data, &single); err == nil && single.ID != "" {
				doc.Rules = []RuleJSON{single}
			}
		}
	default:
		return nil, fmt.Errorf("unknown rule document format: %s", format)
	}

	seen := make(map[string]bool, len(doc.Rules))
	rules := make([]fines.CalculationRule, 0, len(doc.Rules))
	for _, rj := range doc.Rules {
		if seen[rj.ID] {
			return nil, fmt.Errorf("rule %s: %w", rj.ID, fines.ErrRuleExists)
		}
		seen[rj.ID] = true

		rule, err := f.FromJSON(rj)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// LoadRules reads a seed file, picking the format from its extension.
func LoadRules(path string) ([]fines.CalculationRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return NewRuleFactory().ParseRules(data, format)
}

// Seed creates every rule the store does not have yet and returns how many
// were created. Existing rules are left untouched.
func Seed(ctx context.Context, store fines.RuleStore, rules []fines.CalculationRule) (int, error) {
	created := 0
	for _, rule := range rules {
		err := store.CreateRule(ctx, rule)
		if errors.Is(err, fines.ErrRuleExists) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed rule %s: %w", rule.ID, err)
		}
		created++
	}
	return created, nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func decimalPtr(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}

func floatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	v := d.InexactFloat64()
	return &v
}

func factorTable[K ~string](m map[string]float64) map[K]decimal.Decimal {
	out := make(map[K]decimal.Decimal, len(m))
	for k, v := range m {
		out[K(strings.ToLower(k))] = decimal.NewFromFloat(v)
	}
	return out
}

func floatTable[K ~string](m map[K]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[string(k)] = v.InexactFloat64()
	}
	return out
}
