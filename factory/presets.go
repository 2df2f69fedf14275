package factory

import (
	"encoding/json"
	"fmt"

	"github.com/customs-les/case-engine/fines"
)

// =============================================================================
// PRESET RULES
// =============================================================================
//
// The two rules a fresh deployment starts with when no seed file is given.

// ContrabandRuleJSON returns JSON for the goods smuggling rule (Article 273).
func ContrabandRuleJSON() string {
	rj := map[string]interface{}{
		"id":               "CONTRABAND_001",
		"violation_type":   "CONTRABAND",
		"violation_code":   "KV-273",
		"violation_name":   "Goods Smuggling",
		"legal_basis":      "Article 273, Customs Code",
		"base_amount":      5000,
		"currency":         "EUR",
		"calculation_type": "PERCENTAGE",
		"percentage_rate":  200,
		"minimum_amount":   5000,
		"maximum_amount":   100000,
		"multiplier_factors": map[string]interface{}{
			"first_offense":   1.0,
			"repeat_offense":  2.0,
			"severity":        map[string]float64{"minor": 0.5, "moderate": 1.0, "severe": 1.5, "critical": 2.0},
			"cooperation":     map[string]float64{"full": 0.8, "partial": 1.0, "none": 1.5},
			"economic_impact": map[string]float64{"low": 0.8, "medium": 1.0, "high": 1.3, "critical": 1.8},
		},
		"reduction_factors": map[string]float64{
			"voluntary_disclosure":  0.3,
			"immediate_payment":     0.1,
			"first_time_offender":   0.2,
			"cooperative_subject":   0.15,
			"minor_technical_error": 0.5,
		},
		"effective_date": "2024-01-01",
		"notes":          "Fine for smuggling under the Customs Code",
		"created_by":     "admin",
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}

// FalseDeclarationRuleJSON returns JSON for the false declaration rule (Article 274).
func FalseDeclarationRuleJSON() string {
	rj := map[string]interface{}{
		"id":               "FALSE_DECLARATION_001",
		"violation_type":   "FALSE_DECLARATION",
		"violation_code":   "KV-274",
		"violation_name":   "False Declaration",
		"legal_basis":      "Article 274, Customs Code",
		"base_amount":      2000,
		"currency":         "EUR",
		"calculation_type": "PROGRESSIVE",
		"minimum_amount":   1000,
		"maximum_amount":   50000,
		"multiplier_factors": map[string]interface{}{
			"first_offense":   1.0,
			"repeat_offense":  1.8,
			"severity":        map[string]float64{"minor": 0.6, "moderate": 1.0, "severe": 1.4, "critical": 1.8},
			"cooperation":     map[string]float64{"full": 0.7, "partial": 1.0, "none": 1.4},
			"economic_impact": map[string]float64{"low": 0.8, "medium": 1.0, "high": 1.2, "critical": 1.5},
		},
		"reduction_factors": map[string]float64{
			"voluntary_disclosure":  0.4,
			"immediate_payment":     0.1,
			"first_time_offender":   0.25,
			"cooperative_subject":   0.2,
			"minor_technical_error": 0.6,
		},
		"effective_date": "2024-01-01",
		"notes":          "Fine for a false declaration of goods",
		"created_by":     "admin",
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}

// DefaultRules parses the preset rules.
func DefaultRules() ([]fines.CalculationRule, error) {
	f := NewRuleFactory()
	var rules []fines.CalculationRule
	for _, doc := range []string{ContrabandRuleJSON(), FalseDeclarationRuleJSON()} {
		rule, err := f.ParseRule(doc)
		if err != nil {
			return nil, fmt.Errorf("preset rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
