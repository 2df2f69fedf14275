/*
Package fines implements the administrative fine calculation engine.

PURPOSE:
  A CalculationRule is a versioned policy record published by the legal
  department. Given a rule and the case-specific CalculationInput, the engine
  produces a deterministic CalculationResult with a full, ordered breakdown
  of every multiplicative and clamping step, so that an officer (and later an
  auditor) can see exactly how the amount was reached.

KEY CONCEPTS IN THIS FILE (types.go):
  - CalculationRule: Pricing, factor tables, reduction table, lifecycle
  - CalculationInput: Per-computation facts supplied by the officer
  - CalculationResult: Immutable output with breakdown
  - CalculationHistoryEntry: Persisted (rule, input, result) triple

DESIGN PRINCIPLES:
  1. Precision: All amounts and factors are decimal.Decimal
  2. Purity: Calculate() has no side effects and no I/O
  3. Auditability: Each step is recorded in application order
  4. Versioning: Rules bump Version on every update

SEE ALSO:
  - calculator.go: The calculation pipeline
  - rule.go: Rule validation and lifecycle helpers
  - service.go: Repository-backed operations (resolve, save, approve)
*/
package fines

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

type CalculationType string

const (
	CalculationFixed       CalculationType = "FIXED"
	CalculationPercentage  CalculationType = "PERCENTAGE"
	CalculationProgressive CalculationType = "PROGRESSIVE"
	CalculationCustom      CalculationType = "CUSTOM"
)

func (t CalculationType) IsValid() bool {
	switch t {
	case CalculationFixed, CalculationPercentage, CalculationProgressive, CalculationCustom:
		return true
	}
	return false
}

type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyALL Currency = "ALL"
)

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyEUR, CurrencyUSD, CurrencyALL:
		return true
	}
	return false
}

type SeverityLevel string

const (
	SeverityMinor    SeverityLevel = "minor"
	SeverityModerate SeverityLevel = "moderate"
	SeveritySevere   SeverityLevel = "severe"
	SeverityCritical SeverityLevel = "critical"
)

// SeverityLevels lists every severity key a complete factor table must carry.
var SeverityLevels = []SeverityLevel{SeverityMinor, SeverityModerate, SeveritySevere, SeverityCritical}

func (s SeverityLevel) IsValid() bool { return contains(SeverityLevels, s) }

type CooperationLevel string

const (
	CooperationFull    CooperationLevel = "full"
	CooperationPartial CooperationLevel = "partial"
	CooperationNone    CooperationLevel = "none"
)

var CooperationLevels = []CooperationLevel{CooperationFull, CooperationPartial, CooperationNone}

func (c CooperationLevel) IsValid() bool { return contains(CooperationLevels, c) }

type EconomicImpact string

const (
	ImpactLow      EconomicImpact = "low"
	ImpactMedium   EconomicImpact = "medium"
	ImpactHigh     EconomicImpact = "high"
	ImpactCritical EconomicImpact = "critical"
)

var EconomicImpacts = []EconomicImpact{ImpactLow, ImpactMedium, ImpactHigh, ImpactCritical}

func (e EconomicImpact) IsValid() bool { return contains(EconomicImpacts, e) }

func contains[T comparable](values []T, v T) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// =============================================================================
// CALCULATION RULE - Versioned policy record
// =============================================================================

// MultiplierFactors is the nested factor table applied multiplicatively.
type MultiplierFactors struct {
	FirstOffense   decimal.Decimal                      `json:"first_offense"`
	RepeatOffense  decimal.Decimal                      `json:"repeat_offense"`
	Severity       map[SeverityLevel]decimal.Decimal    `json:"severity"`
	Cooperation    map[CooperationLevel]decimal.Decimal `json:"cooperation"`
	EconomicImpact map[EconomicImpact]decimal.Decimal   `json:"economic_impact"`
}

// ReductionFactors are five independent fractional discounts in [0,1).
type ReductionFactors struct {
	VoluntaryDisclosure decimal.Decimal `json:"voluntary_disclosure"`
	ImmediatePayment    decimal.Decimal `json:"immediate_payment"`
	FirstTimeOffender   decimal.Decimal `json:"first_time_offender"`
	CooperativeSubject  decimal.Decimal `json:"cooperative_subject"`
	MinorTechnicalError decimal.Decimal `json:"minor_technical_error"`
}

type RuleID string

type CalculationRule struct {
	ID            RuleID `json:"id"`
	ViolationCode string `json:"violation_code"`
	ViolationType string `json:"violation_type"`
	ViolationName string `json:"violation_name,omitempty"`
	LegalBasis    string `json:"legal_basis"`

	BaseAmount      decimal.Decimal  `json:"base_amount"`
	Currency        Currency         `json:"currency"`
	CalculationType CalculationType  `json:"calculation_type"`
	PercentageRate  *decimal.Decimal `json:"percentage_rate,omitempty"`
	MinimumAmount   *decimal.Decimal `json:"minimum_amount,omitempty"`
	MaximumAmount   *decimal.Decimal `json:"maximum_amount,omitempty"`

	MultiplierFactors MultiplierFactors `json:"multiplier_factors"`
	ReductionFactors  ReductionFactors  `json:"reduction_factors"`

	// Lifecycle
	IsActive       bool       `json:"is_active"`
	EffectiveDate  time.Time  `json:"effective_date"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Version        int        `json:"version"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	LastModifiedBy string     `json:"last_modified_by,omitempty"`
	LastModifiedAt *time.Time `json:"last_modified_at,omitempty"`
}

// =============================================================================
// CALCULATION INPUT - Per-computation facts
// =============================================================================

type CalculationInput struct {
	ViolationType string `json:"violation_type"`
	// ViolationValue is only consulted for PERCENTAGE rules.
	ViolationValue *decimal.Decimal `json:"violation_value,omitempty"`

	IsRepeatOffense  bool             `json:"is_repeat_offense"`
	SeverityLevel    SeverityLevel    `json:"severity_level"`
	CooperationLevel CooperationLevel `json:"cooperation_level"`
	EconomicImpact   EconomicImpact   `json:"economic_impact"`

	IsVoluntaryDisclosure bool `json:"is_voluntary_disclosure"`
	IsImmediatePayment    bool `json:"is_immediate_payment"`
	IsFirstTimeOffender   bool `json:"is_first_time_offender"`
	IsCooperativeSubject  bool `json:"is_cooperative_subject"`
	IsMinorTechnicalError bool `json:"is_minor_technical_error"`
}

// =============================================================================
// CALCULATION RESULT - Immutable output
// =============================================================================

// Step is one entry of the calculation breakdown.
type Step struct {
	Step        int             `json:"step"`
	Description string          `json:"description"`
	Factor      decimal.Decimal `json:"factor"`
	Amount      decimal.Decimal `json:"amount"`
}

type CalculationResult struct {
	BaseAmount       decimal.Decimal `json:"base_amount"`
	MultipliedAmount decimal.Decimal `json:"multiplied_amount"`
	ReducedAmount    decimal.Decimal `json:"reduced_amount"`
	FinalAmount      decimal.Decimal `json:"final_amount"`
	Currency         Currency        `json:"currency"`

	AppliedMultipliers []string `json:"applied_multipliers"`
	AppliedReductions  []string `json:"applied_reductions"`
	Breakdown          []Step   `json:"calculation_breakdown"`

	LegalBasis    string           `json:"legal_basis"`
	MinimumAmount *decimal.Decimal `json:"minimum_amount,omitempty"`
	MaximumAmount *decimal.Decimal `json:"maximum_amount,omitempty"`
}

// =============================================================================
// HISTORY - Persisted calculations
// =============================================================================

type CalculationID string

// CalculationHistoryEntry wraps one saved (rule, input, result) triple.
// Only the approval fields ever change, and only from unset to set.
type CalculationHistoryEntry struct {
	ID          CalculationID     `json:"id"`
	RuleID      RuleID            `json:"rule_id"`
	RuleVersion int               `json:"rule_version"`
	Input       CalculationInput  `json:"input"`
	Result      CalculationResult `json:"result"`

	CalculatedBy string    `json:"calculated_by"`
	CalculatedAt time.Time `json:"calculated_at"`
	CaseID       string    `json:"case_id,omitempty"`
	ViolationID  string    `json:"violation_id,omitempty"`
	Notes        string    `json:"notes,omitempty"`

	Approved   bool       `json:"approved"`
	ApprovedBy string     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
}

// HistoryFilter narrows a history query. Nil/empty fields match everything.
type HistoryFilter struct {
	CalculatedBy string
	RuleID       RuleID
	CaseID       string
	From         *time.Time
	To           *time.Time
}

// Matches reports whether the entry satisfies every set field of the filter.
func (f HistoryFilter) Matches(e CalculationHistoryEntry) bool {
	if f.CalculatedBy != "" && e.CalculatedBy != f.CalculatedBy {
		return false
	}
	if f.RuleID != "" && e.RuleID != f.RuleID {
		return false
	}
	if f.CaseID != "" && e.CaseID != f.CaseID {
		return false
	}
	if f.From != nil && e.CalculatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.CalculatedAt.After(*f.To) {
		return false
	}
	return true
}
