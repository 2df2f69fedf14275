/*
service.go - Repository-backed fine operations

PURPOSE:
  Calculate() is pure. Everything that touches a store lives here: resolving
  a rule by ID before calculating, saving a calculation into history,
  approving it, and rule lifecycle (create / update / delete).

  Store failures are returned to the caller as-is (wrapped with context).
  There are no fallbacks to built-in data.

USAGE:
  svc := fines.NewService(rules, history)
  rule, result, err := svc.CalculateByRuleID(ctx, "CONTRABAND_001", input)
  entry, err := svc.Save(ctx, fines.CalculationHistoryEntry{...})
*/
package fines

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service wires the calculator to the rule and history stores.
type Service struct {
	Rules   RuleStore
	History HistoryStore

	// Now and NewID are replaceable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

func NewService(rules RuleStore, history HistoryStore) *Service {
	return &Service{
		Rules:   rules,
		History: history,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   uuid.NewString,
	}
}

// =============================================================================
// CALCULATION
// =============================================================================

// CalculateByRuleID resolves the rule and runs Calculate.
func (s *Service) CalculateByRuleID(ctx context.Context, id RuleID, input CalculationInput) (CalculationRule, CalculationResult, error) {
	rule, err := s.Rules.GetRule(ctx, id)
	if err != nil {
		return CalculationRule{}, CalculationResult{}, fmt.Errorf("resolve rule %s: %w", id, err)
	}
	result, err := Calculate(rule, input)
	if err != nil {
		return rule, CalculationResult{}, err
	}
	return rule, result, nil
}

// Save stores a calculation in history. ID and CalculatedAt are always
// assigned here; approval fields are cleared so entries start unapproved.
func (s *Service) Save(ctx context.Context, entry CalculationHistoryEntry) (CalculationHistoryEntry, error) {
	entry.ID = CalculationID(s.NewID())
	entry.CalculatedAt = s.Now()
	entry.Approved = false
	entry.ApprovedBy = ""
	entry.ApprovedAt = nil

	if err := s.History.SaveCalculation(ctx, entry); err != nil {
		return CalculationHistoryEntry{}, fmt.Errorf("save calculation: %w", err)
	}
	return entry, nil
}

// SaveRequest describes a calculation to compute and record in one call.
type SaveRequest struct {
	RuleID       RuleID
	Input        CalculationInput
	CalculatedBy string
	CaseID       string
	ViolationID  string
	Notes        string
}

// CalculateAndSave computes the result server-side and records it, so the
// stored result always matches the stored rule version and input.
func (s *Service) CalculateAndSave(ctx context.Context, req SaveRequest) (CalculationHistoryEntry, error) {
	rule, result, err := s.CalculateByRuleID(ctx, req.RuleID, req.Input)
	if err != nil {
		return CalculationHistoryEntry{}, err
	}
	return s.Save(ctx, CalculationHistoryEntry{
		RuleID:       rule.ID,
		RuleVersion:  rule.Version,
		Input:        req.Input,
		Result:       result,
		CalculatedBy: req.CalculatedBy,
		CaseID:       req.CaseID,
		ViolationID:  req.ViolationID,
		Notes:        req.Notes,
	})
}

// Approve marks a saved calculation approved. One-way.
func (s *Service) Approve(ctx context.Context, id CalculationID, approvedBy string) (CalculationHistoryEntry, error) {
	return s.History.ApproveCalculation(ctx, id, approvedBy, s.Now())
}

// Query returns saved calculations matching the filter.
func (s *Service) Query(ctx context.Context, filter HistoryFilter) ([]CalculationHistoryEntry, error) {
	return s.History.QueryCalculations(ctx, filter)
}

// Statistics aggregates the whole calculation history.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	entries, err := s.History.QueryCalculations(ctx, HistoryFilter{})
	if err != nil {
		return Statistics{}, fmt.Errorf("load history: %w", err)
	}
	return ComputeStatistics(entries, s.Now()), nil
}

// =============================================================================
// RULE LIFECYCLE
// =============================================================================

// CreateRule validates and stores a new rule at version 1.
func (s *Service) CreateRule(ctx context.Context, rule CalculationRule, createdBy string) (CalculationRule, error) {
	rule.Version = 1
	rule.CreatedBy = createdBy
	rule.CreatedAt = s.Now()
	rule.LastModifiedBy = ""
	rule.LastModifiedAt = nil
	if err := ValidateRule(rule); err != nil {
		return CalculationRule{}, err
	}
	if err := s.Rules.CreateRule(ctx, rule); err != nil {
		return CalculationRule{}, fmt.Errorf("create rule %s: %w", rule.ID, err)
	}
	return rule, nil
}

// UpdateRule validates and replaces a rule; the store bumps the version.
// Creation metadata is preserved from the stored rule.
func (s *Service) UpdateRule(ctx context.Context, rule CalculationRule, modifiedBy string) (CalculationRule, error) {
	current, err := s.Rules.GetRule(ctx, rule.ID)
	if err != nil {
		return CalculationRule{}, fmt.Errorf("update rule %s: %w", rule.ID, err)
	}
	now := s.Now()
	rule.CreatedBy = current.CreatedBy
	rule.CreatedAt = current.CreatedAt
	rule.Version = current.Version
	rule.LastModifiedBy = modifiedBy
	rule.LastModifiedAt = &now
	if err := ValidateRule(rule); err != nil {
		return CalculationRule{}, err
	}
	updated, err := s.Rules.UpdateRule(ctx, rule)
	if err != nil {
		return CalculationRule{}, fmt.Errorf("update rule %s: %w", rule.ID, err)
	}
	return updated, nil
}

// ActiveRules returns the rules in force at the given instant.
func (s *Service) ActiveRules(ctx context.Context, at time.Time) ([]CalculationRule, error) {
	rules, err := s.Rules.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]CalculationRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActiveAt(at) {
			active = append(active, r)
		}
	}
	return active, nil
}
