/*
store.go - Persistence interfaces for rules and calculation history

KEY INTERFACES:
  RuleStore:    Versioned rule records (create, update bumps version)
  HistoryStore: Saved calculations (append, query, one-way approval)

HISTORY CONTRACT:
  A history entry is written once. The only later write is approval, which
  moves Approved/ApprovedBy/ApprovedAt from unset to set exactly once.

IMPLEMENTATIONS:
  - fines/store/memory.go: In-memory for tests and single-process use
  - store/sqlite/sqlite.go: SQLite
*/
package fines

import (
	"context"
	"time"
)

// RuleStore persists calculation rules.
type RuleStore interface {
	// GetRule returns ErrRuleNotFound when the ID is unknown.
	GetRule(ctx context.Context, id RuleID) (CalculationRule, error)

	// ListRules returns every rule ordered by ID.
	ListRules(ctx context.Context) ([]CalculationRule, error)

	// CreateRule stores a new rule. Returns ErrRuleExists on ID collision.
	CreateRule(ctx context.Context, rule CalculationRule) error

	// UpdateRule replaces a rule and bumps its version.
	// Returns the stored rule with the new version.
	UpdateRule(ctx context.Context, rule CalculationRule) (CalculationRule, error)

	// DeleteRule removes a rule. Returns ErrRuleNotFound when the ID is unknown.
	DeleteRule(ctx context.Context, id RuleID) error
}

// HistoryStore persists saved calculations.
type HistoryStore interface {
	// SaveCalculation stores a fully populated entry (ID and CalculatedAt set).
	// Returns ErrCalculationExists on ID collision.
	SaveCalculation(ctx context.Context, entry CalculationHistoryEntry) error

	// GetCalculation returns ErrCalculationNotFound when the ID is unknown.
	GetCalculation(ctx context.Context, id CalculationID) (CalculationHistoryEntry, error)

	// QueryCalculations returns matching entries, newest first.
	QueryCalculations(ctx context.Context, filter HistoryFilter) ([]CalculationHistoryEntry, error)

	// ApproveCalculation sets the approval fields once.
	// Returns ErrAlreadyApproved on a second approval.
	ApproveCalculation(ctx context.Context, id CalculationID, approvedBy string, at time.Time) (CalculationHistoryEntry, error)
}
