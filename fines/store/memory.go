// Package store provides in-memory fines.RuleStore and fines.HistoryStore
// implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/customs-les/case-engine/fines"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	rules        map[fines.RuleID]fines.CalculationRule
	calculations map[fines.CalculationID]fines.CalculationHistoryEntry
}

func NewMemory() *Memory {
	return &Memory{
		rules:        make(map[fines.RuleID]fines.CalculationRule),
		calculations: make(map[fines.CalculationID]fines.CalculationHistoryEntry),
	}
}

// =============================================================================
// RULES
// =============================================================================

func (m *Memory) GetRule(_ context.Context, id fines.RuleID) (fines.CalculationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rule, ok := m.rules[id]
	if !ok {
		return fines.CalculationRule{}, fines.ErrRuleNotFound
	}
	return rule, nil
}

func (m *Memory) ListRules(_ context.Context) ([]fines.CalculationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]fines.CalculationRule, 0, len(m.rules))
	for _, r := range m.rules {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) CreateRule(_ context.Context, rule fines.CalculationRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[rule.ID]; ok {
		return fines.ErrRuleExists
	}
	if rule.Version < 1 {
		rule.Version = 1
	}
	m.rules[rule.ID] = rule
	return nil
}

// UpdateRule replaces the rule and sets Version to stored version + 1,
// whatever version the caller passed in.
func (m *Memory) UpdateRule(_ context.Context, rule fines.CalculationRule) (fines.CalculationRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.rules[rule.ID]
	if !ok {
		return fines.CalculationRule{}, fines.ErrRuleNotFound
	}
	rule.Version = current.Version + 1
	m.rules[rule.ID] = rule
	return rule, nil
}

func (m *Memory) DeleteRule(_ context.Context, id fines.RuleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[id]; !ok {
		return fines.ErrRuleNotFound
	}
	delete(m.rules, id)
	return nil
}

// =============================================================================
// HISTORY
// =============================================================================

func (m *Memory) SaveCalculation(_ context.Context, entry fines.CalculationHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.calculations[entry.ID]; ok {
		return fines.ErrCalculationExists
	}
	m.calculations[entry.ID] = entry
	return nil
}

func (m *Memory) GetCalculation(_ context.Context, id fines.CalculationID) (fines.CalculationHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.calculations[id]
	if !ok {
		return fines.CalculationHistoryEntry{}, fines.ErrCalculationNotFound
	}
	return entry, nil
}

func (m *Memory) QueryCalculations(_ context.Context, filter fines.HistoryFilter) ([]fines.CalculationHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []fines.CalculationHistoryEntry
	for _, e := range m.calculations {
		if filter.Matches(e) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CalculatedAt.Equal(result[j].CalculatedAt) {
			return result[i].CalculatedAt.After(result[j].CalculatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (m *Memory) ApproveCalculation(_ context.Context, id fines.CalculationID, approvedBy string, at time.Time) (fines.CalculationHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.calculations[id]
	if !ok {
		return fines.CalculationHistoryEntry{}, fines.ErrCalculationNotFound
	}
	if entry.Approved {
		return entry, fines.ErrAlreadyApproved
	}
	entry.Approved = true
	entry.ApprovedBy = approvedBy
	entry.ApprovedAt = &at
	m.calculations[id] = entry
	return entry, nil
}
