// Package store provides in-memory access.SyncStore and access.CaseStore
// implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/customs-les/case-engine/access"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records map[string]access.SyncRecord
	cases   map[string]access.Case
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]access.SyncRecord),
		cases:   make(map[string]access.Case),
	}
}

// =============================================================================
// SYNC RECORDS
// =============================================================================

func (m *Memory) GetRecord(_ context.Context, caseID string) (access.SyncRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[caseID]
	if !ok {
		return access.SyncRecord{}, access.ErrCaseNotFound
	}
	return rec.Clone(), nil
}

func (m *Memory) SaveRecord(_ context.Context, rec access.SyncRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.CaseID] = rec.Clone()
	return nil
}

func (m *Memory) ListRecords(_ context.Context) ([]access.SyncRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]access.SyncRecord, 0, len(m.records))
	for _, rec := range m.records {
		result = append(result, rec.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CaseID < result[j].CaseID })
	return result, nil
}

// =============================================================================
// CASES
// =============================================================================

func (m *Memory) SaveCase(_ context.Context, c access.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[c.ID] = c
	return nil
}

func (m *Memory) GetCase(_ context.Context, id string) (access.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.cases[id]
	if !ok {
		return access.Case{}, access.ErrCaseNotFound
	}
	return c, nil
}

func (m *Memory) ListCases(_ context.Context) ([]access.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]access.Case, 0, len(m.cases))
	for _, c := range m.cases {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) UpdateAssignment(_ context.Context, caseID, officerID string, level int, at time.Time) (access.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cases[caseID]
	if !ok {
		return access.Case{}, access.ErrCaseNotFound
	}
	c.AssignedTo = officerID
	c.AssignedToLevel = level
	c.UpdatedAt = at
	m.cases[caseID] = c
	return c, nil
}
