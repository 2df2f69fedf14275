/*
handlers_test.go - HTTP tests for the API handlers

Tests run the full router against an in-memory SQLite store seeded with the
preset rules and the default org chart.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customs-les/case-engine/access"
	"github.com/customs-les/case-engine/factory"
	"github.com/customs-les/case-engine/fines"
	"github.com/customs-les/case-engine/store/sqlite"
)

type capturedNotifications struct {
	mu    sync.Mutex
	items []access.Notification
}

func (c *capturedNotifications) Notify(_ context.Context, n access.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, n)
	return nil
}

func (c *capturedNotifications) Inbox(_ context.Context, userID string, _ int64) ([]access.Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []access.Notification{}
	for i := len(c.items) - 1; i >= 0; i-- {
		if c.items[i].UserID == userID {
			out = append(out, c.items[i])
		}
	}
	return out, nil
}

type testServer struct {
	handler *Handler
	router  http.Handler
	store   *sqlite.Store
	inbox   *capturedNotifications
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rules, err := factory.DefaultRules()
	require.NoError(t, err)
	_, err = factory.Seed(context.Background(), store, rules)
	require.NoError(t, err)

	inbox := &capturedNotifications{}
	ctl := access.NewController(access.DefaultOrgChart(), store)
	ctl.Cases = store
	ctl.Notifier = inbox

	h := NewHandler(fines.NewService(store, store), ctl)
	h.Store = store
	h.Inbox = inbox
	h.Scheduler = NewSyncScheduler(ctl, store, h.Logger, h.Metrics)

	return &testServer{
		handler: h,
		router:  NewRouter(h, []string{"http://localhost:5173"}),
		store:   store,
		inbox:   inbox,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func neutralInput(violationType string) map[string]any {
	return map[string]any{
		"violation_type":    violationType,
		"severity_level":    "moderate",
		"cooperation_level": "partial",
		"economic_impact":   "medium",
	}
}

func (s *testServer) createCase(t *testing.T, id, officer string) CaseResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/cases", map[string]any{
		"id":               id,
		"title":            "Undeclared cigarettes at " + id,
		"priority":         "HIGH",
		"assigned_to":      officer,
		"created_by":       "SC001",
		"created_by_level": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[CaseResponse](t, rec)
}

// =============================================================================
// HEALTH & METRICS
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.do(t, http.MethodGet, "/api/rules", nil)
	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `case_engine_http_requests_total{method="GET",route="/api/rules`)
}

// =============================================================================
// RULES
// =============================================================================

func TestListRules(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/rules?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rules := decode[[]fines.CalculationRule](t, rec)
	require.Len(t, rules, 2)
	assert.Equal(t, fines.RuleID("CONTRABAND_001"), rules[0].ID)
}

func TestCreateRule_ThenConflict(t *testing.T) {
	// GIVEN: A valid rule document
	// WHEN: Posted twice
	// THEN: 201 then 409

	s := newTestServer(t)
	var rj factory.RuleJSON
	require.NoError(t, json.Unmarshal([]byte(factory.FalseDeclarationRuleJSON()), &rj))
	rj.ID = "FALSE_DECLARATION_002"

	rec := s.do(t, http.MethodPost, "/api/rules", RuleRequest{Rule: rj, Actor: "ADM001"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[fines.CalculationRule](t, rec)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, "ADM001", created.CreatedBy)

	rec = s.do(t, http.MethodPost, "/api/rules", RuleRequest{Rule: rj, Actor: "ADM001"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateRule_InvalidDocument(t *testing.T) {
	s := newTestServer(t)
	var rj factory.RuleJSON
	require.NoError(t, json.Unmarshal([]byte(factory.ContrabandRuleJSON()), &rj))
	rj.ID = "BROKEN"
	rj.BaseAmount = -1

	rec := s.do(t, http.MethodPost, "/api/rules", RuleRequest{Rule: rj, Actor: "ADM001"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/rules", RuleRequest{Rule: rj})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "actor is required")
}

func TestValidateRule(t *testing.T) {
	s := newTestServer(t)
	var rj factory.RuleJSON
	require.NoError(t, json.Unmarshal([]byte(factory.ContrabandRuleJSON()), &rj))

	rec := s.do(t, http.MethodPost, "/api/rules/validate", ValidateRuleRequest{Rule: rj})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[ValidateRuleResponse](t, rec).Valid)

	rj.BaseAmount = -1
	delete(rj.Multipliers.Severity, "critical")
	rec = s.do(t, http.MethodPost, "/api/rules/validate", ValidateRuleRequest{Rule: rj})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ValidateRuleResponse](t, rec)
	assert.False(t, resp.Valid)
	assert.GreaterOrEqual(t, len(resp.Errors), 2, "every problem is listed")

	list := decode[[]fines.CalculationRule](t, s.do(t, http.MethodGet, "/api/rules", nil))
	assert.Len(t, list, 2, "validation stores nothing")
}

func TestUpdateAndDeleteRule(t *testing.T) {
	s := newTestServer(t)
	var rj factory.RuleJSON
	require.NoError(t, json.Unmarshal([]byte(factory.ContrabandRuleJSON()), &rj))
	rj.ID = "ignored"
	rj.BaseAmount = 6000

	rec := s.do(t, http.MethodPut, "/api/rules/CONTRABAND_001", RuleRequest{Rule: rj, Actor: "ADM002"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[fines.CalculationRule](t, rec)
	assert.Equal(t, fines.RuleID("CONTRABAND_001"), updated.ID, "path ID wins")
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "ADM002", updated.LastModifiedBy)

	rec = s.do(t, http.MethodDelete, "/api/rules/CONTRABAND_001", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/rules/CONTRABAND_001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/rules/CONTRABAND_001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// CALCULATIONS
// =============================================================================

func TestCalculate_NeutralInputKeepsBaseAmount(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/calculate", map[string]any{
		"rule_id": "CONTRABAND_001",
		"input":   neutralInput("CONTRABAND"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[CalculateResponse](t, rec)
	assert.Equal(t, 1, resp.RuleVersion)
	assert.True(t, decimal.NewFromInt(5000).Equal(resp.Result.FinalAmount), "got %s", resp.Result.FinalAmount)
	assert.Equal(t, fines.CurrencyEUR, resp.Result.Currency)
}

func TestCalculate_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed body", "{", http.StatusBadRequest},
		{"missing rule id", map[string]any{"input": neutralInput("CONTRABAND")}, http.StatusBadRequest},
		{"unknown rule", map[string]any{"rule_id": "NOPE", "input": neutralInput("CONTRABAND")}, http.StatusNotFound},
		{"bad severity", map[string]any{"rule_id": "CONTRABAND_001", "input": map[string]any{
			"violation_type": "CONTRABAND", "severity_level": "extreme",
			"cooperation_level": "partial", "economic_impact": "medium",
		}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/calculate", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestCalculationLifecycle(t *testing.T) {
	// GIVEN: A saved calculation
	// WHEN: Queried, approved twice, summarized
	// THEN: History reflects it, second approval conflicts, statistics count it

	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/calculations", map[string]any{
		"rule_id":       "CONTRABAND_001",
		"input":         neutralInput("CONTRABAND"),
		"calculated_by": "OFF001",
		"case_id":       "CASE-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[fines.CalculationHistoryEntry](t, rec)
	require.NotEmpty(t, entry.ID)
	assert.Equal(t, 1, entry.RuleVersion)
	assert.False(t, entry.Approved)

	rec = s.do(t, http.MethodGet, "/api/calculations?calculated_by=OFF001&case_id=CASE-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]fines.CalculationHistoryEntry](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/calculations?calculated_by=OFF002", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]fines.CalculationHistoryEntry](t, rec))

	rec = s.do(t, http.MethodGet, "/api/calculations?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/api/calculations/" + string(entry.ID)
	rec = s.do(t, http.MethodPost, path+"/approve", ApproveCalculationRequest{ApprovedBy: "SC001"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[fines.CalculationHistoryEntry](t, rec)
	assert.True(t, approved.Approved)
	assert.Equal(t, "SC001", approved.ApprovedBy)

	rec = s.do(t, http.MethodPost, path+"/approve", ApproveCalculationRequest{ApprovedBy: "SC002"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SC001", decode[fines.CalculationHistoryEntry](t, rec).ApprovedBy)

	rec = s.do(t, http.MethodGet, "/api/statistics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[fines.Statistics](t, rec)
	assert.Equal(t, 1, stats.TotalCalculations)

	rec = s.do(t, http.MethodGet, "/api/calculations/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// HIERARCHY
// =============================================================================

func TestHierarchy(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/hierarchy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HierarchyResponse](t, rec)
	assert.Len(t, resp.Departments, 4)
	assert.NotEmpty(t, resp.Users)

	rec = s.do(t, http.MethodGet, "/api/hierarchy/officers/OFF004", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chain := decode[OfficerChainResponse](t, rec)
	assert.Equal(t, "SC002", chain.Chain.SectorChief)
	assert.Equal(t, "ADM001", chain.Chain.Administrator)
	assert.Equal(t, "DIR001", chain.Chain.Director)

	rec = s.do(t, http.MethodGet, "/api/hierarchy/officers/OFF999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// CASES
// =============================================================================

func TestCreateCase_SynchronizesAndNotifies(t *testing.T) {
	s := newTestServer(t)

	resp := s.createCase(t, "CASE-100", "OFF001")
	assert.Equal(t, access.StatusActive, resp.Case.Status)
	assert.Equal(t, access.SyncSynced, resp.Sync.SyncStatus)
	assert.Equal(t, map[string]access.AccessLevel{
		"OFF001": access.AccessFull,
		"SC001":  access.AccessWrite,
		"ADM001": access.AccessRead,
		"DIR001": access.AccessRead,
	}, resp.Sync.AccessLevel)

	rec := s.do(t, http.MethodGet, "/api/users/SC001/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := decode[InboxResponse](t, rec)
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, "CASE-100", inbox.Notifications[0].CaseID)

	rec = s.do(t, http.MethodPost, "/api/cases", map[string]any{
		"id": "CASE-100", "title": "dup", "priority": "LOW",
		"assigned_to": "OFF001", "created_by": "SC001", "created_by_level": 3,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateCase_GeneratesID(t *testing.T) {
	s := newTestServer(t)
	s.handler.NewID = func() string { return "fixed" }

	resp := s.createCase(t, "", "OFF010")
	assert.Equal(t, "CASE-fixed", resp.Case.ID)
	assert.Equal(t, "SC004", resp.Sync.SectorChief)
}

func TestCreateCase_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/cases", map[string]any{
		"title": "no priority", "assigned_to": "OFF001", "created_by": "SC001", "created_by_level": 3,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "Priority")
}

// unreadableCases fails lookups and records whether a save was attempted.
type unreadableCases struct {
	*sqlite.Store
	saved bool
}

var errCaseStoreDown = errors.New("case store unavailable")

func (u *unreadableCases) GetCase(context.Context, string) (access.Case, error) {
	return access.Case{}, errCaseStoreDown
}

func (u *unreadableCases) SaveCase(ctx context.Context, c access.Case) error {
	u.saved = true
	return u.Store.SaveCase(ctx, c)
}

func TestCreateCase_LookupFailure(t *testing.T) {
	// GIVEN: A case repository whose lookups fail
	// WHEN: A case is created
	// THEN: 500 naming the lookup, and no insert is attempted

	s := newTestServer(t)
	cases := &unreadableCases{Store: s.store}
	s.handler.Access.Cases = cases

	rec := s.do(t, http.MethodPost, "/api/cases", map[string]any{
		"id": "CASE-1", "title": "lookup fails", "priority": "LOW",
		"assigned_to": "OFF001", "created_by": "SC001", "created_by_level": 3,
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Failed to read case", resp.Error)
	assert.Contains(t, resp.Details, "case store unavailable")
	assert.False(t, cases.saved)
}

func TestCreateCase_UnknownOfficer(t *testing.T) {
	// GIVEN: An assignee outside the org chart
	// WHEN: Created under quarantine, then under reject
	// THEN: Quarantine assigns the fallback chain; reject answers 400 and stores nothing

	s := newTestServer(t)

	resp := s.createCase(t, "CASE-Q", "OFF999")
	assert.True(t, resp.Sync.Unresolved)
	assert.Equal(t, "SC999", resp.Sync.SectorChief)

	s.handler.Access.Policy = access.PolicyReject
	rec := s.do(t, http.MethodPost, "/api/cases", map[string]any{
		"id": "CASE-R", "title": "rejected", "priority": "LOW",
		"assigned_to": "OFF998", "created_by": "SC001", "created_by_level": 3,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, err := s.store.GetCase(context.Background(), "CASE-R")
	assert.True(t, access.IsNotFound(err))
}

func TestListCases_TierInclusive(t *testing.T) {
	s := newTestServer(t)
	s.createCase(t, "CASE-1", "OFF001")
	s.createCase(t, "CASE-2", "OFF004")

	tests := []struct {
		query string
		want  []string
	}{
		{"user_id=OFF001&tier=Officer", []string{"CASE-1"}},
		{"user_id=SC001&tier=Officer", []string{}},
		{"user_id=SC001&tier=SectorChief", []string{"CASE-1"}},
		{"user_id=SC001", []string{"CASE-1"}},
		{"user_id=DIR001&tier=Director", []string{"CASE-1", "CASE-2"}},
		{"user_id=ADM001&tier=Director", []string{"CASE-1", "CASE-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/cases?"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, decode[CasesResponse](t, rec).CaseIDs)
		})
	}

	rec := s.do(t, http.MethodGet, "/api/cases?user_id=SC001&tier=Chief", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/cases?user_id=GHOST", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "tier cannot be derived")
	rec = s.do(t, http.MethodGet, "/api/cases", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReassignCase(t *testing.T) {
	// GIVEN: A case in the north sector
	// WHEN: The officer tries to reassign it, then the sector chief does
	// THEN: 403 for the officer; the chief moves it to the south sector

	s := newTestServer(t)
	s.createCase(t, "CASE-1", "OFF001")

	rec := s.do(t, http.MethodPost, "/api/cases/CASE-1/reassign", map[string]any{
		"officer_id": "OFF004",
		"actor":      map[string]any{"id": "OFF001", "role": "OFFICER", "level": 1},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cases/CASE-1/reassign", map[string]any{
		"officer_id": "OFF004",
		"actor":      map[string]any{"id": "SC001", "role": "SECTOR_CHIEF", "level": 3},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[access.SyncRecord](t, rec)
	assert.Equal(t, "OFF004", moved.AssignedOfficer)
	assert.Equal(t, "SC002", moved.SectorChief)
	assert.NotContains(t, moved.AccessLevel, "OFF001")
	assert.NotContains(t, moved.AccessLevel, "SC001")

	c, err := s.store.GetCase(context.Background(), "CASE-1")
	require.NoError(t, err)
	assert.Equal(t, "OFF004", c.AssignedTo, "repository follows the reassignment")

	rec = s.do(t, http.MethodPost, "/api/cases/CASE-404/reassign", map[string]any{
		"officer_id": "OFF004",
		"actor":      map[string]any{"id": "SC001", "role": "SECTOR_CHIEF", "level": 3},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cases/CASE-1/reassign", map[string]any{
		"officer_id": "OFF005",
		"actor":      map[string]any{"id": "SC002", "role": "CHIEF", "level": 3},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown role fails validation")
}

func TestReassignCase_AuthorizedAgainstCurrentRecord(t *testing.T) {
	// GIVEN: A case SC001 supervised until it moved to the south sector
	// WHEN: SC001 tries to reassign it again
	// THEN: 403, because SC001 holds nothing on the record being replaced

	s := newTestServer(t)
	s.createCase(t, "CASE-1", "OFF001")
	_, err := s.handler.Access.ReassignCase(context.Background(), "CASE-1", "OFF004")
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/cases/CASE-1/reassign", map[string]any{
		"officer_id": "OFF002",
		"actor":      map[string]any{"id": "SC001", "role": "SECTOR_CHIEF", "level": 3},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	got, err := s.handler.Access.Record(context.Background(), "CASE-1")
	require.NoError(t, err)
	assert.Equal(t, "OFF004", got.AssignedOfficer)
}

func TestCaseAccessAndPermissions(t *testing.T) {
	s := newTestServer(t)
	s.createCase(t, "CASE-1", "OFF001")

	rec := s.do(t, http.MethodGet, "/api/cases/CASE-1/access?user_id=SC001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	acc := decode[AccessResponse](t, rec)
	assert.True(t, acc.CanAccess)
	assert.Equal(t, access.AccessWrite, acc.AccessLevel)

	rec = s.do(t, http.MethodGet, "/api/cases/CASE-404/access?user_id=SC001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[AccessResponse](t, rec).CanAccess, "unsynchronized cases grant nothing")

	rec = s.do(t, http.MethodGet, "/api/cases/CASE-1/permissions?user_id=DIR001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	perms := decode[PermissionsResponse](t, rec)
	assert.True(t, perms.CanView)
	assert.False(t, perms.CanModify, "READ in the lattice")
	assert.False(t, perms.CanReassign)

	rec = s.do(t, http.MethodGet, "/api/cases/CASE-1/permissions?user_id=OFF001&role=OFFICER&level=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	perms = decode[PermissionsResponse](t, rec)
	assert.True(t, perms.CanModify)
	assert.False(t, perms.CanReassign)
	assert.False(t, perms.CanDelete)

	rec = s.do(t, http.MethodGet, "/api/cases/CASE-1/permissions?user_id=GHOST", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncCaseActivities(t *testing.T) {
	s := newTestServer(t)
	s.createCase(t, "CASE-1", "OFF001")

	rec := s.do(t, http.MethodPost, "/api/cases/CASE-1/activities", map[string]any{
		"activities": []map[string]any{
			{"type": "SEIZURE", "description": "Goods seized", "performed_by": "OFF001"},
			{"type": "NOTE", "description": "Owner contacted"},
		},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	inbox := decode[InboxResponse](t, s.do(t, http.MethodGet, "/api/users/DIR001/notifications", nil))
	assert.Len(t, inbox.Notifications, 3, "creation plus two activities")
	assert.True(t, strings.Contains(inbox.Notifications[0].Message, "Owner contacted"))

	rec = s.do(t, http.MethodPost, "/api/cases/CASE-404/activities", map[string]any{
		"activities": []map[string]any{{"type": "NOTE", "description": "x"}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cases/CASE-1/activities", map[string]any{"activities": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// USERS
// =============================================================================

func TestDashboard(t *testing.T) {
	s := newTestServer(t)
	s.createCase(t, "CASE-1", "OFF001")
	s.createCase(t, "CASE-2", "OFF002")
	s.createCase(t, "CASE-3", "OFF004")

	rec := s.do(t, http.MethodGet, "/api/users/SC001/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dash := decode[access.Dashboard](t, rec)
	assert.Equal(t, 2, dash.TotalCases)
	assert.Equal(t, 2, dash.SubordinateCases)
	assert.Equal(t, 2, dash.Statistics.HighPriority)
}

func TestAssignableUsers(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/users/OFF001/assignable", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]access.HierarchyUser](t, rec), "officers cannot reassign")

	rec = s.do(t, http.MethodGet, "/api/users/SC001/assignable", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, u := range decode[[]access.HierarchyUser](t, rec) {
		assert.LessOrEqual(t, u.Level, access.LevelSectorChief)
	}

	rec = s.do(t, http.MethodGet, "/api/users/GHOST/assignable", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationsWithoutInbox(t *testing.T) {
	s := newTestServer(t)
	s.handler.Inbox = nil

	rec := s.do(t, http.MethodGet, "/api/users/SC001/notifications", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// =============================================================================
// SYNC
// =============================================================================

func TestTriggerSyncAndListRuns(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// A case written straight to the repository has no record yet.
	require.NoError(t, s.store.SaveCase(ctx, access.Case{
		ID: "CASE-RAW", Title: "raw", Status: access.StatusActive, Priority: access.PriorityLow,
		AssignedTo: "OFF013", AssignedToLevel: access.LevelOfficer, CreatedAt: now, UpdatedAt: now,
	}))

	rec := s.do(t, http.MethodPost, "/api/sync/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := decode[sqlite.SyncRun](t, rec)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, 1, run.Synchronized)

	rec = s.do(t, http.MethodGet, "/api/cases/CASE-RAW/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SC005", decode[access.SyncRecord](t, rec).SectorChief)

	rec = s.do(t, http.MethodGet, "/api/sync/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]sqlite.SyncRun](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}
