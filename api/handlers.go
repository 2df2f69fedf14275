/*
handlers.go - HTTP API handlers for the customs case engine

PURPOSE:
  Exposes the fine calculator and the case access controller via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Rules:
    GET    /api/rules                     List rules (?active=true)
    POST   /api/rules                     Create rule from document
    POST   /api/rules/validate            Validate without storing
    GET    /api/rules/{id}                Get rule
    PUT    /api/rules/{id}                Update rule (bumps version)
    DELETE /api/rules/{id}                Delete rule

  Calculations:
    POST   /api/calculate                 Calculate without saving
    POST   /api/calculations              Calculate and save to history
    GET    /api/calculations              Query history
    GET    /api/calculations/{id}         Get history entry
    POST   /api/calculations/{id}/approve Approve once
    GET    /api/statistics                History statistics

  Hierarchy & cases:
    GET    /api/hierarchy                 Org chart and users
    GET    /api/hierarchy/officers/{id}   Resolve an officer's chain
    POST   /api/cases                     Create and synchronize a case
    GET    /api/cases                     Case IDs visible to user at tier
    GET    /api/cases/{id}/sync           Sync record
    POST   /api/cases/{id}/reassign       Reassign (matrix-checked)
    GET    /api/cases/{id}/access         User's access level
    GET    /api/cases/{id}/permissions    Role matrix checks
    POST   /api/cases/{id}/activities     Notify hierarchy of activity
    GET    /api/users/{id}/dashboard      Dashboard counts
    GET    /api/users/{id}/assignable     Users the user may assign to
    GET    /api/users/{id}/notifications  Notification inbox (Redis)

  Sync:
    GET    /api/sync/runs                 Scheduler run history
    POST   /api/sync/run                  Run the scheduler now

REQUEST FLOW:
  1. Decode and validate the request (validator tags on DTOs)
  2. Call domain logic (fines.Service, access.Controller)
  3. Serialize response
  4. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON {"error", "details"}:
  - 400: Validation errors, invalid input, unknown officer under reject
  - 403: Role matrix denies the action
  - 404: Rule, calculation or case not found
  - 409: Duplicate rule, calculation already approved
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Background synchronization
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/customs-les/case-engine/access"
	"github.com/customs-les/case-engine/factory"
	"github.com/customs-les/case-engine/fines"
	"github.com/customs-les/case-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// InboxReader returns a user's recent notifications.
type InboxReader interface {
	Inbox(ctx context.Context, userID string, limit int64) ([]access.Notification, error)
}

// Handler holds all dependencies for HTTP handlers. Store, Scheduler and
// Inbox are optional; their endpoints answer 503 when unset.
type Handler struct {
	Fines  *fines.Service
	Access *access.Controller
	Matrix access.Matrix
	Rules  *factory.RuleFactory

	Store     *sqlite.Store
	Scheduler *SyncScheduler
	Inbox     InboxReader

	Metrics *Metrics
	Logger  *zap.Logger
	NewID   func() string
	Now     func() time.Time
}

// NewHandler creates a new handler over the two domain components.
func NewHandler(svc *fines.Service, ctl *access.Controller) *Handler {
	return &Handler{
		Fines:   svc,
		Access:  ctl,
		Matrix:  access.DefaultMatrix(),
		Rules:   factory.NewRuleFactory(),
		Metrics: NewMetrics(),
		Logger:  zap.NewNop(),
		NewID:   uuid.NewString,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// Health reports liveness and, when a store is configured, database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unreachable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListRules returns all rules, or only those active now with ?active=true.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	var (
		rules []fines.CalculationRule
		err   error
	)
	if active, _ := strconv.ParseBool(r.URL.Query().Get("active")); active {
		rules, err = h.Fines.ActiveRules(r.Context(), h.Now())
	} else {
		rules, err = h.Fines.Rules.ListRules(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// CreateRule creates a rule from its document form.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := h.Rules.FromJSON(req.Rule)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule", err)
		return
	}

	created, err := h.Fines.CreateRule(r.Context(), rule, req.Actor)
	if err != nil {
		writeDomainError(w, "Failed to create rule", err)
		return
	}

	h.Logger.Info("rule created",
		zap.String("rule_id", string(created.ID)),
		zap.String("created_by", req.Actor))
	writeJSON(w, http.StatusCreated, created)
}

// ValidateRule reports every problem in a rule document without storing it.
func (h *Handler) ValidateRule(w http.ResponseWriter, r *http.Request) {
	var req ValidateRuleRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	resp := ValidateRuleResponse{Valid: true, Errors: []string{}}
	if _, err := h.Rules.FromJSON(req.Rule); err != nil {
		resp.Valid = false
		var verr *fines.RuleValidationError
		if errors.As(err, &verr) {
			resp.Errors = verr.Problems
		} else {
			resp.Errors = []string{err.Error()}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRule returns a single rule.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Fines.Rules.GetRule(r.Context(), fines.RuleID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get rule", err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// UpdateRule replaces a rule. The path ID wins over the body.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.Rule.ID = chi.URLParam(r, "id")

	rule, err := h.Rules.FromJSON(req.Rule)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule", err)
		return
	}

	updated, err := h.Fines.UpdateRule(r.Context(), rule, req.Actor)
	if err != nil {
		writeDomainError(w, "Failed to update rule", err)
		return
	}

	h.Logger.Info("rule updated",
		zap.String("rule_id", string(updated.ID)),
		zap.Int("version", updated.Version),
		zap.String("modified_by", req.Actor))
	writeJSON(w, http.StatusOK, updated)
}

// DeleteRule removes a rule. History entries keep their rule ID and version.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := fines.RuleID(chi.URLParam(r, "id"))
	if err := h.Fines.Rules.DeleteRule(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

// Calculate runs the calculator without saving.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, result, err := h.Fines.CalculateByRuleID(r.Context(), fines.RuleID(req.RuleID), req.Input)
	h.observeCalculation(req.Input.ViolationType, result, err, "ok")
	if err != nil {
		writeDomainError(w, "Calculation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, CalculateResponse{
		RuleID:      rule.ID,
		RuleVersion: rule.Version,
		Result:      result,
	})
}

// SaveCalculation calculates server-side and stores the entry in history.
func (h *Handler) SaveCalculation(w http.ResponseWriter, r *http.Request) {
	var req SaveCalculationRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.Fines.CalculateAndSave(r.Context(), fines.SaveRequest{
		RuleID:       fines.RuleID(req.RuleID),
		Input:        req.Input,
		CalculatedBy: req.CalculatedBy,
		CaseID:       req.CaseID,
		ViolationID:  req.ViolationID,
		Notes:        req.Notes,
	})
	h.observeCalculation(req.Input.ViolationType, entry.Result, err, "saved")
	if err != nil {
		writeDomainError(w, "Failed to save calculation", err)
		return
	}

	h.Logger.Info("calculation saved",
		zap.String("calculation_id", string(entry.ID)),
		zap.String("rule_id", string(entry.RuleID)),
		zap.String("calculated_by", entry.CalculatedBy),
		zap.String("final_amount", entry.Result.FinalAmount.String()))
	writeJSON(w, http.StatusCreated, entry)
}

// ListCalculations queries history, newest first.
func (h *Handler) ListCalculations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := fines.HistoryFilter{
		CalculatedBy: q.Get("calculated_by"),
		RuleID:       fines.RuleID(q.Get("rule_id")),
		CaseID:       q.Get("case_id"),
	}
	var err error
	if filter.From, err = parseTimeParam(q.Get("from"), false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from", err)
		return
	}
	if filter.To, err = parseTimeParam(q.Get("to"), true); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to", err)
		return
	}

	entries, err := h.Fines.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query calculations", err)
		return
	}
	if entries == nil {
		entries = []fines.CalculationHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetCalculation returns a single history entry.
func (h *Handler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Fines.History.GetCalculation(r.Context(), fines.CalculationID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get calculation", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ApproveCalculation marks an entry approved. A second approval is a conflict.
func (h *Handler) ApproveCalculation(w http.ResponseWriter, r *http.Request) {
	var req ApproveCalculationRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.Fines.Approve(r.Context(), fines.CalculationID(chi.URLParam(r, "id")), req.ApprovedBy)
	if err != nil {
		writeDomainError(w, "Failed to approve calculation", err)
		return
	}

	h.Logger.Info("calculation approved",
		zap.String("calculation_id", string(entry.ID)),
		zap.String("approved_by", req.ApprovedBy))
	writeJSON(w, http.StatusOK, entry)
}

// Statistics aggregates the whole history.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Fines.Statistics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) observeCalculation(violationType string, result fines.CalculationResult, err error, okLabel string) {
	label := okLabel
	switch {
	case err == nil:
	case fines.IsClientError(err) || fines.IsNotFound(err):
		label = "invalid"
	default:
		label = "error"
	}
	h.Metrics.CalculationsTotal.WithLabelValues(violationType, label).Inc()
	if err == nil {
		h.Metrics.FineAmount.WithLabelValues(string(result.Currency)).Observe(result.FinalAmount.InexactFloat64())
	}
}

// =============================================================================
// HIERARCHY HANDLERS
// =============================================================================

// GetHierarchy returns the org chart and every person in it.
func (h *Handler) GetHierarchy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HierarchyResponse{
		Departments: h.Access.Chart.Departments,
		Users:       h.Access.Chart.Users(),
	})
}

// GetOfficerChain resolves an officer. Unknown officers answer 404.
func (h *Handler) GetOfficerChain(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res := h.Access.Chart.Resolve(id)
	if !res.Known {
		writeError(w, http.StatusNotFound, "Officer not found", fmt.Errorf("%w: %s", access.ErrUnknownOfficer, id))
		return
	}
	writeJSON(w, http.StatusOK, OfficerChainResponse{OfficerID: id, Known: true, Chain: res.Chain})
}

// findUser looks a person up in the org chart.
func (h *Handler) findUser(id string) (access.HierarchyUser, bool) {
	for _, u := range h.Access.Chart.Users() {
		if u.ID == id {
			return u, true
		}
	}
	return access.HierarchyUser{}, false
}

// =============================================================================
// CASE HANDLERS
// =============================================================================

// CreateCase stores a case and synchronizes its access record.
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	if h.Access.Cases == nil {
		writeError(w, http.StatusServiceUnavailable, "Case repository not configured", nil)
		return
	}

	var req CreateCaseRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if h.Access.Policy == access.PolicyReject && !h.Access.Chart.Resolve(req.AssignedTo).Known {
		writeDomainError(w, "Failed to create case", fmt.Errorf("%w: %s", access.ErrUnknownOfficer, req.AssignedTo))
		return
	}

	now := h.Now()
	c := access.Case{
		ID:              req.ID,
		Title:           req.Title,
		Type:            req.Type,
		Status:          access.CaseStatus(req.Status),
		Priority:        access.Priority(req.Priority),
		SecurityLevel:   req.SecurityLevel,
		AssignedTo:      req.AssignedTo,
		AssignedToLevel: access.LevelOfficer,
		CreatedBy:       req.CreatedBy,
		CreatedByLevel:  req.CreatedByLevel,
		Department:      req.Department,
		SectorID:        req.SectorID,
		TeamID:          req.TeamID,
		CustomsPostID:   req.CustomsPostID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if c.ID == "" {
		c.ID = "CASE-" + h.NewID()
	}
	if c.Status == "" {
		c.Status = access.StatusActive
	}

	_, err := h.Access.Cases.GetCase(r.Context(), c.ID)
	switch {
	case err == nil:
		writeError(w, http.StatusConflict, "Case already exists", nil)
		return
	case !access.IsNotFound(err):
		writeError(w, http.StatusInternalServerError, "Failed to read case", err)
		return
	}
	if err := h.Access.Cases.SaveCase(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save case", err)
		return
	}

	rec, err := h.Access.SynchronizeCase(r.Context(), c)
	h.Metrics.CaseSyncsTotal.WithLabelValues("synchronize", resultLabel(err)).Inc()
	if err != nil {
		writeDomainError(w, "Failed to synchronize case", err)
		return
	}

	writeJSON(w, http.StatusCreated, CaseResponse{Case: c, Sync: rec})
}

// ListCases returns the case IDs visible to user_id at tier. Without a tier
// the user's own role decides it.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	tier, err := h.tierFor(userID, r.URL.Query().Get("tier"))
	if err != nil {
		writeDomainError(w, "Invalid tier", err)
		return
	}

	ids, err := h.Access.CasesForUser(r.Context(), userID, tier)
	if err != nil {
		writeDomainError(w, "Failed to list cases", err)
		return
	}
	writeJSON(w, http.StatusOK, CasesResponse{UserID: userID, Tier: tier.String(), CaseIDs: ids})
}

func (h *Handler) tierFor(userID, raw string) (access.Tier, error) {
	if raw != "" {
		return access.ParseTier(raw)
	}
	if u, ok := h.findUser(userID); ok {
		return u.Role.Tier(), nil
	}
	return 0, fmt.Errorf("%w: tier is required for users outside the org chart", access.ErrInvalidRequest)
}

// GetCaseSync returns the access record of a case.
func (h *Handler) GetCaseSync(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Access.Record(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get sync record", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ReassignCase moves a case to another officer once the role matrix allows
// the actor to do so.
func (h *Handler) ReassignCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "id")

	var req ReassignRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	actor := req.Actor.user()
	updated, err := h.Access.ReassignCaseIf(r.Context(), caseID, req.OfficerID, func(prev access.SyncRecord) error {
		if !h.Matrix.CanReassignCase(actor, prev) {
			return &access.PermissionError{UserID: actor.ID, CaseID: caseID, Action: "reassign"}
		}
		return nil
	})
	h.Metrics.CaseSyncsTotal.WithLabelValues("reassign", resultLabel(err)).Inc()
	if err != nil {
		writeDomainError(w, "Failed to reassign case", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// GetCaseAccess returns user_id's level on the case. Unsynchronized cases
// grant nothing.
func (h *Handler) GetCaseAccess(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	level, err := h.Access.UserAccessLevel(r.Context(), userID, caseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read access level", err)
		return
	}
	writeJSON(w, http.StatusOK, AccessResponse{
		CaseID:      caseID,
		UserID:      userID,
		CanAccess:   level != access.AccessNone,
		AccessLevel: level,
	})
}

// GetCasePermissions answers the role matrix checks for one user. Role and
// level come from the query or, when absent, from the org chart.
func (h *Handler) GetCasePermissions(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "id")
	q := r.URL.Query()

	user, ok := h.findUser(q.Get("user_id"))
	if role := q.Get("role"); role != "" {
		user = access.HierarchyUser{ID: q.Get("user_id"), Role: access.Role(role)}
		user.Level, _ = strconv.Atoi(q.Get("level"))
		ok = user.ID != ""
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "user_id with role, or a user from the org chart, is required", nil)
		return
	}

	rec, err := h.Access.Record(r.Context(), caseID)
	if err != nil {
		writeDomainError(w, "Failed to get permissions", err)
		return
	}
	writeJSON(w, http.StatusOK, PermissionsResponse{
		CaseID:      caseID,
		UserID:      user.ID,
		Role:        user.Role,
		CanView:     h.Matrix.CanViewCase(user, rec),
		CanModify:   h.Matrix.CanModifyCase(user, rec),
		CanReassign: h.Matrix.CanReassignCase(user, rec),
		CanDelete:   h.Matrix.CanDeleteCase(user, rec),
	})
}

// SyncCaseActivities notifies the case hierarchy of each activity.
func (h *Handler) SyncCaseActivities(w http.ResponseWriter, r *http.Request) {
	var req ActivitiesRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	now := h.Now()
	activities := make([]access.Activity, len(req.Activities))
	for i, a := range req.Activities {
		activities[i] = access.Activity{
			ID:          a.ID,
			Type:        a.Type,
			Description: a.Description,
			PerformedBy: a.PerformedBy,
			At:          now,
		}
	}

	if err := h.Access.SyncCaseActivities(r.Context(), chi.URLParam(r, "id"), activities); err != nil {
		writeDomainError(w, "Failed to sync activities", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"activities": len(activities)})
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// GetDashboard returns case counts for a user at tier.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	tier, err := h.tierFor(userID, r.URL.Query().Get("tier"))
	if err != nil {
		writeDomainError(w, "Invalid tier", err)
		return
	}

	dash, err := h.Access.Dashboard(r.Context(), userID, tier)
	if err != nil {
		writeDomainError(w, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// GetAssignableUsers lists the people a user may hand a case to.
func (h *Handler) GetAssignableUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := h.findUser(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.Matrix.AssignableUsers(user, h.Access.Chart.Users()))
}

// GetNotifications returns the user's inbox, newest first.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	if h.Inbox == nil {
		writeError(w, http.StatusServiceUnavailable, "Notification inbox not configured", nil)
		return
	}
	userID := chi.URLParam(r, "id")
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)

	items, err := h.Inbox.Inbox(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to read inbox", err)
		return
	}
	writeJSON(w, http.StatusOK, InboxResponse{UserID: userID, Notifications: items})
}

// =============================================================================
// SYNC HANDLERS
// =============================================================================

// ListSyncRuns returns the scheduler history.
func (h *Handler) ListSyncRuns(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "Run history not configured", nil)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}

	runs, err := h.Store.GetSyncRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sync runs", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// TriggerSync runs one scheduler pass immediately.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Scheduler not configured", nil)
		return
	}
	run, err := h.Scheduler.RunNow(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sync run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// parseTimeParam accepts RFC3339 or a date. A date used as an upper bound
// covers the whole day.
func parseTimeParam(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("want RFC3339 or YYYY-MM-DD, got %q", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, access.ErrPermissionDenied):
		status = http.StatusForbidden
	case fines.IsNotFound(err), access.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, fines.ErrRuleExists), errors.Is(err, fines.ErrCalculationExists),
		errors.Is(err, fines.ErrAlreadyApproved):
		status = http.StatusConflict
	case fines.IsClientError(err), access.IsClientError(err):
		status = http.StatusBadRequest
	}
	writeError(w, status, message, err)
}
