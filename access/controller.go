/*
controller.go - Per-case access synchronization

OPERATIONS:
  SynchronizeCase  - derive the chain for the assignee, store a fresh record
  ReassignCase     - replace chain and access map for a new officer
  ReassignCaseIf   - ReassignCase after a check against the replaced record
  ReconcileCase    - repair a record that drifted from the case repository
  CasesForUser     - tier-inclusive visibility query
  CanUserAccessCase / UserAccessLevel - lookups against one record
  SubordinateCases - cases where the user supervises the assignee
  SyncCaseActivities - UPDATE notifications for case activity
  MarkError        - flag a record whose re-synchronization failed

WRITE PATH (synchronize / reassign):
  1. Lock the case ID (other IDs proceed in parallel)
  2. Resolve the officer's chain (policy decides unknown officers)
  3. Save the record as PENDING
  4. Notify the four roles (best-effort, failures are logged)
  5. Save the record as SYNCED

  A PENDING record left behind by a crash between 3 and 5 is picked up by
  the sync scheduler and synchronized again. Checks that decide whether to
  write (ReassignCaseIf's allow, ReconcileCase's comparison) run under the
  same lock as the write.
*/
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// UnknownOfficerPolicy decides what happens when an assignee is not in the
// org chart.
type UnknownOfficerPolicy string

const (
	// PolicyQuarantine assigns the fallback chain and marks the record Unresolved.
	PolicyQuarantine UnknownOfficerPolicy = "quarantine"
	// PolicyReject fails with ErrUnknownOfficer.
	PolicyReject UnknownOfficerPolicy = "reject"
)

func (p UnknownOfficerPolicy) IsValid() bool {
	return p == PolicyQuarantine || p == PolicyReject
}

// Activity is a case event that the hierarchy should hear about.
type Activity struct {
	ID          string    `json:"id,omitempty"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	PerformedBy string    `json:"performed_by,omitempty"`
	At          time.Time `json:"at"`
}

// Controller owns the SyncRecords. Fields other than Chart and Records are
// optional and may be replaced after NewController.
type Controller struct {
	Chart   *OrgChart
	Records SyncStore

	// Cases receives reassignments when set.
	Cases    CaseStore
	Notifier Notifier
	Logger   *zap.Logger

	Policy   UnknownOfficerPolicy
	Fallback Chain
	Now      func() time.Time

	locks *keyedMutex
}

func NewController(chart *OrgChart, records SyncStore) *Controller {
	return &Controller{
		Chart:    chart,
		Records:  records,
		Logger:   zap.NewNop(),
		Policy:   PolicyQuarantine,
		Fallback: DefaultFallbackChain,
		Now:      func() time.Time { return time.Now().UTC() },
		locks:    newKeyedMutex(),
	}
}

// =============================================================================
// WRITE PATH
// =============================================================================

// SynchronizeCase builds and stores the record for c.AssignedTo. Running it
// again for the same assignee overwrites the record with an equivalent one.
func (ctl *Controller) SynchronizeCase(ctx context.Context, c Case) (SyncRecord, error) {
	if c.ID == "" || c.AssignedTo == "" {
		return SyncRecord{}, fmt.Errorf("%w: case id and assignee are required", ErrInvalidRequest)
	}
	unlock := ctl.locks.Lock(c.ID)
	defer unlock()

	rec, err := ctl.buildRecord(c.ID, c.AssignedTo)
	if err != nil {
		return SyncRecord{}, err
	}
	return ctl.commit(ctx, rec, NotifyNewCase)
}

// ReassignCase replaces the whole chain and access map of a synchronized case.
func (ctl *Controller) ReassignCase(ctx context.Context, caseID, newOfficerID string) (SyncRecord, error) {
	return ctl.ReassignCaseIf(ctx, caseID, newOfficerID, nil)
}

// ReassignCaseIf is ReassignCase guarded by allow, which sees the record
// about to be replaced and runs under the case lock. A non-nil error from
// allow is returned unchanged and nothing is written.
func (ctl *Controller) ReassignCaseIf(ctx context.Context, caseID, newOfficerID string, allow func(prev SyncRecord) error) (SyncRecord, error) {
	if newOfficerID == "" {
		return SyncRecord{}, fmt.Errorf("%w: new officer is required", ErrInvalidRequest)
	}
	unlock := ctl.locks.Lock(caseID)
	defer unlock()

	prev, err := ctl.Records.GetRecord(ctx, caseID)
	if err != nil {
		return SyncRecord{}, err
	}
	if allow != nil {
		if err := allow(prev); err != nil {
			return SyncRecord{}, err
		}
	}
	return ctl.reassign(ctx, prev, newOfficerID, true)
}

// reassign rebuilds prev for newOfficerID. Caller holds the case lock.
func (ctl *Controller) reassign(ctx context.Context, prev SyncRecord, newOfficerID string, persist bool) (SyncRecord, error) {
	rec, err := ctl.buildRecord(prev.CaseID, newOfficerID)
	if err != nil {
		return SyncRecord{}, err
	}

	if persist && ctl.Cases != nil {
		if _, err := ctl.Cases.UpdateAssignment(ctx, prev.CaseID, newOfficerID, LevelOfficer, rec.LastSyncedAt); err != nil {
			return SyncRecord{}, fmt.Errorf("persist reassignment of case %s: %w", prev.CaseID, err)
		}
	}

	ctl.Logger.Info("case reassigned",
		zap.String("case_id", prev.CaseID),
		zap.String("from", prev.AssignedOfficer),
		zap.String("to", newOfficerID))
	return ctl.commit(ctx, rec, NotifyReassignment)
}

// ReconcileAction names the repair ReconcileCase performed.
type ReconcileAction string

const (
	ReconcileNone        ReconcileAction = ""
	ReconcileSynchronize ReconcileAction = "synchronize"
	ReconcileReassign    ReconcileAction = "reassign"
)

// ReconcileCase reads the case and its record under the case lock and
// repairs the record when they disagree:
//
//	no record             -> synchronize
//	assignee differs      -> reassign to the repository's assignee
//	record not SYNCED     -> synchronize
//
// When the repair fails the existing record is flagged ERROR and the action
// is returned with the error. ReconcileNone with an error means the case or
// its record could not be read.
func (ctl *Controller) ReconcileCase(ctx context.Context, caseID string) (ReconcileAction, error) {
	if ctl.Cases == nil {
		return ReconcileNone, fmt.Errorf("%w: reconcile needs a case repository", ErrInvalidRequest)
	}
	unlock := ctl.locks.Lock(caseID)
	defer unlock()

	c, err := ctl.Cases.GetCase(ctx, caseID)
	if err != nil {
		return ReconcileNone, err
	}
	prev, err := ctl.Records.GetRecord(ctx, caseID)
	hasRecord := err == nil

	var action ReconcileAction
	switch {
	case IsNotFound(err):
		action = ReconcileSynchronize
		err = ctl.synchronize(ctx, c)
	case err != nil:
		return ReconcileNone, err
	case prev.AssignedOfficer != c.AssignedTo:
		action = ReconcileReassign
		_, err = ctl.reassign(ctx, prev, c.AssignedTo, false)
	case prev.SyncStatus != SyncSynced:
		action = ReconcileSynchronize
		err = ctl.synchronize(ctx, c)
	default:
		return ReconcileNone, nil
	}

	if err != nil && hasRecord {
		if markErr := ctl.markError(ctx, prev, err); markErr != nil {
			ctl.Logger.Error("mark case error failed", zap.String("case_id", caseID), zap.Error(markErr))
		}
	}
	return action, err
}

// synchronize is SynchronizeCase without the lock.
func (ctl *Controller) synchronize(ctx context.Context, c Case) error {
	rec, err := ctl.buildRecord(c.ID, c.AssignedTo)
	if err != nil {
		return err
	}
	_, err = ctl.commit(ctx, rec, NotifyNewCase)
	return err
}

// MarkError flags the record of a case whose re-synchronization failed. The
// access map is left untouched.
func (ctl *Controller) MarkError(ctx context.Context, caseID string, cause error) error {
	unlock := ctl.locks.Lock(caseID)
	defer unlock()

	rec, err := ctl.Records.GetRecord(ctx, caseID)
	if err != nil {
		return err
	}
	return ctl.markError(ctx, rec, cause)
}

func (ctl *Controller) markError(ctx context.Context, rec SyncRecord, cause error) error {
	rec.SyncStatus = SyncError
	if cause != nil {
		rec.LastError = cause.Error()
	}
	return ctl.Records.SaveRecord(ctx, rec)
}

func (ctl *Controller) buildRecord(caseID, officerID string) (SyncRecord, error) {
	res := ctl.Chart.Resolve(officerID)
	chain := res.Chain
	if !res.Known {
		if ctl.Policy == PolicyReject {
			return SyncRecord{}, fmt.Errorf("%w: %s", ErrUnknownOfficer, officerID)
		}
		ctl.Logger.Warn("officer outside org chart, assigning fallback chain",
			zap.String("case_id", caseID),
			zap.String("officer_id", officerID))
		chain = ctl.Fallback
	}
	rec := newSyncRecord(caseID, officerID, chain, ctl.Now())
	rec.Unresolved = !res.Known
	return rec, nil
}

// commit runs steps 3-5 of the write path. Caller holds the case lock.
func (ctl *Controller) commit(ctx context.Context, rec SyncRecord, kind NotificationKind) (SyncRecord, error) {
	if err := ctl.Records.SaveRecord(ctx, rec); err != nil {
		return SyncRecord{}, fmt.Errorf("save sync record %s: %w", rec.CaseID, err)
	}

	ctl.notify(ctx, rec, kind, "")

	rec.SyncStatus = SyncSynced
	if err := ctl.Records.SaveRecord(ctx, rec); err != nil {
		return SyncRecord{}, fmt.Errorf("save sync record %s: %w", rec.CaseID, err)
	}
	ctl.Logger.Debug("case synchronized",
		zap.String("case_id", rec.CaseID),
		zap.String("kind", string(kind)),
		zap.Bool("unresolved", rec.Unresolved))
	return rec, nil
}

func (ctl *Controller) notify(ctx context.Context, rec SyncRecord, kind NotificationKind, detail string) {
	if ctl.Notifier == nil {
		return
	}
	for _, n := range HierarchyNotifications(rec, kind, detail, ctl.Now()) {
		if err := ctl.Notifier.Notify(ctx, n); err != nil {
			ctl.Logger.Warn("notification failed",
				zap.String("case_id", n.CaseID),
				zap.String("user_id", n.UserID),
				zap.String("kind", string(n.Kind)),
				zap.Error(err))
		}
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// Record returns the stored record for a case.
func (ctl *Controller) Record(ctx context.Context, caseID string) (SyncRecord, error) {
	return ctl.Records.GetRecord(ctx, caseID)
}

// CasesForUser lists the IDs of cases userID sees at tier, sorted.
func (ctl *Controller) CasesForUser(ctx context.Context, userID string, tier Tier) ([]string, error) {
	if !tier.IsValid() {
		return nil, fmt.Errorf("%w: tier %d", ErrInvalidRequest, int(tier))
	}
	records, err := ctl.Records.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, rec := range records {
		if rec.VisibleAt(userID, tier) {
			ids = append(ids, rec.CaseID)
		}
	}
	return sortedIDs(ids), nil
}

// CanUserAccessCase reports whether userID holds any level on the case.
// A case that was never synchronized is not accessible.
func (ctl *Controller) CanUserAccessCase(ctx context.Context, userID, caseID string) (bool, error) {
	level, err := ctl.UserAccessLevel(ctx, userID, caseID)
	if err != nil {
		return false, err
	}
	return level != AccessNone, nil
}

// UserAccessLevel returns AccessNone when the user has no entry or the case
// was never synchronized.
func (ctl *Controller) UserAccessLevel(ctx context.Context, userID, caseID string) (AccessLevel, error) {
	rec, err := ctl.Records.GetRecord(ctx, caseID)
	if errors.Is(err, ErrCaseNotFound) {
		return AccessNone, nil
	}
	if err != nil {
		return AccessNone, err
	}
	return rec.AccessLevel[userID], nil
}

// SubordinateCases lists cases where userID is sector chief, administrator
// or director.
func (ctl *Controller) SubordinateCases(ctx context.Context, userID string) ([]string, error) {
	records, err := ctl.Records.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, rec := range records {
		if rec.Supervises(userID) {
			ids = append(ids, rec.CaseID)
		}
	}
	return sortedIDs(ids), nil
}

// SyncCaseActivities sends one round of UPDATE notifications per activity.
func (ctl *Controller) SyncCaseActivities(ctx context.Context, caseID string, activities []Activity) error {
	rec, err := ctl.Records.GetRecord(ctx, caseID)
	if err != nil {
		return err
	}
	for _, a := range activities {
		ctl.notify(ctx, rec, NotifyUpdate, a.Description)
	}
	return nil
}
