/*
Package access implements hierarchy-aware case access control.

PURPOSE:
  Every case is owned by one assigned officer. Walking the organization chart
  from that officer yields three supervisors (sector chief, department
  administrator, department director). The controller records, per case, a
  SyncRecord that grants each of those four people an access level:

      assigned officer  FULL_ACCESS
      sector chief      WRITE
      administrator     READ
      director          READ

  Visibility and mutation questions are answered from that record alone,
  never from ad hoc flags on the case.

KEY CONCEPTS IN THIS FILE (types.go):
  - Tier: the level a visibility query is asked at (Officer..Director)
  - AccessLevel: READ < WRITE < FULL_ACCESS
  - Role / HierarchyUser: a person's position in the organization
  - Case: the case repository record
  - SyncRecord: the per-case access lattice

SEE ALSO:
  - orgchart.go: department -> sector -> officer tree
  - controller.go: synchronize, reassign, queries
  - matrix.go: role matrix checks derived from SyncRecord
*/
package access

import (
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// TIERS - Query level for CasesForUser
// =============================================================================

// Tier is the hierarchy level a visibility query is made at. Each tier sees
// everything the tiers below it see.
type Tier int

const (
	TierOfficer Tier = iota + 1
	TierSectorChief
	TierAdministrator
	TierDirector
)

var tierNames = map[Tier]string{
	TierOfficer:       "Officer",
	TierSectorChief:   "SectorChief",
	TierAdministrator: "Administrator",
	TierDirector:      "Director",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

func (t Tier) IsValid() bool { return t >= TierOfficer && t <= TierDirector }

// ParseTier accepts the tier names used on the wire ("Officer", "SectorChief",
// "Administrator", "Director").
func ParseTier(s string) (Tier, error) {
	for t, name := range tierNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown tier %q", ErrInvalidRequest, s)
}

// =============================================================================
// ACCESS LEVELS
// =============================================================================

type AccessLevel string

const (
	AccessNone  AccessLevel = ""
	AccessRead  AccessLevel = "READ"
	AccessWrite AccessLevel = "WRITE"
	AccessFull  AccessLevel = "FULL_ACCESS"
)

func (l AccessLevel) rank() int {
	switch l {
	case AccessRead:
		return 1
	case AccessWrite:
		return 2
	case AccessFull:
		return 3
	}
	return 0
}

// AtLeast reports whether l grants everything other grants.
func (l AccessLevel) AtLeast(other AccessLevel) bool { return l.rank() >= other.rank() }

// =============================================================================
// ROLES & USERS
// =============================================================================

type Role string

const (
	RoleOfficer     Role = "OFFICER"
	RoleSupervisor  Role = "SUPERVISOR"
	RoleSectorChief Role = "SECTOR_CHIEF"
	RoleDirector    Role = "DIRECTOR"
	RoleAdmin       Role = "ADMIN"
)

// Hierarchy levels: 1=Officer, 2=Supervisor, 3=SectorChief, 4=Director/Admin.
const (
	LevelOfficer     = 1
	LevelSupervisor  = 2
	LevelSectorChief = 3
	LevelDirector    = 4
)

// Tier maps a role onto the per-case query tier. Supervisors have no slot in
// a SyncRecord, so they query as officers.
func (r Role) Tier() Tier {
	switch r {
	case RoleSectorChief:
		return TierSectorChief
	case RoleAdmin:
		return TierAdministrator
	case RoleDirector:
		return TierDirector
	default:
		return TierOfficer
	}
}

type HierarchyUser struct {
	ID           string   `json:"id"`
	Role         Role     `json:"role"`
	Level        int      `json:"hierarchy_level"`
	Department   string   `json:"department"`
	SectorID     string   `json:"sector_id,omitempty"`
	TeamID       string   `json:"team_id,omitempty"`
	Subordinates []string `json:"subordinates,omitempty"`
}

// =============================================================================
// CASE - Case repository record
// =============================================================================

type CaseStatus string

const (
	StatusDraft       CaseStatus = "DRAFT"
	StatusActive      CaseStatus = "ACTIVE"
	StatusPending     CaseStatus = "PENDING"
	StatusInProgress  CaseStatus = "IN_PROGRESS"
	StatusUnderReview CaseStatus = "UNDER_REVIEW"
	StatusCompleted   CaseStatus = "COMPLETED"
	StatusArchived    CaseStatus = "ARCHIVED"
)

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityUrgent   Priority = "URGENT"
	PriorityCritical Priority = "CRITICAL"
)

// IsHigh reports whether the priority counts towards high-priority totals.
func (p Priority) IsHigh() bool {
	return p == PriorityHigh || p == PriorityUrgent || p == PriorityCritical
}

type Case struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Type            string     `json:"type"`
	Status          CaseStatus `json:"status"`
	Priority        Priority   `json:"priority"`
	SecurityLevel   string     `json:"security_level,omitempty"`
	AssignedTo      string     `json:"assigned_to"`
	AssignedToLevel int        `json:"assigned_to_level"`
	CreatedBy       string     `json:"created_by"`
	CreatedByLevel  int        `json:"created_by_level"`
	Department      string     `json:"department,omitempty"`
	SectorID        string     `json:"sector_id,omitempty"`
	TeamID          string     `json:"team_id,omitempty"`
	CustomsPostID   string     `json:"customs_post_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// =============================================================================
// SYNC RECORD - Per-case access lattice
// =============================================================================

type SyncStatus string

const (
	// SyncPending: record stored, hierarchy not yet notified.
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	// SyncError: the last re-synchronization attempt failed.
	SyncError SyncStatus = "ERROR"
)

type SyncRecord struct {
	CaseID          string                 `json:"case_id"`
	AssignedOfficer string                 `json:"assigned_officer"`
	SectorChief     string                 `json:"sector_chief"`
	Administrator   string                 `json:"administrator"`
	Director        string                 `json:"director"`
	AccessLevel     map[string]AccessLevel `json:"access_level"`
	SyncStatus      SyncStatus             `json:"sync_status"`
	LastSyncedAt    time.Time              `json:"last_synced_at"`

	// Unresolved is set when the officer is outside the org chart and the
	// fallback chain was assigned.
	Unresolved bool   `json:"unresolved,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// newSyncRecord builds a fresh record for officer under chain. When two roles
// fall on the same person the higher access level wins.
func newSyncRecord(caseID, officer string, chain Chain, at time.Time) SyncRecord {
	levels := make(map[string]AccessLevel, 4)
	grant := func(userID string, level AccessLevel) {
		if userID == "" {
			return
		}
		if current, ok := levels[userID]; !ok || level.rank() > current.rank() {
			levels[userID] = level
		}
	}
	grant(officer, AccessFull)
	grant(chain.SectorChief, AccessWrite)
	grant(chain.Administrator, AccessRead)
	grant(chain.Director, AccessRead)

	return SyncRecord{
		CaseID:          caseID,
		AssignedOfficer: officer,
		SectorChief:     chain.SectorChief,
		Administrator:   chain.Administrator,
		Director:        chain.Director,
		AccessLevel:     levels,
		SyncStatus:      SyncPending,
		LastSyncedAt:    at,
	}
}

// VisibleAt reports whether userID sees this case when querying at tier.
// Each tier adds one role to the ones below it.
func (r SyncRecord) VisibleAt(userID string, tier Tier) bool {
	if userID == "" {
		return false
	}
	switch {
	case r.AssignedOfficer == userID:
		return tier >= TierOfficer
	case r.SectorChief == userID:
		return tier >= TierSectorChief
	case r.Administrator == userID:
		return tier >= TierAdministrator
	case r.Director == userID:
		return tier >= TierDirector
	}
	return false
}

// Supervises reports whether userID holds a supervising role in the chain.
func (r SyncRecord) Supervises(userID string) bool {
	return userID != "" &&
		(r.SectorChief == userID || r.Administrator == userID || r.Director == userID)
}

// Clone returns a copy that shares no map with r.
func (r SyncRecord) Clone() SyncRecord {
	levels := make(map[string]AccessLevel, len(r.AccessLevel))
	for k, v := range r.AccessLevel {
		levels[k] = v
	}
	r.AccessLevel = levels
	return r
}

func sortedIDs(ids []string) []string {
	sort.Strings(ids)
	return ids
}
