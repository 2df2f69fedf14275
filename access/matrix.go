/*
matrix.go - Role permission matrix

The matrix is keyed by role, not by case. Its checks are answered against a
case's SyncRecord, and the two must both allow an action:

  relation to case          matrix flag consulted      lattice requirement
  ----------------          ---------------------      -------------------
  assigned officer          ViewOwn / ModifyOwn        any / WRITE
  supervisor in the chain   ViewSubordinate /          any / WRITE
                            ModifySubordinate
  not in the record         (denied)                   -

  Reassign and Delete additionally need their matrix flag and WRITE.

  So a director (READ in the lattice) may view but not modify, whatever the
  matrix says, and an officer (FULL_ACCESS) may never reassign.
*/
package access

// Permissions is one row of the matrix.
type Permissions struct {
	Level             int  `json:"level"`
	ViewOwn           bool `json:"view_own"`
	ViewSubordinate   bool `json:"view_subordinate"`
	ViewSameLevel     bool `json:"view_same_level"`
	ViewHigherLevel   bool `json:"view_higher_level"`
	ModifyOwn         bool `json:"modify_own"`
	ModifySubordinate bool `json:"modify_subordinate"`
	Reassign          bool `json:"reassign"`
	Delete            bool `json:"delete"`
}

type Matrix map[Role]Permissions

// DefaultMatrix returns the customs administration's role table.
func DefaultMatrix() Matrix {
	return Matrix{
		RoleOfficer: {
			Level: LevelOfficer, ViewOwn: true, ModifyOwn: true,
		},
		RoleSupervisor: {
			Level: LevelSupervisor, ViewOwn: true, ViewSubordinate: true, ViewSameLevel: true,
			ModifyOwn: true, ModifySubordinate: true, Reassign: true,
		},
		RoleSectorChief: {
			Level: LevelSectorChief, ViewOwn: true, ViewSubordinate: true, ViewSameLevel: true,
			ModifyOwn: true, ModifySubordinate: true, Reassign: true, Delete: true,
		},
		RoleDirector: {
			Level: LevelDirector, ViewOwn: true, ViewSubordinate: true, ViewSameLevel: true,
			ModifyOwn: true, ModifySubordinate: true, Reassign: true, Delete: true,
		},
		RoleAdmin: {
			Level: LevelDirector, ViewOwn: true, ViewSubordinate: true, ViewSameLevel: true, ViewHigherLevel: true,
			ModifyOwn: true, ModifySubordinate: true, Reassign: true, Delete: true,
		},
	}
}

// lookup returns the user's row and lattice level, ok=false when either is missing.
func (m Matrix) lookup(user HierarchyUser, rec SyncRecord) (Permissions, AccessLevel, bool) {
	perms, ok := m[user.Role]
	if !ok {
		return Permissions{}, AccessNone, false
	}
	level := rec.AccessLevel[user.ID]
	if level == AccessNone {
		return Permissions{}, AccessNone, false
	}
	return perms, level, true
}

// CanViewCase reports whether user may view the case.
func (m Matrix) CanViewCase(user HierarchyUser, rec SyncRecord) bool {
	perms, _, ok := m.lookup(user, rec)
	if !ok {
		return false
	}
	if rec.AssignedOfficer == user.ID {
		return perms.ViewOwn
	}
	return perms.ViewSubordinate
}

// CanModifyCase reports whether user may edit the case.
func (m Matrix) CanModifyCase(user HierarchyUser, rec SyncRecord) bool {
	perms, level, ok := m.lookup(user, rec)
	if !ok || !level.AtLeast(AccessWrite) {
		return false
	}
	if rec.AssignedOfficer == user.ID {
		return perms.ModifyOwn
	}
	return perms.ModifySubordinate
}

// CanReassignCase reports whether user may move the case to another officer.
func (m Matrix) CanReassignCase(user HierarchyUser, rec SyncRecord) bool {
	perms, level, ok := m.lookup(user, rec)
	return ok && level.AtLeast(AccessWrite) && perms.Reassign
}

// CanDeleteCase reports whether user may delete the case.
func (m Matrix) CanDeleteCase(user HierarchyUser, rec SyncRecord) bool {
	perms, level, ok := m.lookup(user, rec)
	return ok && level.AtLeast(AccessWrite) && perms.Delete
}

// AccessibleCases returns the IDs of the records user may view, in input order.
func (m Matrix) AccessibleCases(user HierarchyUser, records []SyncRecord) []string {
	ids := []string{}
	for _, rec := range records {
		if m.CanViewCase(user, rec) {
			ids = append(ids, rec.CaseID)
		}
	}
	return ids
}

// AssignableUsers lists who current may hand a case to: anyone below them,
// peers from supervisor level up, everyone from director level up. Roles
// without the reassign flag get nobody.
func (m Matrix) AssignableUsers(current HierarchyUser, all []HierarchyUser) []HierarchyUser {
	perms, ok := m[current.Role]
	if !ok || !perms.Reassign {
		return []HierarchyUser{}
	}
	out := []HierarchyUser{}
	for _, u := range all {
		switch {
		case u.Level < current.Level,
			u.Level == current.Level && current.Level >= LevelSupervisor,
			current.Level >= LevelDirector:
			out = append(out, u)
		}
	}
	return out
}
