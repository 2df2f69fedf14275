/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types that
  already carry JSON tags (fines.CalculationRule, access.SyncRecord, ...)
  are returned as-is; the types here cover request bodies and responses
  that combine several domain values.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers
  - *DTO: Nested value types

VALIDATION:
  Request types carry go-playground/validator tags. decodeAndValidate
  rejects a body that fails them with 400 before any domain call.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rules.go: RuleJSON type
*/
package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/customs-les/case-engine/access"
	"github.com/customs-les/case-engine/factory"
	"github.com/customs-les/case-engine/fines"
)

// =============================================================================
// RULES
// =============================================================================

// RuleRequest creates or updates a rule.
type RuleRequest struct {
	Rule  factory.RuleJSON `json:"rule"`
	Actor string           `json:"actor" validate:"required"`
}

// ValidateRuleRequest checks a rule without storing it.
type ValidateRuleRequest struct {
	Rule factory.RuleJSON `json:"rule"`
}

type ValidateRuleResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// =============================================================================
// CALCULATIONS
// =============================================================================

type CalculateRequest struct {
	RuleID string                 `json:"rule_id" validate:"required"`
	Input  fines.CalculationInput `json:"input"`
}

type CalculateResponse struct {
	RuleID      fines.RuleID            `json:"rule_id"`
	RuleVersion int                     `json:"rule_version"`
	Result      fines.CalculationResult `json:"result"`
}

type SaveCalculationRequest struct {
	RuleID       string                 `json:"rule_id" validate:"required"`
	Input        fines.CalculationInput `json:"input"`
	CalculatedBy string                 `json:"calculated_by" validate:"required"`
	CaseID       string                 `json:"case_id,omitempty"`
	ViolationID  string                 `json:"violation_id,omitempty"`
	Notes        string                 `json:"notes,omitempty" validate:"max=2000"`
}

type ApproveCalculationRequest struct {
	ApprovedBy string `json:"approved_by" validate:"required"`
}

// =============================================================================
// CASES
// =============================================================================

type CreateCaseRequest struct {
	ID             string `json:"id,omitempty"`
	Title          string `json:"title" validate:"required,max=200"`
	Type           string `json:"type,omitempty"`
	Status         string `json:"status,omitempty" validate:"omitempty,oneof=DRAFT ACTIVE PENDING IN_PROGRESS UNDER_REVIEW COMPLETED ARCHIVED"`
	Priority       string `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH URGENT CRITICAL"`
	SecurityLevel  string `json:"security_level,omitempty"`
	AssignedTo     string `json:"assigned_to" validate:"required"`
	CreatedBy      string `json:"created_by" validate:"required"`
	CreatedByLevel int    `json:"created_by_level" validate:"min=1,max=4"`
	Department     string `json:"department,omitempty"`
	SectorID       string `json:"sector_id,omitempty"`
	TeamID         string `json:"team_id,omitempty"`
	CustomsPostID  string `json:"customs_post_id,omitempty"`
}

type CaseResponse struct {
	Case access.Case       `json:"case"`
	Sync access.SyncRecord `json:"sync"`
}

// ActorDTO identifies who performs a mutating case operation.
type ActorDTO struct {
	ID    string `json:"id" validate:"required"`
	Role  string `json:"role" validate:"required,oneof=OFFICER SUPERVISOR SECTOR_CHIEF DIRECTOR ADMIN"`
	Level int    `json:"level" validate:"min=1,max=4"`
}

func (a ActorDTO) user() access.HierarchyUser {
	return access.HierarchyUser{ID: a.ID, Role: access.Role(a.Role), Level: a.Level}
}

type ReassignRequest struct {
	OfficerID string   `json:"officer_id" validate:"required"`
	Actor     ActorDTO `json:"actor"`
}

type ActivitiesRequest struct {
	Activities []ActivityDTO `json:"activities" validate:"required,min=1,dive"`
}

type ActivityDTO struct {
	ID          string `json:"id,omitempty"`
	Type        string `json:"type" validate:"required"`
	Description string `json:"description" validate:"required"`
	PerformedBy string `json:"performed_by,omitempty"`
}

type CasesResponse struct {
	UserID  string   `json:"user_id"`
	Tier    string   `json:"tier"`
	CaseIDs []string `json:"case_ids"`
}

type AccessResponse struct {
	CaseID      string             `json:"case_id"`
	UserID      string             `json:"user_id"`
	CanAccess   bool               `json:"can_access"`
	AccessLevel access.AccessLevel `json:"access_level"`
}

type PermissionsResponse struct {
	CaseID      string      `json:"case_id"`
	UserID      string      `json:"user_id"`
	Role        access.Role `json:"role"`
	CanView     bool        `json:"can_view"`
	CanModify   bool        `json:"can_modify"`
	CanReassign bool        `json:"can_reassign"`
	CanDelete   bool        `json:"can_delete"`
}

// =============================================================================
// HIERARCHY
// =============================================================================

type HierarchyResponse struct {
	Departments map[string]access.Department `json:"departments"`
	Users       []access.HierarchyUser       `json:"users"`
}

type OfficerChainResponse struct {
	OfficerID string       `json:"officer_id"`
	Known     bool         `json:"known"`
	Chain     access.Chain `json:"chain"`
}

type InboxResponse struct {
	UserID        string                `json:"user_id"`
	Notifications []access.Notification `json:"notifications"`
}

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validationError flattens validator output into "field: rule" pairs.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(parts, "; "))
}
