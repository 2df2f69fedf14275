package access

import (
	"errors"
	"fmt"
)

var (
	// ErrCaseNotFound is returned when a case was never synchronized (or is
	// missing from the case repository).
	ErrCaseNotFound = errors.New("case not found")

	// ErrPermissionDenied is returned by callers that enforce a failed check.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnknownOfficer is returned under the reject policy when an officer
	// is not part of the org chart.
	ErrUnknownOfficer = errors.New("officer not found in org chart")

	// ErrInvalidRequest covers malformed tiers, roles and org charts.
	ErrInvalidRequest = errors.New("invalid access request")
)

// PermissionError names the denied action.
type PermissionError struct {
	UserID string
	CaseID string
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s may not %s case %s", e.UserID, e.Action, e.CaseID)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

// IsNotFound returns true if the error indicates a missing case.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCaseNotFound)
}

// IsClientError returns true if the error is due to a bad request.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownOfficer) || errors.Is(err, ErrInvalidRequest)
}
