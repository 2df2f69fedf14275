package access

import (
	"context"
	"time"
)

// SyncStore persists one SyncRecord per case ID.
type SyncStore interface {
	// GetRecord returns ErrCaseNotFound when the case was never synchronized.
	GetRecord(ctx context.Context, caseID string) (SyncRecord, error)

	// SaveRecord inserts or fully replaces the record for rec.CaseID.
	SaveRecord(ctx context.Context, rec SyncRecord) error

	// ListRecords returns every record ordered by case ID.
	ListRecords(ctx context.Context) ([]SyncRecord, error)
}

// CaseStore is the case repository. The controller only writes to it when a
// reassignment must be persisted.
type CaseStore interface {
	SaveCase(ctx context.Context, c Case) error

	// GetCase returns ErrCaseNotFound when the ID is unknown.
	GetCase(ctx context.Context, id string) (Case, error)

	// ListCases returns every case ordered by ID.
	ListCases(ctx context.Context) ([]Case, error)

	// UpdateAssignment moves a case to a new officer.
	UpdateAssignment(ctx context.Context, caseID, officerID string, level int, at time.Time) (Case, error)
}
