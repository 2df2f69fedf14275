/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the case engine using SQLite.
  In production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  fines.RuleStore:     Versioned calculation rules
  fines.HistoryStore:  Saved calculations with one-way approval
  access.CaseStore:    Case repository
  access.SyncStore:    Per-case access records

HISTORY ENFORCEMENT:
  calculation_history rows are written once. The only UPDATE allowed sets
  the approval columns, guarded by "approved = 0" so it happens at most once.

KEY TABLES:
  rules:               Rule definitions (rule_json + indexed columns)
  calculation_history: Saved (rule, input, result) triples
  cases:               Case records
  case_sync:           One access record per case
  sync_runs:           Scheduler runs, for audit and display

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/cases.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := fines.NewService(store, store)
  ctl := access.NewController(chart, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/customs-les/case-engine/access"
	"github.com/customs-les/case-engine/fines"
)

var (
	_ fines.RuleStore    = (*Store)(nil)
	_ fines.HistoryStore = (*Store)(nil)
	_ access.CaseStore   = (*Store)(nil)
	_ access.SyncStore   = (*Store)(nil)
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Calculation rules (versioned)
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		violation_code TEXT NOT NULL,
		violation_type TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		effective_date TEXT NOT NULL,
		expiry_date TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		rule_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_violation_type
		ON rules(violation_type);

	-- Calculation history (write-once except approval)
	CREATE TABLE IF NOT EXISTS calculation_history (
		id TEXT PRIMARY KEY,
		rule_id TEXT NOT NULL,
		rule_version INTEGER NOT NULL,
		calculated_by TEXT NOT NULL,
		calculated_at TEXT NOT NULL,
		case_id TEXT,
		violation_id TEXT,
		notes TEXT,
		input_json TEXT NOT NULL,
		result_json TEXT NOT NULL,
		approved INTEGER NOT NULL DEFAULT 0,
		approved_by TEXT,
		approved_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_history_calculated_at
		ON calculation_history(calculated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_history_calculated_by
		ON calculation_history(calculated_by);
	CREATE INDEX IF NOT EXISTS idx_history_rule
		ON calculation_history(rule_id);
	CREATE INDEX IF NOT EXISTS idx_history_case
		ON calculation_history(case_id) WHERE case_id IS NOT NULL;

	-- Cases
	CREATE TABLE IF NOT EXISTS cases (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		case_type TEXT,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		security_level TEXT,
		assigned_to TEXT NOT NULL,
		assigned_to_level INTEGER NOT NULL,
		created_by TEXT NOT NULL,
		created_by_level INTEGER NOT NULL,
		department TEXT,
		sector_id TEXT,
		team_id TEXT,
		customs_post_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cases_assigned_to
		ON cases(assigned_to);

	-- Access records (one per case)
	CREATE TABLE IF NOT EXISTS case_sync (
		case_id TEXT PRIMARY KEY,
		assigned_officer TEXT NOT NULL,
		sector_chief TEXT NOT NULL,
		administrator TEXT NOT NULL,
		director TEXT NOT NULL,
		access_json TEXT NOT NULL,
		sync_status TEXT NOT NULL,
		last_synced_at TEXT NOT NULL,
		unresolved INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_case_sync_status
		ON case_sync(sync_status);

	-- Scheduler runs
	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		scanned INTEGER NOT NULL DEFAULT 0,
		synchronized INTEGER NOT NULL DEFAULT 0,
		reassigned INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sync_runs_started
		ON sync_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RULE STORE
// =============================================================================

const ruleColumns = "rule_json, version"

func (s *Store) GetRule(ctx context.Context, id fines.RuleID) (fines.CalculationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM rules WHERE id = ?", string(id))
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fines.CalculationRule{}, fines.ErrRuleNotFound
	}
	return rule, err
}

func (s *Store) ListRules(ctx context.Context) ([]fines.CalculationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+ruleColumns+" FROM rules ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []fines.CalculationRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (s *Store) CreateRule(ctx context.Context, rule fines.CalculationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.Version < 1 {
		rule.Version = 1
	}
	ruleJSON, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("encode rule: %w", err)
	}

	now := formatTime(time.Now().UTC())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (id, violation_code, violation_type, is_active, effective_date,
			expiry_date, version, rule_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rule.ID), rule.ViolationCode, rule.ViolationType, rule.IsActive,
		formatTime(rule.EffectiveDate), formatTimePtr(rule.ExpiryDate),
		rule.Version, string(ruleJSON), now, now,
	)
	if isUniqueConstraintError(err) {
		return fines.ErrRuleExists
	}
	return err
}

// UpdateRule replaces the rule and sets Version to stored version + 1.
func (s *Store) UpdateRule(ctx context.Context, rule fines.CalculationRule) (fines.CalculationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fines.CalculationRule{}, err
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx, "SELECT version FROM rules WHERE id = ?", string(rule.ID)).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fines.CalculationRule{}, fines.ErrRuleNotFound
	}
	if err != nil {
		return fines.CalculationRule{}, err
	}

	rule.Version = current + 1
	ruleJSON, err := json.Marshal(rule)
	if err != nil {
		return fines.CalculationRule{}, fmt.Errorf("encode rule: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rules SET
			violation_code = ?,
			violation_type = ?,
			is_active = ?,
			effective_date = ?,
			expiry_date = ?,
			version = ?,
			rule_json = ?,
			updated_at = ?
		WHERE id = ?`,
		rule.ViolationCode, rule.ViolationType, rule.IsActive,
		formatTime(rule.EffectiveDate), formatTimePtr(rule.ExpiryDate),
		rule.Version, string(ruleJSON), formatTime(time.Now().UTC()),
		string(rule.ID),
	)
	if err != nil {
		return fines.CalculationRule{}, err
	}
	if err := tx.Commit(); err != nil {
		return fines.CalculationRule{}, err
	}
	return rule, nil
}

func (s *Store) DeleteRule(ctx context.Context, id fines.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fines.ErrRuleNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (fines.CalculationRule, error) {
	var ruleJSON string
	var version int
	if err := row.Scan(&ruleJSON, &version); err != nil {
		return fines.CalculationRule{}, err
	}
	var rule fines.CalculationRule
	if err := json.Unmarshal([]byte(ruleJSON), &rule); err != nil {
		return fines.CalculationRule{}, fmt.Errorf("decode rule: %w", err)
	}
	rule.Version = version
	return rule, nil
}

// =============================================================================
// HISTORY STORE
// =============================================================================

const historyColumns = `id, rule_id, rule_version, calculated_by, calculated_at, case_id,
	violation_id, notes, input_json, result_json, approved, approved_by, approved_at`

func (s *Store) SaveCalculation(ctx context.Context, e fines.CalculationHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inputJSON, err := json.Marshal(e.Input)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	resultJSON, err := json.Marshal(e.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calculation_history (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), string(e.RuleID), e.RuleVersion, e.CalculatedBy, formatTime(e.CalculatedAt),
		nullString(e.CaseID), nullString(e.ViolationID), nullString(e.Notes),
		string(inputJSON), string(resultJSON),
		e.Approved, nullString(e.ApprovedBy), formatTimePtr(e.ApprovedAt),
	)
	if isUniqueConstraintError(err) {
		return fines.ErrCalculationExists
	}
	return err
}

func (s *Store) GetCalculation(ctx context.Context, id fines.CalculationID) (fines.CalculationHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCalculation(ctx, id)
}

func (s *Store) getCalculation(ctx context.Context, id fines.CalculationID) (fines.CalculationHistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+historyColumns+" FROM calculation_history WHERE id = ?", string(id))
	e, err := scanCalculation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fines.CalculationHistoryEntry{}, fines.ErrCalculationNotFound
	}
	return e, err
}

// QueryCalculations returns matching entries, newest first.
func (s *Store) QueryCalculations(ctx context.Context, f fines.HistoryFilter) ([]fines.CalculationHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if f.CalculatedBy != "" {
		where = append(where, "calculated_by = ?")
		args = append(args, f.CalculatedBy)
	}
	if f.RuleID != "" {
		where = append(where, "rule_id = ?")
		args = append(args, string(f.RuleID))
	}
	if f.CaseID != "" {
		where = append(where, "case_id = ?")
		args = append(args, f.CaseID)
	}
	if f.From != nil {
		where = append(where, "calculated_at >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where = append(where, "calculated_at <= ?")
		args = append(args, formatTime(*f.To))
	}

	query := "SELECT " + historyColumns + " FROM calculation_history"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY calculated_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []fines.CalculationHistoryEntry
	for rows.Next() {
		e, err := scanCalculation(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) ApproveCalculation(ctx context.Context, id fines.CalculationID, approvedBy string, at time.Time) (fines.CalculationHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE calculation_history
		SET approved = 1, approved_by = ?, approved_at = ?
		WHERE id = ? AND approved = 0`,
		approvedBy, formatTime(at), string(id),
	)
	if err != nil {
		return fines.CalculationHistoryEntry{}, err
	}

	entry, err := s.getCalculation(ctx, id)
	if err != nil {
		return fines.CalculationHistoryEntry{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entry, fines.ErrAlreadyApproved
	}
	return entry, nil
}

func scanCalculation(row rowScanner) (fines.CalculationHistoryEntry, error) {
	var e fines.CalculationHistoryEntry
	var id, ruleID, calculatedAt, inputJSON, resultJSON string
	var caseID, violationID, notes, approvedBy, approvedAt sql.NullString

	if err := row.Scan(
		&id, &ruleID, &e.RuleVersion, &e.CalculatedBy, &calculatedAt, &caseID,
		&violationID, &notes, &inputJSON, &resultJSON, &e.Approved, &approvedBy, &approvedAt,
	); err != nil {
		return e, err
	}

	e.ID = fines.CalculationID(id)
	e.RuleID = fines.RuleID(ruleID)
	e.CalculatedAt = parseTime(calculatedAt)
	e.CaseID = caseID.String
	e.ViolationID = violationID.String
	e.Notes = notes.String
	e.ApprovedBy = approvedBy.String
	e.ApprovedAt = parseTimePtr(approvedAt)

	if err := json.Unmarshal([]byte(inputJSON), &e.Input); err != nil {
		return e, fmt.Errorf("decode input: %w", err)
	}
	if err := json.Unmarshal([]byte(resultJSON), &e.Result); err != nil {
		return e, fmt.Errorf("decode result: %w", err)
	}
	return e, nil
}

// =============================================================================
// CASE STORE
// =============================================================================

const caseColumns = `id, title, case_type, status, priority, security_level, assigned_to,
	assigned_to_level, created_by, created_by_level, department, sector_id, team_id,
	customs_post_id, created_at, updated_at`

func (s *Store) SaveCase(ctx context.Context, c access.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cases (`+caseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			case_type = excluded.case_type,
			status = excluded.status,
			priority = excluded.priority,
			security_level = excluded.security_level,
			assigned_to = excluded.assigned_to,
			assigned_to_level = excluded.assigned_to_level,
			department = excluded.department,
			sector_id = excluded.sector_id,
			team_id = excluded.team_id,
			customs_post_id = excluded.customs_post_id,
			updated_at = excluded.updated_at`,
		c.ID, c.Title, nullString(c.Type), string(c.Status), string(c.Priority), nullString(c.SecurityLevel),
		c.AssignedTo, c.AssignedToLevel, c.CreatedBy, c.CreatedByLevel,
		nullString(c.Department), nullString(c.SectorID), nullString(c.TeamID), nullString(c.CustomsPostID),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	return err
}

func (s *Store) GetCase(ctx context.Context, id string) (access.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCase(ctx, id)
}

func (s *Store) getCase(ctx context.Context, id string) (access.Case, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+caseColumns+" FROM cases WHERE id = ?", id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return access.Case{}, access.ErrCaseNotFound
	}
	return c, err
}

func (s *Store) ListCases(ctx context.Context) ([]access.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+caseColumns+" FROM cases ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cases := []access.Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func (s *Store) UpdateAssignment(ctx context.Context, caseID, officerID string, level int, at time.Time) (access.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE cases SET assigned_to = ?, assigned_to_level = ?, updated_at = ?
		WHERE id = ?`,
		officerID, level, formatTime(at), caseID,
	)
	if err != nil {
		return access.Case{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return access.Case{}, access.ErrCaseNotFound
	}
	return s.getCase(ctx, caseID)
}

func scanCase(row rowScanner) (access.Case, error) {
	var c access.Case
	var status, priority, createdAt, updatedAt string
	var caseType, securityLevel, department, sectorID, teamID, postID sql.NullString

	if err := row.Scan(
		&c.ID, &c.Title, &caseType, &status, &priority, &securityLevel, &c.AssignedTo,
		&c.AssignedToLevel, &c.CreatedBy, &c.CreatedByLevel, &department, &sectorID, &teamID,
		&postID, &createdAt, &updatedAt,
	); err != nil {
		return c, err
	}
	c.Type = caseType.String
	c.Status = access.CaseStatus(status)
	c.Priority = access.Priority(priority)
	c.SecurityLevel = securityLevel.String
	c.Department = department.String
	c.SectorID = sectorID.String
	c.TeamID = teamID.String
	c.CustomsPostID = postID.String
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

// =============================================================================
// SYNC STORE
// =============================================================================

const syncColumns = `case_id, assigned_officer, sector_chief, administrator, director,
	access_json, sync_status, last_synced_at, unresolved, last_error`

func (s *Store) GetRecord(ctx context.Context, caseID string) (access.SyncRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+syncColumns+" FROM case_sync WHERE case_id = ?", caseID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return access.SyncRecord{}, access.ErrCaseNotFound
	}
	return rec, err
}

// SaveRecord fully replaces the record; nothing is merged.
func (s *Store) SaveRecord(ctx context.Context, rec access.SyncRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accessJSON, err := json.Marshal(rec.AccessLevel)
	if err != nil {
		return fmt.Errorf("encode access map: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO case_sync (`+syncColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET
			assigned_officer = excluded.assigned_officer,
			sector_chief = excluded.sector_chief,
			administrator = excluded.administrator,
			director = excluded.director,
			access_json = excluded.access_json,
			sync_status = excluded.sync_status,
			last_synced_at = excluded.last_synced_at,
			unresolved = excluded.unresolved,
			last_error = excluded.last_error`,
		rec.CaseID, rec.AssignedOfficer, rec.SectorChief, rec.Administrator, rec.Director,
		string(accessJSON), string(rec.SyncStatus), formatTime(rec.LastSyncedAt),
		rec.Unresolved, nullString(rec.LastError),
	)
	return err
}

func (s *Store) ListRecords(ctx context.Context) ([]access.SyncRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+syncColumns+" FROM case_sync ORDER BY case_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []access.SyncRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(row rowScanner) (access.SyncRecord, error) {
	var rec access.SyncRecord
	var accessJSON, status, lastSynced string
	var lastError sql.NullString

	if err := row.Scan(
		&rec.CaseID, &rec.AssignedOfficer, &rec.SectorChief, &rec.Administrator, &rec.Director,
		&accessJSON, &status, &lastSynced, &rec.Unresolved, &lastError,
	); err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(accessJSON), &rec.AccessLevel); err != nil {
		return rec, fmt.Errorf("decode access map: %w", err)
	}
	rec.SyncStatus = access.SyncStatus(status)
	rec.LastSyncedAt = parseTime(lastSynced)
	rec.LastError = lastError.String
	return rec, nil
}

// =============================================================================
// SYNC RUNS STORE
// =============================================================================

// SyncRun records one pass of the sync scheduler.
type SyncRun struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"` // running, completed, failed
	Scanned      int        `json:"scanned"`
	Synchronized int        `json:"synchronized"`
	Reassigned   int        `json:"reassigned"`
	Failed       int        `json:"failed"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// SaveSyncRun inserts or updates a run.
func (s *Store) SaveSyncRun(ctx context.Context, r SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, status, scanned, synchronized, reassigned, failed, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			scanned = excluded.scanned,
			synchronized = excluded.synchronized,
			reassigned = excluded.reassigned,
			failed = excluded.failed,
			error = excluded.error,
			completed_at = excluded.completed_at`,
		r.ID, r.Status, r.Scanned, r.Synchronized, r.Reassigned, r.Failed,
		nullString(r.Error), formatTime(r.StartedAt), formatTimePtr(r.CompletedAt),
	)
	return err
}

// GetSyncRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) GetSyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, status, scanned, synchronized, reassigned, failed, error, started_at, completed_at
		FROM sync_runs
		ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []SyncRun{}
	for rows.Next() {
		var r SyncRun
		var errText, completedAt sql.NullString
		var startedAt string
		if err := rows.Scan(&r.ID, &r.Status, &r.Scanned, &r.Synchronized, &r.Reassigned,
			&r.Failed, &errText, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		r.Error = errText.String
		r.StartedAt = parseTime(startedAt)
		r.CompletedAt = parseTimePtr(completedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
