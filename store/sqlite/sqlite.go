/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (employee.ProfileStore,
  ledger.Store, payrun.RunStore) using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  profiles:     Append-only compensation profile versions
  runs:         Payroll runs with a version column for compare-and-swap
  records:      Computed payroll records, one row per run+employee
  ytd_entries:  Immutable committed ledger entries
  applied_runs: Run IDs already committed (idempotency)

APPEND-ONLY ENFORCEMENT:
  ytd_entries and applied_runs see INSERTs only. A re-commit of an
  applied run is detected inside the same transaction that would write
  it, so the ledger cannot double-count a run.

AMOUNT COLUMNS:
  Money travels as JSON documents (decimal serializes as an exact
  string). Filtering columns (year, pay_date, effective ranges) are
  broken out; amounts are never filtered on in SQL.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - store/memory: in-memory implementation for testing
  - ledger, payrun, employee: interface definitions
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payrun"
)

// Compile-time interface checks.
var (
	_ employee.ProfileStore = (*Store)(nil)
	_ ledger.Store          = (*Store)(nil)
	_ payrun.RunStore       = (*Store)(nil)
)

const dateLayout = "2006-01-02"

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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Compensation profile versions (append-only)
	CREATE TABLE IF NOT EXISTS profiles (
		employee_id TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		profile_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, effective_from)
	);

	CREATE INDEX IF NOT EXISTS idx_profiles_employee
		ON profiles(employee_id, effective_from);

	-- Payroll runs (version column drives compare-and-swap)
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		pay_group TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		pay_date TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		failures_json TEXT NOT NULL,
		totals_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		approved_at TEXT,
		paid_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_pay_date
		ON runs(pay_date DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_status
		ON runs(status);

	-- Computed records, one per run+employee
	CREATE TABLE IF NOT EXISTS records (
		run_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		record_json TEXT NOT NULL,
		PRIMARY KEY (run_id, employee_id)
	);

	-- Committed ledger entries (append-only)
	CREATE TABLE IF NOT EXISTS ytd_entries (
		run_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		pay_date TEXT NOT NULL,
		entry_json TEXT NOT NULL,
		PRIMARY KEY (run_id, employee_id)
	);

	-- Hot path: YTD accumulation per employee per year
	CREATE INDEX IF NOT EXISTS idx_ytd_employee_year
		ON ytd_entries(employee_id, year, pay_date);

	-- Commit idempotency (append-only)
	CREATE TABLE IF NOT EXISTS applied_runs (
		run_id TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PROFILE STORE (employee.ProfileStore interface)
// =============================================================================

// Append adds a profile version, closing the previous open-ended one.
func (s *Store) Append(ctx context.Context, p employee.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var lastFrom sql.NullString
	err = tx.QueryRowContext(ctx,
		"SELECT MAX(effective_from) FROM profiles WHERE employee_id = ?",
		string(p.EmployeeID),
	).Scan(&lastFrom)
	if err != nil {
		return err
	}

	if lastFrom.Valid {
		prev, err := time.Parse(dateLayout, lastFrom.String)
		if err != nil {
			return err
		}
		if !prev.Before(p.EffectiveFrom) {
			return fmt.Errorf("%w: new version effective %s does not follow %s",
				employee.ErrInvalidProfile, p.EffectiveFrom.Format(dateLayout), lastFrom.String)
		}
		closeAt := p.EffectiveFrom.AddDate(0, 0, -1).Format(dateLayout)
		_, err = tx.ExecContext(ctx,
			"UPDATE profiles SET effective_to = ? WHERE employee_id = ? AND effective_from = ? AND effective_to IS NULL",
			closeAt, string(p.EmployeeID), lastFrom.String,
		)
		if err != nil {
			return err
		}
		// Keep the JSON document in sync with the closed range.
		var closed employee.Profile
		if err := s.loadProfileTx(ctx, tx, p.EmployeeID, lastFrom.String, &closed); err != nil {
			return err
		}
		if closed.EffectiveTo.IsZero() {
			closed.EffectiveTo = p.EffectiveFrom.AddDate(0, 0, -1)
			if err := s.updateProfileJSONTx(ctx, tx, closed); err != nil {
				return err
			}
		}
	}

	profileJSON, err := json.Marshal(p)
	if err != nil {
		return err
	}

	var effectiveTo *string
	if !p.EffectiveTo.IsZero() {
		t := p.EffectiveTo.Format(dateLayout)
		effectiveTo = &t
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (employee_id, effective_from, effective_to, profile_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(p.EmployeeID),
		p.EffectiveFrom.Format(dateLayout),
		effectiveTo,
		string(profileJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append profile: %w", err)
	}

	return tx.Commit()
}

func (s *Store) loadProfileTx(ctx context.Context, tx *sql.Tx, id employee.ID, effectiveFrom string, out *employee.Profile) error {
	var raw string
	err := tx.QueryRowContext(ctx,
		"SELECT profile_json FROM profiles WHERE employee_id = ? AND effective_from = ?",
		string(id), effectiveFrom,
	).Scan(&raw)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func (s *Store) updateProfileJSONTx(ctx context.Context, tx *sql.Tx, p employee.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE profiles SET profile_json = ? WHERE employee_id = ? AND effective_from = ?",
		string(raw), string(p.EmployeeID), p.EffectiveFrom.Format(dateLayout),
	)
	return err
}

// CurrentAt returns the profile version effective on the given date.
func (s *Store) CurrentAt(ctx context.Context, id employee.ID, date time.Time) (employee.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := date.Format(dateLayout)
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT profile_json FROM profiles
		 WHERE employee_id = ? AND effective_from <= ?
		   AND (effective_to IS NULL OR effective_to >= ?)
		 ORDER BY effective_from DESC LIMIT 1`,
		string(id), day, day,
	).Scan(&raw)

	if err == sql.ErrNoRows {
		return employee.Profile{}, &employee.ProfileNotFoundError{EmployeeID: id, AsOf: date}
	}
	if err != nil {
		return employee.Profile{}, err
	}

	var p employee.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return employee.Profile{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	return p, nil
}

// History returns every profile version for the employee, oldest first.
func (s *Store) History(ctx context.Context, id employee.ID) ([]employee.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT profile_json FROM profiles WHERE employee_id = ? ORDER BY effective_from ASC",
		string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []employee.Profile
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var p employee.Profile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to decode profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListIDs returns every employee with at least one profile version.
func (s *Store) ListIDs(ctx context.Context) ([]employee.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT employee_id FROM profiles ORDER BY employee_id ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []employee.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, employee.ID(id))
	}
	return out, rows.Err()
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

// RunApplied reports whether the run has already been committed.
func (s *Store) RunApplied(ctx context.Context, runID payroll.RunID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM applied_runs WHERE run_id = ?",
		string(runID),
	).Scan(&count)
	return count > 0, err
}

// AppendRun marks the run applied and appends its entries atomically.
// A run already applied is a no-op, checked inside the transaction.
func (s *Store) AppendRun(ctx context.Context, runID payroll.RunID, entries []ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM applied_runs WHERE run_id = ?", string(runID),
	).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO applied_runs (run_id, applied_at) VALUES (?, ?)",
		string(runID), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return err
	}

	for _, e := range entries {
		entryJSON, err := json.Marshal(e)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO ytd_entries (run_id, employee_id, year, pay_date, entry_json)
			 VALUES (?, ?, ?, ?, ?)`,
			string(e.RunID), string(e.EmployeeID), e.Year,
			e.PayDate.Format(dateLayout), string(entryJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
	}

	return tx.Commit()
}

// EntriesBefore returns the employee's entries for the year with a pay
// date strictly before asOf.
func (s *Store) EntriesBefore(ctx context.Context, id employee.ID, year int, asOf time.Time) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_json FROM ytd_entries
		 WHERE employee_id = ? AND year = ? AND pay_date < ?
		 ORDER BY pay_date ASC`,
		string(id), year, asOf.Format(dateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e ledger.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("failed to decode ledger entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// RUN STORE (payrun.RunStore interface)
// =============================================================================

// SaveRun writes the run under compare-and-swap on the version column.
func (s *Store) SaveRun(ctx context.Context, run *payrun.Run, expected int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current sql.NullInt64
	err = tx.QueryRowContext(ctx,
		"SELECT version FROM runs WHERE id = ?", string(run.ID),
	).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		if expected != 0 {
			return &payrun.RunNotFoundError{RunID: run.ID}
		}
	case err != nil:
		return err
	case int(current.Int64) != expected:
		return fmt.Errorf("%w: run %s is at version %d, not %d",
			payrun.ErrConcurrentModification, run.ID, current.Int64, expected)
	}

	run.Version = expected + 1

	failuresJSON, err := json.Marshal(run.Failures)
	if err != nil {
		return err
	}
	totalsJSON, err := json.Marshal(run.Totals)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs
		 (id, pay_group, period_start, period_end, pay_date, status, version,
		  failures_json, totals_json, created_at, approved_at, paid_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			version = excluded.version,
			failures_json = excluded.failures_json,
			totals_json = excluded.totals_json,
			approved_at = excluded.approved_at,
			paid_at = excluded.paid_at`,
		string(run.ID), run.PayGroup,
		run.PeriodStart.Format(dateLayout), run.PeriodEnd.Format(dateLayout),
		run.PayDate.Format(dateLayout), string(run.Status), run.Version,
		string(failuresJSON), string(totalsJSON),
		run.CreatedAt.Format(time.RFC3339),
		nullTime(run.ApprovedAt), nullTime(run.PaidAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	// Records are replaced wholesale; recompute rewrites the set.
	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE run_id = ?", string(run.ID)); err != nil {
		return err
	}
	for _, rec := range run.Records {
		recordJSON, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO records (run_id, employee_id, record_json) VALUES (?, ?, ?)",
			string(run.ID), string(rec.EmployeeID), string(recordJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run with its records.
func (s *Store) GetRun(ctx context.Context, id payroll.RunID) (*payrun.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, pay_group, period_start, period_end, pay_date, status, version,
		        failures_json, totals_json, created_at, approved_at, paid_at
		 FROM runs WHERE id = ?`, string(id))

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, &payrun.RunNotFoundError{RunID: id}
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadRecords(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns all runs, newest pay date first, with records.
func (s *Store) ListRuns(ctx context.Context) ([]*payrun.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pay_group, period_start, period_end, pay_date, status, version,
		        failures_json, totals_json, created_at, approved_at, paid_at
		 FROM runs ORDER BY pay_date DESC, created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*payrun.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, run := range runs {
		if err := s.loadRecords(ctx, run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*payrun.Run, error) {
	var run payrun.Run
	var id, status, periodStart, periodEnd, payDate, createdAt string
	var failuresJSON, totalsJSON string
	var approvedAt, paidAt sql.NullString

	err := row.Scan(&id, &run.PayGroup, &periodStart, &periodEnd, &payDate,
		&status, &run.Version, &failuresJSON, &totalsJSON, &createdAt, &approvedAt, &paidAt)
	if err != nil {
		return nil, err
	}

	run.ID = payroll.RunID(id)
	run.Status = payrun.Status(status)
	run.PeriodStart, _ = time.Parse(dateLayout, periodStart)
	run.PeriodEnd, _ = time.Parse(dateLayout, periodEnd)
	run.PayDate, _ = time.Parse(dateLayout, payDate)
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if approvedAt.Valid {
		run.ApprovedAt, _ = time.Parse(time.RFC3339, approvedAt.String)
	}
	if paidAt.Valid {
		run.PaidAt, _ = time.Parse(time.RFC3339, paidAt.String)
	}

	if err := json.Unmarshal([]byte(failuresJSON), &run.Failures); err != nil {
		return nil, fmt.Errorf("failed to decode run failures: %w", err)
	}
	if err := json.Unmarshal([]byte(totalsJSON), &run.Totals); err != nil {
		return nil, fmt.Errorf("failed to decode run totals: %w", err)
	}
	return &run, nil
}

func (s *Store) loadRecords(ctx context.Context, run *payrun.Run) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT record_json FROM records WHERE run_id = ? ORDER BY employee_id ASC",
		string(run.ID),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		var rec payroll.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("failed to decode record: %w", err)
		}
		run.Records = append(run.Records, &rec)
	}
	return rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
