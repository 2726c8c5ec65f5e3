/*
Package sqlite provides a SQLite-backed implementation of register.Store.

PURPOSE:
  Durable storage for registers, sessions, movements, and the audit
  trail. The same schema and patterns apply to PostgreSQL (store/postgres)
  with only dialect differences.

OCCUPANCY ENFORCEMENT:
  The registry's open-session pointers are not separate rows; they are
  the sessions table itself under two partial unique indexes:

    idx_open_session_register ON sessions(register_id) WHERE status = 'OPEN'
    idx_open_session_cashier  ON sessions(cashier_id)  WHERE status = 'OPEN'

  Claiming is inserting (or re-marking) a row as OPEN; a conflicting
  claim fails the index and nothing is written. Releasing is the status
  update itself. This is the database-level realization of the atomic
  conditional write the engine requires.

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements exist for the movements and audit
  tables.

MONEY:
  All amounts are stored as INTEGER minor units, matching the engine's
  internal representation exactly. No decimal round-tripping.

WAL MODE:
  Opened with WAL for better read concurrency and crash recovery.

SEE ALSO:
  - register/store.go: Interface contracts and atomicity requirements
  - store/postgres: The pgx twin of this package
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

	"github.com/mirlondev/magasin-sub002/money"
	"github.com/mirlondev/magasin-sub002/register"
)

// Store implements register.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) the database at dbPath and migrates the
// schema. Use ":memory:" for an in-memory database.
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
	CREATE TABLE IF NOT EXISTS registers (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL,
		store_id TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		location TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_registers_store
		ON registers(store_id);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		number INTEGER NOT NULL,
		store_id TEXT NOT NULL,
		register_id TEXT NOT NULL,
		cashier_id TEXT NOT NULL,
		status TEXT NOT NULL,
		opening_balance INTEGER NOT NULL,
		actual_balance INTEGER NOT NULL,
		closing_balance INTEGER NOT NULL DEFAULT 0,
		total_sales INTEGER NOT NULL DEFAULT 0,
		total_refunds INTEGER NOT NULL DEFAULT 0,
		total_transactions INTEGER NOT NULL DEFAULT 0,
		discrepancy INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL,
		end_time TEXT
	);

	-- CRITICAL: the register occupancy invariant. At most one OPEN
	-- session per register and per cashier; a racing second open fails
	-- the index and writes nothing.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_open_session_register
		ON sessions(register_id) WHERE status = 'OPEN';
	CREATE UNIQUE INDEX IF NOT EXISTS idx_open_session_cashier
		ON sessions(cashier_id) WHERE status = 'OPEN';

	CREATE INDEX IF NOT EXISTS idx_sessions_register
		ON sessions(register_id, start_time DESC);

	-- Movements (append-only cash ledger)
	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		kind TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		actor_id TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movements_session
		ON movements(session_id, recorded_at);

	-- Audit trail (append-only)
	CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		at TEXT NOT NULL,
		details_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_session
		ON audit_entries(session_id, at);

	-- Per-store sequential session numbering
	CREATE TABLE IF NOT EXISTS session_numbers (
		store_id TEXT PRIMARY KEY,
		next_number INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// REGISTERS (register.RegisterStore interface)
// =============================================================================

func (s *Store) GetRegister(ctx context.Context, id register.RegisterID) (*register.CashRegister, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, number, store_id, active, location
		FROM registers WHERE id = ?
	`, id)

	var reg register.CashRegister
	err := row.Scan(&reg.ID, &reg.Number, &reg.StoreID, &reg.Active, &reg.Location)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, register.ErrNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &reg, nil
}

func (s *Store) PutRegister(ctx context.Context, reg *register.CashRegister) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registers (id, number, store_id, active, location)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			number = excluded.number,
			store_id = excluded.store_id,
			active = excluded.active,
			location = excluded.location
	`, reg.ID, reg.Number, reg.StoreID, reg.Active, reg.Location)
	return storeErr(err)
}

func (s *Store) ListRegisters(ctx context.Context, storeID string) ([]register.CashRegister, error) {
	query := `SELECT id, number, store_id, active, location FROM registers`
	args := []any{}
	if storeID != "" {
		query += ` WHERE store_id = ?`
		args = append(args, storeID)
	}
	query += ` ORDER BY number`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []register.CashRegister
	for rows.Next() {
		var reg register.CashRegister
		if err := rows.Scan(&reg.ID, &reg.Number, &reg.StoreID, &reg.Active, &reg.Location); err != nil {
			return nil, storeErr(err)
		}
		out = append(out, reg)
	}
	return out, storeErr(rows.Err())
}

// =============================================================================
// SESSIONS (register.SessionStore interface)
// =============================================================================

const sessionColumns = `id, number, store_id, register_id, cashier_id, status,
	opening_balance, actual_balance, closing_balance,
	total_sales, total_refunds, total_transactions, discrepancy,
	notes, start_time, end_time`

func (s *Store) GetSession(ctx context.Context, id register.SessionID) (*register.ShiftSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (s *Store) ListSessions(ctx context.Context, registerID register.RegisterID) ([]register.ShiftSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE register_id = ? ORDER BY start_time DESC`,
		registerID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []register.ShiftSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *session)
	}
	return out, storeErr(rows.Err())
}

func (s *Store) NextSessionNumber(ctx context.Context, storeID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO session_numbers (store_id, next_number) VALUES (?, 1)
		ON CONFLICT(store_id) DO UPDATE SET next_number = next_number + 1
		RETURNING next_number
	`, storeID).Scan(&n)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

func (s *Store) ClaimOpenSession(ctx context.Context, session *register.ShiftSession, audit ...register.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions
		(`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionArgs(session)...)
	if err != nil {
		return claimErr(err, session)
	}

	if err := appendAudit(ctx, tx, audit); err != nil {
		return err
	}
	return storeErr(tx.Commit())
}

func (s *Store) UpdateSession(ctx context.Context, session *register.ShiftSession, audit ...register.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback()

	if err := updateSession(ctx, tx, session); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, audit); err != nil {
		return err
	}
	return storeErr(tx.Commit())
}

// ReleaseOpenSession is UpdateSession under a different contract name:
// the partial indexes track status, so persisting a non-OPEN status IS
// the pointer release.
func (s *Store) ReleaseOpenSession(ctx context.Context, session *register.ShiftSession, audit ...register.AuditEntry) error {
	return s.UpdateSession(ctx, session, audit...)
}

func (s *Store) ReclaimOpenSession(ctx context.Context, session *register.ShiftSession, audit ...register.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback()

	// Re-marking the row OPEN re-enters the partial indexes; a conflict
	// means the register or cashier was taken while suspended.
	if err := updateSession(ctx, tx, session); err != nil {
		return claimErr(err, session)
	}
	if err := appendAudit(ctx, tx, audit); err != nil {
		return err
	}
	return storeErr(tx.Commit())
}

func (s *Store) OpenSessionForRegister(ctx context.Context, id register.RegisterID) (*register.ShiftSession, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE register_id = ? AND status = 'OPEN'`, id)
	session, err := scanSession(row)
	if errors.Is(err, register.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

func (s *Store) OpenSessionForCashier(ctx context.Context, id register.ActorID) (*register.ShiftSession, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE cashier_id = ? AND status = 'OPEN'`, id)
	session, err := scanSession(row)
	if errors.Is(err, register.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// =============================================================================
// MOVEMENTS (register.MovementStore interface) - Append-only
// =============================================================================

func (s *Store) ApplyMovement(ctx context.Context, session *register.ShiftSession, mv register.CashMovement, audit ...register.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback()

	if err := updateSession(ctx, tx, session); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO movements (id, session_id, amount, kind, reason, actor_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, mv.ID, mv.SessionID, mv.Amount.MinorUnits(), mv.Kind, mv.Reason, mv.ActorID,
		mv.RecordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return storeErr(err)
	}

	if err := appendAudit(ctx, tx, audit); err != nil {
		return err
	}
	return storeErr(tx.Commit())
}

func (s *Store) Movements(ctx context.Context, sessionID register.SessionID) ([]register.CashMovement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, amount, kind, reason, actor_id, recorded_at
		FROM movements
		WHERE session_id = ?
		ORDER BY recorded_at ASC, rowid ASC
	`, sessionID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []register.CashMovement
	for rows.Next() {
		var mv register.CashMovement
		var units int64
		var recordedAt string
		if err := rows.Scan(&mv.ID, &mv.SessionID, &units, &mv.Kind, &mv.Reason, &mv.ActorID, &recordedAt); err != nil {
			return nil, storeErr(err)
		}
		mv.Amount = money.FromMinorUnits(units)
		mv.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		out = append(out, mv)
	}
	return out, storeErr(rows.Err())
}

// =============================================================================
// AUDIT (register.AuditLog interface)
// =============================================================================

func (s *Store) AuditTrail(ctx context.Context, sessionID register.SessionID) ([]register.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, actor_id, action, at, details_json
		FROM audit_entries
		WHERE session_id = ?
		ORDER BY at ASC, rowid ASC
	`, sessionID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []register.AuditEntry
	for rows.Next() {
		var e register.AuditEntry
		var at string
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ActorID, &e.Action, &at, &details); err != nil {
			return nil, storeErr(err)
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		if details.Valid && details.String != "" {
			_ = json.Unmarshal([]byte(details.String), &e.Details)
		}
		out = append(out, e)
	}
	return out, storeErr(rows.Err())
}

// =============================================================================
// HELPERS
// =============================================================================

func sessionArgs(s *register.ShiftSession) []any {
	return []any{
		s.ID, s.Number, s.StoreID, s.RegisterID, s.CashierID, s.Status,
		s.OpeningBalance.MinorUnits(), s.ActualBalance.MinorUnits(), s.ClosingBalance.MinorUnits(),
		s.TotalSales.MinorUnits(), s.TotalRefunds.MinorUnits(), s.TotalTransactions,
		s.Discrepancy.MinorUnits(), s.Notes, s.StartTime.UTC().Format(time.RFC3339Nano),
		sessionEndTime(s),
	}
}

func updateSession(ctx context.Context, db execer, s *register.ShiftSession) error {
	res, err := db.ExecContext(ctx, `
		UPDATE sessions SET
			status = ?, actual_balance = ?, closing_balance = ?,
			total_sales = ?, total_refunds = ?, total_transactions = ?,
			discrepancy = ?, notes = ?, end_time = ?
		WHERE id = ?
	`, s.Status, s.ActualBalance.MinorUnits(), s.ClosingBalance.MinorUnits(),
		s.TotalSales.MinorUnits(), s.TotalRefunds.MinorUnits(), s.TotalTransactions,
		s.Discrepancy.MinorUnits(), s.Notes, sessionEndTime(s), s.ID)
	if err != nil {
		return storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if n == 0 {
		return register.ErrNotFound
	}
	return nil
}

func sessionEndTime(s *register.ShiftSession) any {
	if s.EndTime == nil {
		return nil
	}
	return s.EndTime.UTC().Format(time.RFC3339Nano)
}

func appendAudit(ctx context.Context, db execer, entries []register.AuditEntry) error {
	for _, e := range entries {
		var details any
		if len(e.Details) > 0 {
			b, _ := json.Marshal(e.Details)
			details = string(b)
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO audit_entries (id, session_id, actor_id, action, at, details_json)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.ID, e.SessionID, e.ActorID, e.Action, e.At.UTC().Format(time.RFC3339Nano), details)
		if err != nil {
			return storeErr(err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*register.ShiftSession, error) {
	var s register.ShiftSession
	var opening, actual, closing, sales, refunds, discrepancy int64
	var startTime string
	var endTime sql.NullString

	err := row.Scan(&s.ID, &s.Number, &s.StoreID, &s.RegisterID, &s.CashierID, &s.Status,
		&opening, &actual, &closing, &sales, &refunds, &s.TotalTransactions, &discrepancy,
		&s.Notes, &startTime, &endTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, register.ErrNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}

	s.OpeningBalance = money.FromMinorUnits(opening)
	s.ActualBalance = money.FromMinorUnits(actual)
	s.ClosingBalance = money.FromMinorUnits(closing)
	s.TotalSales = money.FromMinorUnits(sales)
	s.TotalRefunds = money.FromMinorUnits(refunds)
	s.Discrepancy = money.FromMinorUnits(discrepancy)
	s.StartTime, _ = time.Parse(time.RFC3339Nano, startTime)
	if endTime.Valid {
		t, _ := time.Parse(time.RFC3339Nano, endTime.String)
		s.EndTime = &t
	}
	return &s, nil
}

// claimErr maps a partial-index conflict onto the engine's
// already-open error; anything else is a store failure.
func claimErr(err error, session *register.ShiftSession) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		if strings.Contains(msg, "cashier_id") {
			return &register.AlreadyOpenError{CashierID: session.CashierID}
		}
		return &register.AlreadyOpenError{RegisterID: session.RegisterID}
	}
	return storeErr(err)
}

// storeErr wraps infrastructure failures so callers see the retryable
// ErrCollaboratorUnavailable kind. Engine sentinels pass through.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, register.ErrNotFound) {
		return err
	}
	return &register.CollaboratorError{Collaborator: "store", Cause: err}
}
