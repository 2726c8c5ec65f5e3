/*
Package postgres provides a PostgreSQL-backed implementation of
register.Store using the pgx stdlib driver.

Schema and semantics mirror store/sqlite. The open-session occupancy
invariant is enforced by the same pair of partial unique indexes on the
sessions table; claim conflicts arrive as unique_violation (23505) with
the index name in the constraint field, which is mapped back onto
*register.AlreadyOpenError.
*/
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mirlondev/magasin-sub002/money"
	"github.com/mirlondev/magasin-sub002/register"
)

// Store implements register.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New connects to databaseURL, verifies the connection, and migrates
// the schema.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS registers (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL,
		store_id TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		location TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_registers_store ON registers(store_id);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		number BIGINT NOT NULL,
		store_id TEXT NOT NULL,
		register_id TEXT NOT NULL,
		cashier_id TEXT NOT NULL,
		status TEXT NOT NULL,
		opening_balance BIGINT NOT NULL,
		actual_balance BIGINT NOT NULL,
		closing_balance BIGINT NOT NULL DEFAULT 0,
		total_sales BIGINT NOT NULL DEFAULT 0,
		total_refunds BIGINT NOT NULL DEFAULT 0,
		total_transactions BIGINT NOT NULL DEFAULT 0,
		discrepancy BIGINT NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_open_session_register
		ON sessions(register_id) WHERE status = 'OPEN';
	CREATE UNIQUE INDEX IF NOT EXISTS idx_open_session_cashier
		ON sessions(cashier_id) WHERE status = 'OPEN';
	CREATE INDEX IF NOT EXISTS idx_sessions_register
		ON sessions(register_id, start_time DESC);

	CREATE TABLE IF NOT EXISTS movements (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		amount BIGINT NOT NULL,
		kind TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		actor_id TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movements_session
		ON movements(session_id, seq);

	CREATE TABLE IF NOT EXISTS audit_entries (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		at TIMESTAMPTZ NOT NULL,
		details_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_session
		ON audit_entries(session_id, seq);

	CREATE TABLE IF NOT EXISTS session_numbers (
		store_id TEXT PRIMARY KEY,
		next_number BIGINT NOT NULL
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// REGISTERS
// =============================================================================

func (s *Store) GetRegister(ctx context.Context, id register.RegisterID) (*register.CashRegister, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, number, store_id, active, location FROM registers WHERE id = $1
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
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			number = EXCLUDED.number,
			store_id = EXCLUDED.store_id,
			active = EXCLUDED.active,
			location = EXCLUDED.location
	`, reg.ID, reg.Number, reg.StoreID, reg.Active, reg.Location)
	return storeErr(err)
}

func (s *Store) ListRegisters(ctx context.Context, storeID string) ([]register.CashRegister, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, store_id, active, location
		FROM registers
		WHERE $1 = '' OR store_id = $1
		ORDER BY number
	`, storeID)
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
// SESSIONS
// =============================================================================

const sessionColumns = `id, number, store_id, register_id, cashier_id, status,
	opening_balance, actual_balance, closing_balance,
	total_sales, total_refunds, total_transactions, discrepancy,
	notes, start_time, end_time`

func (s *Store) GetSession(ctx context.Context, id register.SessionID) (*register.ShiftSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (s *Store) ListSessions(ctx context.Context, registerID register.RegisterID) ([]register.ShiftSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE register_id = $1 ORDER BY start_time DESC`,
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
	var n int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO session_numbers (store_id, next_number) VALUES ($1, 1)
		ON CONFLICT (store_id) DO UPDATE SET next_number = session_numbers.next_number + 1
		RETURNING next_number
	`, storeID).Scan(&n)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

func (s *Store) ClaimOpenSession(ctx context.Context, session *register.ShiftSession, audit ...register.AuditEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
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

// ReleaseOpenSession: the partial indexes track status, so persisting a
// non-OPEN status is the pointer release.
func (s *Store) ReleaseOpenSession(ctx context.Context, session *register.ShiftSession, audit ...register.AuditEntry) error {
	return s.UpdateSession(ctx, session, audit...)
}

func (s *Store) ReclaimOpenSession(ctx context.Context, session *register.ShiftSession, audit ...register.AuditEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback()

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
		`SELECT `+sessionColumns+` FROM sessions WHERE register_id = $1 AND status = 'OPEN'`, id)
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
		`SELECT `+sessionColumns+` FROM sessions WHERE cashier_id = $1 AND status = 'OPEN'`, id)
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
// MOVEMENTS - Append-only
// =============================================================================

func (s *Store) ApplyMovement(ctx context.Context, session *register.ShiftSession, mv register.CashMovement, audit ...register.AuditEntry) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, mv.ID, mv.SessionID, mv.Amount.MinorUnits(), mv.Kind, mv.Reason, mv.ActorID, mv.RecordedAt.UTC())
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
		WHERE session_id = $1
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []register.CashMovement
	for rows.Next() {
		var mv register.CashMovement
		var units int64
		if err := rows.Scan(&mv.ID, &mv.SessionID, &units, &mv.Kind, &mv.Reason, &mv.ActorID, &mv.RecordedAt); err != nil {
			return nil, storeErr(err)
		}
		mv.Amount = money.FromMinorUnits(units)
		out = append(out, mv)
	}
	return out, storeErr(rows.Err())
}

// =============================================================================
// AUDIT
// =============================================================================

func (s *Store) AuditTrail(ctx context.Context, sessionID register.SessionID) ([]register.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, actor_id, action, at, details_json
		FROM audit_entries
		WHERE session_id = $1
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []register.AuditEntry
	for rows.Next() {
		var e register.AuditEntry
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ActorID, &e.Action, &e.At, &details); err != nil {
			return nil, storeErr(err)
		}
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
	var endTime any
	if s.EndTime != nil {
		endTime = s.EndTime.UTC()
	}
	return []any{
		s.ID, s.Number, s.StoreID, s.RegisterID, s.CashierID, s.Status,
		s.OpeningBalance.MinorUnits(), s.ActualBalance.MinorUnits(), s.ClosingBalance.MinorUnits(),
		s.TotalSales.MinorUnits(), s.TotalRefunds.MinorUnits(), s.TotalTransactions,
		s.Discrepancy.MinorUnits(), s.Notes, s.StartTime.UTC(), endTime,
	}
}

func updateSession(ctx context.Context, db execer, s *register.ShiftSession) error {
	var endTime any
	if s.EndTime != nil {
		endTime = s.EndTime.UTC()
	}
	res, err := db.ExecContext(ctx, `
		UPDATE sessions SET
			status = $1, actual_balance = $2, closing_balance = $3,
			total_sales = $4, total_refunds = $5, total_transactions = $6,
			discrepancy = $7, notes = $8, end_time = $9
		WHERE id = $10
	`, s.Status, s.ActualBalance.MinorUnits(), s.ClosingBalance.MinorUnits(),
		s.TotalSales.MinorUnits(), s.TotalRefunds.MinorUnits(), s.TotalTransactions,
		s.Discrepancy.MinorUnits(), s.Notes, endTime, s.ID)
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

func appendAudit(ctx context.Context, db execer, entries []register.AuditEntry) error {
	for _, e := range entries {
		var details any
		if len(e.Details) > 0 {
			b, _ := json.Marshal(e.Details)
			details = string(b)
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO audit_entries (id, session_id, actor_id, action, at, details_json)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.ID, e.SessionID, e.ActorID, e.Action, e.At.UTC(), details)
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
	var endTime sql.NullTime

	err := row.Scan(&s.ID, &s.Number, &s.StoreID, &s.RegisterID, &s.CashierID, &s.Status,
		&opening, &actual, &closing, &sales, &refunds, &s.TotalTransactions, &discrepancy,
		&s.Notes, &s.StartTime, &endTime)
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
	if endTime.Valid {
		t := endTime.Time
		s.EndTime = &t
	}
	return &s, nil
}

// claimErr maps unique_violation on the open-session partial indexes
// onto *register.AlreadyOpenError.
func claimErr(err error, session *register.ShiftSession) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "idx_open_session_cashier" {
			return &register.AlreadyOpenError{CashierID: session.CashierID}
		}
		return &register.AlreadyOpenError{RegisterID: session.RegisterID}
	}
	return storeErr(err)
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, register.ErrNotFound) {
		return err
	}
	return &register.CollaboratorError{Collaborator: "store", Cause: err}
}
