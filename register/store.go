/*
store.go - Persistence interfaces for sessions, movements, and registers

PURPOSE:
  Defines the contract between the engine and durable storage. Different
  implementations back this with SQLite, PostgreSQL, or memory; the
  engine only relies on the atomicity guarantees stated here.

ATOMICITY CONTRACT:
  Three operations carry multi-write atomicity requirements:

  ClaimOpenSession:  insert the session AND claim the per-register and
                     per-cashier open-session pointers in one conditional
                     write. If either pointer is taken, nothing is
                     written and *AlreadyOpenError is returned. This is
                     what closes the two-cashiers-one-register race.
  ApplyMovement:     persist the updated session and append its movement
                     (plus audit entries) all-or-nothing.
  ReleaseOpenSession: persist the updated session and release both
                     pointers all-or-nothing. Used by close, suspend,
                     and flag-for-review.

APPEND-ONLY CONTRACT:
  Movements and audit entries have no update or delete operations. Ever.

ERROR MAPPING:
  Implementations return *AlreadyOpenError for claim conflicts,
  ErrNotFound for missing rows, and wrap infrastructure failures in
  *CollaboratorError so callers see ErrCollaboratorUnavailable.

SEE ALSO:
  - store/memory.go: In-memory implementation for tests
  - store/sqlite, store/postgres: SQL implementations
*/
package register

import (
	"context"
	"time"
)

// =============================================================================
// REGISTER STORE
// =============================================================================

// RegisterStore persists cash registers.
type RegisterStore interface {
	GetRegister(ctx context.Context, id RegisterID) (*CashRegister, error)
	PutRegister(ctx context.Context, reg *CashRegister) error
	ListRegisters(ctx context.Context, storeID string) ([]CashRegister, error)
}

// =============================================================================
// SESSION STORE
// =============================================================================

// SessionStore persists shift sessions and the open-session pointers.
type SessionStore interface {
	GetSession(ctx context.Context, id SessionID) (*ShiftSession, error)

	// ListSessions returns sessions for a register, newest first.
	ListSessions(ctx context.Context, registerID RegisterID) ([]ShiftSession, error)

	// NextSessionNumber allocates the next sequential number for a store.
	NextSessionNumber(ctx context.Context, storeID string) (int64, error)

	// ClaimOpenSession atomically inserts the session and claims the
	// open-session pointers for its register and cashier. Fails with
	// *AlreadyOpenError if either is already claimed; on failure nothing
	// is written.
	ClaimOpenSession(ctx context.Context, session *ShiftSession, audit ...AuditEntry) error

	// UpdateSession persists session state for transitions that keep the
	// registry pointers in place (resume notes, etc).
	UpdateSession(ctx context.Context, session *ShiftSession, audit ...AuditEntry) error

	// ReleaseOpenSession persists the session and releases its register
	// and cashier pointers atomically.
	ReleaseOpenSession(ctx context.Context, session *ShiftSession, audit ...AuditEntry) error

	// ReclaimOpenSession re-claims the pointers for a suspended session
	// being resumed, atomically with persisting it. Fails with
	// *AlreadyOpenError if the register or cashier was taken meanwhile.
	ReclaimOpenSession(ctx context.Context, session *ShiftSession, audit ...AuditEntry) error

	// OpenSessionForRegister and OpenSessionForCashier resolve the
	// registry pointers. The boolean is false when no session is open.
	OpenSessionForRegister(ctx context.Context, id RegisterID) (*ShiftSession, bool, error)
	OpenSessionForCashier(ctx context.Context, id ActorID) (*ShiftSession, bool, error)
}

// =============================================================================
// MOVEMENT STORE - Append-only
// =============================================================================

// MovementStore persists cash movements. Append-only: no update, no
// delete. Corrections are opposite-signed movements.
type MovementStore interface {
	// ApplyMovement persists the updated session and appends the
	// movement atomically.
	ApplyMovement(ctx context.Context, session *ShiftSession, mv CashMovement, audit ...AuditEntry) error

	// Movements returns a session's movements in recording order.
	Movements(ctx context.Context, sessionID SessionID) ([]CashMovement, error)
}

// =============================================================================
// AUDIT LOG - Separate from the movement ledger, also append-only
// =============================================================================

type AuditAction string

const (
	AuditSessionOpened   AuditAction = "session_opened"
	AuditCashAdded       AuditAction = "cash_added"
	AuditCashRemoved     AuditAction = "cash_removed"
	AuditPaymentPosted   AuditAction = "payment_posted"
	AuditSessionSuspend  AuditAction = "session_suspended"
	AuditSessionResumed  AuditAction = "session_resumed"
	AuditSessionClosed   AuditAction = "session_closed"
	AuditSessionFlagged  AuditAction = "session_flagged"
	AuditCountedOverride AuditAction = "counted_balance_override"
)

// AuditEntry records who did what to a session and when. Entries ride
// along with the store write that caused them, in the same atomic unit.
type AuditEntry struct {
	ID        string
	SessionID SessionID
	ActorID   ActorID
	Action    AuditAction
	At        time.Time
	Details   map[string]string
}

// AuditLog reads back the trail; writes happen through the session and
// movement store operations above.
type AuditLog interface {
	AuditTrail(ctx context.Context, sessionID SessionID) ([]AuditEntry, error)
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store is the full persistence surface the engine is wired with.
type Store interface {
	RegisterStore
	SessionStore
	MovementStore
	AuditLog
}
