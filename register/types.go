/*
Package register implements the cash-register shift session engine.

PURPOSE:
  This package contains the state and rules for one cashier's period of
  responsibility over a cash register: opening and closing a shift
  session, moving cash in and out of the till, suspending and resuming,
  and reconciling counted cash against the ledger-derived expectation.

KEY CONCEPTS IN THIS FILE (types.go):
  - CashRegister: a physical till that sessions are opened against
  - ShiftSession: one open-to-close period, with running aggregates
  - CashMovement: an immutable ledger entry changing the till's cash
  - Payment: a posted sale or refund, supplied by the payment collaborator
  - SessionStatus: the lifecycle states the machine transitions between

DESIGN PRINCIPLES:
  1. Immutability: movements are never modified; sessions freeze at close
  2. Precision: money.Money (integer minor units) for every amount
  3. Explicit state: sessions are returned from and passed into operations;
     there is no ambient per-actor state

SEE ALSO:
  - machine.go: The lifecycle operations mutating ShiftSession
  - ledger.go: Append-only movement log
  - balance.go: Balance derivation from movements
*/
package register

import (
	"time"

	"github.com/mirlondev/magasin-sub002/money"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RegisterID string
type SessionID string
type MovementID string
type ActorID string

// =============================================================================
// CASH REGISTER
// =============================================================================

// CashRegister is a physical till. Active says whether the register may
// accept new sessions; it is independent of occupancy. An inactive
// register must have no open session, but an active one may be occupied.
type CashRegister struct {
	ID       RegisterID
	Number   string
	StoreID  string
	Active   bool
	Location string
}

// =============================================================================
// SESSION STATUS
// =============================================================================

type SessionStatus string

const (
	StatusOpen        SessionStatus = "OPEN"
	StatusSuspended   SessionStatus = "SUSPENDED"
	StatusClosed      SessionStatus = "CLOSED"
	StatusUnderReview SessionStatus = "UNDER_REVIEW"
)

// Terminal reports whether no further transitions or cash movements are
// accepted from this status.
func (s SessionStatus) Terminal() bool {
	return s == StatusClosed || s == StatusUnderReview
}

// =============================================================================
// SHIFT SESSION
// =============================================================================

// ShiftSession is one cashier's continuous period of responsibility for
// a register, from open to close.
//
// INVARIANTS:
//   - OpeningBalance and StartTime are set at open and never change
//   - ActualBalance mutates only through machine operations while OPEN
//   - ClosingBalance, EndTime, and the persisted Discrepancy are set
//     exactly once, at close
//   - After a terminal status only Notes may change
type ShiftSession struct {
	ID         SessionID
	Number     int64
	StoreID    string
	RegisterID RegisterID
	CashierID  ActorID

	Status SessionStatus

	OpeningBalance money.Money
	ActualBalance  money.Money
	ClosingBalance money.Money

	TotalSales        money.Money
	TotalRefunds      money.Money
	TotalTransactions int64

	// Persisted at close; zero until then.
	Discrepancy money.Money

	Notes     string
	StartTime time.Time
	EndTime   *time.Time
}

// NetSales is total sales minus total refunds.
func (s *ShiftSession) NetSales() money.Money {
	return s.TotalSales.Sub(s.TotalRefunds)
}

// ExpectedBalance is what the till should contain absent errors: the
// ledger-derived balance. While the session is live that is the running
// ActualBalance (the replay invariant keeps them equal); for a closed
// session it is recovered from the frozen closing balance and
// discrepancy, since close may have overridden ActualBalance with the
// manual count.
func (s *ShiftSession) ExpectedBalance() money.Money {
	if s.Status == StatusClosed {
		return s.ClosingBalance.Sub(s.Discrepancy)
	}
	return s.ActualBalance
}

// =============================================================================
// CASH MOVEMENT - Append-only ledger entry
// =============================================================================

// MovementKind distinguishes manual till adjustments from cash-settled
// payment postings. Both are ledger entries; only the provenance differs.
type MovementKind string

const (
	MovementManual  MovementKind = "manual"
	MovementPayment MovementKind = "payment"
)

// CashMovement records a signed change to a session's till cash.
// Positive means cash added, negative means cash removed. Movements are
// owned by the session that created them, never edited, never deleted.
type CashMovement struct {
	ID         MovementID
	SessionID  SessionID
	Amount     money.Money
	Kind       MovementKind
	Reason     string
	ActorID    ActorID
	RecordedAt time.Time
}

// =============================================================================
// PAYMENTS - Supplied by the payment ledger collaborator
// =============================================================================

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodCard   PaymentMethod = "card"
	MethodMobile PaymentMethod = "mobile"
	MethodCredit PaymentMethod = "credit"
)

type PaymentDirection string

const (
	DirectionSale   PaymentDirection = "sale"
	DirectionRefund PaymentDirection = "refund"
)

// Payment is one posted sale or refund against a session. The engine
// consumes payments; it never creates or validates them.
type Payment struct {
	Method    PaymentMethod
	Direction PaymentDirection
	Amount    money.Money // always non-negative; direction carries the sign
	PostedAt  time.Time
}

// =============================================================================
// ROLES
// =============================================================================

// Role is the enumerated capability set the machine authorizes against.
// The machine only ever distinguishes "owner" from "elevated"; concrete
// role identity stays behind the IdentityProvider.
type Role string

const (
	RoleCashier    Role = "cashier"
	RoleStoreAdmin Role = "store_admin"
	RoleAdmin      Role = "admin"
)

// ElevatedRoles are the roles that may act on sessions they do not own.
var ElevatedRoles = []Role{RoleStoreAdmin, RoleAdmin}
