/*
errors.go - Centralized error kinds for the session engine

PURPOSE:
  Every failure the engine can report, in one place. Callers inspect
  errors with errors.Is against the sentinels; structured wrappers carry
  the context needed for a useful message.

ERROR CATEGORIES:
  1. Invariant violations - already-open, invalid transition, bad amount
  2. Authorization failures - actor is neither owner nor elevated
  3. Collaborator failures - store/identity/payment timeout or outage

RETRY CONTRACT:
  ErrCollaboratorUnavailable is the only retryable kind: it is returned
  only when no partial state was committed, so the caller may repeat the
  request verbatim. Every other kind needs a corrected request.

SEE ALSO:
  - machine.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package register

import (
	"errors"
	"fmt"

	"github.com/mirlondev/magasin-sub002/money"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrSessionAlreadyOpen is returned when an open is attempted while
	// the register or the cashier already has an open session.
	ErrSessionAlreadyOpen = errors.New("session already open")

	// ErrInvalidTransition is returned when an operation is attempted
	// from a status that does not permit it.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrUnauthorized is returned when the actor is neither the owning
	// cashier nor holds an elevated role.
	ErrUnauthorized = errors.New("actor not authorized")

	// ErrInvalidAmount is returned for non-positive amounts, a negative
	// opening balance, or a removal exceeding the current till balance.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNotFound is returned when a referenced session or register
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCollaboratorUnavailable is returned when the persistence,
	// identity, or payment collaborator failed or timed out. Safe to
	// retry: no partial state was committed.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AlreadyOpenError reports which side of the dual open check failed.
type AlreadyOpenError struct {
	RegisterID RegisterID
	CashierID  ActorID
	ExistingID SessionID
}

func (e *AlreadyOpenError) Error() string {
	if e.RegisterID != "" {
		return fmt.Sprintf("register %s already has open session %s", e.RegisterID, e.ExistingID)
	}
	return fmt.Sprintf("cashier %s already has open session %s", e.CashierID, e.ExistingID)
}

func (e *AlreadyOpenError) Unwrap() error { return ErrSessionAlreadyOpen }

// TransitionError reports an operation attempted from a forbidden status.
type TransitionError struct {
	SessionID SessionID
	Status    SessionStatus
	Operation string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s session %s in status %s", e.Operation, e.SessionID, e.Status)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// AmountError reports a rejected amount with the balance it was checked
// against (zero for sign-only failures).
type AmountError struct {
	Amount    money.Money
	Available money.Money
	Reason    string
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("%s: amount %s (available %s)", e.Reason, e.Amount, e.Available)
}

func (e *AmountError) Unwrap() error { return ErrInvalidAmount }

// UnauthorizedError identifies the actor and the operation refused.
type UnauthorizedError struct {
	ActorID   ActorID
	SessionID SessionID
	Operation string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("actor %s may not %s session %s", e.ActorID, e.Operation, e.SessionID)
}

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

// CollaboratorError wraps a collaborator failure with which collaborator
// failed. The cause is preserved for logging; callers match on the
// sentinel.
type CollaboratorError struct {
	Collaborator string // "store", "identity", "payments", "cache"
	Cause        error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Cause)
}

func (e *CollaboratorError) Unwrap() error { return ErrCollaboratorUnavailable }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry. Only
// collaborator failures qualify: they are raised before any state change
// is committed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCollaboratorUnavailable)
}

// IsClientError returns true if the error is due to a request that needs
// correcting rather than retrying.
func IsClientError(err error) bool {
	return errors.Is(err, ErrSessionAlreadyOpen) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnauthorized)
}

// IsNotFound returns true if the error indicates a missing session or
// register.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
