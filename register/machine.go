/*
machine.go - Session lifecycle state machine

PURPOSE:
  The only writer of session state. Every cashier action - open, cash
  in/out, suspend, resume, close, flag for review - enters here, gets
  its preconditions checked, and either applies in full or not at all.

STATE DIAGRAM:

            open                       close
      ──────────────▶  OPEN  ─────────────────────▶  CLOSED
                      ▲    │
               resume │    │ suspend
                      │    ▼
                     SUSPENDED ─────▶ UNDER_REVIEW
                              flag      (terminal)

  addCash / removeCash / postPayment loop on OPEN only. CLOSED and
  UNDER_REVIEW accept nothing.

SERIALIZATION:
  Operations on the same session run under a per-session mutex, so the
  second of two racing calls observes the fully applied first - or is
  rejected because the session already transitioned. Operations on
  different sessions share nothing except the registry pointers, whose
  race is closed by the store's conditional claim, not by a lock here.

AUTHORIZATION:
  suspend/resume/close/flag require the acting cashier to own the
  session or to hold an elevated role. The machine asks the identity
  collaborator; it never looks at concrete role identity beyond
  owner-vs-elevated (flag is elevated-only).

FAILURE ATOMICITY:
  Collaborator calls happen before any write. A timeout surfaces as
  ErrCollaboratorUnavailable with the session in its prior state and no
  partial ledger entry; the caller may retry verbatim.

SEE ALSO:
  - store.go: The atomic persistence contract each transition relies on
  - report.go: Built at close from the frozen session
*/
package register

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mirlondev/magasin-sub002/money"
)

// Service runs the session lifecycle. All session mutation flows
// through it; sessions it returns are snapshots the caller may read
// freely but must feed back through operations to change.
type Service struct {
	store    Store
	identity IdentityProvider
	payments PaymentSource

	mu    sync.Mutex
	locks map[SessionID]*sync.Mutex
}

func NewService(store Store, identity IdentityProvider, payments PaymentSource) *Service {
	return &Service{
		store:    store,
		identity: identity,
		payments: payments,
		locks:    make(map[SessionID]*sync.Mutex),
	}
}

// lockSession returns the mutex serializing operations on one session.
// Locks are never removed; a terminal session's lock is one word of
// memory and removal would race with late callers.
func (s *Service) lockSession(id SessionID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// =============================================================================
// OPEN
// =============================================================================

// Open starts a new session for cashier on the given register.
//
// Preconditions: the register exists and is active, the register has no
// open session, the cashier has no open session anywhere, and the
// opening balance is not negative. The dual occupancy check is
// re-verified atomically by the store's conditional claim, so two
// concurrent opens for one register yield exactly one success.
func (s *Service) Open(ctx context.Context, registerID RegisterID, cashier ActorID, openingBalance money.Money, notes string) (*ShiftSession, error) {
	if openingBalance.IsNegative() {
		return nil, &AmountError{Amount: openingBalance, Reason: "opening balance must not be negative"}
	}

	reg, err := s.store.GetRegister(ctx, registerID)
	if err != nil {
		return nil, err
	}
	if !reg.Active {
		return nil, fmt.Errorf("register %s is inactive: %w", registerID, ErrInvalidTransition)
	}

	// Advisory pre-checks for precise errors; the claim below is the
	// authoritative race-free check.
	if existing, ok, err := s.store.OpenSessionForRegister(ctx, registerID); err != nil {
		return nil, err
	} else if ok {
		return nil, &AlreadyOpenError{RegisterID: registerID, ExistingID: existing.ID}
	}
	if existing, ok, err := s.store.OpenSessionForCashier(ctx, cashier); err != nil {
		return nil, err
	} else if ok {
		return nil, &AlreadyOpenError{CashierID: cashier, ExistingID: existing.ID}
	}

	number, err := s.store.NextSessionNumber(ctx, reg.StoreID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &ShiftSession{
		ID:             SessionID(uuid.NewString()),
		Number:         number,
		StoreID:        reg.StoreID,
		RegisterID:     registerID,
		CashierID:      cashier,
		Status:         StatusOpen,
		OpeningBalance: openingBalance,
		ActualBalance:  openingBalance,
		Notes:          notes,
		StartTime:      now,
	}

	err = s.store.ClaimOpenSession(ctx, session, AuditEntry{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		ActorID:   cashier,
		Action:    AuditSessionOpened,
		At:        now,
		Details: map[string]string{
			"register":        string(registerID),
			"opening_balance": openingBalance.String(),
		},
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// =============================================================================
// CASH MOVEMENTS
// =============================================================================

// AddCash records a manual addition of physical cash to the till.
func (s *Service) AddCash(ctx context.Context, id SessionID, actor ActorID, amount money.Money, reason string) (*ShiftSession, error) {
	if !amount.IsPositive() {
		return nil, &AmountError{Amount: amount, Reason: "amount must be positive"}
	}
	return s.moveCash(ctx, id, actor, amount, reason, AuditCashAdded, "addCash")
}

// RemoveCash records a manual removal of physical cash from the till.
// The removal may not exceed the current till balance.
func (s *Service) RemoveCash(ctx context.Context, id SessionID, actor ActorID, amount money.Money, reason string) (*ShiftSession, error) {
	if !amount.IsPositive() {
		return nil, &AmountError{Amount: amount, Reason: "amount must be positive"}
	}
	return s.moveCash(ctx, id, actor, amount.Neg(), reason, AuditCashRemoved, "removeCash")
}

// moveCash applies a signed manual movement. amount carries the sign;
// its magnitude must be positive.
func (s *Service) moveCash(ctx context.Context, id SessionID, actor ActorID, amount money.Money, reason string, action AuditAction, op string) (*ShiftSession, error) {
	lock := s.lockSession(id)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusOpen {
		return nil, &TransitionError{SessionID: id, Status: session.Status, Operation: op}
	}
	if amount.IsNegative() && session.ActualBalance.LessThan(amount.Neg()) {
		return nil, &AmountError{Amount: amount.Neg(), Available: session.ActualBalance, Reason: "removal exceeds till balance"}
	}

	now := time.Now().UTC()
	mv := CashMovement{
		ID:         MovementID(uuid.NewString()),
		SessionID:  id,
		Amount:     amount,
		Kind:       MovementManual,
		Reason:     reason,
		ActorID:    actor,
		RecordedAt: now,
	}
	session.ActualBalance = session.ActualBalance.Add(amount)

	err = s.store.ApplyMovement(ctx, session, mv, AuditEntry{
		ID:        uuid.NewString(),
		SessionID: id,
		ActorID:   actor,
		Action:    action,
		At:        now,
		Details:   map[string]string{"amount": amount.String(), "reason": reason},
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// PostPayment records a posted sale or refund against an open session.
// All payments move the running sales/refunds aggregates; cash-method
// payments additionally enter the movement ledger and shift the till
// balance. The payment itself is owned by the payment collaborator and
// is not validated here.
func (s *Service) PostPayment(ctx context.Context, id SessionID, actor ActorID, p Payment) (*ShiftSession, error) {
	lock := s.lockSession(id)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusOpen {
		return nil, &TransitionError{SessionID: id, Status: session.Status, Operation: "postPayment"}
	}
	if !p.Amount.IsPositive() {
		return nil, &AmountError{Amount: p.Amount, Reason: "payment amount must be positive"}
	}

	switch p.Direction {
	case DirectionSale:
		session.TotalSales = session.TotalSales.Add(p.Amount)
	case DirectionRefund:
		session.TotalRefunds = session.TotalRefunds.Add(p.Amount)
	default:
		return nil, &AmountError{Amount: p.Amount, Reason: "unknown payment direction " + string(p.Direction)}
	}
	session.TotalTransactions++

	now := time.Now().UTC()
	audit := AuditEntry{
		ID:        uuid.NewString(),
		SessionID: id,
		ActorID:   actor,
		Action:    AuditPaymentPosted,
		At:        now,
		Details: map[string]string{
			"method":    string(p.Method),
			"direction": string(p.Direction),
			"amount":    p.Amount.String(),
		},
	}

	if p.Method != MethodCash {
		if err := s.store.UpdateSession(ctx, session, audit); err != nil {
			return nil, err
		}
		return session, nil
	}

	delta := p.Amount
	if p.Direction == DirectionRefund {
		delta = delta.Neg()
	}
	session.ActualBalance = session.ActualBalance.Add(delta)
	mv := CashMovement{
		ID:         MovementID(uuid.NewString()),
		SessionID:  id,
		Amount:     delta,
		Kind:       MovementPayment,
		Reason:     string(p.Direction) + " settled in cash",
		ActorID:    actor,
		RecordedAt: now,
	}
	if err := s.store.ApplyMovement(ctx, session, mv, audit); err != nil {
		return nil, err
	}
	return session, nil
}

// =============================================================================
// SUSPEND / RESUME
// =============================================================================

// Suspend pauses an open session. The registry pointers are released:
// a suspended session does not occupy its register.
func (s *Service) Suspend(ctx context.Context, id SessionID, actor ActorID, reason string) (*ShiftSession, error) {
	lock := s.lockSession(id)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusOpen {
		return nil, &TransitionError{SessionID: id, Status: session.Status, Operation: "suspend"}
	}
	if err := s.authorize(ctx, session, actor, "suspend"); err != nil {
		return nil, err
	}

	session.Status = StatusSuspended
	session.Notes = appendNote(session.Notes, "suspended: "+reason)

	now := time.Now().UTC()
	err = s.store.ReleaseOpenSession(ctx, session, AuditEntry{
		ID:        uuid.NewString(),
		SessionID: id,
		ActorID:   actor,
		Action:    AuditSessionSuspend,
		At:        now,
		Details:   map[string]string{"reason": reason},
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Resume returns a suspended session to OPEN with its balance unchanged
// from suspension time. The registry pointers are re-claimed; if the
// register or cashier was taken in the meantime the resume fails with
// ErrSessionAlreadyOpen and the session stays SUSPENDED.
func (s *Service) Resume(ctx context.Context, id SessionID, actor ActorID) (*ShiftSession, error) {
	lock := s.lockSession(id)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusSuspended {
		return nil, &TransitionError{SessionID: id, Status: session.Status, Operation: "resume"}
	}
	if err := s.authorize(ctx, session, actor, "resume"); err != nil {
		return nil, err
	}

	session.Status = StatusOpen

	now := time.Now().UTC()
	err = s.store.ReclaimOpenSession(ctx, session, AuditEntry{
		ID:        uuid.NewString(),
		SessionID: id,
		ActorID:   actor,
		Action:    AuditSessionResumed,
		At:        now,
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// =============================================================================
// CLOSE
// =============================================================================

// Close ends an open session and freezes its reconciliation result.
//
// countedBalance is the manual cash count at close. When supplied it
// takes precedence over the ledger-derived till balance; a disagreement
// between the two is recorded as a counted-balance-override audit event.
// When nil, the ledger-derived balance closes the session.
func (s *Service) Close(ctx context.Context, id SessionID, actor ActorID, countedBalance *money.Money, notes string) (*ShiftSession, *ReconciliationReport, error) {
	lock := s.lockSession(id)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if session.Status != StatusOpen {
		return nil, nil, &TransitionError{SessionID: id, Status: session.Status, Operation: "close"}
	}
	if err := s.authorize(ctx, session, actor, "close"); err != nil {
		return nil, nil, err
	}

	// Fetch payments before committing anything: a payment collaborator
	// failure must leave the session OPEN and retryable.
	payments, err := s.payments.PaymentsForSession(ctx, id)
	if err != nil {
		return nil, nil, &CollaboratorError{Collaborator: "payments", Cause: err}
	}

	now := time.Now().UTC()
	ledgerBalance := session.ActualBalance

	audits := []AuditEntry{{
		ID:        uuid.NewString(),
		SessionID: id,
		ActorID:   actor,
		Action:    AuditSessionClosed,
		At:        now,
	}}

	closing := ledgerBalance
	if countedBalance != nil {
		closing = *countedBalance
		if !closing.Sub(ledgerBalance).IsZero() {
			audits = append(audits, AuditEntry{
				ID:        uuid.NewString(),
				SessionID: id,
				ActorID:   actor,
				Action:    AuditCountedOverride,
				At:        now,
				Details: map[string]string{
					"counted": closing.String(),
					"ledger":  ledgerBalance.String(),
					"delta":   closing.Sub(ledgerBalance).String(),
				},
			})
		}
	}

	// The expectation the count is measured against is the ledger-derived
	// till balance: opening plus every recorded movement. Manual cash
	// operations legitimately change what the till should contain.
	discrepancy, _ := Discrepancy(closing, ledgerBalance)

	session.Status = StatusClosed
	session.ActualBalance = closing
	session.ClosingBalance = closing
	session.Discrepancy = discrepancy
	session.EndTime = &now
	if notes != "" {
		session.Notes = appendNote(session.Notes, notes)
	}

	if err := s.store.ReleaseOpenSession(ctx, session, audits...); err != nil {
		return nil, nil, err
	}

	report := BuildReport(session, payments)
	return session, report, nil
}

// =============================================================================
// FLAG FOR REVIEW
// =============================================================================

// FlagForReview moves a suspended session to the terminal UNDER_REVIEW
// state. Elevated roles only; ownership does not suffice, since the
// flag exists to take a till out of the owner's hands.
func (s *Service) FlagForReview(ctx context.Context, id SessionID, actor ActorID, reason string) (*ShiftSession, error) {
	lock := s.lockSession(id)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusSuspended {
		return nil, &TransitionError{SessionID: id, Status: session.Status, Operation: "flagForReview"}
	}
	elevated, err := s.identity.HasRole(ctx, actor, ElevatedRoles...)
	if err != nil {
		return nil, &CollaboratorError{Collaborator: "identity", Cause: err}
	}
	if !elevated {
		return nil, &UnauthorizedError{ActorID: actor, SessionID: id, Operation: "flagForReview"}
	}

	session.Status = StatusUnderReview
	session.Notes = appendNote(session.Notes, "under review: "+reason)

	now := time.Now().UTC()
	err = s.store.UpdateSession(ctx, session, AuditEntry{
		ID:        uuid.NewString(),
		SessionID: id,
		ActorID:   actor,
		Action:    AuditSessionFlagged,
		At:        now,
		Details:   map[string]string{"reason": reason},
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// =============================================================================
// READS
// =============================================================================

// Session returns a session by id.
func (s *Service) Session(ctx context.Context, id SessionID) (*ShiftSession, error) {
	return s.store.GetSession(ctx, id)
}

// Report assembles the reconciliation view of a session. For closed
// sessions the result is frozen: recomputing from the same inputs is
// byte-for-byte identical.
func (s *Service) Report(ctx context.Context, id SessionID) (*ReconciliationReport, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.PaymentsForSession(ctx, id)
	if err != nil {
		return nil, &CollaboratorError{Collaborator: "payments", Cause: err}
	}
	return BuildReport(session, payments), nil
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

// authorize enforces the shared suspend/resume/close rule: the actor
// must own the session or hold an elevated role.
func (s *Service) authorize(ctx context.Context, session *ShiftSession, actor ActorID, op string) error {
	if actor == session.CashierID {
		return nil
	}
	elevated, err := s.identity.HasRole(ctx, actor, ElevatedRoles...)
	if err != nil {
		return &CollaboratorError{Collaborator: "identity", Cause: err}
	}
	if !elevated {
		return &UnauthorizedError{ActorID: actor, SessionID: session.ID, Operation: op}
	}
	return nil
}

func appendNote(existing, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
