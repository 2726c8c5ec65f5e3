/*
ledger.go - Append-only cash movement log

PURPOSE:
  The movement ledger is the source of truth for a session's till cash.
  Every manual addition or removal and every cash-settled payment is
  recorded here. The session's ActualBalance is a running convenience;
  replaying the ledger from OpeningBalance must reproduce it exactly at
  any point in time.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: no update, no delete. Ever.
  2. OPEN-ONLY: the ledger is appended to only while its session is OPEN
  3. DETERMINISTIC: opening + sum(amounts) == actual balance, always

CORRECTIONS:
  A mistaken movement is not edited. The cashier records an opposite-
  signed movement with a reason; both stay in the ledger and the history
  explains itself.

SEE ALSO:
  - balance.go: ReplayMovements, the derivation this log feeds
  - store.go: ApplyMovement, the atomic persistence contract
*/
package register

import (
	"context"

	"github.com/mirlondev/magasin-sub002/money"
)

// Ledger is the read side of a session's movement log, plus the replay
// check that reconciliation and audits lean on. Writes go through the
// state machine only.
type Ledger struct {
	store MovementStore
}

func NewLedger(store MovementStore) *Ledger {
	return &Ledger{store: store}
}

// Movements returns the session's movements in recording order.
func (l *Ledger) Movements(ctx context.Context, id SessionID) ([]CashMovement, error) {
	return l.store.Movements(ctx, id)
}

// ReplayedBalance recomputes the session's till balance from its
// opening balance and full movement history.
func (l *Ledger) ReplayedBalance(ctx context.Context, session *ShiftSession) (money.Money, error) {
	movements, err := l.store.Movements(ctx, session.ID)
	if err != nil {
		return money.Zero, err
	}
	return ReplayMovements(session.OpeningBalance, movements), nil
}
