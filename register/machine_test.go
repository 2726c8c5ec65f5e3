package register_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirlondev/magasin-sub002/money"
	"github.com/mirlondev/magasin-sub002/register"
	"github.com/mirlondev/magasin-sub002/register/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	cashierAlice = register.ActorID("alice")
	cashierBob   = register.ActorID("bob")
	managerMona  = register.ActorID("mona")
)

type fixture struct {
	service  *register.Service
	store    *store.Memory
	payments *register.MemoryPayments
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := store.NewMemory()
	identity := register.StaticIdentity{
		cashierAlice: {register.RoleCashier},
		cashierBob:   {register.RoleCashier},
		managerMona:  {register.RoleStoreAdmin},
	}
	payments := register.NewMemoryPayments()

	require.NoError(t, mem.PutRegister(context.Background(), &register.CashRegister{
		ID: "reg-1", Number: "1", StoreID: "store-1", Active: true,
	}))
	require.NoError(t, mem.PutRegister(context.Background(), &register.CashRegister{
		ID: "reg-2", Number: "2", StoreID: "store-1", Active: true,
	}))

	return &fixture{
		service:  register.NewService(mem, identity, payments),
		store:    mem,
		payments: payments,
	}
}

func (f *fixture) open(t *testing.T, reg register.RegisterID, cashier register.ActorID, opening string) *register.ShiftSession {
	t.Helper()
	session, err := f.service.Open(context.Background(), reg, cashier, money.MustParse(opening), "")
	require.NoError(t, err)
	return session
}

func amt(s string) money.Money { return money.MustParse(s) }

func amtPtr(s string) *money.Money {
	m := money.MustParse(s)
	return &m
}

// =============================================================================
// OPEN
// =============================================================================

func TestOpen_InitializesSession(t *testing.T) {
	f := newFixture(t)

	session := f.open(t, "reg-1", cashierAlice, "100.00")

	assert.Equal(t, register.StatusOpen, session.Status)
	assert.Equal(t, "100.00", session.OpeningBalance.String())
	assert.Equal(t, "100.00", session.ActualBalance.String())
	assert.Equal(t, cashierAlice, session.CashierID)
	assert.Equal(t, int64(1), session.Number)
	assert.NotEmpty(t, session.ID)
	assert.Nil(t, session.EndTime)
}

func TestOpen_NegativeOpeningBalance_Rejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Open(context.Background(), "reg-1", cashierAlice, amt("-1.00"), "")

	var amountErr *register.AmountError
	require.ErrorAs(t, err, &amountErr)
	assert.ErrorIs(t, err, register.ErrInvalidAmount)
}

func TestOpen_ZeroOpeningBalance_Allowed(t *testing.T) {
	f := newFixture(t)
	session := f.open(t, "reg-1", cashierAlice, "0.00")
	assert.True(t, session.OpeningBalance.IsZero())
}

func TestOpen_UnknownRegister_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Open(context.Background(), "reg-unknown", cashierAlice, amt("50.00"), "")
	assert.ErrorIs(t, err, register.ErrNotFound)
}

func TestOpen_InactiveRegister_Rejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.PutRegister(context.Background(), &register.CashRegister{
		ID: "reg-3", Number: "3", StoreID: "store-1", Active: false,
	}))

	_, err := f.service.Open(context.Background(), "reg-3", cashierAlice, amt("50.00"), "")
	assert.ErrorIs(t, err, register.ErrInvalidTransition)
}

func TestOpen_RegisterAlreadyOccupied_Rejected(t *testing.T) {
	// GIVEN: Alice has an open session on register 1
	// WHEN: Bob tries to open a session on the same register
	// THEN: The open fails with the register's existing session identified

	f := newFixture(t)
	existing := f.open(t, "reg-1", cashierAlice, "100.00")

	_, err := f.service.Open(context.Background(), "reg-1", cashierBob, amt("50.00"), "")

	var openErr *register.AlreadyOpenError
	require.ErrorAs(t, err, &openErr)
	assert.ErrorIs(t, err, register.ErrSessionAlreadyOpen)
	assert.Equal(t, existing.ID, openErr.ExistingID)
}

func TestOpen_CashierAlreadyOnAnotherRegister_Rejected(t *testing.T) {
	f := newFixture(t)
	f.open(t, "reg-1", cashierAlice, "100.00")

	_, err := f.service.Open(context.Background(), "reg-2", cashierAlice, amt("50.00"), "")
	assert.ErrorIs(t, err, register.ErrSessionAlreadyOpen)
}

func TestOpen_ConcurrentRace_ExactlyOneWinner(t *testing.T) {
	// GIVEN: An unoccupied register
	// WHEN: Two cashiers race to open a session on it
	// THEN: Exactly one open succeeds; the loser sees ErrSessionAlreadyOpen

	f := newFixture(t)
	results := make([]error, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	for i, cashier := range []register.ActorID{cashierAlice, cashierBob} {
		go func(i int, cashier register.ActorID) {
			defer wg.Done()
			_, err := f.service.Open(context.Background(), "reg-1", cashier, amt("100.00"), "")
			results[i] = err
		}(i, cashier)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, register.ErrSessionAlreadyOpen):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one open should win")
	assert.Equal(t, 1, conflicts, "the other should conflict")
}

func TestOpen_SessionNumbersIncreasePerStore(t *testing.T) {
	f := newFixture(t)

	first := f.open(t, "reg-1", cashierAlice, "100.00")
	second := f.open(t, "reg-2", cashierBob, "100.00")

	assert.Equal(t, int64(1), first.Number)
	assert.Equal(t, int64(2), second.Number)
}

// =============================================================================
// CASH MOVEMENTS
// =============================================================================

func TestAddCash_IncreasesBalance(t *testing.T) {
	f := newFixture(t)
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	updated, err := f.service.AddCash(context.Background(), session.ID, cashierAlice, amt("50.00"), "till top-up")
	require.NoError(t, err)
	assert.Equal(t, "150.00", updated.ActualBalance.String())
}

func TestRemoveCash_DecreasesBalance(t *testing.T) {
	f := newFixture(t)
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	updated, err := f.service.RemoveCash(context.Background(), session.ID, cashierAlice, amt("40.00"), "safe drop")
	require.NoError(t, err)
	assert.Equal(t, "60.00", updated.ActualBalance.String())
}

func TestRemoveCash_Overdraw_RejectedBalanceUnchanged(t *testing.T) {
	// GIVEN: A till holding 100.00
	// WHEN: Removing 150.00
	// THEN: The removal is rejected and the balance is untouched

	f := newFixture(t)
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	_, err := f.service.RemoveCash(context.Background(), session.ID, cashierAlice, amt("150.00"), "too much")

	var amountErr *register.AmountError
	require.ErrorAs(t, err, &amountErr)
	assert.Equal(t, "100.00", amountErr.Available.String())

	reloaded, err := f.service.Session(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", reloaded.ActualBalance.String())
}

func TestRemoveCash_ExactBalance_Allowed(t *testing.T) {
	f := newFixture(t)
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	updated, err := f.service.RemoveCash(context.Background(), session.ID, cashierAlice, amt("100.00"), "close-out drop")
	require.NoError(t, err)
	assert.True(t, updated.ActualBalance.IsZero())
}

func TestCashMovement_NonPositiveAmount_Rejected(t *testing.T) {
	f := newFixture(t)
	session := f.open(t, "reg-1", cashierAlice, "100.00")
	ctx := context.Background()

	_, err := f.service.AddCash(ctx, session.ID, cashierAlice, money.Zero, "")
	assert.ErrorIs(t, err, register.ErrInvalidAmount)

	_, err = f.service.AddCash(ctx, session.ID, cashierAlice, amt("-5.00"), "")
	assert.ErrorIs(t, err, register.ErrInvalidAmount)

	_, err = f.service.RemoveCash(ctx, session.ID, cashierAlice, amt("-5.00"), "")
	assert.ErrorIs(t, err, register.ErrInvalidAmount)
}

func TestLedgerReplay_MatchesRunningBalance(t *testing.T) {
	// The running balance must always be reproducible from the ledger.

	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	_, err := f.service.AddCash(ctx, session.ID, cashierAlice, amt("50.00"), "top-up")
	require.NoError(t, err)
	_, err = f.service.PostPayment(ctx, session.ID, cashierAlice, register.Payment{
		Method: register.MethodCash, Direction: register.DirectionSale, Amount: amt("25.50"),
	})
	require.NoError(t, err)
	updated, err := f.service.RemoveCash(ctx, session.ID, cashierAlice, amt("30.00"), "drop")
	require.NoError(t, err)

	ledger := register.NewLedger(f.store)
	replayed, err := ledger.ReplayedBalance(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, updated.ActualBalance, replayed)
	assert.Equal(t, "145.50", replayed.String())
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestPostPayment_CashSale_MovesTillAndAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	updated, err := f.service.PostPayment(ctx, session.ID, cashierAlice, register.Payment{
		Method: register.MethodCash, Direction: register.DirectionSale, Amount: amt("25.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, "125.00", updated.ActualBalance.String())
	assert.Equal(t, "25.00", updated.TotalSales.String())
	assert.Equal(t, int64(1), updated.TotalTransactions)

	movements, err := f.store.Movements(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, register.MovementPayment, movements[0].Kind)
	assert.Equal(t, "25.00", movements[0].Amount.String())
}

func TestPostPayment_CardSale_NoTillMovement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	updated, err := f.service.PostPayment(ctx, session.ID, cashierAlice, register.Payment{
		Method: register.MethodCard, Direction: register.DirectionSale, Amount: amt("60.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, "100.00", updated.ActualBalance.String(), "card sales do not touch the till")
	assert.Equal(t, "60.00", updated.TotalSales.String())

	movements, err := f.store.Movements(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestPostPayment_CashRefund_DrainsTill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	updated, err := f.service.PostPayment(ctx, session.ID, cashierAlice, register.Payment{
		Method: register.MethodCash, Direction: register.DirectionRefund, Amount: amt("20.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, "80.00", updated.ActualBalance.String())
	assert.Equal(t, "20.00", updated.TotalRefunds.String())
}

func TestPostPayment_NonPositiveAmount_Rejected(t *testing.T) {
	f := newFixture(t)
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	_, err := f.service.PostPayment(context.Background(), session.ID, cashierAlice, register.Payment{
		Method: register.MethodCash, Direction: register.DirectionSale, Amount: money.Zero,
	})
	assert.ErrorIs(t, err, register.ErrInvalidAmount)
}

// =============================================================================
// SUSPEND / RESUME
// =============================================================================

func TestSuspend_NonOwner_Unauthorized(t *testing.T) {
	// GIVEN: Alice's open session
	// WHEN: Bob (plain cashier, not the owner) suspends it
	// THEN: The suspend is rejected and the session stays OPEN

	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	_, err := f.service.Suspend(ctx, session.ID, cashierBob, "lunch")
	assert.ErrorIs(t, err, register.ErrUnauthorized)

	reloaded, err := f.service.Session(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, register.StatusOpen, reloaded.Status)
}

func TestSuspend_Owner_Succeeds(t *testing.T) {
	f := newFixture(t)
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	suspended, err := f.service.Suspend(context.Background(), session.ID, cashierAlice, "lunch break")
	require.NoError(t, err)
	assert.Equal(t, register.StatusSuspended, suspended.Status)
	assert.Contains(t, suspended.Notes, "suspended: lunch break")
}

func TestSuspend_Manager_Succeeds(t *testing.T) {
	f := newFixture(t)
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	suspended, err := f.service.Suspend(context.Background(), session.ID, managerMona, "cashier unwell")
	require.NoError(t, err)
	assert.Equal(t, register.StatusSuspended, suspended.Status)
}

func TestSuspended_RejectsCashAndPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")
	_, err := f.service.Suspend(ctx, session.ID, cashierAlice, "lunch")
	require.NoError(t, err)

	_, err = f.service.AddCash(ctx, session.ID, cashierAlice, amt("10.00"), "")
	assert.ErrorIs(t, err, register.ErrInvalidTransition)

	_, err = f.service.PostPayment(ctx, session.ID, cashierAlice, register.Payment{
		Method: register.MethodCash, Direction: register.DirectionSale, Amount: amt("10.00"),
	})
	assert.ErrorIs(t, err, register.ErrInvalidTransition)
}

func TestSuspend_ReleasesRegister(t *testing.T) {
	// A suspended session no longer occupies its register.

	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")
	_, err := f.service.Suspend(ctx, session.ID, cashierAlice, "shift handover")
	require.NoError(t, err)

	taken, err := f.service.Open(ctx, "reg-1", cashierBob, amt("50.00"), "")
	require.NoError(t, err)
	assert.Equal(t, register.StatusOpen, taken.Status)
}

func TestResume_RestoresOpenWithUnchangedBalance(t *testing.T) {
	// GIVEN: A session suspended at balance 135.00
	// WHEN: The owner resumes it
	// THEN: The session is OPEN again with the same balance

	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")
	_, err := f.service.AddCash(ctx, session.ID, cashierAlice, amt("35.00"), "top-up")
	require.NoError(t, err)
	_, err = f.service.Suspend(ctx, session.ID, cashierAlice, "lunch")
	require.NoError(t, err)

	resumed, err := f.service.Resume(ctx, session.ID, cashierAlice)
	require.NoError(t, err)

	assert.Equal(t, register.StatusOpen, resumed.Status)
	assert.Equal(t, "135.00", resumed.ActualBalance.String())
}

func TestResume_RegisterTakenMeanwhile_Conflicts(t *testing.T) {
	// GIVEN: Alice suspended, Bob opened on the same register
	// WHEN: Alice resumes
	// THEN: The resume conflicts and the session stays SUSPENDED

	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")
	_, err := f.service.Suspend(ctx, session.ID, cashierAlice, "break")
	require.NoError(t, err)
	_, err = f.service.Open(ctx, "reg-1", cashierBob, amt("50.00"), "")
	require.NoError(t, err)

	_, err = f.service.Resume(ctx, session.ID, cashierAlice)
	assert.ErrorIs(t, err, register.ErrSessionAlreadyOpen)

	reloaded, err := f.service.Session(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, register.StatusSuspended, reloaded.Status)
}

func TestResume_OpenSession_Rejected(t *testing.T) {
	f := newFixture(t)
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	_, err := f.service.Resume(context.Background(), session.ID, cashierAlice)
	assert.ErrorIs(t, err, register.ErrInvalidTransition)
}

// =============================================================================
// CLOSE
// =============================================================================

func TestClose_ShortageScenario(t *testing.T) {
	// GIVEN: Opened at 100.00, 50.00 added, so the ledger says 150.00
	// WHEN: Closing with a counted balance of 140.00
	// THEN: Discrepancy is -10.00 classified as SHORTAGE

	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")
	_, err := f.service.AddCash(ctx, session.ID, cashierAlice, amt("50.00"), "till top-up")
	require.NoError(t, err)

	closed, report, err := f.service.Close(ctx, session.ID, cashierAlice, amtPtr("140.00"), "")
	require.NoError(t, err)

	assert.Equal(t, register.StatusClosed, closed.Status)
	assert.Equal(t, "140.00", closed.ClosingBalance.String())
	assert.Equal(t, "150.00", closed.ExpectedBalance().String())
	assert.Equal(t, "-10.00", closed.Discrepancy.String())
	assert.NotNil(t, closed.EndTime)

	assert.Equal(t, register.Shortage, report.Classification)
	assert.Equal(t, "-10.00", report.Discrepancy.String())
}

func TestClose_NoCount_LedgerBalanceCloses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	closed, report, err := f.service.Close(ctx, session.ID, cashierAlice, nil, "quiet shift")
	require.NoError(t, err)

	assert.Equal(t, "100.00", closed.ClosingBalance.String())
	assert.True(t, closed.Discrepancy.IsZero())
	assert.Equal(t, register.Balanced, report.Classification)
	assert.Contains(t, closed.Notes, "quiet shift")
}

func TestClose_CountedOverride_Audited(t *testing.T) {
	// A counted balance that disagrees with the ledger leaves an audit
	// event carrying both figures.

	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	_, _, err := f.service.Close(ctx, session.ID, cashierAlice, amtPtr("95.00"), "")
	require.NoError(t, err)

	trail, err := f.store.AuditTrail(ctx, session.ID)
	require.NoError(t, err)

	var override *register.AuditEntry
	for i := range trail {
		if trail[i].Action == register.AuditCountedOverride {
			override = &trail[i]
		}
	}
	require.NotNil(t, override, "counted override should be audited")
	assert.Equal(t, "95.00", override.Details["counted"])
	assert.Equal(t, "100.00", override.Details["ledger"])
	assert.Equal(t, "-5.00", override.Details["delta"])
}

func TestClose_SecondClose_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	_, _, err := f.service.Close(ctx, session.ID, cashierAlice, nil, "")
	require.NoError(t, err)

	_, _, err = f.service.Close(ctx, session.ID, cashierAlice, nil, "")
	assert.ErrorIs(t, err, register.ErrInvalidTransition)
}

func TestClose_NonOwner_Unauthorized(t *testing.T) {
	f := newFixture(t)
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	_, _, err := f.service.Close(context.Background(), session.ID, cashierBob, nil, "")
	assert.ErrorIs(t, err, register.ErrUnauthorized)
}

func TestClose_Manager_Succeeds(t *testing.T) {
	f := newFixture(t)
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	closed, _, err := f.service.Close(context.Background(), session.ID, managerMona, nil, "")
	require.NoError(t, err)
	assert.Equal(t, register.StatusClosed, closed.Status)
}

func TestClose_ReleasesRegisterAndCashier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")
	_, _, err := f.service.Close(ctx, session.ID, cashierAlice, nil, "")
	require.NoError(t, err)

	// Same register and same cashier are both free again.
	reopened := f.open(t, "reg-1", cashierAlice, "200.00")
	assert.Equal(t, register.StatusOpen, reopened.Status)
}

func TestClose_PaymentsUnavailable_SessionStaysOpen(t *testing.T) {
	// GIVEN: The payment collaborator is down
	// WHEN: Closing a session
	// THEN: The close fails retryably with no state change

	mem := store.NewMemory()
	identity := register.StaticIdentity{cashierAlice: {register.RoleCashier}}
	require.NoError(t, mem.PutRegister(context.Background(), &register.CashRegister{
		ID: "reg-1", Number: "1", StoreID: "store-1", Active: true,
	}))
	service := register.NewService(mem, identity, failingPayments{})

	ctx := context.Background()
	session, err := service.Open(ctx, "reg-1", cashierAlice, amt("100.00"), "")
	require.NoError(t, err)

	_, _, err = service.Close(ctx, session.ID, cashierAlice, nil, "")
	assert.ErrorIs(t, err, register.ErrCollaboratorUnavailable)
	assert.True(t, register.IsRetryable(err))

	reloaded, err := service.Session(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, register.StatusOpen, reloaded.Status)
}

type failingPayments struct{}

func (failingPayments) PaymentsForSession(context.Context, register.SessionID) ([]register.Payment, error) {
	return nil, errors.New("payments: connection refused")
}

// =============================================================================
// FLAG FOR REVIEW
// =============================================================================

func TestFlagForReview_ManagerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")
	_, err := f.service.Suspend(ctx, session.ID, cashierAlice, "count mismatch")
	require.NoError(t, err)

	// The owner cannot flag their own session.
	_, err = f.service.FlagForReview(ctx, session.ID, cashierAlice, "suspicious")
	assert.ErrorIs(t, err, register.ErrUnauthorized)

	flagged, err := f.service.FlagForReview(ctx, session.ID, managerMona, "till count mismatch")
	require.NoError(t, err)
	assert.Equal(t, register.StatusUnderReview, flagged.Status)
	assert.Contains(t, flagged.Notes, "under review: till count mismatch")
}

func TestFlagForReview_OpenSession_Rejected(t *testing.T) {
	f := newFixture(t)
	session := f.open(t, "reg-1", cashierAlice, "100.00")

	_, err := f.service.FlagForReview(context.Background(), session.ID, managerMona, "check")
	assert.ErrorIs(t, err, register.ErrInvalidTransition)
}

func TestFlagForReview_Terminal_RejectsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t, "reg-1", cashierAlice, "100.00")
	_, err := f.service.Suspend(ctx, session.ID, cashierAlice, "")
	require.NoError(t, err)
	_, err = f.service.FlagForReview(ctx, session.ID, managerMona, "audit")
	require.NoError(t, err)

	_, err = f.service.Resume(ctx, session.ID, cashierAlice)
	assert.ErrorIs(t, err, register.ErrInvalidTransition)

	_, _, err = f.service.Close(ctx, session.ID, managerMona, nil, "")
	assert.ErrorIs(t, err, register.ErrInvalidTransition)
}

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

func TestErrorHelpers(t *testing.T) {
	collab := &register.CollaboratorError{Collaborator: "payments", Cause: errors.New("down")}
	assert.True(t, register.IsRetryable(collab))
	assert.False(t, register.IsClientError(collab))

	unauthorized := &register.UnauthorizedError{ActorID: cashierBob, Operation: "close"}
	assert.True(t, register.IsClientError(unauthorized))
	assert.False(t, register.IsRetryable(unauthorized))

	assert.True(t, register.IsNotFound(register.ErrNotFound))
}
