package register_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirlondev/magasin-sub002/money"
	"github.com/mirlondev/magasin-sub002/register"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func closedSession() *register.ShiftSession {
	start := time.Date(2026, time.March, 14, 8, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.March, 14, 16, 30, 0, 0, time.UTC)
	return &register.ShiftSession{
		ID:                "sess-1",
		Number:            42,
		StoreID:           "store-1",
		RegisterID:        "reg-1",
		CashierID:         "alice",
		Status:            register.StatusClosed,
		OpeningBalance:    money.MustParse("100.00"),
		ActualBalance:     money.MustParse("140.00"),
		ClosingBalance:    money.MustParse("140.00"),
		TotalSales:        money.MustParse("80.00"),
		TotalRefunds:      money.MustParse("30.00"),
		TotalTransactions: 5,
		Discrepancy:       money.MustParse("-10.00"),
		StartTime:         start,
		EndTime:           &end,
	}
}

func samplePayments() []register.Payment {
	return []register.Payment{
		{Method: register.MethodCash, Direction: register.DirectionSale, Amount: money.MustParse("50.00")},
		{Method: register.MethodCard, Direction: register.DirectionSale, Amount: money.MustParse("20.00")},
		{Method: register.MethodMobile, Direction: register.DirectionSale, Amount: money.MustParse("10.00")},
		{Method: register.MethodCash, Direction: register.DirectionRefund, Amount: money.MustParse("30.00")},
		{Method: "VOUCHER", Direction: register.DirectionSale, Amount: money.MustParse("5.00")},
	}
}

// =============================================================================
// BREAKDOWN
// =============================================================================

func TestBuildReport_PaymentBreakdown(t *testing.T) {
	report := register.BuildReport(closedSession(), samplePayments())

	assert.Equal(t, "20.00", report.Breakdown.CashTotal.String(), "50 sale - 30 refund")
	assert.Equal(t, "20.00", report.Breakdown.CardTotal.String())
	assert.Equal(t, "10.00", report.Breakdown.MobileTotal.String())
	assert.True(t, report.Breakdown.CreditTotal.IsZero())
	require.Contains(t, report.Breakdown.Other, "VOUCHER")
	assert.Equal(t, "5.00", report.Breakdown.Other["VOUCHER"].String())
}

func TestBuildReport_ClosedSession_FrozenFigures(t *testing.T) {
	report := register.BuildReport(closedSession(), samplePayments())

	assert.Equal(t, register.SessionID("sess-1"), report.SessionID)
	assert.Equal(t, "100.00", report.OpeningBalance.String())
	assert.Equal(t, "140.00", report.ClosingBalance.String())
	assert.Equal(t, "150.00", report.ExpectedBalance.String(), "ledger balance behind the -10.00 count")
	assert.Equal(t, "-10.00", report.Discrepancy.String())
	assert.Equal(t, register.Shortage, report.Classification)
	assert.Equal(t, "50.00", report.NetSales.String())
	assert.Equal(t, "2026-03-14T08:00:00Z", report.StartTime)
	assert.Equal(t, "2026-03-14T16:30:00Z", report.EndTime)
}

func TestBuildReport_InProgressSession_UsesRunningBalance(t *testing.T) {
	// Before a count happens there is nothing to disagree with: the
	// running balance IS the expectation, so live sessions are balanced.

	session := closedSession()
	session.Status = register.StatusOpen
	session.ClosingBalance = money.Zero
	session.Discrepancy = money.Zero
	session.EndTime = nil

	report := register.BuildReport(session, nil)

	assert.Equal(t, "140.00", report.ClosingBalance.String(), "running till balance stands in")
	assert.Equal(t, "140.00", report.ExpectedBalance.String())
	assert.True(t, report.Discrepancy.IsZero())
	assert.Equal(t, register.Balanced, report.Classification)
	assert.Empty(t, report.EndTime)
}

// =============================================================================
// DETERMINISM
// =============================================================================

func TestBuildReport_Deterministic_ByteIdenticalJSON(t *testing.T) {
	// Recomputing a closed session's report from the same inputs must
	// serialize byte-for-byte identically.

	session := closedSession()
	payments := samplePayments()

	first, err := json.Marshal(register.BuildReport(session, payments))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := json.Marshal(register.BuildReport(session, payments))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestBuildReport_JSONShape(t *testing.T) {
	data, err := json.Marshal(register.BuildReport(closedSession(), samplePayments()))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "sess-1", decoded["sessionId"])
	assert.Equal(t, "CLOSED", decoded["status"])
	assert.Equal(t, "SHORTAGE", decoded["classification"])
	assert.Equal(t, "-10.00", decoded["discrepancy"], "money serializes as a string")
}
