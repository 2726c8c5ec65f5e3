package register_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mirlondev/magasin-sub002/money"
	"github.com/mirlondev/magasin-sub002/register"
)

// =============================================================================
// EXPECTED BALANCE
// =============================================================================

func TestExpectedBalance(t *testing.T) {
	expected := register.ExpectedBalance(
		money.MustParse("100.00"), // opening
		money.MustParse("250.00"), // sales
		money.MustParse("30.00"),  // refunds
	)
	assert.Equal(t, "320.00", expected.String())
}

func TestExpectedBalance_NoActivity(t *testing.T) {
	expected := register.ExpectedBalance(money.MustParse("100.00"), money.Zero, money.Zero)
	assert.Equal(t, "100.00", expected.String())
}

// =============================================================================
// DISCREPANCY CLASSIFICATION
// =============================================================================

func TestDiscrepancy_Classification(t *testing.T) {
	tests := []struct {
		name     string
		actual   string
		expected string
		delta    string
		class    register.DiscrepancyClass
	}{
		{"exact match", "150.00", "150.00", "0.00", register.Balanced},
		{"till over", "155.00", "150.00", "5.00", register.Surplus},
		{"till short", "140.00", "150.00", "-10.00", register.Shortage},
		{"one cent short", "149.99", "150.00", "-0.01", register.Shortage},
		{"one cent over", "150.01", "150.00", "0.01", register.Surplus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, class := register.Discrepancy(money.MustParse(tt.actual), money.MustParse(tt.expected))
			assert.Equal(t, tt.delta, delta.String())
			assert.Equal(t, tt.class, class)
		})
	}
}

// =============================================================================
// LEDGER REPLAY
// =============================================================================

func TestReplayMovements_RoundTrip(t *testing.T) {
	// GIVEN: An opening float and a mixed sequence of signed movements
	// WHEN: Replaying the ledger from the opening balance
	// THEN: The result equals the running balance the movements describe

	opening := money.MustParse("100.00")
	movements := []register.CashMovement{
		{Amount: money.MustParse("50.00"), Kind: register.MovementManual},
		{Amount: money.MustParse("25.50"), Kind: register.MovementPayment},
		{Amount: money.MustParse("-10.00"), Kind: register.MovementPayment},
		{Amount: money.MustParse("-40.00"), Kind: register.MovementManual},
	}

	balance := register.ReplayMovements(opening, movements)
	assert.Equal(t, "125.50", balance.String())
}

func TestReplayMovements_EmptyLedger(t *testing.T) {
	opening := money.MustParse("80.00")
	assert.Equal(t, opening, register.ReplayMovements(opening, nil))
}
