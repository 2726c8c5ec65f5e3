/*
balance.go - Pure balance calculation

PURPOSE:
  Answers the two questions reconciliation turns on: "what should the
  till contain?" and "how far off is the count?". Everything here is a
  pure function over money.Money values and movement slices; no store,
  no clock, no side effects.

KEY INSIGHT:
  ActualBalance is never stored authority on its own - it must always be
  reproducible by replaying the movement ledger from the opening balance.
  ReplayMovements is that replay, and the round-trip is tested directly.

SEE ALSO:
  - ledger.go: Where movements come from
  - report.go: Packages these results at close time
*/
package register

import "github.com/mirlondev/magasin-sub002/money"

// =============================================================================
// EXPECTED BALANCE
// =============================================================================

// ExpectedBalance is opening + totalSales - totalRefunds: what the till
// should contain absent errors.
func ExpectedBalance(opening, totalSales, totalRefunds money.Money) money.Money {
	return opening.Add(totalSales).Sub(totalRefunds)
}

// =============================================================================
// DISCREPANCY
// =============================================================================

// DiscrepancyClass is the sign classification of a close-time discrepancy.
type DiscrepancyClass string

const (
	Balanced DiscrepancyClass = "BALANCED"
	Surplus  DiscrepancyClass = "SURPLUS"
	Shortage DiscrepancyClass = "SHORTAGE"
)

// Discrepancy is actual - expected, with its classification: exactly
// zero is Balanced, positive is Surplus, negative is Shortage.
func Discrepancy(actual, expected money.Money) (money.Money, DiscrepancyClass) {
	d := actual.Sub(expected)
	switch {
	case d.IsPositive():
		return d, Surplus
	case d.IsNegative():
		return d, Shortage
	default:
		return d, Balanced
	}
}

// =============================================================================
// LEDGER REPLAY
// =============================================================================

// ReplayMovements derives the till balance by replaying the movement
// ledger from the opening balance. Movements include both manual cash
// operations and cash-settled payment postings; their signed amounts sum
// directly.
func ReplayMovements(opening money.Money, movements []CashMovement) money.Money {
	balance := opening
	for _, mv := range movements {
		balance = balance.Add(mv.Amount)
	}
	return balance
}
