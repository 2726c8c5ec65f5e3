/*
report.go - Reconciliation report assembly

PURPOSE:
  At close time (and on demand for in-progress sessions) the engine
  packages the frozen balances, the discrepancy classification, and a
  payment-method breakdown into a read-only ReconciliationReport.

TWO INDEPENDENT VIEWS:
  The breakdown is computed from the posted payments alone, never from
  the cash ledger. A surplus or shortage therefore shows up as a
  mismatch between the two views instead of disappearing into one.

DETERMINISM:
  Sessions are never re-closed, so rebuilding a closed session's report
  from the same inputs must be byte-for-byte identical: no generation
  timestamps, payments summed in method order, other-method keys sorted
  by encoding/json's map ordering.

SEE ALSO:
  - balance.go: Discrepancy classification
  - machine.go: Close, which triggers the report
*/
package register

import (
	"time"

	"github.com/mirlondev/magasin-sub002/money"
)

// PaymentBreakdown sums posted payments per method, sales minus
// refunds. The four common methods are first-class; anything else lands
// in Other keyed by method name.
type PaymentBreakdown struct {
	CashTotal   money.Money            `json:"cashTotal"`
	CardTotal   money.Money            `json:"cardTotal"`
	MobileTotal money.Money            `json:"mobileTotal"`
	CreditTotal money.Money            `json:"creditTotal"`
	Other       map[string]money.Money `json:"other,omitempty"`
}

// ReconciliationReport is the read-only projection of a session plus
// its payment breakdown. Immutable once the session is CLOSED.
type ReconciliationReport struct {
	SessionID     SessionID     `json:"sessionId"`
	SessionNumber int64         `json:"sessionNumber"`
	StoreID       string        `json:"storeId"`
	RegisterID    RegisterID    `json:"registerId"`
	CashierID     ActorID       `json:"cashierId"`
	Status        SessionStatus `json:"status"`

	OpeningBalance  money.Money      `json:"openingBalance"`
	ClosingBalance  money.Money      `json:"closingBalance"`
	ExpectedBalance money.Money      `json:"expectedBalance"`
	Discrepancy     money.Money      `json:"discrepancy"`
	Classification  DiscrepancyClass `json:"classification"`

	TotalSales        money.Money `json:"totalSales"`
	TotalRefunds      money.Money `json:"totalRefunds"`
	NetSales          money.Money `json:"netSales"`
	TotalTransactions int64       `json:"totalTransactions"`

	Breakdown PaymentBreakdown `json:"breakdown"`

	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// BuildReport assembles the reconciliation view of a session from the
// session itself and its posted payments. Pure: same inputs, same
// report.
func BuildReport(session *ShiftSession, payments []Payment) *ReconciliationReport {
	breakdown := PaymentBreakdown{}
	for _, p := range payments {
		amount := p.Amount
		if p.Direction == DirectionRefund {
			amount = amount.Neg()
		}
		switch p.Method {
		case MethodCash:
			breakdown.CashTotal = breakdown.CashTotal.Add(amount)
		case MethodCard:
			breakdown.CardTotal = breakdown.CardTotal.Add(amount)
		case MethodMobile:
			breakdown.MobileTotal = breakdown.MobileTotal.Add(amount)
		case MethodCredit:
			breakdown.CreditTotal = breakdown.CreditTotal.Add(amount)
		default:
			if breakdown.Other == nil {
				breakdown.Other = make(map[string]money.Money)
			}
			breakdown.Other[string(p.Method)] = breakdown.Other[string(p.Method)].Add(amount)
		}
	}

	// Only CLOSED sessions carry a frozen count; everything else shows
	// the running till balance, which by the replay invariant equals the
	// expectation, so live sessions always report as balanced.
	closing := session.ActualBalance
	if session.Status == StatusClosed {
		closing = session.ClosingBalance
	}
	expected := session.ExpectedBalance()
	discrepancy, class := Discrepancy(closing, expected)

	report := &ReconciliationReport{
		SessionID:         session.ID,
		SessionNumber:     session.Number,
		StoreID:           session.StoreID,
		RegisterID:        session.RegisterID,
		CashierID:         session.CashierID,
		Status:            session.Status,
		OpeningBalance:    session.OpeningBalance,
		ClosingBalance:    closing,
		ExpectedBalance:   expected,
		Discrepancy:       discrepancy,
		Classification:    class,
		TotalSales:        session.TotalSales,
		TotalRefunds:      session.TotalRefunds,
		NetSales:          session.NetSales(),
		TotalTransactions: session.TotalTransactions,
		Breakdown:         breakdown,
		StartTime:         session.StartTime.UTC().Format(time.RFC3339),
		Notes:             session.Notes,
	}
	if session.EndTime != nil {
		report.EndTime = session.EndTime.UTC().Format(time.RFC3339)
	}
	return report
}
