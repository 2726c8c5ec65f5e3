// payments.go - Payment ledger collaborator contract.
//
// The engine consumes posted payments for aggregate totals and the
// close-time breakdown; it never creates or validates a payment.
package register

import (
	"context"
	"sync"
)

// PaymentSource supplies the payments posted against a session.
type PaymentSource interface {
	PaymentsForSession(ctx context.Context, id SessionID) ([]Payment, error)
}

// MemoryPayments is a PaymentSource fed by the machine's PostPayment
// operation through Record. It doubles as the payment ledger in tests
// and standalone deployments without an external payment system.
type MemoryPayments struct {
	mu       sync.RWMutex
	payments map[SessionID][]Payment
}

func NewMemoryPayments() *MemoryPayments {
	return &MemoryPayments{payments: make(map[SessionID][]Payment)}
}

func (m *MemoryPayments) Record(_ context.Context, id SessionID, p Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[id] = append(m.payments[id], p)
	return nil
}

func (m *MemoryPayments) PaymentsForSession(_ context.Context, id SessionID) ([]Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Payment, len(m.payments[id]))
	copy(out, m.payments[id])
	return out, nil
}
