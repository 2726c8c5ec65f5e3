// Package store provides an in-memory register.Store implementation
// for tests and development. The SQL-backed implementations live in
// store/sqlite and store/postgres at the repository root.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mirlondev/magasin-sub002/register"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements register.Store with maps under one mutex, which
// trivially gives every multi-write operation the atomicity the
// contract demands: the lock is held across the whole operation and a
// failed precondition writes nothing.
type Memory struct {
	mu        sync.RWMutex
	registers map[register.RegisterID]register.CashRegister
	sessions  map[register.SessionID]register.ShiftSession
	movements map[register.SessionID][]register.CashMovement
	audit     map[register.SessionID][]register.AuditEntry

	// Open-session pointers: the registry index.
	openByRegister map[register.RegisterID]register.SessionID
	openByCashier  map[register.ActorID]register.SessionID

	numbers map[string]int64
}

func NewMemory() *Memory {
	return &Memory{
		registers:      make(map[register.RegisterID]register.CashRegister),
		sessions:       make(map[register.SessionID]register.ShiftSession),
		movements:      make(map[register.SessionID][]register.CashMovement),
		audit:          make(map[register.SessionID][]register.AuditEntry),
		openByRegister: make(map[register.RegisterID]register.SessionID),
		openByCashier:  make(map[register.ActorID]register.SessionID),
		numbers:        make(map[string]int64),
	}
}

// =============================================================================
// REGISTERS
// =============================================================================

func (m *Memory) GetRegister(_ context.Context, id register.RegisterID) (*register.CashRegister, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.registers[id]
	if !ok {
		return nil, register.ErrNotFound
	}
	out := reg
	return &out, nil
}

func (m *Memory) PutRegister(_ context.Context, reg *register.CashRegister) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registers[reg.ID] = *reg
	return nil
}

func (m *Memory) ListRegisters(_ context.Context, storeID string) ([]register.CashRegister, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []register.CashRegister
	for _, reg := range m.registers {
		if storeID == "" || reg.StoreID == storeID {
			out = append(out, reg)
		}
	}
	return out, nil
}

// =============================================================================
// SESSIONS
// =============================================================================

func (m *Memory) GetSession(_ context.Context, id register.SessionID) (*register.ShiftSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, register.ErrNotFound
	}
	out := s
	return &out, nil
}

func (m *Memory) ListSessions(_ context.Context, registerID register.RegisterID) ([]register.ShiftSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []register.ShiftSession
	for _, s := range m.sessions {
		if s.RegisterID == registerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (m *Memory) NextSessionNumber(_ context.Context, storeID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.numbers[storeID]++
	return m.numbers[storeID], nil
}

func (m *Memory) ClaimOpenSession(_ context.Context, session *register.ShiftSession, audit ...register.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.openByRegister[session.RegisterID]; ok {
		return &register.AlreadyOpenError{RegisterID: session.RegisterID, ExistingID: existing}
	}
	if existing, ok := m.openByCashier[session.CashierID]; ok {
		return &register.AlreadyOpenError{CashierID: session.CashierID, ExistingID: existing}
	}

	m.sessions[session.ID] = *session
	m.openByRegister[session.RegisterID] = session.ID
	m.openByCashier[session.CashierID] = session.ID
	m.appendAuditLocked(audit)
	return nil
}

func (m *Memory) UpdateSession(_ context.Context, session *register.ShiftSession, audit ...register.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return register.ErrNotFound
	}
	m.sessions[session.ID] = *session
	m.appendAuditLocked(audit)
	return nil
}

func (m *Memory) ReleaseOpenSession(_ context.Context, session *register.ShiftSession, audit ...register.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return register.ErrNotFound
	}
	m.sessions[session.ID] = *session
	if m.openByRegister[session.RegisterID] == session.ID {
		delete(m.openByRegister, session.RegisterID)
	}
	if m.openByCashier[session.CashierID] == session.ID {
		delete(m.openByCashier, session.CashierID)
	}
	m.appendAuditLocked(audit)
	return nil
}

func (m *Memory) ReclaimOpenSession(_ context.Context, session *register.ShiftSession, audit ...register.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return register.ErrNotFound
	}
	if existing, ok := m.openByRegister[session.RegisterID]; ok && existing != session.ID {
		return &register.AlreadyOpenError{RegisterID: session.RegisterID, ExistingID: existing}
	}
	if existing, ok := m.openByCashier[session.CashierID]; ok && existing != session.ID {
		return &register.AlreadyOpenError{CashierID: session.CashierID, ExistingID: existing}
	}
	m.sessions[session.ID] = *session
	m.openByRegister[session.RegisterID] = session.ID
	m.openByCashier[session.CashierID] = session.ID
	m.appendAuditLocked(audit)
	return nil
}

func (m *Memory) OpenSessionForRegister(_ context.Context, id register.RegisterID) (*register.ShiftSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sid, ok := m.openByRegister[id]
	if !ok {
		return nil, false, nil
	}
	s := m.sessions[sid]
	return &s, true, nil
}

func (m *Memory) OpenSessionForCashier(_ context.Context, id register.ActorID) (*register.ShiftSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sid, ok := m.openByCashier[id]
	if !ok {
		return nil, false, nil
	}
	s := m.sessions[sid]
	return &s, true, nil
}

// =============================================================================
// MOVEMENTS - Append-only
// =============================================================================

func (m *Memory) ApplyMovement(_ context.Context, session *register.ShiftSession, mv register.CashMovement, audit ...register.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return register.ErrNotFound
	}
	m.sessions[session.ID] = *session
	m.movements[mv.SessionID] = append(m.movements[mv.SessionID], mv)
	m.appendAuditLocked(audit)
	return nil
}

func (m *Memory) Movements(_ context.Context, sessionID register.SessionID) ([]register.CashMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]register.CashMovement, len(m.movements[sessionID]))
	copy(out, m.movements[sessionID])
	return out, nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (m *Memory) AuditTrail(_ context.Context, sessionID register.SessionID) ([]register.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]register.AuditEntry, len(m.audit[sessionID]))
	copy(out, m.audit[sessionID])
	return out, nil
}

func (m *Memory) appendAuditLocked(entries []register.AuditEntry) {
	for _, e := range entries {
		m.audit[e.SessionID] = append(m.audit[e.SessionID], e)
	}
}
