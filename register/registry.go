/*
registry.go - Open-session index queries

PURPOSE:
  Answers "who is on this register right now?" and "is this cashier
  mid-shift?" - the two lookups the open operation's dual invariant
  check runs on. The index itself lives in the store as a pair of
  open-session pointers with atomic conditional-write semantics
  (store.go); this type is the read-side query surface.

OCCUPANCY INVARIANT:
  A register has at most one OPEN session at any instant, and a cashier
  has at most one OPEN session anywhere. Suspended and closed sessions
  do not occupy: suspend releases the pointers and resume re-claims them
  (and can fail if the register was taken in between).

SEE ALSO:
  - machine.go: Open/Resume, the operations that claim the pointers
*/
package register

import "context"

// Registry resolves current open sessions and register availability.
type Registry struct {
	sessions  SessionStore
	registers RegisterStore
}

func NewRegistry(sessions SessionStore, registers RegisterStore) *Registry {
	return &Registry{sessions: sessions, registers: registers}
}

// OpenSessionForCashier returns the cashier's current open session, or
// nil if they have none.
func (r *Registry) OpenSessionForCashier(ctx context.Context, cashier ActorID) (*ShiftSession, error) {
	session, ok, err := r.sessions.OpenSessionForCashier(ctx, cashier)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return session, nil
}

// OpenSessionForRegister returns the register's current open session,
// or nil if it is unoccupied.
func (r *Registry) OpenSessionForRegister(ctx context.Context, id RegisterID) (*ShiftSession, error) {
	session, ok, err := r.sessions.OpenSessionForRegister(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return session, nil
}

// IsRegisterAvailable reports whether the register can accept a new
// session: it must exist, be active, and have no open session.
func (r *Registry) IsRegisterAvailable(ctx context.Context, id RegisterID) (bool, error) {
	reg, err := r.registers.GetRegister(ctx, id)
	if err != nil {
		return false, err
	}
	if !reg.Active {
		return false, nil
	}
	_, occupied, err := r.sessions.OpenSessionForRegister(ctx, id)
	if err != nil {
		return false, err
	}
	return !occupied, nil
}
