// identity.go - Actor/identity collaborator contract.
//
// The engine never stores actors or roles; it asks one question of the
// identity collaborator: does this actor hold any of these roles? The
// machine itself only ever distinguishes session owner from elevated.
package register

import "context"

// IdentityProvider is the capability query against the external
// actor-identity system.
type IdentityProvider interface {
	// HasRole reports whether the actor holds at least one of the given
	// roles. Infrastructure failures are wrapped as
	// ErrCollaboratorUnavailable by callers.
	HasRole(ctx context.Context, actor ActorID, roles ...Role) (bool, error)
}

// StaticIdentity is an IdentityProvider backed by a fixed role map.
// Used in tests and single-node deployments where roles arrive with the
// verified token.
type StaticIdentity map[ActorID][]Role

func (s StaticIdentity) HasRole(_ context.Context, actor ActorID, roles ...Role) (bool, error) {
	for _, held := range s[actor] {
		for _, want := range roles {
			if held == want {
				return true, nil
			}
		}
	}
	return false, nil
}
