/*
auth.go - JWT actor resolution

PURPOSE:
  Resolves the acting cashier from a Bearer token. Token ISSUANCE is out
  of scope - tokens come from the external identity system - so this
  layer only verifies the HMAC signature and lifts the subject and role
  claims into the request context.

CLAIMS:
  sub    actor id (cashier)
  roles  []string drawn from the engine's enumerated role set

The engine's IdentityProvider capability query is answered from these
verified claims: ContextIdentity checks role membership for the actor
the token named, and nothing else.
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/mirlondev/magasin-sub002/register"
)

// Actor is the verified identity a request acts as.
type Actor struct {
	ID    register.ActorID
	Roles []register.Role
}

type actorContextKey struct{}

// WithActor attaches a verified actor to the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the verified actor, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// =============================================================================
// VERIFIER
// =============================================================================

type actorClaims struct {
	jwtlib.RegisteredClaims
	Roles []string `json:"roles"`
}

// Verifier validates Bearer tokens and injects the actor into the
// request context.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Middleware rejects requests without a valid token.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}

		actor, err := v.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// Verify checks the token signature and expiry and returns the actor.
func (v *Verifier) Verify(token string) (Actor, error) {
	var claims actorClaims
	parsed, err := jwtlib.ParseWithClaims(token, &claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Actor{}, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return Actor{}, errors.New("invalid claims")
	}

	actor := Actor{ID: register.ActorID(claims.Subject)}
	for _, role := range claims.Roles {
		actor.Roles = append(actor.Roles, register.Role(role))
	}
	return actor, nil
}

// IssueToken mints a token for an actor. Exposed for tests and local
// development only; production tokens come from the identity system.
func (v *Verifier) IssueToken(actor Actor, ttl time.Duration) (string, error) {
	roles := make([]string, 0, len(actor.Roles))
	for _, r := range actor.Roles {
		roles = append(roles, string(r))
	}
	now := time.Now()
	claims := actorClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   string(actor.ID),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(v.secret)
}

// =============================================================================
// IDENTITY PROVIDER - Backed by verified request claims
// =============================================================================

// ContextIdentity answers the engine's role capability query from the
// claims of the verified token in the request context. It only vouches
// for the actor the token named.
type ContextIdentity struct{}

func (ContextIdentity) HasRole(ctx context.Context, actor register.ActorID, roles ...register.Role) (bool, error) {
	verified, ok := ActorFromContext(ctx)
	if !ok || verified.ID != actor {
		return false, nil
	}
	for _, held := range verified.Roles {
		for _, want := range roles {
			if held == want {
				return true, nil
			}
		}
	}
	return false, nil
}
