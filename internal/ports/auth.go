package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
)

// ErrTokenPending is returned by AuthProvider.Exchange while the provider has
// not yet materialized tokens after a federated redirect. Callers poll until
// tokens appear or their attempt budget runs out.
var ErrTokenPending = errors.New("provider tokens not yet available")

// ErrSessionNotFound is returned by SessionStore.Get when no session exists
// for the given ID.
var ErrSessionNotFound = errors.New("session not found")

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	// RedirectURL is the post-login destination within the application.
	RedirectURL string
	// Provider optionally names a federated identity provider
	// (e.g. "Google", "Facebook") for the hosted-UI idp hint.
	Provider string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// SignOutInput groups parameters for provider-side sign-out.
type SignOutInput struct {
	Subject      string
	RefreshToken string
}

// AuthProvider initiates and completes an authentication flow against an IdP.
type AuthProvider interface {
	// Begin starts the sign-in flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the sign-in flow, verifying state and nonce, and returns
	// the authenticated identity. Returns ErrTokenPending while provider tokens
	// have not materialized yet after a federated redirect.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)

	// SignOut performs best-effort provider-side sign-out (token revocation).
	// Local session state is the caller's responsibility regardless of the outcome.
	SignOut(ctx context.Context, in SignOutInput) error
}

// TokenVerifier validates bearer tokens presented by API clients and maps
// their claims into an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (domainauth.Identity, error)
}

// SessionStore persists and retrieves user sessions.
// Mutations write whole session records; there is no partial update.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// FlowStore persists short-lived sign-in flow state that spans the federated
// redirect round-trip: pending role selections, callback processing markers,
// and the automatic sign-out suspension flag.
type FlowStore interface {
	// SetPendingRole stores the requested role keyed by the flow state.
	// The value expires on its own if never consumed.
	SetPendingRole(ctx context.Context, state string, role domainauth.Role) error

	// ConsumePendingRole atomically reads and clears the pending role for a
	// flow. ok is false when no value is present.
	ConsumePendingRole(ctx context.Context, state string) (role domainauth.Role, ok bool, err error)

	// TryBeginCallback atomically claims the processing marker for a flow.
	// It returns false when a marker younger than the freshness window already
	// exists, meaning another invocation is processing the same flow.
	TryBeginCallback(ctx context.Context, state string) (bool, error)

	// ClearCallback removes the processing marker so the flow may be retried.
	ClearCallback(ctx context.Context, state string) error

	// SuspendAutoSignOut pauses expiry-driven session destruction while the
	// named flow is reconciling. Suspensions are keyed per flow so
	// overlapping callbacks cannot lift each other's; each expires on its
	// own as a guard against crashed callbacks.
	SuspendAutoSignOut(ctx context.Context, state string) error

	// ResumeAutoSignOut lifts the named flow's suspension.
	ResumeAutoSignOut(ctx context.Context, state string) error

	// AutoSignOutSuspended reports whether any flow holds a live suspension.
	AutoSignOutSuspended(ctx context.Context) (bool, error)
}

// RoleMapper derives the application role for an identity from its claims
// and group memberships.
type RoleMapper interface {
	Map(identity domainauth.Identity) domainauth.Role
}

// Sleeper abstracts flow delays so tests can run the callback sequence
// without waiting. Implementations must honor context cancellation.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep implements Sleeper.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// RealSleeper returns a Sleeper backed by a timer that aborts on context
// cancellation.
func RealSleeper() Sleeper {
	return SleeperFunc(func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			return ctx.Err()
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	})
}
