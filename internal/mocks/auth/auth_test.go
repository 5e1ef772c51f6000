package auth

import (
	"context"
	"testing"
	"time"

	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockAuthProvider_Begin_Defaults(t *testing.T) {
	provider := NewMockAuthProvider()
	ctx := context.Background()

	input := ports.BeginInput{RedirectURL: "http://localhost:8080/callback"}
	authURL, state, nonce, err := provider.Begin(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, "https://mock-idp/auth", authURL)
	assert.Equal(t, "state-1", state)
	assert.Equal(t, "nonce-1", nonce)

	// Second call should increment counters
	authURL2, state2, nonce2, err2 := provider.Begin(ctx, input)
	require.NoError(t, err2)
	assert.Equal(t, "https://mock-idp/auth", authURL2)
	assert.Equal(t, "state-2", state2)
	assert.Equal(t, "nonce-2", nonce2)
}

func TestMockAuthProvider_Exchange_PendingAttempts(t *testing.T) {
	provider := NewMockAuthProvider()
	provider.PendingAttempts = 2
	ctx := context.Background()
	in := ports.ExchangeInput{Code: "code", State: "state-1", Nonce: "nonce-1"}

	_, err := provider.Exchange(ctx, in)
	require.ErrorIs(t, err, ports.ErrTokenPending)

	_, err = provider.Exchange(ctx, in)
	require.ErrorIs(t, err, ports.ErrTokenPending)

	identity, err := provider.Exchange(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "mock-sub-1", identity.Subject)
	assert.Equal(t, 3, provider.ExchangeCalls)
}

func TestMemorySessionStore_RoundTrip(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	sess := domainauth.Session{
		ID:        "sess-1",
		Subject:   "sub-1",
		Email:     "user@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess.Subject, got.Subject)

	require.NoError(t, store.Delete(ctx, "sess-1"))
	_, err = store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryFlowStore_PendingRoleConsumeOnce(t *testing.T) {
	store := NewMemoryFlowStore(30 * time.Second)
	ctx := context.Background()

	require.NoError(t, store.SetPendingRole(ctx, "state-1", domainauth.RoleBusinessOwner))

	role, ok, err := store.ConsumePendingRole(ctx, "state-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domainauth.RoleBusinessOwner, role)

	// Second consume finds nothing.
	_, ok, err = store.ConsumePendingRole(ctx, "state-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryFlowStore_MarkerFreshness(t *testing.T) {
	store := NewMemoryFlowStore(30 * time.Second)
	ctx := context.Background()

	ok, err := store.TryBeginCallback(ctx, "state-1")
	require.NoError(t, err)
	assert.True(t, ok, "first claim should succeed")

	ok, err = store.TryBeginCallback(ctx, "state-1")
	require.NoError(t, err)
	assert.False(t, ok, "fresh marker should block a second claim")

	// A different flow is unaffected.
	ok, err = store.TryBeginCallback(ctx, "state-2")
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale markers no longer block.
	store.SetMarkerAge("state-1", time.Minute)
	ok, err = store.TryBeginCallback(ctx, "state-1")
	require.NoError(t, err)
	assert.True(t, ok, "stale marker should be reclaimed")

	require.NoError(t, store.ClearCallback(ctx, "state-1"))
	assert.False(t, store.HasMarker("state-1"))
}

func TestMemoryFlowStore_Suspension(t *testing.T) {
	store := NewMemoryFlowStore(30 * time.Second)
	ctx := context.Background()

	suspended, err := store.AutoSignOutSuspended(ctx)
	require.NoError(t, err)
	assert.False(t, suspended)

	require.NoError(t, store.SuspendAutoSignOut(ctx, "state-a"))
	require.NoError(t, store.SuspendAutoSignOut(ctx, "state-b"))
	suspended, err = store.AutoSignOutSuspended(ctx)
	require.NoError(t, err)
	assert.True(t, suspended)

	// Lifting one flow's suspension leaves the other's intact.
	require.NoError(t, store.ResumeAutoSignOut(ctx, "state-a"))
	suspended, err = store.AutoSignOutSuspended(ctx)
	require.NoError(t, err)
	assert.True(t, suspended)

	require.NoError(t, store.ResumeAutoSignOut(ctx, "state-b"))
	suspended, err = store.AutoSignOutSuspended(ctx)
	require.NoError(t, err)
	assert.False(t, suspended)
}

func TestStaticRoleMapper(t *testing.T) {
	mapper := StaticRoleMapper{AdminGroup: "popmap-admins"}

	assert.Equal(t, domainauth.RoleAdmin, mapper.Map(domainauth.Identity{
		Groups:    []string{"popmap-admins"},
		RoleClaim: domainauth.RoleAttendee,
	}), "admin group wins over claim")

	assert.Equal(t, domainauth.RoleBusinessOwner, mapper.Map(domainauth.Identity{
		RoleClaim: domainauth.RoleBusinessOwner,
	}))

	assert.Equal(t, domainauth.RoleAttendee, mapper.Map(domainauth.Identity{}),
		"no claim, no groups falls back to attendee")
}

func TestRecordingSleeper(t *testing.T) {
	s := &RecordingSleeper{}
	ctx := context.Background()

	require.NoError(t, s.Sleep(ctx, time.Second))
	require.NoError(t, s.Sleep(ctx, 2*time.Second))

	assert.Equal(t, 2, s.TotalSleeps())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, s.Slept)
}
