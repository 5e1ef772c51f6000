package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider = (*MockAuthProvider)(nil)
	_ ports.SessionStore = (*MemorySessionStore)(nil)
	_ ports.FlowStore    = (*MemoryFlowStore)(nil)
	_ ports.RoleMapper   = (*StaticRoleMapper)(nil)
	_ ports.Sleeper      = (*RecordingSleeper)(nil)
)

// MockAuthProvider simulates an IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error)
	SignOutFunc  func(ctx context.Context, in ports.SignOutInput) error

	// Deterministic values for predictable testing
	AuthURL     string
	StatePrefix string
	NoncePrefix string
	DefaultUser domainauth.Identity

	// PendingAttempts makes Exchange report ErrTokenPending for the first N
	// calls, simulating slow token materialization after a redirect.
	PendingAttempts int

	// Internal state tracking for deterministic behavior
	beginCount    int
	ExchangeCalls int
	SignOutCalls  int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultUser: domainauth.Identity{
			Subject:       "mock-sub-1",
			Email:         "mock.user@example.com",
			EmailVerified: true,
			GivenName:     "Mock",
			FamilyName:    "User",
			ExpiresAt:     time.Now().Add(time.Hour),
		},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.beginCount++
	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}

	// Generate deterministic state and nonce based on call count
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	state := fmt.Sprintf("%s-%d", statePrefix, m.beginCount)
	nonce := fmt.Sprintf("%s-%d", noncePrefix, m.beginCount)

	return authURL, state, nonce, nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	m.ExchangeCalls++
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	if m.ExchangeCalls <= m.PendingAttempts {
		return domainauth.Identity{}, ports.ErrTokenPending
	}

	// Return a copy of the default user with a fresh expiration time
	user := m.DefaultUser
	if user.Subject == "" {
		user = domainauth.Identity{
			Subject:   "mock-sub-1",
			Email:     "mock.user@example.com",
			GivenName: "Mock",
		}
	}
	user.ExpiresAt = time.Now().Add(time.Hour)

	return user, nil
}

func (m *MockAuthProvider) SignOut(ctx context.Context, in ports.SignOutInput) error {
	m.SignOutCalls++
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx, in)
	}
	return nil
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session

	// SaveErr, when set, is returned by Save to simulate store failures.
	SaveErr error
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ErrNotFound is returned by mocks when an entity is not present.
var ErrNotFound = ports.ErrSessionNotFound

// MemoryFlowStore is an in-memory flow store for unit tests. Marker freshness
// is driven by an injectable clock so duplicate-callback windows can be
// tested without sleeping.
type MemoryFlowStore struct {
	mu           sync.Mutex
	pendingRoles map[string]domainauth.Role
	markers      map[string]time.Time
	suspended    map[string]struct{}

	// MarkerWindow is the freshness window for processing markers.
	MarkerWindow time.Duration
	// Now is the clock used for marker freshness (defaults to time.Now).
	Now func() time.Time
}

// NewMemoryFlowStore creates an in-memory flow store with the given marker window.
func NewMemoryFlowStore(markerWindow time.Duration) *MemoryFlowStore {
	return &MemoryFlowStore{
		pendingRoles: make(map[string]domainauth.Role),
		markers:      make(map[string]time.Time),
		suspended:    make(map[string]struct{}),
		MarkerWindow: markerWindow,
	}
}

func (m *MemoryFlowStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MemoryFlowStore) SetPendingRole(_ context.Context, state string, role domainauth.Role) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingRoles[state] = role
	return nil
}

func (m *MemoryFlowStore) ConsumePendingRole(_ context.Context, state string) (domainauth.Role, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.pendingRoles[state]
	if ok {
		delete(m.pendingRoles, state)
	}
	return role, ok, nil
}

func (m *MemoryFlowStore) TryBeginCallback(_ context.Context, state string) (bool, error) {
	if state == "" {
		return false, errors.New("state cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if at, ok := m.markers[state]; ok && now.Sub(at) < m.MarkerWindow {
		return false, nil
	}
	m.markers[state] = now
	return true, nil
}

func (m *MemoryFlowStore) ClearCallback(_ context.Context, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markers, state)
	return nil
}

func (m *MemoryFlowStore) SuspendAutoSignOut(_ context.Context, state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended[state] = struct{}{}
	return nil
}

func (m *MemoryFlowStore) ResumeAutoSignOut(_ context.Context, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.suspended, state)
	return nil
}

func (m *MemoryFlowStore) AutoSignOutSuspended(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.suspended) > 0, nil
}

// HasMarker reports whether a processing marker exists for the flow.
func (m *MemoryFlowStore) HasMarker(state string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.markers[state]
	return ok
}

// SetMarkerAge backdates a flow's processing marker for freshness tests.
func (m *MemoryFlowStore) SetMarkerAge(state string, age time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[state] = m.now().Add(-age)
}

// PendingRoleCount returns the number of unconsumed pending roles.
func (m *MemoryFlowStore) PendingRoleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pendingRoles)
}

// StaticRoleMapper derives roles from the token role claim first, then group
// membership, then the fallback role.
type StaticRoleMapper struct {
	AdminGroup string
	Fallback   domainauth.Role
}

func (m StaticRoleMapper) Map(identity domainauth.Identity) domainauth.Role {
	for _, g := range identity.Groups {
		if m.AdminGroup != "" && g == m.AdminGroup {
			return domainauth.RoleAdmin
		}
	}
	if identity.RoleClaim.Valid() {
		return identity.RoleClaim
	}
	if m.Fallback != "" {
		return m.Fallback
	}
	return domainauth.RoleAttendee
}

// RecordingSleeper records requested delays and returns immediately.
type RecordingSleeper struct {
	mu     sync.Mutex
	Slept  []time.Duration
	ErrOn  int // 1-based call index that returns Err, 0 disables
	Err    error
	called int
}

func (s *RecordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.called++
	s.Slept = append(s.Slept, d)
	if s.ErrOn != 0 && s.called == s.ErrOn {
		return s.Err
	}
	return nil
}

// TotalSleeps returns how many times Sleep was invoked.
func (s *RecordingSleeper) TotalSleeps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.called
}
