package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/ports"
	"golang.org/x/sync/singleflight"
)

// DefaultSessionTTL bounds how long a session record lives without a fresh
// sign-in.
const DefaultSessionTTL = 30 * 24 * time.Hour

// ErrSessionExpired is returned when a session exists but its expiry passed.
var ErrSessionExpired = errors.New("session expired")

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider   ports.AuthProvider
	Sessions   ports.SessionStore
	Flows      ports.FlowStore // Optional: sign-out suspension checks are skipped when nil
	Profiles   *ProfileService
	SessionTTL time.Duration // Optional: defaults to DefaultSessionTTL
	Logger     *slog.Logger
}

// AuthService orchestrates sign-in flows: provider exchange, session
// lifecycle, and backend profile synchronization.
type AuthService struct {
	provider   ports.AuthProvider
	sessions   ports.SessionStore
	flows      ports.FlowStore
	profiles   *ProfileService
	sessionTTL time.Duration
	logger     *slog.Logger

	refreshGroup singleflight.Group
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthService{
		provider:   opts.Provider,
		sessions:   opts.Sessions,
		flows:      opts.Flows,
		profiles:   opts.Profiles,
		sessionTTL: ttl,
		logger:     opts.Logger,
	}
}

// BeginLoginInput carries parameters for starting a sign-in flow.
type BeginLoginInput struct {
	RedirectURL string
	Provider    string // federated provider hint, may be empty
}

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin initiates an authentication flow and returns the provider auth
// URL with state and nonce.
func (s *AuthService) BeginLogin(ctx context.Context, input BeginLoginInput) (*BeginLoginResult, error) {
	if input.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{
		RedirectURL: input.RedirectURL,
		Provider:    input.Provider,
	})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}

	return &BeginLoginResult{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// CreateSession persists a new session for an authenticated identity. The
// session starts without a profile snapshot; callers run RefreshUser to
// materialize the profile and reach the authenticated state.
func (s *AuthService) CreateSession(ctx context.Context, identity domainauth.Identity) (domainauth.Session, error) {
	if identity.Subject == "" {
		return domainauth.Session{}, errors.New("identity subject is required")
	}

	now := time.Now()
	sess := domainauth.Session{
		ID:           uuid.NewString(),
		Subject:      identity.Subject,
		Provider:     identity.Provider,
		Email:        identity.Email,
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.sessionTTL),
		RefreshToken: identity.RefreshToken,
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// RefreshUser re-syncs the backend profile for a session and replaces the
// whole session record. On success the session carries a fresh profile
// snapshot and reports authenticated; on sync failure the snapshot is
// cleared and a ProfileSyncError is returned alongside the degraded session,
// which recovers on a later refresh without a new sign-in. Concurrent
// refreshes of the same session are coalesced.
func (s *AuthService) RefreshUser(ctx context.Context, sessionID string) (domainauth.Session, error) {
	if sessionID == "" {
		return domainauth.Session{}, errors.New("session ID is required")
	}

	v, err, _ := s.refreshGroup.Do(sessionID, func() (any, error) {
		return s.refreshUser(ctx, sessionID)
	})
	sess, _ := v.(domainauth.Session)
	return sess, err
}

func (s *AuthService) refreshUser(ctx context.Context, sessionID string) (domainauth.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("get session: %w", err)
	}

	profile, syncErr := s.profiles.Sync(ctx, identityFromSession(sess))
	if syncErr != nil {
		degraded := sess.WithoutProfile()
		if saveErr := s.sessions.Save(ctx, degraded); saveErr != nil {
			syncErr = errors.Join(syncErr, fmt.Errorf("save degraded session: %w", saveErr))
		}
		if s.logger != nil {
			s.logger.Warn("profile sync failed, session degraded",
				"session_id", sessionID, "error", syncErr)
		}
		return degraded, domainauth.ProfileSyncError("profile sync failed", syncErr)
	}

	refreshed := sess.WithProfile(profile.Snapshot())
	if saveErr := s.sessions.Save(ctx, refreshed); saveErr != nil {
		return domainauth.Session{}, fmt.Errorf("save session: %w", saveErr)
	}
	return refreshed, nil
}

// identityFromSession rebuilds the minimal identity a re-sync needs from
// stored session fields. No role claim is present, so refreshes never move
// the stored role.
func identityFromSession(sess domainauth.Session) domainauth.Identity {
	return domainauth.Identity{
		Subject:  sess.Subject,
		Email:    sess.Email,
		Provider: sess.Provider,
	}
}

// GetSession retrieves a session by ID, enforcing expiry. Expired sessions
// are destroyed unless auto sign-out is suspended for an in-flight callback,
// in which case the record is left for the callback to settle.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session ID is required")
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if time.Now().After(sess.ExpiresAt) {
		s.invalidateExpired(ctx, sess.ID)
		return nil, ErrSessionExpired
	}
	return &sess, nil
}

// invalidateExpired destroys an expired session unless auto sign-out is
// suspended. When the suspension flag cannot be read the record is kept;
// expiry already denies access, and a reconciling callback may still need
// the state.
func (s *AuthService) invalidateExpired(ctx context.Context, sessionID string) {
	if s.flows != nil {
		suspended, err := s.flows.AutoSignOutSuspended(ctx)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("suspension check failed, keeping expired session",
					"session_id", sessionID, "error", err)
			}
			return
		}
		if suspended {
			return
		}
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil && s.logger != nil {
		s.logger.Warn("expired session cleanup failed", "session_id", sessionID, "error", err)
	}
}

// SignOut revokes the provider-side session and deletes local session state.
// The local record is removed even when provider revocation fails; the
// provider error is still returned so callers can surface it.
func (s *AuthService) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("get session: %w", err)
	}

	providerErr := s.provider.SignOut(ctx, ports.SignOutInput{
		Subject:      sess.Subject,
		RefreshToken: sess.RefreshToken,
	})

	if deleteErr := s.sessions.Delete(ctx, sessionID); deleteErr != nil {
		if providerErr != nil {
			return errors.Join(
				domainauth.ProviderError("provider sign-out failed", providerErr),
				fmt.Errorf("delete session: %w", deleteErr),
			)
		}
		return fmt.Errorf("delete session: %w", deleteErr)
	}

	if providerErr != nil {
		return domainauth.ProviderError("provider sign-out failed", providerErr)
	}
	return nil
}

// DestroySession removes a session without touching the provider. Used to
// roll back partially created sessions in failed callback flows.
func (s *AuthService) DestroySession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}
