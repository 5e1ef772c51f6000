package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/ports"
)

// Post-sign-in destinations. Business owners land on onboarding; everyone
// else goes home.
const (
	RedirectHome               = "/"
	RedirectBusinessOnboarding = "/onboarding/business"
)

// CallbackTiming tunes the callback reconciliation sequence.
type CallbackTiming struct {
	// SettleDelay is slept once before the first token poll, giving the
	// provider time to materialize tokens after the federated redirect.
	SettleDelay time.Duration
	// TokenPollAttempts bounds Exchange calls while tokens are pending.
	TokenPollAttempts int
	// TokenPollInterval separates consecutive token polls.
	TokenPollInterval time.Duration
}

func (c CallbackTiming) withDefaults() CallbackTiming {
	if c.SettleDelay <= 0 {
		c.SettleDelay = time.Second
	}
	if c.TokenPollAttempts <= 0 {
		c.TokenPollAttempts = 3
	}
	if c.TokenPollInterval <= 0 {
		c.TokenPollInterval = time.Second
	}
	return c
}

// CallbackServiceOptions groups dependencies for CallbackService.
type CallbackServiceOptions struct {
	Provider ports.AuthProvider
	Auth     *AuthService
	Profiles *ProfileService
	Flows    ports.FlowStore
	Sleeper  ports.Sleeper // Optional: defaults to a timer-backed sleeper
	Timing   CallbackTiming
	Logger   *slog.Logger
}

// CallbackService reconciles the social sign-in callback. The federated
// round-trip spans separate requests, so flow state (pending role selection,
// processing marker, sign-out suspension) lives in the flow store keyed by
// the OAuth state.
type CallbackService struct {
	provider ports.AuthProvider
	auth     *AuthService
	profiles *ProfileService
	flows    ports.FlowStore
	sleeper  ports.Sleeper
	timing   CallbackTiming
	logger   *slog.Logger
}

// NewCallbackService constructs a new CallbackService.
func NewCallbackService(opts CallbackServiceOptions) *CallbackService {
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = ports.RealSleeper()
	}
	return &CallbackService{
		provider: opts.Provider,
		auth:     opts.Auth,
		profiles: opts.Profiles,
		flows:    opts.Flows,
		sleeper:  sleeper,
		timing:   opts.Timing.withDefaults(),
		logger:   opts.Logger,
	}
}

// InitiateInput carries parameters for starting a social sign-in.
type InitiateInput struct {
	// Provider optionally names the federated IdP for the hosted-UI hint.
	Provider string
	// Role is an optional deferred role selection applied after the
	// callback completes. Empty means no selection.
	Role domainauth.Role
	// RedirectURL is the post-login destination within the application.
	RedirectURL string
}

// InitiateResult contains the provider authorization URL to redirect to.
// State and Nonce round-trip through short-lived cookies so Resume can
// correlate and verify the callback.
type InitiateResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// Initiate begins a social sign-in flow. A requested role is parked in the
// flow store keyed by the OAuth state so the callback can apply it after the
// round-trip; the value expires on its own if the user never returns.
func (s *CallbackService) Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error) {
	if input.Role != "" && !input.Role.Assignable() {
		return nil, fmt.Errorf("role %q cannot be selected at sign-in", input.Role)
	}

	begin, err := s.auth.BeginLogin(ctx, BeginLoginInput{
		RedirectURL: input.RedirectURL,
		Provider:    input.Provider,
	})
	if err != nil {
		return nil, domainauth.ProviderError("begin sign-in", err)
	}

	if input.Role != "" {
		if err := s.flows.SetPendingRole(ctx, begin.State, input.Role); err != nil {
			return nil, fmt.Errorf("store pending role: %w", err)
		}
	}

	return &InitiateResult{AuthURL: begin.AuthURL, State: begin.State, Nonce: begin.Nonce}, nil
}

// ResumeInput carries the provider callback parameters.
type ResumeInput struct {
	State string
	Code  string
	Nonce string
}

// ResumeResult is the outcome of a reconciled callback.
type ResumeResult struct {
	Session    domainauth.Session
	RedirectTo string
	// RoleErr carries a non-fatal role patch failure. The user is signed in
	// with their prior role and can retry the selection in the app.
	RoleErr error
}

// Resume reconciles the provider callback for a flow. The sequence:
//
//  1. Atomically claim the processing marker for this state; a marker
//     younger than the freshness window means another invocation is already
//     handling the flow, so exit with ErrAlreadyProcessing and no side
//     effects.
//  2. Suspend expiry-driven sign-out while reconciling.
//  3. Sleep the settling delay.
//  4. Poll the token exchange while the provider reports pending, up to the
//     attempt budget.
//  5. Create the session and refresh it to materialize the profile.
//  6. Consume the pending role selection exactly once and apply it; a
//     failure here is reported on the result, not as a flow failure.
//  7. Route business owners to onboarding, everyone else home.
//
// On a terminal failure the marker is cleared (permitting a retry) and any
// partially created session is destroyed. On success the marker stays so a
// duplicate resume within the window is a no-op. The sign-out suspension is
// always lifted on exit; it also self-expires as a guard against crashes.
func (s *CallbackService) Resume(ctx context.Context, input ResumeInput) (*ResumeResult, error) {
	if input.State == "" {
		return nil, domainauth.ProviderError("missing state parameter", nil)
	}
	if input.Code == "" {
		return nil, domainauth.ProviderError("missing authorization code", nil)
	}

	claimed, err := s.flows.TryBeginCallback(ctx, input.State)
	if err != nil {
		return nil, fmt.Errorf("claim callback marker: %w", err)
	}
	if !claimed {
		if s.logger != nil {
			s.logger.Info("duplicate callback ignored", "state", input.State)
		}
		return nil, domainauth.ErrAlreadyProcessing
	}

	if err := s.flows.SuspendAutoSignOut(ctx, input.State); err != nil {
		s.clearMarker(ctx, input.State)
		return nil, fmt.Errorf("suspend auto sign-out: %w", err)
	}
	defer func() {
		if resumeErr := s.flows.ResumeAutoSignOut(ctx, input.State); resumeErr != nil && s.logger != nil {
			// The suspension self-expires, so a failed lift only delays
			// expiry-driven sign-out.
			s.logger.Warn("lift sign-out suspension failed", "error", resumeErr)
		}
	}()

	result, err := s.reconcile(ctx, input)
	if err != nil {
		s.clearMarker(ctx, input.State)
		return nil, err
	}

	if result.RoleErr != nil && s.logger != nil {
		s.logger.Warn("pending role not applied", "state", input.State, "error", result.RoleErr)
	}
	if s.logger != nil {
		s.logger.Info("callback reconciled",
			"state", input.State,
			"session_id", result.Session.ID,
			"role", result.Session.Role(),
			"redirect_to", result.RedirectTo)
	}
	return result, nil
}

func (s *CallbackService) reconcile(ctx context.Context, input ResumeInput) (*ResumeResult, error) {
	if err := s.sleeper.Sleep(ctx, s.timing.SettleDelay); err != nil {
		return nil, fmt.Errorf("settle delay: %w", err)
	}

	identity, err := s.exchange(ctx, input)
	if err != nil {
		return nil, err
	}

	sess, err := s.auth.CreateSession(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	refreshed, err := s.auth.RefreshUser(ctx, sess.ID)
	if err != nil {
		s.destroySession(ctx, sess.ID)
		return nil, err
	}

	result := &ResumeResult{Session: refreshed, RedirectTo: RedirectHome}

	role, ok, consumeErr := s.flows.ConsumePendingRole(ctx, input.State)
	switch {
	case consumeErr != nil:
		result.RoleErr = domainauth.RolePatchError("read pending role", consumeErr)
	case ok && role.Assignable():
		patched, applyErr := s.applyPendingRole(ctx, refreshed, role)
		if applyErr != nil {
			result.RoleErr = applyErr
			break
		}
		result.Session = patched
		if role == domainauth.RoleBusinessOwner {
			result.RedirectTo = RedirectBusinessOnboarding
		}
	}

	return result, nil
}

// exchange polls the provider token exchange while it reports pending,
// up to the attempt budget.
func (s *CallbackService) exchange(ctx context.Context, input ResumeInput) (domainauth.Identity, error) {
	in := ports.ExchangeInput{Code: input.Code, State: input.State, Nonce: input.Nonce}
	for attempt := 1; ; attempt++ {
		identity, err := s.provider.Exchange(ctx, in)
		if err == nil {
			return identity, nil
		}
		if !errors.Is(err, ports.ErrTokenPending) {
			return domainauth.Identity{}, domainauth.ProviderError("token exchange failed", err)
		}
		if attempt >= s.timing.TokenPollAttempts {
			return domainauth.Identity{}, domainauth.TimeoutError(
				fmt.Sprintf("provider tokens not available after %d attempts", attempt), err)
		}
		if s.logger != nil {
			s.logger.Debug("provider tokens pending", "attempt", attempt, "state", input.State)
		}
		if sleepErr := s.sleeper.Sleep(ctx, s.timing.TokenPollInterval); sleepErr != nil {
			return domainauth.Identity{}, fmt.Errorf("token poll interrupted: %w", sleepErr)
		}
	}
}

// applyPendingRole patches the profile role and refreshes the session so the
// snapshot reflects the new role. Any failure leaves the session as it was.
func (s *CallbackService) applyPendingRole(
	ctx context.Context,
	sess domainauth.Session,
	role domainauth.Role,
) (domainauth.Session, error) {
	if sess.Profile == nil {
		return sess, domainauth.RolePatchError("no profile to patch", nil)
	}
	if _, err := s.profiles.UpdateRole(ctx, sess.Profile.ID, role); err != nil {
		return sess, domainauth.RolePatchError("apply pending role", err)
	}
	refreshed, err := s.auth.RefreshUser(ctx, sess.ID)
	if err != nil {
		return sess, domainauth.RolePatchError("refresh after role patch", err)
	}
	return refreshed, nil
}

func (s *CallbackService) clearMarker(ctx context.Context, state string) {
	if err := s.flows.ClearCallback(ctx, state); err != nil && s.logger != nil {
		s.logger.Warn("clear callback marker failed", "state", state, "error", err)
	}
}

func (s *CallbackService) destroySession(ctx context.Context, sessionID string) {
	if err := s.auth.DestroySession(ctx, sessionID); err != nil && s.logger != nil {
		s.logger.Warn("partial session cleanup failed", "session_id", sessionID, "error", err)
	}
}
