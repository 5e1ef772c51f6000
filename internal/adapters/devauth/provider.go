package devauth

// Package devauth provides a config-driven AuthProvider for local
// development. It short-circuits the hosted-UI round trip by redirecting
// straight back to our own callback, and can simulate the token
// materialization lag of a real federated redirect so the callback poll loop
// is exercised locally.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/ports"
)

// Config controls the dev auth provider behavior.
type Config struct {
	Subject string
	Email   string
	Role    domainauth.Role // role claim carried on the fake identity
	Groups  []string

	// TokenLag delays token visibility after Begin. While the lag has not
	// elapsed, Exchange reports ErrTokenPending.
	TokenLag time.Duration

	// SessionDuration bounds the fake identity expiry. Defaults to 8h.
	SessionDuration time.Duration
}

// Provider implements ports.AuthProvider for local development.
type Provider struct {
	identity        domainauth.Identity
	tokenLag        time.Duration
	sessionDuration time.Duration

	// now is the clock, injectable for tests.
	now func() time.Time

	mu       sync.Mutex
	beganAt  map[string]time.Time
	signOuts int
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Subject == "" {
		return nil, errors.New("dev auth: Subject is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	return &Provider{
		identity: domainauth.Identity{
			Subject:       cfg.Subject,
			Email:         cfg.Email,
			EmailVerified: true,
			GivenName:     "Dev",
			FamilyName:    "User",
			RoleClaim:     cfg.Role,
			Groups:        append([]string(nil), cfg.Groups...),
		},
		tokenLag:        cfg.TokenLag,
		sessionDuration: dur,
		now:             time.Now,
		beganAt:         make(map[string]time.Time),
	}, nil
}

// Begin returns a local callback URL with generated state and nonce, and
// records the flow start so TokenLag can be simulated.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	p.mu.Lock()
	p.beganAt[state] = p.now()
	p.mu.Unlock()

	// The standard handler expects GET /auth/callback?code=...&state=...
	authURL := "/auth/callback?code=dev&state=" + state
	return authURL, state, nonce, nil
}

// Exchange returns the configured identity. While the simulated token lag for
// the flow has not elapsed it reports ErrTokenPending, like a hosted UI whose
// token storage has not settled after a federated redirect.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if p.tokenLag > 0 {
		p.mu.Lock()
		began, ok := p.beganAt[in.State]
		if ok && p.now().Sub(began) < p.tokenLag {
			p.mu.Unlock()
			return domainauth.Identity{}, ports.ErrTokenPending
		}
		delete(p.beganAt, in.State)
		p.mu.Unlock()
	}

	identity := p.identity
	identity.ExpiresAt = p.now().Add(p.sessionDuration)
	return identity, nil
}

// SignOut is a local no-op; there is no provider to revoke against.
func (p *Provider) SignOut(_ context.Context, _ ports.SignOutInput) error {
	p.mu.Lock()
	p.signOuts++
	p.mu.Unlock()
	return nil
}

// SignOutCalls reports how many times SignOut ran, for tests.
func (p *Provider) SignOutCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOuts
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	bLen := (n*3 + 3) / 4
	b := make([]byte, bLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:n], nil
}
