package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeCognito uses the hosted Cognito user pool (OIDC) for authentication.
	AuthModeCognito AuthMode = "cognito"
	// AuthModeDev uses a local stub identity provider (for development only).
	AuthModeDev AuthMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "cognito", "dev":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: cognito, dev)", v)
	}
}

// CognitoConfig contains OIDC settings for the Cognito user pool.
type CognitoConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"popmap"`
	ClientSecret string `env:"CLIENT_SECRET" envDefault:""`

	// IssuerURL is the user pool issuer, e.g.
	// https://cognito-idp.us-east-1.amazonaws.com/us-east-1_xxxx.
	// Any standards-compliant OIDC issuer works.
	IssuerURL string `env:"ISSUER_URL"`

	// Domain is the hosted-UI domain used for federated sign-in and sign-out
	// redirects, e.g. https://auth.popmap.app.
	Domain string `env:"DOMAIN"`

	RedirectURL string `env:"REDIRECT_URL" envDefault:"http://localhost:8080/auth/callback"`
	Scope       string `env:"SCOPE"        envDefault:"openid profile email"`

	// SignOutRedirectURL is where the hosted UI sends the browser after sign-out.
	SignOutRedirectURL string `env:"SIGN_OUT_REDIRECT_URL" envDefault:"http://localhost:5173/"`

	// RoleClaim is the custom claim carrying the requested role on pool tokens.
	RoleClaim string `env:"ROLE_CLAIM" envDefault:"custom:user_role"`
}

// DevAuthConfig controls the stub identity provider used when AUTH_MODE=dev.
type DevAuthConfig struct {
	UserID string   `env:"USER_ID" envDefault:"dev-user"`
	Email  string   `env:"EMAIL"   envDefault:"dev@popmap.local"`
	Role   string   `env:"ROLE"    envDefault:"attendee"`
	Groups []string `env:"GROUPS"  envSeparator:","`

	// TokenLag delays token visibility after a redirect to mimic hosted-UI
	// storage settling. Non-zero values exercise the callback token polling.
	TokenLag time.Duration `env:"TOKEN_LAG" envDefault:"0s"`
}

// CallbackConfig tunes the sign-in callback reconciliation sequence.
type CallbackConfig struct {
	// SettleDelay is the fixed pause before the first token check after a
	// federated redirect lands.
	SettleDelay time.Duration `env:"SETTLE_DELAY" envDefault:"1s"`

	// TokenPollAttempts is the maximum number of token fetch attempts per callback.
	TokenPollAttempts int `env:"TOKEN_POLL_ATTEMPTS" envDefault:"3"`

	// TokenPollInterval is the wait between token fetch attempts.
	TokenPollInterval time.Duration `env:"TOKEN_POLL_INTERVAL" envDefault:"1s"`

	// MarkerWindow is how long a processing marker suppresses duplicate
	// callback runs for the same sign-in flow.
	MarkerWindow time.Duration `env:"MARKER_WINDOW" envDefault:"30s"`

	// SuspendTTL caps how long automatic sign-out stays suspended when a
	// callback dies before re-enabling it.
	SuspendTTL time.Duration `env:"SUSPEND_TTL" envDefault:"2m"`

	// PendingRoleTTL bounds how long a requested role survives between
	// sign-in initiation and callback reconciliation.
	PendingRoleTTL time.Duration `env:"PENDING_ROLE_TTL" envDefault:"10m"`
}

// Sanitize applies guardrails to callback tuning values.
func (c *CallbackConfig) Sanitize() {
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.TokenPollAttempts < 1 {
		c.TokenPollAttempts = 1
	}
	if c.TokenPollInterval < 100*time.Millisecond {
		c.TokenPollInterval = 100 * time.Millisecond
	}
	if c.MarkerWindow < time.Second {
		c.MarkerWindow = time.Second
	}
	if c.SuspendTTL < c.MarkerWindow {
		c.SuspendTTL = 2 * c.MarkerWindow
	}
	if c.PendingRoleTTL < time.Minute {
		c.PendingRoleTTL = time.Minute
	}
}

// SessionConfig controls server-side session behavior.
type SessionConfig struct {
	// TTL is the lifetime of a session record and its cookie.
	TTL time.Duration `env:"TTL" envDefault:"720h"`

	// CookieName is the session cookie name.
	CookieName string `env:"COOKIE_NAME" envDefault:"popmap_session"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.TTL < time.Hour {
		s.TTL = time.Hour
	}
	if strings.TrimSpace(s.CookieName) == "" {
		s.CookieName = "popmap_session"
	}
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"cognito"`

	// Cognito configuration (used when Mode=cognito).
	Cognito CognitoConfig `envPrefix:"COGNITO_"`

	// DevAuth configuration (used when Mode=dev).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// Callback reconciliation tuning.
	Callback CallbackConfig `envPrefix:"AUTH_CALLBACK_"`

	// Server-side session settings.
	Session SessionConfig `envPrefix:"SESSION_"`

	// AdminGroup is the identity pool group whose members are treated as
	// platform admins.
	AdminGroup string `env:"AUTH_ADMIN_GROUP" envDefault:"popmap-admins"`
}

// Sanitize applies guardrails to auth sub-configs.
func (a *AuthConfig) Sanitize() {
	a.Callback.Sanitize()
	a.Session.Sanitize()
}
