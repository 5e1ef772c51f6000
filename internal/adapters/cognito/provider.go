package cognito

// Package cognito implements the auth ports against an OIDC issuer shaped
// like an AWS Cognito user pool: hosted-UI authorization with identity
// provider hints, authorization-code exchange, federated identity extraction,
// and custom role claims. Any standards-compliant OIDC issuer works; the
// Cognito-specific claims are simply absent then.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/ports"
	"golang.org/x/oauth2"
)

// Provider implements ports.AuthProvider against a Cognito-style user pool.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier

	domain             string
	signOutRedirectURL string
	roleClaim          string
}

// ProviderConfig holds configuration for the Cognito provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string

	// IssuerURL is the user pool issuer used for OIDC discovery.
	IssuerURL string

	// Domain is the hosted-UI domain, e.g. https://auth.popmap.app. Used for
	// sign-out redirects and refresh token revocation.
	Domain string

	RedirectURL string
	Scope       string

	// SignOutRedirectURL is where the hosted UI sends the browser after sign-out.
	SignOutRedirectURL string

	// RoleClaim names the custom claim carrying the requested role on pool
	// tokens. Defaults to "custom:user_role".
	RoleClaim string

	HTTPClient *http.Client // Optional, defaults to a 30s-timeout client
}

// NewProvider creates a Cognito provider, performing OIDC discovery against
// the configured issuer.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	roleClaim := cfg.RoleClaim
	if roleClaim == "" {
		roleClaim = "custom:user_role"
	}

	p := &Provider{
		httpClient:         httpClient,
		domain:             strings.TrimSuffix(cfg.Domain, "/"),
		signOutRedirectURL: cfg.SignOutRedirectURL,
		roleClaim:          roleClaim,
	}

	// Single discovery fetch; go-oidc caches the JWKS key set.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(ctx, strings.TrimSuffix(cfg.IssuerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: cfg.ClientID})

	p.config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       strings.Fields(cfg.Scope),
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

// Begin builds the hosted-UI authorization URL with fresh state and nonce.
// A non-empty in.Provider becomes the identity_provider hint so the hosted UI
// skips straight to the federated IdP (Google, Facebook, ...).
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	state, err := randomToken(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomToken(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
	}
	if in.Provider != "" {
		opts = append(opts, oauth2.SetAuthURLParam("identity_provider", in.Provider))
	}

	return p.config.AuthCodeURL(state, opts...), state, nonce, nil
}

// Exchange redeems the authorization code and verifies the resulting ID
// token, falling back to the userinfo endpoint for claims the token omits.
// Returns ports.ErrTokenPending while the token endpoint signals that the
// grant has not materialized yet after a federated redirect.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if in.Code == "" {
		return domainauth.Identity{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.Identity{}, errors.New("state is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		if isTokenPending(err) {
			return domainauth.Identity{}, ports.ErrTokenPending
		}
		return domainauth.Identity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	fields, err := p.extractFromIDToken(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("extract id_token: %w", err)
	}

	if fields.subject == "" || fields.email == "" {
		if fillErr := p.fillFromUserInfo(ctx, token.AccessToken, &fields); fillErr != nil {
			return domainauth.Identity{}, fmt.Errorf("get user info: %w", fillErr)
		}
	}
	if fields.subject == "" {
		return domainauth.Identity{}, errors.New("provider returned no subject")
	}

	expiresAt := time.Now().Add(time.Hour)
	if !token.Expiry.IsZero() {
		expiresAt = token.Expiry
	}

	identity := fields.toIdentity()
	identity.ExpiresAt = expiresAt
	identity.RefreshToken = token.RefreshToken
	return identity, nil
}

// SignOut revokes the refresh token at the hosted-UI revocation endpoint.
// Revocation invalidates every token minted from that refresh token. With no
// refresh token or no hosted-UI domain there is nothing to revoke server-side.
func (p *Provider) SignOut(ctx context.Context, in ports.SignOutInput) error {
	if in.RefreshToken == "" || p.domain == "" {
		return nil
	}

	form := url.Values{}
	form.Set("token", in.RefreshToken)
	if p.config.ClientSecret == "" {
		// Public clients pass the client id in the body instead of basic auth.
		form.Set("client_id", p.config.ClientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.domain+"/oauth2/revoke", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.config.ClientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(p.config.ClientID), url.QueryEscape(p.config.ClientSecret))
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best-effort close on a drained response.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("revoke token: provider returned %s", resp.Status)
	}
	return nil
}

// LogoutURL returns the hosted-UI logout URL that fully signs the browser out
// of the pool, or empty when no hosted-UI domain is configured.
func (p *Provider) LogoutURL() string {
	if p.domain == "" {
		return ""
	}
	q := url.Values{}
	q.Set("client_id", p.config.ClientID)
	if p.signOutRedirectURL != "" {
		q.Set("logout_uri", p.signOutRedirectURL)
	}
	return p.domain + "/logout?" + q.Encode()
}

// isTokenPending reports whether a token-endpoint error means the grant is
// not ready yet and should be polled, as opposed to being terminally invalid.
func isTokenPending(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	switch re.ErrorCode {
	case "authorization_pending", "slow_down":
		return true
	}
	return false
}

func (p *Provider) extractFromIDToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (idFields, error) {
	var f idFields
	if !p.hasOpenIDScope() {
		return f, nil
	}
	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return f, errors.New("missing id_token in token response")
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return f, fmt.Errorf("verify id_token: %w", err)
	}

	var claims idTokenClaims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return f, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if expectedNonce != "" && claims.Nonce != expectedNonce {
		return f, errors.New("invalid nonce")
	}

	// The role claim name is configurable, so it is read from the raw map.
	var raw map[string]any
	if claimsErr := idTok.Claims(&raw); claimsErr != nil {
		return f, fmt.Errorf("parse raw claims: %w", claimsErr)
	}

	return mapIDTokenClaims(claims, roleClaimValue(raw, p.roleClaim)), nil
}

func (p *Provider) fillFromUserInfo(ctx context.Context, accessToken string, f *idFields) error {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	var info userInfoClaims
	if claimsErr := ui.Claims(&info); claimsErr != nil {
		return fmt.Errorf("decode user info: %w", claimsErr)
	}
	fillFromUserInfoClaims(f, info)
	return nil
}

// hasOpenIDScope reports whether the configured scopes include "openid".
func (p *Provider) hasOpenIDScope() bool {
	for _, sc := range p.config.Scopes {
		if sc == "openid" {
			return true
		}
	}
	return false
}

// randomToken generates a cryptographically secure URL-safe random string of
// exact length.
func randomToken(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < length {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}
