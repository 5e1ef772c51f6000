package cognito

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/ports"
	"golang.org/x/oauth2"
)

// discoveryDocument is the subset of OIDC discovery metadata the tests serve.
type discoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// createTestProvider creates a provider against a mocked discovery endpoint.
func createTestProvider(t *testing.T) *Provider {
	t.Helper()

	issuer := ""
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		doc := discoveryDocument{
			Issuer:                issuer,
			AuthorizationEndpoint: "https://example.com/auth",
			TokenEndpoint:         "https://example.com/token",
			UserinfoEndpoint:      "https://example.com/userinfo",
			JwksURI:               "https://example.com/jwks",
		}
		_ = json.NewEncoder(w).Encode(doc)
	})
	discoveryServer := httptest.NewServer(handler)
	t.Cleanup(discoveryServer.Close)
	issuer = discoveryServer.URL

	provider, err := NewProvider(context.Background(), ProviderConfig{
		ClientID:           "test-client",
		ClientSecret:       "test-secret",
		IssuerURL:          discoveryServer.URL,
		Domain:             "https://auth.example.com",
		RedirectURL:        "http://localhost:8080/auth/callback",
		Scope:              "openid profile email",
		SignOutRedirectURL: "http://localhost:5173/",
	})
	require.NoError(t, err)
	return provider
}

func TestNewProvider_Success(t *testing.T) {
	provider := createTestProvider(t)
	assert.Equal(t, "https://example.com/auth", provider.config.Endpoint.AuthURL)
	assert.Equal(t, "https://example.com/token", provider.config.Endpoint.TokenURL)
	assert.Equal(t, "custom:user_role", provider.roleClaim)
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{
			name:   "missing client ID",
			config: ProviderConfig{IssuerURL: "http://example.com", RedirectURL: "http://localhost/cb"},
			errMsg: "client ID is required",
		},
		{
			name:   "missing issuer URL",
			config: ProviderConfig{ClientID: "client", RedirectURL: "http://localhost/cb"},
			errMsg: "issuer URL is required",
		},
		{
			name:   "missing redirect URL",
			config: ProviderConfig{ClientID: "client", IssuerURL: "http://example.com"},
			errMsg: "redirect URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Begin(t *testing.T) {
	provider := createTestProvider(t)

	authURL, state, nonce, err := provider.Begin(context.Background(), ports.BeginInput{})
	require.NoError(t, err)
	assert.NotEmpty(t, state)
	assert.NotEmpty(t, nonce)
	assert.Contains(t, authURL, "https://example.com/auth")
	assert.Contains(t, authURL, "client_id=test-client")
	assert.Contains(t, authURL, "state="+state)
	assert.Contains(t, authURL, "nonce="+nonce)
	assert.NotContains(t, authURL, "identity_provider")
}

func TestProvider_Begin_FederatedHint(t *testing.T) {
	provider := createTestProvider(t)

	authURL, _, _, err := provider.Begin(context.Background(), ports.BeginInput{Provider: "Google"})
	require.NoError(t, err)
	assert.Contains(t, authURL, "identity_provider=Google")
}

func TestProvider_Begin_FreshStatePerCall(t *testing.T) {
	provider := createTestProvider(t)

	_, state1, nonce1, err := provider.Begin(context.Background(), ports.BeginInput{})
	require.NoError(t, err)
	_, state2, nonce2, err := provider.Begin(context.Background(), ports.BeginInput{})
	require.NoError(t, err)

	assert.NotEqual(t, state1, state2)
	assert.NotEqual(t, nonce1, nonce2)
}

func TestProvider_Exchange_ValidationErrors(t *testing.T) {
	provider := createTestProvider(t)

	_, err := provider.Exchange(context.Background(), ports.ExchangeInput{State: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authorization code is required")

	_, err = provider.Exchange(context.Background(), ports.ExchangeInput{Code: "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state is required")
}

func TestProvider_SignOut_NothingToRevoke(t *testing.T) {
	provider := createTestProvider(t)

	// No refresh token means no provider call and no error.
	err := provider.SignOut(context.Background(), ports.SignOutInput{Subject: "sub-1"})
	require.NoError(t, err)
}

func TestProvider_SignOut_RevocationFailureReturned(t *testing.T) {
	revokeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(revokeServer.Close)

	provider := createTestProvider(t)
	provider.domain = revokeServer.URL

	err := provider.SignOut(context.Background(), ports.SignOutInput{RefreshToken: "rt-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revoke token")
}

func TestProvider_SignOut_RevocationSuccess(t *testing.T) {
	var gotPath, gotToken string
	revokeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseForm()
		gotToken = r.PostForm.Get("token")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(revokeServer.Close)

	provider := createTestProvider(t)
	provider.domain = revokeServer.URL

	err := provider.SignOut(context.Background(), ports.SignOutInput{RefreshToken: "rt-1"})
	require.NoError(t, err)
	assert.Equal(t, "/oauth2/revoke", gotPath)
	assert.Equal(t, "rt-1", gotToken)
}

func TestProvider_LogoutURL(t *testing.T) {
	provider := createTestProvider(t)

	u := provider.LogoutURL()
	assert.Contains(t, u, "https://auth.example.com/logout?")
	assert.Contains(t, u, "client_id=test-client")
	assert.Contains(t, u, "logout_uri=")
}

func TestIsTokenPending(t *testing.T) {
	pending := &oauth2.RetrieveError{ErrorCode: "authorization_pending"}
	assert.True(t, isTokenPending(pending))
	assert.True(t, isTokenPending(&oauth2.RetrieveError{ErrorCode: "slow_down"}))

	assert.False(t, isTokenPending(&oauth2.RetrieveError{ErrorCode: "invalid_grant"}))
	assert.False(t, isTokenPending(errors.New("network down")))
}

func TestMapIDTokenClaims_Federated(t *testing.T) {
	claims := idTokenClaims{
		Sub:           "sub-123",
		Email:         "user@example.com",
		EmailVerified: true,
		GivenName:     "Ada",
		FamilyName:    "Lovelace",
		Groups:        []string{"ops"},
		Identities:    []federatedIdentity{{ProviderName: "Google", UserID: "g-1"}},
	}

	f := mapIDTokenClaims(claims, domainauth.RoleBusinessOwner)
	assert.Equal(t, "sub-123", f.subject)
	assert.Equal(t, "user@example.com", f.email)
	assert.True(t, f.emailVerified)
	assert.Equal(t, "Google", f.provider)
	assert.Equal(t, domainauth.RoleBusinessOwner, f.roleClaim)
	assert.Equal(t, []string{"ops"}, f.groups)
}

func TestMapIDTokenClaims_PoolNative(t *testing.T) {
	f := mapIDTokenClaims(idTokenClaims{Sub: "sub-9", Email: "n@example.com"}, "")
	assert.Empty(t, f.provider)
	assert.Empty(t, f.roleClaim)
}

func TestFillFromUserInfoClaims(t *testing.T) {
	f := idFields{subject: "sub-1"}
	fillFromUserInfoClaims(&f, userInfoClaims{
		Sub:           "ignored",
		Email:         "filled@example.com",
		EmailVerified: "true",
		GivenName:     "Grace",
	})

	assert.Equal(t, "sub-1", f.subject)
	assert.Equal(t, "filled@example.com", f.email)
	assert.True(t, f.emailVerified)
	assert.Equal(t, "Grace", f.givenName)
}

func TestRoleClaimValue(t *testing.T) {
	raw := map[string]any{"custom:user_role": "business_owner"}
	assert.Equal(t, domainauth.RoleBusinessOwner, roleClaimValue(raw, "custom:user_role"))

	assert.Empty(t, roleClaimValue(map[string]any{"custom:user_role": "superuser"}, "custom:user_role"))
	assert.Empty(t, roleClaimValue(map[string]any{}, "custom:user_role"))
	assert.Empty(t, roleClaimValue(map[string]any{"custom:user_role": 42}, "custom:user_role"))
}

func TestRandomToken(t *testing.T) {
	str1, err := randomToken(16)
	require.NoError(t, err)
	assert.Len(t, str1, 16)

	str2, err := randomToken(32)
	require.NoError(t, err)
	assert.Len(t, str2, 32)
	assert.NotEqual(t, str1, str2)
}

func TestProvider_ImplementsInterface(t *testing.T) {
	provider := createTestProvider(t)
	var _ ports.AuthProvider = provider
}
