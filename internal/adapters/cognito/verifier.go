package cognito

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/ports"
)

// Verifier validates bearer tokens presented by API clients (mobile, CLI)
// against the pool's signing keys. Both access and ID tokens are accepted;
// the token_use claim decides which audience rule applies, because Cognito
// access tokens carry client_id instead of aud.
type Verifier struct {
	verifier  *gooidc.IDTokenVerifier
	clientID  string
	roleClaim string
}

var _ ports.TokenVerifier = (*Verifier)(nil)

// NewVerifier builds a bearer-token verifier sharing the provider's
// discovered key set.
func (p *Provider) NewVerifier() *Verifier {
	return &Verifier{
		// Audience is enforced manually per token_use below.
		verifier:  p.oidcProvider.Verifier(&gooidc.Config{SkipClientIDCheck: true}),
		clientID:  p.config.ClientID,
		roleClaim: p.roleClaim,
	}
}

// bearerClaims is the union of access- and ID-token claim shapes.
type bearerClaims struct {
	Sub           string              `json:"sub"`
	TokenUse      string              `json:"token_use"`
	ClientID      string              `json:"client_id"`
	Email         string              `json:"email"`
	EmailVerified bool                `json:"email_verified"`
	GivenName     string              `json:"given_name"`
	FamilyName    string              `json:"family_name"`
	Groups        []string            `json:"cognito:groups"`
	Identities    []federatedIdentity `json:"identities"`
}

// Verify validates signature, issuer, expiry, token_use, and client binding,
// then maps the claims into an identity.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (domainauth.Identity, error) {
	if rawToken == "" {
		return domainauth.Identity{}, errors.New("empty token")
	}

	tok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("verify token: %w", err)
	}

	var claims bearerClaims
	if claimsErr := tok.Claims(&claims); claimsErr != nil {
		return domainauth.Identity{}, fmt.Errorf("parse token claims: %w", claimsErr)
	}

	switch claims.TokenUse {
	case "access":
		if claims.ClientID != v.clientID {
			return domainauth.Identity{}, errors.New("token issued for a different client")
		}
	case "id", "":
		// Plain OIDC issuers omit token_use; treat the token as an ID token.
		if !slices.Contains(tok.Audience, v.clientID) {
			return domainauth.Identity{}, errors.New("token audience mismatch")
		}
	default:
		return domainauth.Identity{}, fmt.Errorf("unsupported token_use %q", claims.TokenUse)
	}

	var raw map[string]any
	if claimsErr := tok.Claims(&raw); claimsErr != nil {
		return domainauth.Identity{}, fmt.Errorf("parse raw claims: %w", claimsErr)
	}

	identity := domainauth.Identity{
		Subject:       claims.Sub,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
		RoleClaim:     roleClaimValue(raw, v.roleClaim),
		Groups:        claims.Groups,
		ExpiresAt:     tok.Expiry,
	}
	if len(claims.Identities) > 0 {
		identity.Provider = claims.Identities[0].ProviderName
	}
	if identity.ExpiresAt.IsZero() {
		identity.ExpiresAt = time.Now().Add(time.Hour)
	}
	return identity, nil
}
