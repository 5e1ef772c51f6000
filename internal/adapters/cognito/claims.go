package cognito

import (
	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
)

// idFields accumulates identity fields from the ID token and, when claims are
// missing there, the userinfo endpoint.
type idFields struct {
	subject       string
	email         string
	emailVerified bool
	givenName     string
	familyName    string
	provider      string
	roleClaim     domainauth.Role
	groups        []string
}

func (f idFields) toIdentity() domainauth.Identity {
	return domainauth.Identity{
		Subject:       f.subject,
		Email:         f.email,
		EmailVerified: f.emailVerified,
		GivenName:     f.givenName,
		FamilyName:    f.familyName,
		Provider:      f.provider,
		RoleClaim:     f.roleClaim,
		Groups:        f.groups,
	}
}

// idTokenClaims is the Cognito-shaped ID token payload. Pool-native sign-ins
// omit identities; non-Cognito issuers omit the cognito:* claims.
type idTokenClaims struct {
	Sub           string              `json:"sub"`
	Email         string              `json:"email"`
	EmailVerified bool                `json:"email_verified"`
	GivenName     string              `json:"given_name"`
	FamilyName    string              `json:"family_name"`
	Groups        []string            `json:"cognito:groups"`
	Identities    []federatedIdentity `json:"identities"`
	Nonce         string              `json:"nonce"`
}

// federatedIdentity is one entry of the Cognito identities claim, present on
// tokens minted for federated sign-ins.
type federatedIdentity struct {
	ProviderName string `json:"providerName"`
	UserID       string `json:"userId"`
}

// userInfoClaims is the userinfo payload used to backfill missing ID token
// claims. Cognito userinfo reports email_verified as a string.
type userInfoClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// mapIDTokenClaims maps verified ID token claims into idFields. The federated
// provider name comes from the first identities entry; pool-native sign-ins
// leave it empty.
func mapIDTokenClaims(c idTokenClaims, role domainauth.Role) idFields {
	f := idFields{
		subject:       c.Sub,
		email:         c.Email,
		emailVerified: c.EmailVerified,
		givenName:     c.GivenName,
		familyName:    c.FamilyName,
		roleClaim:     role,
		groups:        c.Groups,
	}
	if len(c.Identities) > 0 {
		f.provider = c.Identities[0].ProviderName
	}
	return f
}

// fillFromUserInfoClaims fills fields the ID token did not carry.
func fillFromUserInfoClaims(f *idFields, ui userInfoClaims) {
	if f.subject == "" {
		f.subject = ui.Sub
	}
	if f.email == "" {
		f.email = ui.Email
		f.emailVerified = ui.EmailVerified == "true"
	}
	if f.givenName == "" {
		f.givenName = ui.GivenName
	}
	if f.familyName == "" {
		f.familyName = ui.FamilyName
	}
}

// roleClaimValue pulls the configured role claim out of the raw claim map and
// normalizes it. Unknown values map to the empty role.
func roleClaimValue(raw map[string]any, claim string) domainauth.Role {
	v, ok := raw[claim].(string)
	if !ok {
		return ""
	}
	role, ok := domainauth.ParseRole(v)
	if !ok {
		return ""
	}
	return role
}
