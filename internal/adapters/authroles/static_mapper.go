package authroles

import (
	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
)

// StaticRoleMapper derives an application role from an identity.
// Precedence: admin group membership, then the token's role claim, then the
// fallback role. The claim is trusted because only the user pool writes it.
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
