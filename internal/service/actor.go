package service

import (
	"errors"

	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
)

// ErrForbidden is returned when the acting principal may not perform an
// operation on the target resource. Handlers map it to 403.
var ErrForbidden = errors.New("operation not permitted")

// Actor identifies the principal performing a service operation. Handlers
// build it from the session; background jobs and the admin CLI use
// SystemActor.
type Actor struct {
	ProfileID string
	Role      domainauth.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == domainauth.RoleAdmin }

// IsBusinessOwner reports whether the actor holds the business owner role.
func (a Actor) IsBusinessOwner() bool { return a.Role == domainauth.RoleBusinessOwner }

// Owns reports whether the actor is the profile identified by ownerID.
func (a Actor) Owns(ownerID string) bool {
	return a.ProfileID != "" && a.ProfileID == ownerID
}

// CanManage reports whether the actor may mutate a resource owned by ownerID.
// Admins manage everything; everyone else manages only their own resources.
func (a Actor) CanManage(ownerID string) bool {
	return a.IsAdmin() || a.Owns(ownerID)
}

// SystemActor is the implicit admin principal used by background jobs and
// operator tooling that bypass session auth.
func SystemActor() Actor {
	return Actor{Role: domainauth.RoleAdmin}
}
