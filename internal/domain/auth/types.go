package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Role represents an application authorization role.
// Keep string form for easy persistence and claims mapping.
// Valid values are defined as constants below.
type Role string

const (
	RoleAttendee      Role = "attendee"
	RoleBusinessOwner Role = "business_owner"
	RoleAdmin         Role = "admin"
)

// Valid reports whether the role is supported.
func (r Role) Valid() bool {
	switch r {
	case RoleAttendee, RoleBusinessOwner, RoleAdmin:
		return true
	default:
		return false
	}
}

// Assignable reports whether users may select this role themselves.
// Admin is granted out of band, never through the profile PATCH.
func (r Role) Assignable() bool {
	return r == RoleAttendee || r == RoleBusinessOwner
}

// ParseRole normalizes a role string and reports whether it is supported.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if role.Valid() {
		return role, true
	}
	return "", false
}

// Identity represents the authenticated principal returned by an IdP.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	Subject       string // stable provider user identifier (sub claim)
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Provider      string    // federated IdP name (e.g. "Google"), empty for pool-native sign-in
	RoleClaim     Role      // role carried on the token's custom claim, empty when absent
	Groups        []string  // pool group memberships
	ExpiresAt     time.Time // absolute expiry from IdP token
	RefreshToken  string    // opaque refresh token, may be empty
}

// ProfileSnapshot is the slice of the backend profile a session carries.
// It is replaced wholesale on every successful profile sync.
type ProfileSnapshot struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Complete bool   `json:"complete"`
}

// Session is the server-side record we persist for a signed-in user.
// ID is an opaque session identifier (e.g., random URL-safe string).
//
// The profile snapshot is the single source of the session's authenticated
// state: it is set only by a successful profile sync and cleared when a sync
// fails. Mutations replace the whole record, never merge fields in place.
type Session struct {
	ID           string           `json:"id"`
	Subject      string           `json:"subject"`
	Provider     string           `json:"provider,omitempty"`
	Email        string           `json:"email"`
	Profile      *ProfileSnapshot `json:"profile,omitempty"`
	IssuedAt     time.Time        `json:"issued_at"`
	ExpiresAt    time.Time        `json:"expires_at"`
	RefreshToken string           `json:"refresh_token,omitempty"` // encrypted at rest
}

// IsAuthenticated reports whether the most recent profile sync succeeded.
func (s Session) IsAuthenticated() bool { return s.Profile != nil }

// IsDegraded reports whether the session holds a provider identity whose
// profile sync has not (or not yet again) succeeded. Degraded sessions can
// recover on the next refresh without a new sign-in.
func (s Session) IsDegraded() bool { return s.Profile == nil && s.Subject != "" }

// Role returns the session's effective role, or empty when unauthenticated.
func (s Session) Role() Role {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.Role
}

// WithProfile returns a copy of the session carrying the given snapshot.
func (s Session) WithProfile(p ProfileSnapshot) Session {
	s.Profile = &p
	return s
}

// WithoutProfile returns a copy of the session with the snapshot cleared.
func (s Session) WithoutProfile() Session {
	s.Profile = nil
	return s
}
