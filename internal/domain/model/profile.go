//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
)

const (
	maxProfileNameLen = 150
	maxUsernameLen    = 150
)

// Profile represents a user profile backing an identity-provider subject.
// A row is created on the subject's first authenticated request.
type Profile struct {
	ID                 string          `json:"id"                  db:"id"`
	Subject            string          `json:"-"                   db:"subject"`
	Email              string          `json:"email"               db:"email"`
	Username           string          `json:"username"            db:"username"`
	FirstName          string          `json:"first_name"          db:"first_name"`
	LastName           string          `json:"last_name"           db:"last_name"`
	Role               domainauth.Role `json:"role"                db:"role"`
	IdentityProvider   string          `json:"identity_provider"   db:"identity_provider"`
	ProfileComplete    bool            `json:"profile_complete"    db:"profile_complete"`
	EmailNotifications bool            `json:"email_notifications" db:"email_notifications"`
	EventReminders     bool            `json:"event_reminders"     db:"event_reminders"`
	CreatedAt          time.Time       `json:"created_at"          db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"          db:"updated_at"`
}

// IsBusinessOwner reports whether the profile holds the business owner role.
func (p *Profile) IsBusinessOwner() bool { return p.Role == domainauth.RoleBusinessOwner }

// IsAttendee reports whether the profile holds the attendee role.
func (p *Profile) IsAttendee() bool { return p.Role == domainauth.RoleAttendee }

// IsAdmin reports whether the profile holds the admin role.
func (p *Profile) IsAdmin() bool { return p.Role == domainauth.RoleAdmin }

// Snapshot returns the slice of the profile a session carries.
func (p *Profile) Snapshot() domainauth.ProfileSnapshot {
	return domainauth.ProfileSnapshot{
		ID:       p.ID,
		Email:    p.Email,
		Username: p.Username,
		Role:     p.Role,
		Complete: p.ProfileComplete,
	}
}

// CreateProfileRequest represents parameters to create a Profile from an identity.
type CreateProfileRequest struct {
	Subject          string          `json:"subject"`
	Email            string          `json:"email"`
	Username         string          `json:"username"`
	FirstName        string          `json:"first_name,omitempty"`
	LastName         string          `json:"last_name,omitempty"`
	Role             domainauth.Role `json:"role"`
	IdentityProvider string          `json:"identity_provider,omitempty"`
}

// Validate validates CreateProfileRequest.
func (r *CreateProfileRequest) Validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return errors.New("subject is required")
	}
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}
	if utf8.RuneCountInString(r.Username) > maxUsernameLen {
		return errors.New("username cannot exceed 150 characters")
	}
	if utf8.RuneCountInString(r.FirstName) > maxProfileNameLen ||
		utf8.RuneCountInString(r.LastName) > maxProfileNameLen {
		return errors.New("name cannot exceed 150 characters")
	}
	if r.Role == "" {
		r.Role = domainauth.RoleAttendee
	}
	if !r.Role.Valid() {
		return errors.New("invalid role")
	}
	return nil
}

// SyncIdentityParams carries identity-derived fields the profile sync found
// drifted from the stored row. Nil fields are left untouched.
type SyncIdentityParams struct {
	Email            *string
	IdentityProvider *string
	Role             *domainauth.Role
}

// HasUpdates reports whether any field is set.
func (p SyncIdentityParams) HasUpdates() bool {
	return p.Email != nil || p.IdentityProvider != nil || p.Role != nil
}

// ProfileListOptions controls paging and filtering for the admin profile list.
type ProfileListOptions struct {
	Limit  int
	Offset int
	Role   *domainauth.Role // exact match
	Q      *string          // substring match on email or username (ILIKE)
}

// UpdateProfileRequest represents parameters to update a Profile.
// Role changes mark the profile complete.
type UpdateProfileRequest struct {
	Role               *domainauth.Role `json:"role,omitempty"`
	FirstName          *string          `json:"first_name,omitempty"`
	LastName           *string          `json:"last_name,omitempty"`
	EmailNotifications *bool            `json:"email_notifications,omitempty"`
	EventReminders     *bool            `json:"event_reminders,omitempty"`
}

// HasUpdates reports whether any field is set in UpdateProfileRequest.
func (r *UpdateProfileRequest) HasUpdates() bool {
	return r.Role != nil || r.FirstName != nil || r.LastName != nil ||
		r.EmailNotifications != nil || r.EventReminders != nil
}

// Validate validates UpdateProfileRequest, ensuring at least one field is set and values are sane.
func (r *UpdateProfileRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.Role != nil {
		role, ok := domainauth.ParseRole(string(*r.Role))
		if !ok {
			return errors.New("invalid role")
		}
		if !role.Assignable() {
			return errors.New("role cannot be self-assigned")
		}
		*r.Role = role
	}
	if r.FirstName != nil && utf8.RuneCountInString(*r.FirstName) > maxProfileNameLen {
		return errors.New("first_name cannot exceed 150 characters")
	}
	if r.LastName != nil && utf8.RuneCountInString(*r.LastName) > maxProfileNameLen {
		return errors.New("last_name cannot exceed 150 characters")
	}
	return nil
}
