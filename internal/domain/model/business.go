//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxBusinessNameLen    = 255
	maxSubdomainLen       = 63
	maxInstagramHandleLen = 30
)

// phonePattern accepts E.164-style numbers with an optional leading +1.
var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

// subdomainPattern accepts DNS-label subdomains (lowercase, digits, inner hyphens).
var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// reservedSubdomains are never resolvable to a business.
var reservedSubdomains = map[string]bool{
	"www": true, "api": true, "admin": true, "app": true, "mail": true,
}

// Business represents a popup business owned by a profile.
type Business struct {
	ID              string    `json:"id"                         db:"id"`
	OwnerID         string    `json:"owner_id"                   db:"owner_id"`
	Name            string    `json:"name"                       db:"name"`
	Description     string    `json:"description"                db:"description"`
	ContactEmail    string    `json:"contact_email"              db:"contact_email"`
	Phone           *string   `json:"phone,omitempty"            db:"phone"`
	Website         *string   `json:"website,omitempty"          db:"website"`
	LogoURL         *string   `json:"logo_url,omitempty"         db:"logo_url"`
	Subdomain       *string   `json:"subdomain,omitempty"        db:"subdomain"`
	InstagramHandle *string   `json:"instagram_handle,omitempty" db:"instagram_handle"`
	Verified        bool      `json:"verified"                   db:"verified"`
	CreatedAt       time.Time `json:"created_at"                 db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"                 db:"updated_at"`
}

// BusinessListOptions controls paging and filtering for listing businesses.
// Notes:
// - Sort supports: "created_at", "name" (case-insensitive).
// - Dir supports: "asc", "desc" (case-insensitive); values are normalized internally.
// - Q matches name via ILIKE substring.
// - OwnerID and Verified match exactly.
type BusinessListOptions struct {
	Limit    int
	Offset   int
	Q        *string // substring match on name (ILIKE)
	OwnerID  *string // exact match
	Verified *bool   // exact match
	Sort     string  // allowed: "created_at", "name"
	Dir      string  // allowed: "asc", "desc"
}

// CreateBusinessRequest represents parameters to create a Business.
// OwnerID comes from the session, never the request body.
type CreateBusinessRequest struct {
	OwnerID         string  `json:"-"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	ContactEmail    string  `json:"contact_email"`
	Phone           *string `json:"phone,omitempty"`
	Website         *string `json:"website,omitempty"`
	LogoURL         *string `json:"logo_url,omitempty"`
	InstagramHandle *string `json:"instagram_handle,omitempty"`
}

// Validate validates CreateBusinessRequest.
func (r *CreateBusinessRequest) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return errors.New("owner_id is required")
	}
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return errors.New("name is required and cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxBusinessNameLen {
		return errors.New("name cannot exceed 255 characters")
	}
	if strings.TrimSpace(r.ContactEmail) == "" {
		return errors.New("contact_email is required")
	}
	if r.Phone != nil && *r.Phone != "" && !phonePattern.MatchString(*r.Phone) {
		return errors.New("phone must match +?1?XXXXXXXXX (9-15 digits)")
	}
	if r.InstagramHandle != nil && *r.InstagramHandle != "" {
		if err := ValidateInstagramHandle(*r.InstagramHandle); err != nil {
			return err
		}
	}
	return nil
}

// UpdateBusinessRequest represents parameters to update a Business.
// Verified and Subdomain are admin/entitlement-gated and set through
// dedicated operations, not the general update.
type UpdateBusinessRequest struct {
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	ContactEmail    *string `json:"contact_email,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	Website         *string `json:"website,omitempty"`
	LogoURL         *string `json:"logo_url,omitempty"`
	InstagramHandle *string `json:"instagram_handle,omitempty"`
}

// HasUpdates reports whether any field is set in UpdateBusinessRequest.
func (r *UpdateBusinessRequest) HasUpdates() bool {
	return r.Name != nil || r.Description != nil || r.ContactEmail != nil ||
		r.Phone != nil || r.Website != nil || r.LogoURL != nil ||
		r.InstagramHandle != nil
}

// Validate validates UpdateBusinessRequest, ensuring at least one field is set and values are sane.
func (r *UpdateBusinessRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.Name != nil {
		n := strings.TrimSpace(*r.Name)
		if n == "" {
			return errors.New("name cannot be empty")
		}
		if utf8.RuneCountInString(n) > maxBusinessNameLen {
			return errors.New("name cannot exceed 255 characters")
		}
	}
	if r.ContactEmail != nil && strings.TrimSpace(*r.ContactEmail) == "" {
		return errors.New("contact_email cannot be empty")
	}
	if r.Phone != nil && *r.Phone != "" && !phonePattern.MatchString(*r.Phone) {
		return errors.New("phone must match +?1?XXXXXXXXX (9-15 digits)")
	}
	if r.InstagramHandle != nil && *r.InstagramHandle != "" {
		if err := ValidateInstagramHandle(*r.InstagramHandle); err != nil {
			return err
		}
	}
	return nil
}

// ValidateInstagramHandle checks a stored Instagram username. Handles are
// stored bare: the leading "@" people habitually type is rejected rather than
// silently stripped so the caller sees what was saved.
func ValidateInstagramHandle(value string) error {
	if strings.HasPrefix(value, "@") {
		return errors.New("instagram_handle must not include the @ symbol")
	}
	if utf8.RuneCountInString(value) > maxInstagramHandleLen {
		return errors.New("instagram_handle cannot exceed 30 characters")
	}
	return nil
}

// NormalizeSubdomain lowercases and trims a requested subdomain label.
func NormalizeSubdomain(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ValidateSubdomain checks that a subdomain label is usable for a business page.
func ValidateSubdomain(value string) error {
	if value == "" {
		return errors.New("subdomain cannot be empty")
	}
	if len(value) > maxSubdomainLen {
		return errors.New("subdomain cannot exceed 63 characters")
	}
	if !subdomainPattern.MatchString(value) {
		return errors.New("subdomain may contain lowercase letters, digits, and inner hyphens")
	}
	if reservedSubdomains[value] {
		return errors.New("subdomain is reserved")
	}
	return nil
}
