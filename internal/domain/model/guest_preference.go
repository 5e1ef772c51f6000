//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
)

// GuestEmailPreference tracks opt-outs for guests who RSVP'd without an
// account. Keyed by normalized email.
type GuestEmailPreference struct {
	ID           string    `json:"id"            db:"id"`
	Email        string    `json:"email"         db:"email"`
	Unsubscribed bool      `json:"unsubscribed"  db:"unsubscribed"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"    db:"updated_at"`
}

// UnsubscribeRequest opts a guest out of reminder email via the signed
// token embedded in each message.
type UnsubscribeRequest struct {
	Token string `json:"token"`
}

// Validate validates UnsubscribeRequest.
func (r *UnsubscribeRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return errors.New("token is required")
	}
	return nil
}

// NormalizeEmail lowercases and trims an address for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
