//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
)

// RSVPStatus is the attendee's declared interest level.
type RSVPStatus string

const (
	RSVPStatusInterested RSVPStatus = "interested"
	RSVPStatusGoing      RSVPStatus = "going"
)

// Valid reports whether the RSVP status is supported.
func (s RSVPStatus) Valid() bool {
	return s == RSVPStatusInterested || s == RSVPStatusGoing
}

// ParseRSVPStatus normalizes a status string and reports whether it is supported.
func ParseRSVPStatus(value string) (RSVPStatus, bool) {
	status := RSVPStatus(strings.ToLower(strings.TrimSpace(value)))
	if status.Valid() {
		return status, true
	}
	return "", false
}

// RSVP records interest in an event, either by a signed-in profile or a
// guest identified by email. Guests receive a UUID token for unsubscribe
// links; guest rows are merged onto a profile when that email signs up.
type RSVP struct {
	ID               string     `json:"id"                          db:"id"`
	EventID          string     `json:"event_id"                    db:"event_id"`
	ProfileID        *string    `json:"profile_id,omitempty"        db:"profile_id"`
	GuestEmail       *string    `json:"guest_email,omitempty"       db:"guest_email"`
	GuestName        *string    `json:"guest_name,omitempty"        db:"guest_name"`
	Status           RSVPStatus `json:"status"                      db:"status"`
	UnsubscribeToken string     `json:"-"                           db:"unsubscribe_token"`
	RemindersEnabled bool       `json:"reminders_enabled"           db:"reminders_enabled"`
	CreatedAt        time.Time  `json:"created_at"                  db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"                  db:"updated_at"`
}

// IsGuest reports whether the RSVP belongs to an unauthenticated guest.
func (r *RSVP) IsGuest() bool { return r.ProfileID == nil }

// ContactEmail returns the address reminders are sent to.
func (r *RSVP) ContactEmail() string {
	if r.GuestEmail != nil {
		return *r.GuestEmail
	}
	return ""
}

// UpsertRSVPRequest represents parameters to create or update an RSVP.
// Exactly one of ProfileID (from the session) or GuestEmail must be present.
type UpsertRSVPRequest struct {
	EventID    string     `json:"event_id"`
	ProfileID  *string    `json:"-"`
	GuestEmail *string    `json:"guest_email,omitempty"`
	GuestName  *string    `json:"guest_name,omitempty"`
	Status     RSVPStatus `json:"status"`
}

// Validate validates UpsertRSVPRequest.
func (r *UpsertRSVPRequest) Validate() error {
	if strings.TrimSpace(r.EventID) == "" {
		return errors.New("event_id is required")
	}
	status, ok := ParseRSVPStatus(string(r.Status))
	if !ok {
		return errors.New("status must be one of: interested, going")
	}
	r.Status = status

	hasProfile := r.ProfileID != nil && *r.ProfileID != ""
	hasGuest := r.GuestEmail != nil && strings.TrimSpace(*r.GuestEmail) != ""
	if hasProfile == hasGuest {
		return errors.New("exactly one of a signed-in profile or guest_email is required")
	}
	if hasGuest {
		email := strings.ToLower(strings.TrimSpace(*r.GuestEmail))
		if !strings.Contains(email, "@") {
			return errors.New("guest_email must be a valid email address")
		}
		r.GuestEmail = &email
	}
	return nil
}

// RSVPCounts aggregates RSVP totals for an event.
type RSVPCounts struct {
	Interested int `json:"interested" db:"interested"`
	Going      int `json:"going"      db:"going"`
}

// EventRSVPRecipient is a reminder-eligible RSVP joined with its contact
// address and display name.
type EventRSVPRecipient struct {
	RSVPID           string  `json:"rsvp_id"            db:"rsvp_id"`
	EventID          string  `json:"event_id"           db:"event_id"`
	Email            string  `json:"email"              db:"email"`
	Name             string  `json:"name"               db:"name"`
	ProfileID        *string `json:"profile_id"         db:"profile_id"`
	UnsubscribeToken string  `json:"unsubscribe_token"  db:"unsubscribe_token"`
}
