//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "time"

// ReminderLog records that a reminder email was sent for an RSVP so the
// scan job never sends twice for the same event occurrence.
type ReminderLog struct {
	ID        string    `json:"id"         db:"id"`
	RSVPID    string    `json:"rsvp_id"    db:"rsvp_id"`
	EventID   string    `json:"event_id"   db:"event_id"`
	Email     string    `json:"email"      db:"email"`
	SentAt    time.Time `json:"sent_at"    db:"sent_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ReminderCandidate is one RSVP due for a reminder, joined with the event
// details needed to render the email.
type ReminderCandidate struct {
	RSVPID           string    `db:"rsvp_id"`
	EventID          string    `db:"event_id"`
	EventTitle       string    `db:"event_title"`
	EventAddress     string    `db:"event_address"`
	EventStart       time.Time `db:"event_start"`
	BusinessName     string    `db:"business_name"`
	Email            string    `db:"email"`
	Name             string    `db:"name"`
	ProfileID        *string   `db:"profile_id"`
	UnsubscribeToken string    `db:"unsubscribe_token"`
}
