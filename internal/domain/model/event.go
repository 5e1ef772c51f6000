//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const maxEventTitleLen = 255

// EventStatus tracks an event through moderation.
type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusApproved  EventStatus = "approved"
	EventStatusRejected  EventStatus = "rejected"
	EventStatusCancelled EventStatus = "cancelled"
)

// Valid reports whether the event status is supported.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusPending, EventStatusApproved, EventStatusRejected, EventStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseEventStatus normalizes a status string and reports whether it is supported.
func ParseEventStatus(value string) (EventStatus, bool) {
	status := EventStatus(strings.ToLower(strings.TrimSpace(value)))
	if status.Valid() {
		return status, true
	}
	return "", false
}

// Event represents a popup event at a physical location.
type Event struct {
	ID             string      `json:"id"                        db:"id"`
	BusinessID     string      `json:"business_id"               db:"business_id"`
	CreatorID      string      `json:"creator_id"                db:"creator_id"`
	Title          string      `json:"title"                     db:"title"`
	Description    string      `json:"description"               db:"description"`
	Address        string      `json:"address"                   db:"address"`
	Latitude       float64     `json:"latitude"                  db:"latitude"`
	Longitude      float64     `json:"longitude"                 db:"longitude"`
	StartTime      time.Time   `json:"start_time"                db:"start_time"`
	EndTime        time.Time   `json:"end_time"                  db:"end_time"`
	ImageURL       *string     `json:"image_url,omitempty"       db:"image_url"`
	Status         EventStatus `json:"status"                    db:"status"`
	ModerationNote *string     `json:"moderation_note,omitempty" db:"moderation_note"`
	CategoryIDs    []string    `json:"category_ids"              db:"-"`
	CreatedAt      time.Time   `json:"created_at"                db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"                db:"updated_at"`
}

// IsActive reports whether the event is approved and has not ended.
func (e *Event) IsActive(now time.Time) bool {
	return e.Status == EventStatusApproved && !e.EndTime.Before(now)
}

// BoundingBox is a lat/lng window for map queries.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Valid reports whether the box describes a non-empty window.
func (b BoundingBox) Valid() bool {
	return b.MinLat < b.MaxLat && b.MinLng < b.MaxLng &&
		b.MinLat >= -90 && b.MaxLat <= 90 && b.MinLng >= -180 && b.MaxLng <= 180
}

// EventListOptions controls filtering for the public event list.
// Cursor pagination: After is the exclusive (start_time, id) cursor of the
// previous page's last row.
type EventListOptions struct {
	Limit      int
	After      *EventCursor
	Status     *EventStatus // exact match; nil means approved-and-active for public listing
	CategoryID *string      // events carrying the category
	BusinessID *string      // exact match
	CreatorID  *string      // exact match
	Bounds     *BoundingBox // lat/lng window
	StartAfter *time.Time   // events starting at or after
	StartUntil *time.Time   // events starting at or before
	Q          *string      // substring match on title (ILIKE)
	IncludeAll bool         // bypass the active filter (owner/admin views)
}

// EventCursor is an opaque keyset position in start_time,id order.
type EventCursor struct {
	StartTime time.Time `json:"start_time"`
	ID        string    `json:"id"`
}

// EventListPage is one page of events plus the cursor for the next page.
type EventListPage struct {
	Events     []*Event     `json:"events"`
	NextCursor *EventCursor `json:"next_cursor,omitempty"`
}

// MapMarker is the lean event representation served to map clients.
type MapMarker struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Latitude  float64   `json:"latitude"  db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Category  *string   `json:"category,omitempty"`
}

// CreateEventRequest represents parameters to submit an Event.
// CreatorID comes from the session, never the request body.
type CreateEventRequest struct {
	CreatorID   string    `json:"-"`
	BusinessID  string    `json:"business_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Address     string    `json:"address"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CategoryIDs []string  `json:"category_ids,omitempty"`
}

// Validate validates CreateEventRequest.
func (r *CreateEventRequest) Validate() error {
	if strings.TrimSpace(r.CreatorID) == "" {
		return errors.New("creator_id is required")
	}
	if strings.TrimSpace(r.BusinessID) == "" {
		return errors.New("business_id is required")
	}
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return errors.New("title is required and cannot be empty")
	}
	if utf8.RuneCountInString(title) > maxEventTitleLen {
		return errors.New("title cannot exceed 255 characters")
	}
	if strings.TrimSpace(r.Address) == "" {
		return errors.New("address is required")
	}
	if r.Latitude < -90 || r.Latitude > 90 {
		return errors.New("latitude must be between -90 and 90")
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		return errors.New("longitude must be between -180 and 180")
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return errors.New("start_time and end_time are required")
	}
	if !r.EndTime.After(r.StartTime) {
		return errors.New("end_time must be after start_time")
	}
	return nil
}

// UpdateEventRequest represents parameters to update an Event.
type UpdateEventRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Address     *string    `json:"address,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	ImageURL    *string    `json:"image_url,omitempty"`
	CategoryIDs *[]string  `json:"category_ids,omitempty"`
}

// HasUpdates reports whether any field is set in UpdateEventRequest.
func (r *UpdateEventRequest) HasUpdates() bool {
	return r.Title != nil || r.Description != nil || r.Address != nil ||
		r.Latitude != nil || r.Longitude != nil || r.StartTime != nil ||
		r.EndTime != nil || r.ImageURL != nil || r.CategoryIDs != nil
}

// RequiresReapproval reports whether the update changes fields that send an
// approved event back through moderation.
func (r *UpdateEventRequest) RequiresReapproval() bool {
	return r.Title != nil || r.Address != nil || r.Latitude != nil ||
		r.Longitude != nil || r.StartTime != nil || r.EndTime != nil
}

// Validate validates UpdateEventRequest, ensuring at least one field is set and values are sane.
func (r *UpdateEventRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		if t == "" {
			return errors.New("title cannot be empty")
		}
		if utf8.RuneCountInString(t) > maxEventTitleLen {
			return errors.New("title cannot exceed 255 characters")
		}
	}
	if r.Address != nil && strings.TrimSpace(*r.Address) == "" {
		return errors.New("address cannot be empty")
	}
	if r.Latitude != nil && (*r.Latitude < -90 || *r.Latitude > 90) {
		return errors.New("latitude must be between -90 and 90")
	}
	if r.Longitude != nil && (*r.Longitude < -180 || *r.Longitude > 180) {
		return errors.New("longitude must be between -180 and 180")
	}
	if r.StartTime != nil && r.EndTime != nil && !r.EndTime.After(*r.StartTime) {
		return errors.New("end_time must be after start_time")
	}
	return nil
}

// ModerateEventRequest carries an admin approval or rejection.
type ModerateEventRequest struct {
	Approve bool    `json:"approve"`
	Note    *string `json:"note,omitempty"`
}
