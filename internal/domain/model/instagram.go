//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "time"

// InstagramPost is one post fetched from a business's public Instagram feed.
type InstagramPost struct {
	ID        string    `json:"id"`
	Caption   string    `json:"caption"`
	Permalink string    `json:"permalink"`
	TakenAt   time.Time `json:"taken_at"`
	ImageURL  *string   `json:"image_url,omitempty"`
}

// ExtractedEvent is the structured read of a post caption. Dates and times
// come back as strings ("2006-01-02" / "15:04") because the extractor may
// return partial information; the import service fills in defaults.
type ExtractedEvent struct {
	IsEvent           bool    `json:"is_event"`
	Confidence        float64 `json:"confidence"`
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	StartDate         string  `json:"start_date"`
	StartTime         string  `json:"start_time"`
	EndDate           string  `json:"end_date"`
	EndTime           string  `json:"end_time"`
	Location          string  `json:"location"`
	SuggestedCategory string  `json:"suggested_category"`
}

// InstagramPostLog records that a post was imported for a business. The
// (business, post) pair is unique so a post is never imported twice; the
// event link survives as NULL if the draft event is later deleted.
type InstagramPostLog struct {
	ID                string    `json:"id"                           db:"id"`
	BusinessID        string    `json:"business_id"                  db:"business_id"`
	InstagramPostID   string    `json:"instagram_post_id"            db:"instagram_post_id"`
	EventID           *string   `json:"event_id,omitempty"           db:"event_id"`
	OriginalPermalink string    `json:"original_permalink"           db:"original_permalink"`
	OriginalCaption   string    `json:"original_caption"             db:"original_caption"`
	ImportedAt        time.Time `json:"imported_at"                  db:"imported_at"`
}

// InstagramImportLogEntry is a history row with the linked event's title
// resolved for display.
type InstagramImportLogEntry struct {
	InstagramPostLog
	EventTitle *string `json:"event_title,omitempty" db:"event_title"`
}

// InstagramImportResult summarizes one import run.
type InstagramImportResult struct {
	Imported         int      `json:"imported"`
	SkippedDuplicate int      `json:"skipped_duplicate"`
	SkippedNotEvent  int      `json:"skipped_not_event"`
	SkippedError     int      `json:"skipped_error"`
	DraftEventIDs    []string `json:"draft_event_ids"`
}
