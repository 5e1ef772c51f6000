//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// ReferrerCategory buckets traffic sources for dashboards.
type ReferrerCategory string

const (
	ReferrerInstagram ReferrerCategory = "instagram"
	ReferrerFacebook  ReferrerCategory = "facebook"
	ReferrerTwitter   ReferrerCategory = "twitter"
	ReferrerTikTok    ReferrerCategory = "tiktok"
	ReferrerSearch    ReferrerCategory = "search"
	ReferrerSubdomain ReferrerCategory = "subdomain"
	ReferrerInternal  ReferrerCategory = "internal"
	ReferrerDirect    ReferrerCategory = "direct"
	ReferrerOther     ReferrerCategory = "other"
)

// CategorizeReferrer buckets a raw referrer URL. rootDomain is the apex
// domain serving the application ("" disables internal/subdomain detection).
func CategorizeReferrer(referrer, rootDomain string) ReferrerCategory {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return ReferrerDirect
	}
	u, err := url.Parse(referrer)
	if err != nil || u.Host == "" {
		return ReferrerOther
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case strings.Contains(host, "instagram.com"):
		return ReferrerInstagram
	case strings.Contains(host, "facebook.com"), strings.Contains(host, "fb.com"):
		return ReferrerFacebook
	case strings.Contains(host, "twitter.com"), strings.Contains(host, "t.co"), strings.Contains(host, "x.com"):
		return ReferrerTwitter
	case strings.Contains(host, "tiktok.com"):
		return ReferrerTikTok
	case strings.Contains(host, "google."), strings.Contains(host, "bing.com"), strings.Contains(host, "duckduckgo.com"):
		return ReferrerSearch
	}

	if rootDomain != "" {
		if host == rootDomain {
			return ReferrerInternal
		}
		if strings.HasSuffix(host, "."+rootDomain) {
			return ReferrerSubdomain
		}
	}
	return ReferrerOther
}

// DeviceType is a coarse user-agent bucket.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
)

// ClassifyDevice buckets a user agent string.
func ClassifyDevice(userAgent string) DeviceType {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return DeviceTablet
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

// PageView is one tracked page load.
type PageView struct {
	ID               string           `json:"id"                      db:"id"`
	SessionID        string           `json:"session_id"              db:"session_id"`
	Path             string           `json:"path"                    db:"path"`
	BusinessID       *string          `json:"business_id,omitempty"   db:"business_id"`
	EventID          *string          `json:"event_id,omitempty"      db:"event_id"`
	Referrer         string           `json:"referrer"                db:"referrer"`
	ReferrerCategory ReferrerCategory `json:"referrer_category"       db:"referrer_category"`
	Device           DeviceType       `json:"device"                  db:"device"`
	CreatedAt        time.Time        `json:"created_at"              db:"created_at"`
}

// Interaction is one tracked user action (marker tap, RSVP click, share, ...).
type Interaction struct {
	ID         string    `json:"id"                    db:"id"`
	SessionID  string    `json:"session_id"            db:"session_id"`
	Kind       string    `json:"kind"                  db:"kind"`
	BusinessID *string   `json:"business_id,omitempty" db:"business_id"`
	EventID    *string   `json:"event_id,omitempty"    db:"event_id"`
	Metadata   *string   `json:"metadata,omitempty"    db:"metadata"`
	CreatedAt  time.Time `json:"created_at"            db:"created_at"`
}

// TrackPageViewRequest is the public tracking payload for page loads.
type TrackPageViewRequest struct {
	SessionID  string  `json:"session_id"`
	Path       string  `json:"path"`
	BusinessID *string `json:"business_id,omitempty"`
	EventID    *string `json:"event_id,omitempty"`
	Referrer   string  `json:"referrer,omitempty"`
}

// Validate validates TrackPageViewRequest.
func (r *TrackPageViewRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return errors.New("session_id is required")
	}
	if strings.TrimSpace(r.Path) == "" {
		return errors.New("path is required")
	}
	return nil
}

// TrackInteractionRequest is the public tracking payload for user actions.
type TrackInteractionRequest struct {
	SessionID  string  `json:"session_id"`
	Kind       string  `json:"kind"`
	BusinessID *string `json:"business_id,omitempty"`
	EventID    *string `json:"event_id,omitempty"`
	Metadata   *string `json:"metadata,omitempty"`
}

// Validate validates TrackInteractionRequest.
func (r *TrackInteractionRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return errors.New("session_id is required")
	}
	if strings.TrimSpace(r.Kind) == "" {
		return errors.New("kind is required")
	}
	return nil
}

// AnalyticsDaily is one business's aggregated metrics for one UTC day.
type AnalyticsDaily struct {
	ID           string    `json:"id"            db:"id"`
	BusinessID   string    `json:"business_id"   db:"business_id"`
	Day          time.Time `json:"day"           db:"day"`
	Views        int       `json:"views"         db:"views"`
	Uniques      int       `json:"uniques"       db:"uniques"`
	Interactions int       `json:"interactions"  db:"interactions"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
}

// ReferrerShare is one referrer bucket's share of traffic.
type ReferrerShare struct {
	Category ReferrerCategory `json:"category" db:"category"`
	Views    int              `json:"views"    db:"views"`
}

// DeviceShare is one device bucket's share of traffic.
type DeviceShare struct {
	Device DeviceType `json:"device" db:"device"`
	Views  int        `json:"views"  db:"views"`
}

// DailyPoint is one day in a dashboard time series.
type DailyPoint struct {
	Day   time.Time `json:"day"   db:"day"`
	Views int       `json:"views" db:"views"`
}

// BusinessOverview is the premium analytics dashboard payload.
type BusinessOverview struct {
	BusinessID   string          `json:"business_id"`
	RangeDays    int             `json:"range_days"`
	Views        int             `json:"views"`
	Uniques      int             `json:"uniques"`
	Interactions int             `json:"interactions"`
	TopReferrers []ReferrerShare `json:"top_referrers"`
	Devices      []DeviceShare   `json:"devices"`
	Daily        []DailyPoint    `json:"daily"`
}

// EventStats is per-event analytics with RSVP conversion.
type EventStats struct {
	EventID    string     `json:"event_id"    db:"event_id"`
	Title      string     `json:"title"       db:"title"`
	Views      int        `json:"views"       db:"views"`
	Uniques    int        `json:"uniques"     db:"uniques"`
	RSVPCounts RSVPCounts `json:"rsvp_counts"`
	// Conversion is going+interested RSVPs per unique view, 0..1.
	Conversion float64 `json:"conversion"`
}

// AnalyticsRange bounds dashboard queries.
type AnalyticsRange struct {
	BusinessID string
	From       time.Time
	To         time.Time
}
