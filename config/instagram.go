package config

import (
	"strings"
	"time"
)

// InstagramConfig contains the Instagram import integration settings. The
// feature stays disabled until both the post scraper and the caption
// extractor endpoints are configured.
type InstagramConfig struct {
	// ScraperBaseURL is the base URL of the Instagram post scraper API.
	ScraperBaseURL string `env:"SCRAPER_BASE_URL"`

	// ScraperAPIKey authenticates requests to the scraper API.
	ScraperAPIKey string `env:"SCRAPER_API_KEY"`

	// ExtractorURL is the caption extraction endpoint posts are analysed with.
	ExtractorURL string `env:"EXTRACTOR_URL"`

	// ExtractorToken is the bearer token presented to the extractor.
	ExtractorToken string `env:"EXTRACTOR_TOKEN"`

	// Hashtag is the tag a caption must carry to be considered for import.
	Hashtag string `env:"HASHTAG" envDefault:"#popmap"`

	// FetchLimit caps the number of recent posts inspected per import run.
	FetchLimit int `env:"FETCH_LIMIT" envDefault:"20"`

	// ConfidenceFloor is the minimum extraction confidence for a draft event.
	ConfidenceFloor float64 `env:"CONFIDENCE_FLOOR" envDefault:"0.6"`

	// Timeout bounds a single scraper or extractor request.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// IsConfigured returns true when both upstream endpoints are usable.
func (i *InstagramConfig) IsConfigured() bool {
	return i.ScraperBaseURL != "" && i.ScraperAPIKey != "" && i.ExtractorURL != ""
}

// Sanitize normalises Instagram import configuration values.
func (i *InstagramConfig) Sanitize() {
	i.ScraperBaseURL = strings.TrimSpace(i.ScraperBaseURL)
	i.ScraperAPIKey = strings.TrimSpace(i.ScraperAPIKey)
	i.ExtractorURL = strings.TrimSpace(i.ExtractorURL)
	i.ExtractorToken = strings.TrimSpace(i.ExtractorToken)
	if strings.TrimSpace(i.Hashtag) == "" {
		i.Hashtag = "#popmap"
	}
	if i.FetchLimit <= 0 {
		i.FetchLimit = 20
	}
	if i.ConfidenceFloor <= 0 || i.ConfidenceFloor > 1 {
		i.ConfidenceFloor = 0.6
	}
	if i.Timeout <= 0 {
		i.Timeout = 30 * time.Second
	}
}
