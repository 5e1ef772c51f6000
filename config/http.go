package config

import "strings"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the API (e.g., "https://api.popmap.app").
	// Used for generating absolute URLs in emails and other external contexts.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// FrontendURL is the base URL of the single-page frontend. It is the
	// default target for post-auth redirects and email links.
	FrontendURL string `env:"APP_FRONTEND_URL" envDefault:"http://localhost:5173"`

	// RootDomain is the apex domain for custom business subdomains
	// (e.g. "popmap.app" so that "tacos.popmap.app" resolves a business).
	// Leave empty to disable subdomain resolution.
	RootDomain string `env:"APP_ROOT_DOMAIN" envDefault:""`

	// CookieDomain is the domain for session cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// CORSAllowedOrigins lists origins allowed to make credentialed
	// cross-origin requests (the SPA origin in split deployments).
	CORSAllowedOrigins []string `env:"HTTP_CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`

	// CompressionEnabled enables gzip compression for JSON responses.
	CompressionEnabled bool `env:"HTTP_COMPRESSION_ENABLED" envDefault:"false"`

	// CompressionLevel is the gzip compression level (1-9).
	// Default is 6 (standard gzip default).
	CompressionLevel int `env:"HTTP_COMPRESSION_LEVEL" envDefault:"6"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	// Clamp compression level to valid gzip range (1-9)
	if h.CompressionLevel < 1 {
		h.CompressionLevel = 1
	}
	if h.CompressionLevel > 9 {
		h.CompressionLevel = 9
	}

	h.RootDomain = strings.TrimPrefix(strings.TrimSpace(h.RootDomain), ".")

	origins := h.CORSAllowedOrigins[:0]
	for _, o := range h.CORSAllowedOrigins {
		o = strings.TrimSuffix(strings.TrimSpace(o), "/")
		if o != "" {
			origins = append(origins, o)
		}
	}
	h.CORSAllowedOrigins = origins
}
