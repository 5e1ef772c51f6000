package httpx

import (
	"net/http"
	"net/url"
	"strings"
)

// corsAllowedMethods and corsAllowedHeaders cover every verb and header the
// JSON API accepts cross-origin.
const (
	corsAllowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowedHeaders = "Content-Type, Authorization, X-Csrf-Token"
	corsMaxAge         = "600"
)

// CORSConfig configures cross-origin access for browser callers.
type CORSConfig struct {
	// AllowedOrigins lists origins cleared for credentialed requests,
	// compared case-insensitively. A "*" entry allows any origin.
	AllowedOrigins []string
	// RootDomain additionally allows any origin whose host is the apex or a
	// subdomain of it, so business subdomain pages can call the API without
	// each being listed.
	RootDomain string
}

// CORS answers preflight requests and stamps allow headers on cross-origin
// responses. The session cookie rides on these requests, so allowed origins
// are always echoed back verbatim rather than wildcarded. Disallowed origins
// pass through without allow headers; the browser enforces the denial.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(cfg.AllowedOrigins))
	wildcard := false
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSuffix(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if origin == "*" {
			wildcard = true
			continue
		}
		allowed = append(allowed, origin)
	}
	rootDomain := strings.ToLower(strings.TrimSpace(cfg.RootDomain))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !wildcard && !originAllowed(origin, allowed, rootDomain) {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				h.Set("Access-Control-Max-Age", corsMaxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origin string, allowed []string, rootDomain string) bool {
	for _, candidate := range allowed {
		if strings.EqualFold(candidate, origin) {
			return true
		}
	}
	if rootDomain == "" {
		return false
	}

	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == rootDomain || strings.HasSuffix(host, "."+rootDomain)
}
