package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// BusinessResolver resolves subdomain host labels to businesses.
type BusinessResolver interface {
	ResolveSubdomain(ctx context.Context, subdomain string) (*model.Business, error)
}

// reservedSubdomains never resolve to a business; requests on them are
// served as apex traffic.
var reservedSubdomains = map[string]bool{ //nolint:gochecknoglobals // read-only lookup set
	"www":   true,
	"api":   true,
	"admin": true,
}

// SubdomainOptions configures the Subdomain middleware.
type SubdomainOptions struct {
	RootDomain string // e.g. "popmap.co"; empty disables resolution
	Businesses BusinessResolver
	Logger     *slog.Logger
}

// Subdomain returns a middleware that resolves the request Host against
// registered business subdomains under the configured root domain. A
// matching host carries its business id in the request context; an unknown
// label under the root gets a 404. Apex, reserved, and out-of-domain hosts
// pass through untouched.
func Subdomain(opts SubdomainOptions) func(http.Handler) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	root := normalizeHost(opts.RootDomain)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if root == "" || opts.Businesses == nil {
				next.ServeHTTP(w, r)
				return
			}

			label, ok := subdomainLabel(normalizeHost(r.Host), root)
			if !ok || reservedSubdomains[label] {
				next.ServeHTTP(w, r)
				return
			}

			business, err := opts.Businesses.ResolveSubdomain(r.Context(), label)
			if err != nil {
				if errors.Is(err, data.ErrBusinessNotFound) {
					WriteError(w, ErrorParams{
						Code:    http.StatusNotFound,
						ErrCode: "unknown_subdomain",
						Err:     errors.New("no business is registered for this host"),
					})
					return
				}
				opts.Logger.ErrorContext(r.Context(), "subdomain resolution failed",
					slog.String("host", r.Host),
					slog.Any("error", err),
				)
				WriteError(w, ErrorParams{
					Code:    http.StatusInternalServerError,
					ErrCode: "internal_error",
					Err:     errors.New("an unexpected error occurred"),
				})
				return
			}

			ctx := setBusinessInContext(r.Context(), business.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// normalizeHost lowercases a host and strips any port and trailing dot.
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

// subdomainLabel extracts the label below root from host, reporting whether
// host sits under root at all. Apex requests report false. Multi-label
// remainders are returned whole; they never match a stored claim, so they
// resolve as unknown.
func subdomainLabel(host, root string) (string, bool) {
	if host == "" || host == root {
		return "", false
	}
	if !strings.HasSuffix(host, "."+root) {
		return "", false
	}

	// Hosts must share the root's registrable domain. publicsuffix keeps a
	// lookalike under a shared public suffix from resolving. Dev roots like
	// "localhost" have no registrable domain; the suffix check above is the
	// only gate there.
	if hostBase, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		if rootBase, rootErr := publicsuffix.EffectiveTLDPlusOne(root); rootErr == nil && hostBase != rootBase {
			return "", false
		}
	}

	return strings.TrimSuffix(host, "."+root), true
}
