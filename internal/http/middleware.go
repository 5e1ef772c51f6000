package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// DefaultSessionCookie is the cookie carrying the session identifier when no
// name is configured.
const DefaultSessionCookie = "popmap_session"

// SessionReader loads persisted sessions by id.
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
}

// BearerVerifier validates raw bearer tokens presented by API clients.
type BearerVerifier interface {
	Verify(ctx context.Context, rawToken string) (domainauth.Identity, error)
}

// ProfileResolver maps verified identities onto stored profiles.
type ProfileResolver interface {
	Sync(ctx context.Context, identity domainauth.Identity) (*model.Profile, error)
}

// SessionAuthOptions configures SessionAuth.
type SessionAuthOptions struct {
	Sessions   SessionReader
	Verifier   BearerVerifier  // optional; bearer tokens are ignored when nil
	Profiles   ProfileResolver // optional; bearer identities stay degraded when nil
	CookieName string
	Logger     *slog.Logger
}

// SessionAuth resolves the acting session for incoming requests, from either
// the session cookie or an Authorization bearer token. Requests that carry
// neither, or whose credentials no longer resolve, continue unauthenticated;
// handlers decide whether to reject them via RequireAuth/RequireRole.
type SessionAuth struct {
	sessions   SessionReader
	verifier   BearerVerifier
	profiles   ProfileResolver
	cookieName string
	logger     *slog.Logger
}

// NewSessionAuth creates a SessionAuth with defaults applied.
func NewSessionAuth(opts SessionAuthOptions) *SessionAuth {
	if opts.CookieName == "" {
		opts.CookieName = DefaultSessionCookie
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SessionAuth{
		sessions:   opts.Sessions,
		verifier:   opts.Verifier,
		profiles:   opts.Profiles,
		cookieName: opts.CookieName,
		logger:     opts.Logger,
	}
}

// CookieName returns the configured session cookie name.
func (a *SessionAuth) CookieName() string { return a.cookieName }

// Resolve returns a middleware that resolves the session for every request
// and attaches it to the context. It never blocks a request: when nothing
// resolves the request proceeds without a session.
func (a *SessionAuth) Resolve() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session := a.sessionForRequest(r); session != nil {
				r = r.WithContext(SetSessionInContext(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth returns a middleware that rejects requests without an
// authenticated session. Degraded sessions (provider identity present but no
// synced profile) are rejected too; the status endpoint is the place that
// reports them.
func (a *SessionAuth) RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := GetSessionFromContext(r.Context())
			if session == nil {
				a.unauthorized(w, r, "authentication_required", "authentication required")
				return
			}
			if !session.IsAuthenticated() {
				a.unauthorized(w, r, "session_degraded", "profile unavailable for this session")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole returns a middleware that requires the session role to meet
// the given role. Unauthenticated requests get 401, insufficient roles 403.
func (a *SessionAuth) RequireRole(required domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := GetSessionFromContext(r.Context())
			if session == nil {
				a.unauthorized(w, r, "authentication_required", "authentication required")
				return
			}
			if !session.IsAuthenticated() {
				a.unauthorized(w, r, "session_degraded", "profile unavailable for this session")
				return
			}
			if !hasRequiredRole(session.Role(), required) {
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *SessionAuth) unauthorized(w http.ResponseWriter, r *http.Request, errCode, msg string) {
	a.logger.WarnContext(r.Context(), "unauthorized request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	WriteError(w, ErrorParams{
		Code:    http.StatusUnauthorized,
		ErrCode: errCode,
		Err:     errors.New(msg),
	})
}

// sessionForRequest resolves the session cookie first, then falls back to a
// bearer token.
func (a *SessionAuth) sessionForRequest(r *http.Request) *domainauth.Session {
	if session := a.sessionFromCookie(r); session != nil {
		return session
	}
	return a.sessionFromBearer(r)
}

func (a *SessionAuth) sessionFromCookie(r *http.Request) *domainauth.Session {
	if a.sessions == nil {
		return nil
	}
	cookie, err := r.Cookie(a.cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	session, err := a.sessions.GetSession(r.Context(), cookie.Value)
	if err != nil {
		// Expired or unknown sessions are treated as signed out.
		return nil
	}
	return session
}

// sessionFromBearer verifies an Authorization bearer token and maps it onto a
// synthetic session. No server-side session record is created; the session
// lives for the duration of the request.
func (a *SessionAuth) sessionFromBearer(r *http.Request) *domainauth.Session {
	if a.verifier == nil {
		return nil
	}
	raw := bearerToken(r)
	if raw == "" {
		return nil
	}
	identity, err := a.verifier.Verify(r.Context(), raw)
	if err != nil {
		a.logger.WarnContext(r.Context(), "bearer token rejected",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		return nil
	}

	session := domainauth.Session{
		Subject:   identity.Subject,
		Provider:  identity.Provider,
		Email:     identity.Email,
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: identity.ExpiresAt,
	}
	if a.profiles != nil {
		profile, syncErr := a.profiles.Sync(r.Context(), identity)
		if syncErr != nil {
			a.logger.WarnContext(r.Context(), "profile sync for bearer identity failed",
				slog.String("subject", identity.Subject),
				slog.Any("error", syncErr),
			)
			return &session // degraded: identity without profile
		}
		session = session.WithProfile(profile.Snapshot())
	}
	return &session
}

// bearerToken extracts the token from the Authorization header, or "".
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// hasRequiredRole checks if the session's role meets the required role.
// Role hierarchy: attendee < business_owner < admin.
func hasRequiredRole(role, requiredRole domainauth.Role) bool {
	roleHierarchy := map[domainauth.Role]int{
		domainauth.RoleAttendee:      0,
		domainauth.RoleBusinessOwner: 1,
		domainauth.RoleAdmin:         2,
	}

	level, ok := roleHierarchy[role]
	requiredLevel, requiredOK := roleHierarchy[requiredRole]

	if !ok || !requiredOK {
		return false
	}

	return level >= requiredLevel
}
