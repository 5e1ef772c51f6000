package httpx

import (
	"context"

	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/service"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type sessionKey struct{}

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetUserSessionFromContext returns the user session from context and a boolean indicating presence.
func GetUserSessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	if session, ok := ctx.Value(sessionKey{}).(*domainauth.Session); ok && session != nil {
		return session, true
	}
	return nil, false
}

// GetSessionFromContext retrieves the session from the request context.
// Maintained for convenience; prefer GetUserSessionFromContext when you need presence info.
func GetSessionFromContext(ctx context.Context) *domainauth.Session {
	if s, ok := GetUserSessionFromContext(ctx); ok {
		return s
	}
	return nil
}

// IsGuestUser reports whether the current request context is unauthenticated.
// Degraded sessions (identity without a synced profile) count as guests.
func IsGuestUser(ctx context.Context) bool {
	s, ok := GetUserSessionFromContext(ctx)
	if !ok || s == nil {
		return true
	}
	return !s.IsAuthenticated()
}

// ActorFromContext builds the service actor for the current request. The zero
// actor means an unauthenticated caller.
func ActorFromContext(ctx context.Context) service.Actor {
	s := GetSessionFromContext(ctx)
	if s == nil || !s.IsAuthenticated() {
		return service.Actor{}
	}
	return service.Actor{
		ProfileID: s.Profile.ID,
		Role:      s.Profile.Role,
	}
}

// businessKey carries the business resolved by the subdomain middleware.
type businessKey struct{}

// setBusinessInContext attaches the subdomain-resolved business to the context.
func setBusinessInContext(ctx context.Context, businessID string) context.Context {
	return context.WithValue(ctx, businessKey{}, businessID)
}

// BusinessFromContext returns the business id resolved from the request's
// subdomain, or "" when the request came through the apex host.
func BusinessFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(businessKey{}).(string); ok {
		return id
	}
	return ""
}
