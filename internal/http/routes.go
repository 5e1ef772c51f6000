package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/service"
)

// RouterServices holds the services and configuration the HTTP router wires
// together.
type RouterServices struct {
	Auth           *service.AuthService
	Callback       *service.CallbackService
	Profiles       *service.ProfileService
	Events         *service.EventService
	RSVPs          *service.RSVPService
	Businesses     *service.BusinessService
	Categories     *service.CategoryService
	Forms          *service.FormService
	Billing        *service.BillingService
	BillingWebhook *service.BillingWebhookService
	Analytics      *service.AnalyticsService
	Instagram      *service.InstagramService
	Jobs           *service.JobService

	// Sessions resolves and gates the acting session on every request.
	Sessions *SessionAuth
	// Provider is the public identity provider configuration served at
	// /auth/config.
	Provider ProviderConfigInfo
	// CookieDomain scopes session and CSRF cookies; empty means host-only.
	CookieDomain string
	// FrontendURL is the SPA origin post-auth redirects land on.
	FrontendURL string
	// RootDomain enables business subdomain resolution; empty disables it.
	RootDomain string
	// AllowedOrigins lists origins cleared for credentialed cross-origin
	// requests. Subdomain origins under RootDomain are always allowed.
	AllowedOrigins []string

	// DBPing and RedisPing back the health endpoint; nil checks are skipped.
	DBPing    func(ctx context.Context) error
	RedisPing func(ctx context.Context) error

	Logger *slog.Logger
}

// routeGuards carries the per-route auth wrappers so register functions stay
// at two or three parameters.
type routeGuards struct {
	auth  func(http.Handler) http.Handler
	admin func(http.Handler) http.Handler
}

// NewRouter assembles the full HTTP surface. Cookie-session routes sit
// behind the CSRF layer; webhook, beacon, and tokened endpoints are
// registered on the root mux where the more specific pattern wins, because
// their callers cannot echo a CSRF header. Session resolution and subdomain
// mapping wrap everything so handlers see both on any host.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authHandlers := NewAuthHandlers(AuthHandlersOptions{
		Auth:         services.Auth,
		Callback:     services.Callback,
		Profiles:     services.Profiles,
		Provider:     services.Provider,
		CookieName:   services.Sessions.CookieName(),
		CookieDomain: services.CookieDomain,
		FrontendURL:  services.FrontendURL,
		Logger:       logger,
	})
	eventHandlers := NewEventHandlers(EventHandlersOptions{Events: services.Events, Logger: logger})
	rsvpHandlers := NewRSVPHandlers(RSVPHandlersOptions{RSVPs: services.RSVPs, Logger: logger})
	businessHandlers := NewBusinessHandlers(BusinessHandlersOptions{Businesses: services.Businesses, Logger: logger})
	categoryHandlers := NewCategoryHandlers(CategoryHandlersOptions{Categories: services.Categories, Logger: logger})
	formHandlers := NewFormHandlers(FormHandlersOptions{Forms: services.Forms, Logger: logger})
	billingHandlers := NewBillingHandlers(BillingHandlersOptions{Billing: services.Billing, Logger: logger})
	webhookHandlers := NewWebhookHandlers(WebhookHandlersOptions{Billing: services.BillingWebhook, Logger: logger})
	analyticsHandlers := NewAnalyticsHandlers(AnalyticsHandlersOptions{Analytics: services.Analytics, Logger: logger})
	instagramHandlers := NewInstagramHandlers(InstagramHandlersOptions{Instagram: services.Instagram, Logger: logger})
	jobHandlers := NewJobHandlers(JobHandlersOptions{Jobs: services.Jobs, Logger: logger})
	healthHandlers := NewHealthHandlers(HealthHandlersOptions{
		DB:     services.DBPing,
		Redis:  services.RedisPing,
		Logger: logger,
	})

	guards := routeGuards{
		auth:  services.Sessions.RequireAuth(),
		admin: services.Sessions.RequireRole(domainauth.RoleAdmin),
	}

	app := http.NewServeMux()
	registerAuthRoutes(app, authHandlers)
	registerEventRoutes(app, eventHandlers, guards)
	registerRSVPRoutes(app, rsvpHandlers, guards)
	registerBusinessRoutes(app, businessHandlers, guards)
	registerBusinessFormRoutes(app, formHandlers, guards)
	registerCategoryRoutes(app, categoryHandlers, guards)
	registerBillingRoutes(app, billingHandlers, guards)
	registerAnalyticsDashboardRoutes(app, analyticsHandlers, guards)
	registerInstagramRoutes(app, instagramHandlers, guards)
	registerJobRoutes(app, jobHandlers, guards)
	app.HandleFunc("GET /api/forms/{slug}", formHandlers.PublicTemplate)

	csrf := CSRFProtection(CSRFConfig{CookieDomain: services.CookieDomain})

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", healthHandlers.Healthz)
	root.HandleFunc("HEAD /healthz", healthHandlers.Healthz)
	root.HandleFunc("POST /webhooks/stripe", webhookHandlers.Stripe)
	root.HandleFunc("POST /analytics/track/pageview", analyticsHandlers.TrackPageView)
	root.HandleFunc("POST /analytics/track/interaction", analyticsHandlers.TrackInteraction)
	root.HandleFunc("GET /rsvps/unsubscribe/{token}", rsvpHandlers.ResolveUnsubscribe)
	root.HandleFunc("POST /rsvps/unsubscribe/{token}", rsvpHandlers.Unsubscribe)
	root.HandleFunc("POST /api/forms/{slug}/submissions", formHandlers.Submit)
	root.Handle("/", csrf(app))

	subdomain := Subdomain(SubdomainOptions{
		RootDomain: services.RootDomain,
		Businesses: services.Businesses,
		Logger:     logger,
	})
	cors := CORS(CORSConfig{
		AllowedOrigins: services.AllowedOrigins,
		RootDomain:     services.RootDomain,
	})

	var handler http.Handler = stripTrailingSlash(root)
	handler = subdomain(handler)
	handler = services.Sessions.Resolve()(handler)
	handler = cors(handler)
	return handler
}

// stripTrailingSlash rewrites "/path/" to "/path" before mux matching. Route
// patterns are registered without trailing slashes; clients that append one
// reach the same handler instead of a 404.
func stripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
			trimmed := r.Clone(r.Context())
			trimmed.URL.Path = strings.TrimRight(p, "/")
			next.ServeHTTP(w, trimmed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/social/{provider}", h.SocialStart)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET /auth/config", h.Config)
	mux.HandleFunc("GET /auth/me", h.Me)
	mux.HandleFunc("PATCH /auth/profile", h.UpdateProfile)
}

func registerEventRoutes(mux *http.ServeMux, h *EventHandlers, guards routeGuards) {
	mux.HandleFunc("GET /api/events", h.List)
	mux.HandleFunc("GET /api/events/map-data", h.MapData)
	mux.HandleFunc("GET /api/events/{id}", h.Get)
	mux.Handle("POST /api/events", guards.auth(http.HandlerFunc(h.Submit)))
	mux.Handle("PATCH /api/events/{id}", guards.auth(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/events/{id}", guards.auth(http.HandlerFunc(h.Cancel)))
	mux.Handle("POST /api/events/{id}/approve", guards.admin(http.HandlerFunc(h.Approve)))
	mux.Handle("POST /api/events/{id}/reject", guards.admin(http.HandlerFunc(h.Reject)))
}

func registerRSVPRoutes(mux *http.ServeMux, h *RSVPHandlers, guards routeGuards) {
	// Upsert stays open: anonymous callers RSVP as guests.
	mux.HandleFunc("POST /api/events/{id}/rsvp", h.Upsert)
	mux.HandleFunc("GET /api/events/{id}/rsvp-counts", h.Counts)
	mux.Handle("DELETE /api/events/{id}/rsvp", guards.auth(http.HandlerFunc(h.Remove)))
	mux.Handle("GET /api/rsvps", guards.auth(http.HandlerFunc(h.ListMine)))
	mux.Handle("PATCH /api/rsvps/{id}/reminders", guards.auth(http.HandlerFunc(h.SetReminders)))
}

func registerBusinessRoutes(mux *http.ServeMux, h *BusinessHandlers, guards routeGuards) {
	mux.HandleFunc("GET /api/businesses", h.List)
	mux.HandleFunc("GET /api/businesses/{id}", h.Get)
	mux.Handle("POST /api/businesses", guards.auth(http.HandlerFunc(h.Create)))
	mux.Handle("PATCH /api/businesses/{id}", guards.auth(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/businesses/{id}", guards.auth(http.HandlerFunc(h.Delete)))
	mux.Handle("POST /api/businesses/{id}/subdomain", guards.auth(http.HandlerFunc(h.ClaimSubdomain)))
	mux.Handle("POST /api/businesses/{id}/verify", guards.admin(http.HandlerFunc(h.SetVerified)))
}

func registerBusinessFormRoutes(mux *http.ServeMux, h *FormHandlers, guards routeGuards) {
	mux.Handle("GET /api/businesses/{id}/forms", guards.auth(http.HandlerFunc(h.ListTemplates)))
	mux.Handle("POST /api/businesses/{id}/forms", guards.auth(http.HandlerFunc(h.CreateTemplate)))
	mux.Handle("GET /api/businesses/{id}/forms/{templateID}", guards.auth(http.HandlerFunc(h.GetTemplate)))
	mux.Handle("PATCH /api/businesses/{id}/forms/{templateID}", guards.auth(http.HandlerFunc(h.UpdateTemplate)))
	mux.Handle("DELETE /api/businesses/{id}/forms/{templateID}", guards.auth(http.HandlerFunc(h.DeleteTemplate)))
	mux.Handle("PUT /api/businesses/{id}/forms/{templateID}/fields", guards.auth(http.HandlerFunc(h.ReplaceFields)))
	mux.Handle("GET /api/businesses/{id}/forms/{templateID}/submissions",
		guards.auth(http.HandlerFunc(h.ListSubmissions)))
}

func registerCategoryRoutes(mux *http.ServeMux, h *CategoryHandlers, guards routeGuards) {
	mux.HandleFunc("GET /api/categories", h.List)
	mux.HandleFunc("GET /api/categories/{slug}", h.GetBySlug)
	mux.Handle("POST /api/categories", guards.admin(http.HandlerFunc(h.Create)))
	mux.Handle("PATCH /api/categories/{id}", guards.admin(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/categories/{id}", guards.admin(http.HandlerFunc(h.Delete)))
}

func registerBillingRoutes(mux *http.ServeMux, h *BillingHandlers, guards routeGuards) {
	mux.HandleFunc("GET /api/billing/plans", h.ListPlans)
	mux.Handle("POST /api/billing/plans/seed", guards.admin(http.HandlerFunc(h.SeedPlans)))
	mux.Handle("GET /api/billing/subscription", guards.auth(http.HandlerFunc(h.Subscription)))
	mux.Handle("POST /api/billing/checkout", guards.auth(http.HandlerFunc(h.Checkout)))
	mux.Handle("POST /api/billing/cancel", guards.auth(http.HandlerFunc(h.Cancel)))
}

func registerAnalyticsDashboardRoutes(mux *http.ServeMux, h *AnalyticsHandlers, guards routeGuards) {
	mux.Handle("GET /api/analytics/business/{id}/overview", guards.auth(http.HandlerFunc(h.Overview)))
	mux.Handle("GET /api/analytics/business/{id}/events", guards.auth(http.HandlerFunc(h.EventStats)))
}

func registerInstagramRoutes(mux *http.ServeMux, h *InstagramHandlers, guards routeGuards) {
	mux.Handle("POST /api/businesses/{id}/instagram/import", guards.auth(http.HandlerFunc(h.Import)))
	mux.Handle("GET /api/businesses/{id}/instagram/history", guards.auth(http.HandlerFunc(h.History)))
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers, guards routeGuards) {
	mux.Handle("POST /api/jobs", guards.admin(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/jobs", guards.admin(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/jobs/{type}/stats", guards.admin(http.HandlerFunc(h.Stats)))
	mux.Handle("GET /api/jobs/{id}/status", guards.admin(http.HandlerFunc(h.GetStatus)))
}
