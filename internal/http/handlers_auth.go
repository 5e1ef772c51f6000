package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/service"
)

// Short-lived cookies set when a sign-in flow starts and consumed by the
// callback. They expire on their own if the user never returns from the
// provider.
const (
	oauthStateCookie        = "oauth_state"
	oauthNonceCookie        = "oauth_nonce"
	postLoginRedirectCookie = "post_login_redirect"

	oauthCookieMaxAge = 600
)

// AuthFlowService is the slice of the auth service used by the HTTP layer.
type AuthFlowService interface {
	RefreshUser(ctx context.Context, sessionID string) (domainauth.Session, error)
	SignOut(ctx context.Context, sessionID string) error
}

// CallbackFlowService drives the OAuth sign-in flow: Initiate builds the
// provider authorization URL and Resume reconciles the returning callback.
type CallbackFlowService interface {
	Initiate(ctx context.Context, input service.InitiateInput) (*service.InitiateResult, error)
	Resume(ctx context.Context, input service.ResumeInput) (*service.ResumeResult, error)
}

// ProfileAccess is the slice of the profile service used by the auth handlers.
type ProfileAccess interface {
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	Update(ctx context.Context, id string, req model.UpdateProfileRequest) (*model.Profile, error)
}

// ProviderConfigInfo is the public OIDC client configuration exposed to the
// frontend so it can render provider buttons and build sign-out links.
type ProviderConfigInfo struct {
	Mode        string `json:"mode"`
	ClientID    string `json:"client_id,omitempty"`
	IssuerURL   string `json:"issuer_url,omitempty"`
	Domain      string `json:"domain,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Scope       string `json:"scope,omitempty"`
	LogoutURL   string `json:"logout_url,omitempty"`
}

// AuthHandlersOptions groups dependencies for NewAuthHandlers.
type AuthHandlersOptions struct {
	Auth     AuthFlowService
	Callback CallbackFlowService
	Profiles ProfileAccess
	Provider ProviderConfigInfo
	// CookieName is the session cookie name. Empty selects DefaultSessionCookie.
	CookieName string
	// CookieDomain scopes auth cookies; empty means host-only.
	CookieDomain string
	// FrontendURL is the SPA origin that post-auth redirects land on. Empty
	// keeps redirects relative for single-host deployments.
	FrontendURL string
	Logger      *slog.Logger
}

// AuthHandlers serves the session lifecycle: login initiation, the OAuth
// callback, sign-out, and the current-user endpoints.
type AuthHandlers struct {
	auth         AuthFlowService
	callback     CallbackFlowService
	profiles     ProfileAccess
	provider     ProviderConfigInfo
	cookieName   string
	cookieDomain string
	frontendURL  string
	logger       *slog.Logger
}

// NewAuthHandlers creates AuthHandlers from options.
func NewAuthHandlers(opts AuthHandlersOptions) *AuthHandlers {
	name := opts.CookieName
	if name == "" {
		name = DefaultSessionCookie
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandlers{
		auth:         opts.Auth,
		callback:     opts.Callback,
		profiles:     opts.Profiles,
		provider:     opts.Provider,
		cookieName:   name,
		cookieDomain: opts.CookieDomain,
		frontendURL:  opts.FrontendURL,
		logger:       logger,
	}
}

// Login handles GET /auth/login. It starts a plain hosted-UI sign-in with no
// role selection and redirects the browser to the provider.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	redirect := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	result, err := h.callback.Initiate(r.Context(), service.InitiateInput{
		RedirectURL: redirect,
	})
	if err != nil {
		h.writeInitiateError(w, r, err)
		return
	}

	h.setOAuthCookies(w, r, oauthCookieParams{
		State:       result.State,
		Nonce:       result.Nonce,
		RedirectURI: redirect,
	})
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// SocialStart handles GET /auth/social/{provider}/start. It accepts an
// optional role query parameter that is parked server-side and applied after
// the callback completes.
func (h *AuthHandlers) SocialStart(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	redirect := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	var role domainauth.Role
	if raw := r.URL.Query().Get("role"); raw != "" {
		parsed, ok := domainauth.ParseRole(raw)
		if !ok {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_role",
				Err:     fmt.Errorf("unknown role %q", raw),
			})
			return
		}
		role = parsed
	}

	result, err := h.callback.Initiate(r.Context(), service.InitiateInput{
		Provider:    provider,
		Role:        role,
		RedirectURL: redirect,
	})
	if err != nil {
		h.writeInitiateError(w, r, err)
		return
	}

	h.setOAuthCookies(w, r, oauthCookieParams{
		State:       result.State,
		Nonce:       result.Nonce,
		RedirectURI: redirect,
	})
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

func (h *AuthHandlers) writeInitiateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domainauth.IsProviderError(err):
		h.logger.ErrorContext(r.Context(), "sign-in initiation failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusBadGateway,
			ErrCode: "provider_error",
			Err:     errors.New("the identity provider is unavailable"),
		})
	case isValidationError(err):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: err})
	default:
		h.logger.ErrorContext(r.Context(), "sign-in initiation failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Err:     errors.New("could not start sign-in"),
		})
	}
}

// Callback handles GET /auth/callback, the provider redirect target. Outcomes
// are delivered to the login page as redirects because the browser arrives
// here top-level; only malformed requests that no real provider round-trip
// produces get a JSON error.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	// Providers report user-facing failures (access_denied and friends) via
	// error query params rather than a failed code exchange.
	if provErr := q.Get("error"); provErr != "" {
		h.logger.WarnContext(ctx, "provider returned callback error", "provider_error", provErr)
		h.clearOAuthCookies(w, r)
		dest := appendQueryParam("/login", "error", "provider")
		if desc := q.Get("error_description"); desc != "" {
			dest = appendQueryParam(dest, "error_description", desc)
		}
		http.Redirect(w, r, h.appURL(dest), http.StatusFound)
		return
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_code",
			Err:     errors.New("authorization code is required"),
		})
		return
	}
	if state == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_state",
			Err:     errors.New("state parameter is required"),
		})
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("state does not match the sign-in request"),
		})
		return
	}

	var nonce string
	if c, err := r.Cookie(oauthNonceCookie); err == nil {
		nonce = c.Value
	}

	result, err := h.callback.Resume(ctx, service.ResumeInput{State: state, Code: code, Nonce: nonce})
	if err != nil {
		h.clearOAuthCookies(w, r)
		if errors.Is(err, domainauth.ErrAlreadyProcessing) {
			// Another tab claimed this callback and will finish the sign-in.
			http.Redirect(w, r, h.appURL(service.RedirectHome), http.StatusFound)
			return
		}
		errCode := callbackErrorCode(err)
		h.logger.ErrorContext(ctx, "callback reconciliation failed",
			slog.String("flow_error", errCode), "error", err)
		http.Redirect(w, r, h.appURL(appendQueryParam("/login", "error", errCode)), http.StatusFound)
		return
	}

	h.setSessionCookie(w, r, result.Session)

	// A flow-specific destination (business onboarding) wins over the saved
	// redirect; otherwise honor where the user was headed before sign-in.
	dest := result.RedirectTo
	if dest == "" || dest == service.RedirectHome {
		dest = h.postLoginRedirect(r)
	}
	h.clearOAuthCookies(w, r)

	if result.RoleErr != nil {
		h.logger.WarnContext(ctx, "pending role was not applied", "error", result.RoleErr)
		dest = appendQueryParam(dest, "notice", "role_not_applied")
	}
	http.Redirect(w, r, h.appURL(dest), http.StatusFound)
}

// callbackErrorCode maps a reconciliation failure to the stable error code
// surfaced to the login page.
func callbackErrorCode(err error) string {
	if kind := domainauth.FlowKind(err); kind != "" {
		return string(kind)
	}
	return "internal"
}

// Logout handles POST /auth/logout. Offboarding is best-effort: the cookie is
// cleared even when the backend session is already gone.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if c, err := r.Cookie(h.cookieName); err == nil && c.Value != "" {
		if err := h.auth.SignOut(ctx, c.Value); err != nil {
			h.logger.WarnContext(ctx, "sign-out cleanup failed", "error", err)
		}
	}
	h.clearCookie(w, r, h.cookieName)

	resp := map[string]string{"status": "signed_out"}
	if h.provider.LogoutURL != "" {
		// Hosted-UI logout link the frontend should visit to end the
		// provider session as well.
		resp["logout_url"] = h.provider.LogoutURL
	}
	WriteJSON(w, http.StatusOK, resp)
}

type authStatusResponse struct {
	Authenticated bool                        `json:"authenticated"`
	Degraded      bool                        `json:"degraded,omitempty"`
	Profile       *domainauth.ProfileSnapshot `json:"profile,omitempty"`
	Email         string                      `json:"email,omitempty"`
}

// Status handles GET /auth/status. It always returns 200; an anonymous
// request reads as authenticated=false so the frontend can poll it cheaply.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	s := GetSessionFromContext(r.Context())
	if s == nil {
		WriteJSON(w, http.StatusOK, authStatusResponse{})
		return
	}
	WriteJSON(w, http.StatusOK, authStatusResponse{
		Authenticated: s.IsAuthenticated(),
		Degraded:      s.IsDegraded(),
		Profile:       s.Profile,
		Email:         s.Email,
	})
}

// Config handles GET /auth/config and returns the public provider settings.
func (h *AuthHandlers) Config(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.provider)
}

// Me handles GET /auth/me. A degraded cookie session gets one recovery
// attempt by re-syncing the profile; a degraded bearer identity has no stored
// session to refresh and reads as unauthorized.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := GetSessionFromContext(ctx)
	if s == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("sign in to continue"),
		})
		return
	}

	if !s.IsAuthenticated() {
		recovered, ok := h.recoverSession(w, r, s)
		if !ok {
			return
		}
		s = recovered
	}

	profile, err := h.profiles.GetByID(ctx, s.Profile.ID)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

// recoverSession re-syncs a degraded cookie session. It writes the error
// response itself and reports success through the bool.
func (h *AuthHandlers) recoverSession(w http.ResponseWriter, r *http.Request, s *domainauth.Session) (*domainauth.Session, bool) {
	ctx := r.Context()
	degraded := ErrorParams{
		Code:    http.StatusUnauthorized,
		ErrCode: "session_degraded",
		Err:     errors.New("profile is unavailable for this session"),
	}

	if s.ID == "" {
		WriteError(w, degraded)
		return nil, false
	}

	refreshed, err := h.auth.RefreshUser(ctx, s.ID)
	if err != nil {
		if errors.Is(err, service.ErrSessionExpired) {
			h.clearCookie(w, r, h.cookieName)
			WriteError(w, ErrorParams{
				Code:    http.StatusUnauthorized,
				ErrCode: "session_expired",
				Err:     errors.New("session has expired"),
			})
			return nil, false
		}
		h.logger.WarnContext(ctx, "session recovery failed", "error", err)
		WriteError(w, degraded)
		return nil, false
	}
	if !refreshed.IsAuthenticated() {
		WriteError(w, degraded)
		return nil, false
	}
	return &refreshed, true
}

// UpdateProfile handles PATCH /auth/profile: partial updates to the caller's
// own profile, including the post-signup role selection.
func (h *AuthHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := GetSessionFromContext(ctx)
	if s == nil || !s.IsAuthenticated() {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("sign in to continue"),
		})
		return
	}

	var req model.UpdateProfileRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation_failed", Err: err})
		return
	}

	profile, err := h.profiles.Update(ctx, s.Profile.ID, req)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}

	// Re-sync the stored session so its cached snapshot picks up the change.
	// Bearer identities carry no stored session.
	if s.ID != "" {
		if _, err := h.auth.RefreshUser(ctx, s.ID); err != nil {
			h.logger.WarnContext(ctx, "session refresh after profile update failed", "error", err)
		}
	}

	WriteJSON(w, http.StatusOK, profile)
}

// oauthCookieParams are the values round-tripped through the sign-in flow.
type oauthCookieParams struct {
	State       string
	Nonce       string
	RedirectURI string
}

func (h *AuthHandlers) setOAuthCookies(w http.ResponseWriter, r *http.Request, p oauthCookieParams) {
	cookies := []*http.Cookie{
		{Name: oauthStateCookie, Value: p.State},
		{Name: oauthNonceCookie, Value: p.Nonce},
	}
	if p.RedirectURI != "" && p.RedirectURI != service.RedirectHome {
		cookies = append(cookies, &http.Cookie{Name: postLoginRedirectCookie, Value: p.RedirectURI})
	}

	secure := isSecureRequest(r)
	for _, c := range cookies {
		c.Path = "/"
		c.Domain = h.cookieDomain
		c.HttpOnly = true
		c.Secure = secure
		c.SameSite = http.SameSiteLaxMode
		c.MaxAge = oauthCookieMaxAge
		http.SetCookie(w, c)
	}
}

func (h *AuthHandlers) clearOAuthCookies(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, r, oauthStateCookie)
	h.clearCookie(w, r, oauthNonceCookie)
	h.clearCookie(w, r, postLoginRedirectCookie)
}

// setSessionCookie pins the cookie lifetime to the session expiry so the
// browser and the store age out together.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, s domainauth.Session) {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(service.DefaultSessionTTL.Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    s.ID,
		Path:     "/",
		Domain:   h.cookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.cookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
}

// postLoginRedirect returns the sanitized destination saved when the flow
// started, or home when absent.
func (h *AuthHandlers) postLoginRedirect(r *http.Request) string {
	c, err := r.Cookie(postLoginRedirectCookie)
	if err != nil || c.Value == "" {
		return service.RedirectHome
	}
	return safeRedirectPath(c.Value)
}

// isSecureRequest reports whether the request arrived over TLS, directly or
// via a terminating proxy.
func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	// X-Forwarded-Proto may carry one value per proxy hop.
	for _, proto := range strings.Split(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}

// safeRedirectPath constrains a client-supplied destination to a relative
// path within the application. Absolute and scheme-relative URLs fall back
// to home.
func safeRedirectPath(candidate string) string {
	if candidate == "" || !strings.HasPrefix(candidate, "/") || strings.HasPrefix(candidate, "//") {
		return service.RedirectHome
	}
	if strings.ContainsAny(candidate, "\r\n") {
		return service.RedirectHome
	}
	return candidate
}

// appURL prefixes a relative destination with the frontend origin.
func (h *AuthHandlers) appURL(path string) string {
	if h.frontendURL == "" {
		return path
	}
	return strings.TrimRight(h.frontendURL, "/") + path
}

func appendQueryParam(path, key, value string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + key + "=" + url.QueryEscape(value)
}
