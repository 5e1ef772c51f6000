package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	apperrors "github.com/popmap/popmap-api/internal/errors"
	"github.com/popmap/popmap-api/internal/service"
)

// errorRule maps a sentinel error onto an HTTP status and short error code.
type errorRule struct {
	target  error
	status  int
	errCode string
}

// errorRules is checked in order; first match wins. Auth and entitlement
// sentinels come before repository sentinels so wrapped chains resolve to the
// most specific classification.
var errorRules = []errorRule{ //nolint:gochecknoglobals // read-only classification table
	{service.ErrSessionExpired, http.StatusUnauthorized, "session_expired"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrSubdomainNotEntitled, http.StatusForbidden, "subdomain_not_entitled"},
	{service.ErrAnalyticsNotEntitled, http.StatusForbidden, "analytics_not_entitled"},
	{service.ErrEventQuotaExceeded, http.StatusForbidden, "event_quota_exceeded"},
	{service.ErrBillingNotConfigured, http.StatusServiceUnavailable, "billing_not_configured"},
	{service.ErrPlanNotPurchasable, http.StatusBadRequest, "plan_not_purchasable"},
	{service.ErrSubscriptionActive, http.StatusConflict, "subscription_active"},
	{service.ErrNoSubscription, http.StatusNotFound, "no_subscription"},
	{service.ErrWebhookVerification, http.StatusBadRequest, "invalid_signature"},
	{service.ErrRSVPClosed, http.StatusConflict, "rsvp_closed"},
	{service.ErrInstagramNotEntitled, http.StatusForbidden, "instagram_not_entitled"},
	{service.ErrInstagramHandleMissing, http.StatusBadRequest, "instagram_handle_missing"},
	{core.ErrInstagramUserNotFound, http.StatusBadRequest, "instagram_user_not_found"},
	{core.ErrInstagramRateLimited, http.StatusTooManyRequests, "instagram_rate_limited"},

	{data.ErrProfileNotFound, http.StatusNotFound, "profile_not_found"},
	{data.ErrBusinessNotFound, http.StatusNotFound, "business_not_found"},
	{data.ErrCategoryNotFound, http.StatusNotFound, "category_not_found"},
	{data.ErrEventNotFound, http.StatusNotFound, "event_not_found"},
	{data.ErrRSVPNotFound, http.StatusNotFound, "rsvp_not_found"},
	{data.ErrPlanNotFound, http.StatusNotFound, "plan_not_found"},
	{data.ErrSubscriptionNotFound, http.StatusNotFound, "subscription_not_found"},
	{data.ErrFormTemplateNotFound, http.StatusNotFound, "form_not_found"},
	{data.ErrFormSubmissionNotFound, http.StatusNotFound, "submission_not_found"},
	{data.ErrJobNotFound, http.StatusNotFound, "job_not_found"},

	{data.ErrProfileExists, http.StatusConflict, "profile_exists"},
	{data.ErrSubdomainTaken, http.StatusConflict, "subdomain_taken"},
	{data.ErrCategorySlugExists, http.StatusConflict, "category_slug_exists"},
	{data.ErrFormSlugExists, http.StatusConflict, "form_slug_exists"},
}

// WriteServiceError renders a service or repository error as a JSON error
// response. Known sentinels map to specific statuses; database errors are
// classified through the app error mapper; anything unrecognized becomes a
// 500 with a generic message so internals do not leak to clients.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if err == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	status, errCode, message := classifyServiceError(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}

	WriteError(w, ErrorParams{Code: status, ErrCode: errCode, Err: errors.New(message)})
}

// classifyServiceError resolves err to a status, short code, and client-safe
// message.
func classifyServiceError(err error) (int, string, string) {
	for _, rule := range errorRules {
		if errors.Is(err, rule.target) {
			return rule.status, rule.errCode, rule.target.Error()
		}
	}

	// Classify raw database errors that repositories did not map to
	// sentinels (check violations, unexpected constraints, timeouts).
	var appErr *apperrors.AppError
	if errors.As(apperrors.MapDBError(err), &appErr) {
		status, errCode := appErrorStatus(appErr.Code)
		if status >= http.StatusInternalServerError {
			return status, errCode, "an unexpected error occurred"
		}
		return status, errCode, appErr.Message
	}

	if isValidationError(err) {
		return http.StatusBadRequest, "validation_failed", err.Error()
	}

	return http.StatusInternalServerError, "internal_error", "an unexpected error occurred"
}

// appErrorStatus maps app error codes onto HTTP statuses.
func appErrorStatus(code apperrors.ErrorCode) (int, string) {
	switch code {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound, "not_found"
	case apperrors.ErrCodeConflict:
		return http.StatusConflict, "conflict"
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest, "validation_failed"
	case apperrors.ErrCodeForeignKey:
		return http.StatusConflict, "conflict"
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout, "timeout"
	case apperrors.ErrCodeCanceled:
		return http.StatusRequestTimeout, "canceled"
	case apperrors.ErrCodeInternal:
		return http.StatusInternalServerError, "internal_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
