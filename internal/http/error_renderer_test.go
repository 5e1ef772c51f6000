package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyServiceError_Sentinels(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "forbidden",
			err:         service.ErrForbidden,
			wantStatus:  http.StatusForbidden,
			wantCode:    "forbidden",
			wantMessage: "operation not permitted",
		},
		{
			name:        "session expired",
			err:         service.ErrSessionExpired,
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "session_expired",
			wantMessage: "session expired",
		},
		{
			name:        "event quota",
			err:         service.ErrEventQuotaExceeded,
			wantStatus:  http.StatusForbidden,
			wantCode:    "event_quota_exceeded",
			wantMessage: "monthly event limit reached",
		},
		{
			name:        "billing not configured",
			err:         service.ErrBillingNotConfigured,
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    "billing_not_configured",
			wantMessage: "billing is not configured",
		},
		{
			name:        "webhook signature",
			err:         service.ErrWebhookVerification,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "invalid_signature",
			wantMessage: "webhook verification failed",
		},
		{
			name:        "rsvp closed",
			err:         service.ErrRSVPClosed,
			wantStatus:  http.StatusConflict,
			wantCode:    "rsvp_closed",
			wantMessage: "event is not open for RSVPs",
		},
		{
			name:        "event missing",
			err:         data.ErrEventNotFound,
			wantStatus:  http.StatusNotFound,
			wantCode:    "event_not_found",
			wantMessage: "event not found",
		},
		{
			name:        "subdomain taken",
			err:         data.ErrSubdomainTaken,
			wantStatus:  http.StatusConflict,
			wantCode:    "subdomain_taken",
			wantMessage: "subdomain is already taken",
		},
		{
			name:        "no subscription",
			err:         service.ErrNoSubscription,
			wantStatus:  http.StatusNotFound,
			wantCode:    "no_subscription",
			wantMessage: "no active subscription",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Services wrap repository errors with operation context; the
			// classifier must see through the chain.
			wrapped := fmt.Errorf("handle request: %w", tt.err)

			status, code, message := classifyServiceError(wrapped)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMessage, message)
		})
	}
}

func TestClassifyServiceError_DatabaseErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "no rows",
			err:         fmt.Errorf("get business: %w", pgx.ErrNoRows),
			wantStatus:  http.StatusNotFound,
			wantCode:    "not_found",
			wantMessage: "Resource not found",
		},
		{
			name:        "unique violation",
			err:         &pgconn.PgError{Code: pgerrcode.UniqueViolation},
			wantStatus:  http.StatusConflict,
			wantCode:    "conflict",
			wantMessage: "This value already exists. Please choose a different one.",
		},
		{
			name:        "check violation",
			err:         &pgconn.PgError{Code: pgerrcode.CheckViolation},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "validation_failed",
			wantMessage: "Invalid data. Please check your input.",
		},
		{
			name: "foreign key violation",
			err: &pgconn.PgError{
				Code:           pgerrcode.ForeignKeyViolation,
				ConstraintName: "event_categories_category_id_fkey",
			},
			wantStatus:  http.StatusConflict,
			wantCode:    "conflict",
			wantMessage: "Cannot delete category because it is in use by an Event.",
		},
		{
			name:        "timeout",
			err:         fmt.Errorf("list events: %w", context.DeadlineExceeded),
			wantStatus:  http.StatusGatewayTimeout,
			wantCode:    "timeout",
			wantMessage: "Request timed out. Please try again.",
		},
		{
			name:        "canceled",
			err:         fmt.Errorf("list events: %w", context.Canceled),
			wantStatus:  http.StatusRequestTimeout,
			wantCode:    "canceled",
			wantMessage: "Request was canceled.",
		},
		{
			// Unrecognized database failures must not leak driver detail.
			name:        "unknown pg error",
			err:         &pgconn.PgError{Code: pgerrcode.AdminShutdown, Message: "terminating connection"},
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "internal_error",
			wantMessage: "an unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, message := classifyServiceError(tt.err)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMessage, message)
		})
	}
}

func TestClassifyServiceError_ValidationMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"required field", errors.New("title is required")},
		{"range check", errors.New("latitude must be between -90 and 90")},
		{"wrapped by service", fmt.Errorf("create job: %w", errors.New("payload is required"))},
		{"invalid prefix", errors.New("invalid reminder offset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, message := classifyServiceError(tt.err)

			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "validation_failed", code)
			assert.Equal(t, tt.err.Error(), message)
		})
	}
}

func TestClassifyServiceError_UnknownIsOpaque(t *testing.T) {
	status, code, message := classifyServiceError(errors.New("connection reset by peer"))

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", code)
	assert.Equal(t, "an unexpected error occurred", message)
}

func TestWriteServiceError_RendersJSON(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/events/123", nil)

	WriteServiceError(w, r, nil, fmt.Errorf("get event: %w", data.ErrEventNotFound))

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "event_not_found", resp["error"])
	assert.Equal(t, "event not found", resp["message"])
}

func TestWriteServiceError_NilErrorWritesNothing(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/events", nil)

	WriteServiceError(w, r, nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestWriteServiceError_LogsServerErrorsOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/rsvps", nil)
	WriteServiceError(w, r, logger, errors.New("pq: out of shared memory"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "an unexpected error occurred")
	assert.Contains(t, buf.String(), "request failed")
	assert.Contains(t, buf.String(), "/api/rsvps")

	buf.Reset()
	w = httptest.NewRecorder()
	WriteServiceError(w, r, logger, data.ErrRSVPNotFound)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, buf.String(), "client errors should not be logged as failures")
}
