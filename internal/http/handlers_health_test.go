package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz_NoConfiguredChecks(t *testing.T) {
	h := NewHealthHandlers(HealthHandlersOptions{})

	w := httptest.NewRecorder()
	h.Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthz_AllChecksPass(t *testing.T) {
	h := NewHealthHandlers(HealthHandlersOptions{
		DB:    func(ctx context.Context) error { return nil },
		Redis: func(ctx context.Context) error { return nil },
	})

	w := httptest.NewRecorder()
	h.Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"db":"ok","redis":"ok"}}`, w.Body.String())
}

func TestHealthz_FailingCheckDegrades(t *testing.T) {
	h := NewHealthHandlers(HealthHandlersOptions{
		DB:    func(ctx context.Context) error { return errors.New("dial tcp: connection refused") },
		Redis: func(ctx context.Context) error { return nil },
	})

	w := httptest.NewRecorder()
	h.Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"db":"failed","redis":"ok"}}`, w.Body.String())
}

func TestHealthz_ChecksRunWithDeadline(t *testing.T) {
	h := NewHealthHandlers(HealthHandlersOptions{
		DB: func(ctx context.Context) error {
			deadline, ok := ctx.Deadline()
			require.True(t, ok, "pings must be bounded")
			assert.NotZero(t, deadline)
			return nil
		},
	})

	w := httptest.NewRecorder()
	h.Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHealthz_HeadOmitsBody(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandlers(HealthHandlersOptions{})

		w := httptest.NewRecorder()
		h.Healthz(w, httptest.NewRequest(http.MethodHead, "/healthz", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Zero(t, w.Body.Len())
	})

	t.Run("degraded", func(t *testing.T) {
		h := NewHealthHandlers(HealthHandlersOptions{
			Redis: func(ctx context.Context) error { return errors.New("connection refused") },
		})

		w := httptest.NewRecorder()
		h.Healthz(w, httptest.NewRequest(http.MethodHead, "/healthz", nil))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Zero(t, w.Body.Len())
	})
}
