package httpx

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodePayload struct {
	Name  string `json:"name"`
	Limit int    `json:"limit"`
}

func TestDecodeJSON(t *testing.T) {
	t.Run("decodes a single JSON value", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"name":"night market","limit":5}`))

		var dst decodePayload
		require.True(t, DecodeJSON(w, r, &dst))
		assert.Equal(t, "night market", dst.Name)
		assert.Equal(t, 5, dst.Limit)
		assert.Zero(t, w.Body.Len(), "a successful decode should not write a response")
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"name":"night market","surprise":true}`))

		var dst decodePayload
		require.False(t, DecodeJSON(w, r, &dst))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_json")
		assert.Contains(t, w.Body.String(), `unknown field`)
	})

	t.Run("requires a body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(""))

		var dst decodePayload
		require.False(t, DecodeJSON(w, r, &dst))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"invalid_json","message":"request body is required"}`, w.Body.String())
	})

	t.Run("rejects trailing content after the first value", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"name":"a"}{"name":"b"}`))

		var dst decodePayload
		require.False(t, DecodeJSON(w, r, &dst))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"invalid_json","message":"request body must contain a single JSON value"}`, w.Body.String())
	})

	t.Run("caps the body size", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := `{"name":"` + strings.Repeat("a", maxJSONBody) + `"}`
		r := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))

		var dst decodePayload
		require.False(t, DecodeJSON(w, r, &dst))
		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.JSONEq(t, `{"error":"body_too_large","message":"request body exceeds the size limit"}`, w.Body.String())
	})
}

func TestWriteJSON(t *testing.T) {
	t.Run("writes the payload with headers", func(t *testing.T) {
		w := httptest.NewRecorder()

		WriteJSON(w, http.StatusCreated, map[string]int{"count": 3})

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"count":3}`, w.Body.String())
	})

	t.Run("turns an encode failure into a 500", func(t *testing.T) {
		w := httptest.NewRecorder()

		WriteJSON(w, http.StatusOK, math.NaN())

		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, http.StatusText(http.StatusInternalServerError)+"\n", w.Body.String(),
			"no partial JSON should reach the client")
	})
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, ErrorParams{
		Code:    http.StatusConflict,
		ErrCode: "subdomain_taken",
		Err:     errors.New("subdomain already in use"),
	})

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"subdomain_taken","message":"subdomain already in use"}`, w.Body.String())
}
