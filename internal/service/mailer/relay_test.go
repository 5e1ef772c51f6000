package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRelayValidation(t *testing.T) {
	_, err := NewRelay(RelayConfig{})
	assert.Error(t, err)
}

func TestRelaySend(t *testing.T) {
	var got relayEnvelope
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	relay, err := NewRelay(RelayConfig{
		URL:         server.URL,
		Token:       "relay-token",
		FromAddress: "hello@popmap.app",
		FromName:    "PopMap",
	})
	require.NoError(t, err)

	err = relay.Send(context.Background(), &core.MailMessage{
		To:       "ana@example.com",
		ToName:   "Ana",
		Subject:  "Hello",
		TextBody: "body",
		Headers:  map[string]string{"List-Unsubscribe": "<https://x>"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Bearer relay-token", auth)
	assert.Equal(t, "hello@popmap.app", got.FromAddress)
	assert.Equal(t, "PopMap", got.FromName)
	assert.Equal(t, "ana@example.com", got.To)
	assert.Equal(t, "Hello", got.Subject)
	assert.Equal(t, "<https://x>", got.Headers["List-Unsubscribe"])
}

func TestRelaySend_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	relay, err := NewRelay(RelayConfig{URL: server.URL, RetryLimit: 2})
	require.NoError(t, err)

	err = relay.Send(context.Background(), &core.MailMessage{To: "a@example.com"})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRelaySend_PermanentRejectionNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad address", http.StatusUnprocessableEntity)
	}))
	t.Cleanup(server.Close)

	relay, err := NewRelay(RelayConfig{URL: server.URL, RetryLimit: 3})
	require.NoError(t, err)

	err = relay.Send(context.Background(), &core.MailMessage{To: "nope"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad address")
	assert.Equal(t, int32(1), calls.Load())
}

func TestLogTransportSend(t *testing.T) {
	transport := NewLogTransport(nil)

	err := transport.Send(context.Background(), &core.MailMessage{
		To:      "a@example.com",
		Subject: "Hello",
	})

	assert.NoError(t, err)
}
