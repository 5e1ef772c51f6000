package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/popmap/popmap-api/internal/core"
)

// RelayConfig configures the HTTP relay transport.
type RelayConfig struct {
	URL         string
	Token       string
	FromAddress string
	FromName    string
	Timeout     time.Duration
	RetryLimit  int
	Client      *http.Client
}

// Relay posts messages as JSON to an HTTP mail relay. It retries transient
// failures with linear backoff; 4xx responses other than 429 are permanent.
type Relay struct {
	url         string
	token       string
	fromAddress string
	fromName    string
	retryLimit  int
	client      *http.Client
}

// NewRelay builds the relay transport. Callers should pass a sanitized config.
func NewRelay(cfg RelayConfig) (*Relay, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("relay url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Relay{
		url:         url,
		token:       strings.TrimSpace(cfg.Token),
		fromAddress: strings.TrimSpace(cfg.FromAddress),
		fromName:    strings.TrimSpace(cfg.FromName),
		retryLimit:  retries,
		client:      hc,
	}, nil
}

// relayEnvelope is the wire shape posted to the relay.
type relayEnvelope struct {
	FromAddress string            `json:"from_address"`
	FromName    string            `json:"from_name,omitempty"`
	To          string            `json:"to"`
	ToName      string            `json:"to_name,omitempty"`
	Subject     string            `json:"subject"`
	TextBody    string            `json:"text_body"`
	HTMLBody    string            `json:"html_body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// errRelayPermanent marks responses that retrying cannot fix.
var errRelayPermanent = errors.New("relay rejected message")

// Send implements core.Mailer.
func (r *Relay) Send(ctx context.Context, msg *core.MailMessage) error {
	body, err := json.Marshal(relayEnvelope{
		FromAddress: r.fromAddress,
		FromName:    r.fromName,
		To:          msg.To,
		ToName:      msg.ToName,
		Subject:     msg.Subject,
		TextBody:    msg.TextBody,
		HTMLBody:    msg.HTMLBody,
		Headers:     msg.Headers,
	})
	if err != nil {
		return fmt.Errorf("encode relay payload: %w", err)
	}

	attempts := r.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err = r.post(ctx, body)
		if err == nil {
			return nil
		}
		if errors.Is(err, errRelayPermanent) {
			return err
		}
		lastErr = err
		if attempt < attempts-1 {
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}

func (r *Relay) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("relay returned status %d", resp.StatusCode)
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", errRelayPermanent, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
}
