package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBody bounds how much of a webhook response is read. Error
// responses only contribute a snippet to the returned error, so anything
// past this is noise.
const maxResponseBody = 4 << 10

// Poster delivers JSON documents to a webhook endpoint with bounded retries
// and linear backoff. The Service name prefixes errors so logs name the
// failing sink.
type Poster struct {
	Service    string
	Client     *http.Client
	RetryLimit int
}

// Post sends body to url, retrying RetryLimit times on failure. A context
// cancellation during backoff returns ctx.Err rather than the transport
// error.
func (p Poster) Post(ctx context.Context, url string, body []byte) error {
	attempts := p.RetryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err := p.postOnce(ctx, url, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}

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
	return lastErr
}

func (p Poster) postOnce(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", p.Service, err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", p.Service, err)
	}

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	closeErr := resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s webhook %s: %s", p.Service, resp.Status, strings.TrimSpace(string(respBody)))
	}
	if readErr != nil {
		return fmt.Errorf("read %s response: %w", p.Service, readErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s response body: %w", p.Service, closeErr)
	}
	return nil
}
