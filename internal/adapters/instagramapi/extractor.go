package instagramapi

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

	"github.com/popmap/popmap-api/internal/domain/model"
)

// ExtractorConfig configures the caption extraction client.
type ExtractorConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
	Client  *http.Client
}

// Extractor posts captions to an extraction endpoint and decodes the
// structured event it returns. The endpoint fronts a language model; this
// client only speaks JSON over HTTP.
type Extractor struct {
	url    string
	token  string
	client *http.Client
}

// NewExtractor builds the extraction client.
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		return nil, errors.New("extractor url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Extractor{
		url:    endpoint,
		token:  strings.TrimSpace(cfg.Token),
		client: hc,
	}, nil
}

type extractRequest struct {
	Caption string `json:"caption"`
}

// Extract implements core.CaptionExtractor.
func (e *Extractor) Extract(ctx context.Context, caption string) (*model.ExtractedEvent, error) {
	body, err := json.Marshal(extractRequest{Caption: caption})
	if err != nil {
		return nil, fmt.Errorf("encode extraction payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("extractor returned status %d", resp.StatusCode)
	}

	var extracted model.ExtractedEvent
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&extracted); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}
	return &extracted, nil
}
