// Package instagramapi implements the Instagram import ports over HTTP: a
// scraper-provider client for fetching public posts and an extractor client
// that turns captions into structured event details.
package instagramapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// ScraperConfig configures the post-fetching client.
type ScraperConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Client  *http.Client
}

// Scraper fetches a business's public posts through a RapidAPI-style
// Instagram scraper provider.
type Scraper struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewScraper builds the scraper client. Callers should pass a sanitized config.
func NewScraper(cfg ScraperConfig) (*Scraper, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("scraper base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("scraper api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Scraper{
		baseURL: base,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client:  hc,
	}, nil
}

// scraperItem is one post in the provider's wire shape.
type scraperItem struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Caption struct {
		Text string `json:"text"`
	} `json:"caption"`
	TakenAt      int64   `json:"taken_at"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
}

type scraperResponse struct {
	Data struct {
		Items []scraperItem `json:"items"`
	} `json:"data"`
}

// FetchPosts implements core.InstagramSource.
func (s *Scraper) FetchPosts(ctx context.Context, handle string, limit int) ([]*model.InstagramPost, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, errors.New("handle is required")
	}
	if limit <= 0 {
		limit = 20
	}

	endpoint := s.baseURL + "/v1/posts?username_or_id_or_url=" + url.QueryEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create scraper request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraper request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.ErrInstagramUserNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, core.ErrInstagramRateLimited
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("scraper returned status %d", resp.StatusCode)
	}

	var body scraperResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode scraper response: %w", err)
	}

	posts := make([]*model.InstagramPost, 0, len(body.Data.Items))
	for _, item := range body.Data.Items {
		if len(posts) >= limit {
			break
		}
		id := item.ID
		if id == "" {
			id = item.Code
		}
		if id == "" {
			continue
		}
		posts = append(posts, &model.InstagramPost{
			ID:        id,
			Caption:   item.Caption.Text,
			Permalink: permalink(item.Code),
			TakenAt:   time.Unix(item.TakenAt, 0).UTC(),
			ImageURL:  item.ThumbnailURL,
		})
	}
	return posts, nil
}

func permalink(code string) string {
	if code == "" {
		return ""
	}
	return "https://www.instagram.com/p/" + code + "/"
}
