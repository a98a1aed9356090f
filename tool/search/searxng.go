package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxSearchBodySize = 512 * 1024

type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// SearXNGBackend searches via a SearXNG instance's JSON API.
type SearXNGBackend struct {
	client      *http.Client
	instanceURL string
	language    string
}

// NewSearXNGBackend creates a backend for the instance at instanceURL.
func NewSearXNGBackend(instanceURL, language string, client *http.Client) *SearXNGBackend {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &SearXNGBackend{
		client:      client,
		instanceURL: strings.TrimRight(instanceURL, "/"),
		language:    language,
	}
}

// Name implements Backend.
func (b *SearXNGBackend) Name() string { return "searxng" }

// Search implements Backend.
func (b *SearXNGBackend) Search(ctx context.Context, kind Kind, query string, max int) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.instanceURL+"/search", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	q := req.URL.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("pageno", "1")

	if kind == KindNews {
		q.Set("categories", "news")
	} else {
		q.Set("categories", "general")
	}

	if b.language != "" {
		q.Set("language", b.language)
	}

	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var sr searxngResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	results := make([]Result, 0, len(sr.Results))
	for _, r := range sr.Results {
		if len(results) >= max {
			break
		}

		results = append(results, Result{Title: r.Title, URL: r.URL, Body: r.Content})
	}

	return results, nil
}
