package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"
	defaultUserAgent     = "Mozilla/5.0 (compatible; agentrelay/1.0)"
)

// DuckDuckGoBackend scrapes the DuckDuckGo HTML endpoint. News searches use
// the same endpoint restricted to results of the past week.
type DuckDuckGoBackend struct {
	client    *http.Client
	baseURL   string
	region    string
	userAgent string
}

// DuckDuckGoOptions configures a DuckDuckGoBackend.
type DuckDuckGoOptions struct {
	BaseURL    string
	Region     string
	UserAgent  string
	HTTPClient *http.Client
}

// NewDuckDuckGoBackend creates a DuckDuckGo backend.
func NewDuckDuckGoBackend(optFns ...func(o *DuckDuckGoOptions)) *DuckDuckGoBackend {
	opts := DuckDuckGoOptions{
		BaseURL:   defaultDuckDuckGoURL,
		Region:    "wt-wt",
		UserAgent: defaultUserAgent,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &DuckDuckGoBackend{
		client:    opts.HTTPClient,
		baseURL:   opts.BaseURL,
		region:    opts.Region,
		userAgent: opts.UserAgent,
	}
}

// Name implements Backend.
func (b *DuckDuckGoBackend) Name() string { return "duckduckgo" }

// Search implements Backend.
func (b *DuckDuckGoBackend) Search(ctx context.Context, kind Kind, query string, max int) ([]Result, error) {
	form := url.Values{}
	form.Set("q", query)
	form.Set("kl", b.region)

	if kind == KindNews {
		form.Set("df", "w")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed (HTTP %d)", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return parseDuckDuckGo(doc, max), nil
}

func parseDuckDuckGo(doc *goquery.Document, max int) []Result {
	results := make([]Result, 0, max)

	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}

		link := s.Find("a.result__a").First()

		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}

		href, _ := link.Attr("href")

		results = append(results, Result{
			Title: title,
			URL:   resolveRedirect(href),
			Body:  strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})

		return len(results) < max
	})

	return results
}

// resolveRedirect unwraps DuckDuckGo's "/l/?uddg=<target>" redirect links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}

	if target := u.Query().Get("uddg"); target != "" {
		return target
	}

	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}

	return href
}
