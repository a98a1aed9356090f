// Package search provides the websearch and newssearch tools backed by a
// pluggable search engine.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/tool"
)

// Kind selects the search vertical.
type Kind string

const (
	// KindText is a general web search.
	KindText Kind = "text"
	// KindNews is a search restricted to recent news.
	KindNews Kind = "news"
)

// Result is a single search hit.
type Result struct {
	Title string
	URL   string
	Body  string
}

// Backend abstracts a web search engine.
type Backend interface {
	// Search returns at most max results for query.
	Search(ctx context.Context, kind Kind, query string, max int) ([]Result, error)
	// Name returns the backend identifier (e.g. "duckduckgo").
	Name() string
}

// Options configures the search tools.
type Options struct {
	// MaxResults bounds websearch results.
	MaxResults int
	// NewsMaxResults bounds newssearch results.
	NewsMaxResults int
}

type queryArgs struct {
	Query string `json:"query" description:"The search query"`
}

// NewWebSearchTool returns the "websearch" tool.
func NewWebSearchTool(backend Backend, optFns ...func(o *Options)) tool.Tool {
	opts := options(optFns)

	return newTool("websearch",
		"Search the web for a topic and return the titles and snippets of the top results.",
		backend, KindText, opts.MaxResults)
}

// NewNewsSearchTool returns the "newssearch" tool.
func NewNewsSearchTool(backend Backend, optFns ...func(o *Options)) tool.Tool {
	opts := options(optFns)

	return newTool("newssearch",
		"Search for the latest news on a topic and return the headlines and snippets.",
		backend, KindNews, opts.NewsMaxResults)
}

func options(optFns []func(o *Options)) Options {
	opts := Options{MaxResults: 4, NewsMaxResults: 10}
	for _, fn := range optFns {
		fn(&opts)
	}

	return opts
}

func newTool(name, description string, backend Backend, kind Kind, max int) tool.Tool {
	return tool.NewTypedTool(name, description, func(tc *core.ToolContext, args queryArgs) (any, error) {
		query := strings.TrimSpace(args.Query)
		if query == "" {
			return nil, tool.NewToolError(name, "query must not be empty", tool.CodeInvalidArguments)
		}

		tc.LogInfo("search.query", "backend", backend.Name(), "kind", string(kind), "query", query)

		results, err := backend.Search(tc.Context(), kind, query, max)
		if err != nil {
			return nil, fmt.Errorf("%s search: %w", backend.Name(), err)
		}

		if len(results) > max {
			results = results[:max]
		}

		return FormatResults(query, results), nil
	})
}

// FormatResults renders results as one "title - body" line per hit.
func FormatResults(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No search results found for %q.", query)
	}

	var sb strings.Builder
	for _, r := range results {
		sb.WriteString(r.Title)
		sb.WriteString(" - ")
		sb.WriteString(r.Body)

		if r.URL != "" {
			sb.WriteString(" (")
			sb.WriteString(r.URL)
			sb.WriteString(")")
		}

		sb.WriteString("\n")
	}

	return sb.String()
}
