// Package agents implements the four research workers (search, analysis,
// summarization and citation formatting) as capability handlers.
package agents

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

// DefaultMaxResults applies when a search request does not set maxResults.
const DefaultMaxResults = 5

// SearchProvider returns at most maxResults records for query.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]workers.SearchRecord, error)
}

// SearchProviderFunc adapts a function to SearchProvider.
type SearchProviderFunc func(ctx context.Context, query string, maxResults int) ([]workers.SearchRecord, error)

func (f SearchProviderFunc) Search(ctx context.Context, query string, maxResults int) ([]workers.SearchRecord, error) {
	return f(ctx, query, maxResults)
}

// MockProvider returns one simulated record per query. It needs no network
// and is the default provider.
type MockProvider struct{}

func (MockProvider) Search(_ context.Context, query string, maxResults int) ([]workers.SearchRecord, error) {
	records := []workers.SearchRecord{{
		Title:   "Search Result for: " + query,
		URL:     "https://example.com/search?q=" + encodeQueryComponent(query),
		Snippet: fmt.Sprintf("This is a search result related to \"%s\". In a production environment, this would fetch real results from search APIs.", query),
		Source:  "web",
	}}
	if maxResults < len(records) {
		records = records[:max(maxResults, 0)]
	}
	return records, nil
}

// encodeQueryComponent escapes like a URI component: spaces become %20.
func encodeQueryComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// SearchHandler serves the search capability from p.
func SearchHandler(p SearchProvider) workers.Handler {
	return workers.Typed(func(ctx context.Context, req workers.SearchRequest) ([]workers.SearchRecord, error) {
		limit := req.MaxResults
		if limit == 0 {
			limit = DefaultMaxResults
		}
		records, err := p.Search(ctx, req.Query, limit)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", req.Query, err)
		}
		if len(records) > limit {
			records = records[:limit]
		}
		if records == nil {
			records = []workers.SearchRecord{}
		}
		return records, nil
	})
}
