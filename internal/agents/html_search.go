package agents

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/circuitbreaker"
	"github.com/Kocoro-lab/research-orchestrator/internal/tracing"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

const (
	defaultHTMLEndpoint  = "https://html.duckduckgo.com/html/"
	defaultHTMLUserAgent = "ResearchOrchestrator/1.0 (+search)"
)

// HTMLConfig configures the HTML results-page provider.
type HTMLConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// HTMLProvider scrapes a DuckDuckGo-style HTML results page.
type HTMLProvider struct {
	endpoint  string
	userAgent string
	client    *circuitbreaker.HTTPWrapper
	logger    *zap.Logger
}

// NewHTMLProvider builds a provider whose requests go through a circuit breaker.
func NewHTMLProvider(cfg HTMLConfig, logger *zap.Logger) *HTMLProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultHTMLEndpoint
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultHTMLUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := &http.Client{Timeout: cfg.Timeout}
	return &HTMLProvider{
		endpoint:  cfg.Endpoint,
		userAgent: cfg.UserAgent,
		client:    circuitbreaker.NewHTTPWrapper(client, "search-html", "search", logger),
		logger:    logger,
	}
}

func (p *HTMLProvider) Search(ctx context.Context, query string, maxResults int) ([]workers.SearchRecord, error) {
	if maxResults <= 0 {
		return []workers.SearchRecord{}, nil
	}
	endpoint, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	endpoint.RawQuery = q.Encode()

	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodGet, endpoint.String())
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request: HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}
	records := parseResults(doc, maxResults)
	p.logger.Debug("HTML search completed",
		zap.String("query", query),
		zap.Int("results", len(records)),
	)
	return records, nil
}

// parseResults reads result blocks in page order, skipping entries without
// a usable absolute link.
func parseResults(doc *goquery.Document, limit int) []workers.SearchRecord {
	records := make([]workers.SearchRecord, 0, limit)
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		target := resolveResultLink(href)
		if title == "" || target == "" {
			return true
		}
		records = append(records, workers.SearchRecord{
			Title:   title,
			URL:     target,
			Snippet: strings.Join(strings.Fields(s.Find(".result__snippet").Text()), " "),
			Source:  "web",
		})
		return len(records) < limit
	})
	return records
}

// resolveResultLink unwraps redirect links of the form
// //duckduckgo.com/l/?uddg=<target> and returns "" for anything that is not
// an absolute http(s) URL.
func resolveResultLink(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		if u, err = url.Parse(target); err != nil {
			return ""
		}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.String()
}
