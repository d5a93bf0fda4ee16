// Package search queries the DuckDuckGo HTML endpoint for web and news
// results used as context by the explainer agent.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/logging"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

const (
	// DefaultBaseURL is the JavaScript-free DuckDuckGo frontend.
	DefaultBaseURL = "https://html.duckduckgo.com"

	// DefaultMaxResults caps results when the caller passes a non-positive limit.
	DefaultMaxResults = 5

	defaultUserAgent = "Mozilla/5.0 (compatible; bluesky-explainer/1.0)"
)

var (
	// ErrNoResults is returned when a query yields no organic results.
	ErrNoResults = errors.New("no results")

	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("query is required")
)

// Searcher implements ports.WebSearcher.
type Searcher struct {
	baseURL    string
	userAgent  string
	maxResults int
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

var _ ports.WebSearcher = (*Searcher)(nil)

// Option configures the Searcher during construction.
type Option func(*Searcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Searcher) { s.httpClient = c }
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// WithTimeout sets a timeout on a copy of the HTTP client, whatever the
// option order.
func WithTimeout(d time.Duration) Option {
	return func(s *Searcher) { s.timeout = d }
}

// WithUserAgent overrides the User-Agent header. DuckDuckGo rejects empty agents.
func WithUserAgent(ua string) Option {
	return func(s *Searcher) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithMaxResults sets the default result cap.
func WithMaxResults(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// New creates a Searcher against baseURL, or DefaultBaseURL when empty.
func New(baseURL string, opts ...Option) *Searcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	s := &Searcher{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  defaultUserAgent,
		maxResults: DefaultMaxResults,
		httpClient: &http.Client{},
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timeout > 0 {
		copied := *s.httpClient
		copied.Timeout = s.timeout
		s.httpClient = &copied
	}
	return s
}

// Search runs query and returns at most maxResults results. News searches
// are restricted to the past month.
func (s *Searcher) Search(ctx context.Context, kind ports.SearchKind, query string, maxResults int) ([]ports.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	form := url.Values{"q": {query}, "kl": {"wt-wt"}}
	switch kind {
	case ports.SearchNews:
		form.Set("q", query+" news")
		form.Set("df", "m")
	case ports.SearchWeb, "":
	default:
		return nil, fmt.Errorf("unknown search kind %q", kind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/html/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("search: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.userAgent)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, ports.NewServiceError("search", string(kind), 0, err)
	}
	defer resp.Body.Close()

	// DuckDuckGo answers throttled clients with 202 and a challenge page.
	if resp.StatusCode == http.StatusAccepted {
		return nil, ports.NewServiceError("search", string(kind), resp.StatusCode, ports.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ports.NewServiceError("search", string(kind), resp.StatusCode, nil)
	}

	results, err := parseResults(resp.Body, maxResults)
	if err != nil {
		return nil, ports.NewServiceError("search", string(kind), resp.StatusCode,
			fmt.Errorf("%w: %v", ports.ErrInvalidResponse, err))
	}

	s.logger.DebugContext(ctx, "search completed",
		"kind", kind,
		"query", query,
		"results", len(results),
		"duration", time.Since(start),
	)

	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}
