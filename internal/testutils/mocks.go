package testutils

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

// MockPostFetcher serves threads from a map keyed by post URL. Unknown URLs
// return a not-found thread.
type MockPostFetcher struct {
	mu      sync.Mutex
	Threads map[string]domain.Thread
	Err     error
	calls   []string
}

// NewMockPostFetcher creates an empty fetcher.
func NewMockPostFetcher() *MockPostFetcher {
	return &MockPostFetcher{Threads: make(map[string]domain.Thread)}
}

// AddPost registers a readable post with the given text.
func (m *MockPostFetcher) AddPost(postURL, handle, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Threads[postURL] = domain.Thread{
		Kind: domain.ThreadFound,
		URI:  "at://did:plc:mock/app.bsky.feed.post/" + handle,
		Post: &domain.Post{AuthorHandle: handle, Text: text},
	}
}

func (m *MockPostFetcher) FetchThread(ctx context.Context, postURL string) (domain.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, postURL)
	if m.Err != nil {
		return domain.Thread{}, m.Err
	}
	if t, ok := m.Threads[postURL]; ok {
		return t, nil
	}
	return domain.Thread{Kind: domain.ThreadNotFound, URI: postURL}, nil
}

// Calls returns the URLs fetched so far.
func (m *MockPostFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockExplainer returns canned explanations keyed by post URL, falling back
// to Default.
type MockExplainer struct {
	mu           sync.Mutex
	Explanations map[string]domain.Explanation
	Default      domain.Explanation
	Errs         map[string]error
	calls        []string
}

// NewMockExplainer creates an explainer whose default answer is text.
func NewMockExplainer(text string) *MockExplainer {
	return &MockExplainer{
		Explanations: make(map[string]domain.Explanation),
		Default:      domain.Explanation{Text: text, RequestElapsedSeconds: 0.5},
		Errs:         make(map[string]error),
	}
}

func (m *MockExplainer) Explain(ctx context.Context, postURL string) (domain.Explanation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Explanation{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, postURL)
	if err, ok := m.Errs[postURL]; ok {
		return domain.Explanation{}, err
	}
	if e, ok := m.Explanations[postURL]; ok {
		return e, nil
	}
	return m.Default, nil
}

// Calls returns the URLs explained so far.
func (m *MockExplainer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockJudge returns fixed verdicts and records its inputs.
type MockJudge struct {
	mu               sync.Mutex
	GoldenVerdict    domain.Verdict
	RelevanceVerdict domain.Verdict
	Err              error

	GoldenCalls    int
	RelevanceCalls int
	LastPostText   string
}

// NewMockJudge creates a judge scoring 4 in golden mode and 3 in relevance mode.
func NewMockJudge() *MockJudge {
	return &MockJudge{
		GoldenVerdict:    domain.Verdict{Score: 4, Reasoning: "Close to the reference."},
		RelevanceVerdict: domain.Verdict{Score: 3, Reasoning: "Mostly relevant."},
	}
}

func (m *MockJudge) Golden(ctx context.Context, postText, expected, explanation string) (domain.Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GoldenCalls++
	m.LastPostText = postText
	if m.Err != nil {
		return domain.Verdict{}, m.Err
	}
	return m.GoldenVerdict, nil
}

func (m *MockJudge) Relevance(ctx context.Context, postText, explanation string) (domain.Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RelevanceCalls++
	m.LastPostText = postText
	if m.Err != nil {
		return domain.Verdict{}, m.Err
	}
	return m.RelevanceVerdict, nil
}

// MockSimilarity returns fixed scores.
type MockSimilarity struct {
	SemanticScore float64
	LexicalScore  float64
	Err           error
}

func (m *MockSimilarity) Semantic(ctx context.Context, expected, actual string) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.SemanticScore, nil
}

func (m *MockSimilarity) Lexical(expected, actual string) float64 { return m.LexicalScore }

// MockEmbedder maps known texts to fixed vectors. Unknown texts embed to a
// vector derived from their length so distinct inputs stay distinct.
type MockEmbedder struct {
	mu      sync.Mutex
	Vectors map[string][]float64
	Err     error
	Calls   int
}

// NewMockEmbedder creates an embedder with no registered vectors.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Vectors: make(map[string][]float64)}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if v, ok := m.Vectors[text]; ok {
		return v, nil
	}
	return []float64{float64(len(text)), 1}, nil
}

// MockSearcher returns canned results per kind.
type MockSearcher struct {
	mu      sync.Mutex
	Results map[ports.SearchKind][]ports.SearchResult
	Err     error
	Queries []string
}

// NewMockSearcher creates a searcher with no results.
func NewMockSearcher() *MockSearcher {
	return &MockSearcher{Results: make(map[ports.SearchKind][]ports.SearchResult)}
}

func (m *MockSearcher) Search(ctx context.Context, kind ports.SearchKind, query string, maxResults int) ([]ports.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, string(kind)+":"+query)
	if m.Err != nil {
		return nil, m.Err
	}
	res := m.Results[kind]
	if maxResults > 0 && len(res) > maxResults {
		res = res[:maxResults]
	}
	return res, nil
}

// MockMetricsCollector records every metric under "name:k=v,..." with labels
// sorted by key.
type MockMetricsCollector struct {
	mu         sync.Mutex
	Counters   map[string]float64
	Gauges     map[string]float64
	Histograms map[string][]float64
	Latencies  map[string][]time.Duration
}

// NewMockMetricsCollector creates an empty collector.
func NewMockMetricsCollector() *MockMetricsCollector {
	return &MockMetricsCollector{
		Counters:   make(map[string]float64),
		Gauges:     make(map[string]float64),
		Histograms: make(map[string][]float64),
		Latencies:  make(map[string][]time.Duration),
	}
}

// MetricKey builds the key the collector stores a metric under.
func MetricKey(name string, labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, labels[k]))
	}
	return name + ":" + strings.Join(parts, ",")
}

func (m *MockMetricsCollector) RecordLatency(operation string, d time.Duration, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := MetricKey(operation, labels)
	m.Latencies[k] = append(m.Latencies[k], d)
}

func (m *MockMetricsCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[MetricKey(metric, labels)] += value
}

func (m *MockMetricsCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gauges[MetricKey(metric, labels)] = value
}

func (m *MockMetricsCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := MetricKey(metric, labels)
	m.Histograms[k] = append(m.Histograms[k], value)
}

// Counter returns the accumulated value of a counter.
func (m *MockMetricsCollector) Counter(name string, labels map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counters[MetricKey(name, labels)]
}

var (
	_ ports.PostFetcher      = (*MockPostFetcher)(nil)
	_ ports.Explainer        = (*MockExplainer)(nil)
	_ ports.Judge            = (*MockJudge)(nil)
	_ ports.SimilarityScorer = (*MockSimilarity)(nil)
	_ ports.Embedder         = (*MockEmbedder)(nil)
	_ ports.WebSearcher      = (*MockSearcher)(nil)
	_ ports.MetricsCollector = (*MockMetricsCollector)(nil)
)
