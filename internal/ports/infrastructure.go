package ports

import (
	"context"
	"time"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
)

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider.
	// It returns the generated text and any error encountered.
	//
	// The options map allows flexibility for different providers without
	// changing the interface. Common options include:
	//   - "max_tokens": int
	//   - "temperature": float64 (0.0-1.0)
	//   - "response_schema": *llm.ResponseSchema, requesting a JSON reply
	//     that conforms to the schema
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// CompleteWithUsage behaves like Complete and also reports the input and
	// output token counts of the call.
	CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (output string, tokensIn, tokensOut int, err error)

	// EstimateTokens calculates the approximate token count for a given text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// Embedder turns text into an embedding vector.
// Every call issues a request; implementations do not cache.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// PostFetcher reads a Bluesky post by its bsky.app URL.
// A post that does not exist or is blocked is not an error: it is reported
// through the Kind of the returned thread.
type PostFetcher interface {
	FetchThread(ctx context.Context, postURL string) (domain.Thread, error)
}

// Explainer runs the explainer agent for one post URL.
type Explainer interface {
	Explain(ctx context.Context, postURL string) (domain.Explanation, error)
}

// SearchKind selects the search vertical.
type SearchKind string

const (
	SearchWeb  SearchKind = "web"
	SearchNews SearchKind = "news"
)

// SearchResult is one hit returned by a WebSearcher.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearcher runs web and news searches for the agent.
type WebSearcher interface {
	Search(ctx context.Context, kind SearchKind, query string, maxResults int) ([]SearchResult, error)
}

// Judge scores an explanation with an LLM. Both methods return a verdict with
// a zero score when the judge reply carries no usable score.
type Judge interface {
	// Golden compares the explanation against a reference explanation.
	Golden(ctx context.Context, postText, expected, explanation string) (domain.Verdict, error)

	// Relevance scores the explanation against the post alone.
	Relevance(ctx context.Context, postText, explanation string) (domain.Verdict, error)
}

// SimilarityScorer compares a reference explanation with a produced one.
type SimilarityScorer interface {
	// Semantic returns the embedding cosine similarity in [-1, 1], rounded to 4 dp.
	Semantic(ctx context.Context, expected, actual string) (float64, error)

	// Lexical returns the normalised edit-distance similarity in [0, 1], rounded to 4 dp.
	Lexical(expected, actual string) float64
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations integrate with observability platforms like Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like judge scores and
	// similarities.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
