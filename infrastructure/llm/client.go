// Package llm provides a unified completion client over OpenAI, Anthropic and
// Google models, with middleware for metrics, tracing, timeouts, rate limiting
// and retries, structured JSON completions and OpenAI embeddings.
//
// Providers implement CoreLLM and register a factory in init. NewClient wraps
// the provider in the configured middleware and returns a ports.LLMClient:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: cfg.OpenAI.APIKey,
//	    Model:  "gpt-4o-mini",
//	    Middleware: []llm.Middleware{
//	        llm.TracingMiddleware("judge"),
//	        llm.MetricsMiddleware(collector, "openai"),
//	    },
//	})
//	reply, err := client.Complete(ctx, prompt, map[string]any{
//	    llm.OptionResponseSchema: llm.VerdictSchema(),
//	})
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

// CoreLLM defines the minimal interface that LLM providers must implement.
// Middleware wraps any conforming implementation.
type CoreLLM interface {
	// DoRequest sends a prompt to the LLM provider and returns the response
	// text with input and output token counts.
	DoRequest(
		ctx context.Context,
		prompt string,
		opts map[string]any,
	) (
		response string,
		tokensIn, tokensOut int,
		err error,
	)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model to use for subsequent requests.
	SetModel(model string)
}

// ClientConfig holds all configuration options for creating an LLM client.
type ClientConfig struct {
	// APIKey authenticates requests to the LLM provider.
	APIKey string

	// Model specifies which LLM model to use for requests.
	Model string

	// BaseURL overrides the default API endpoint for the provider.
	BaseURL string

	// Timeout sets the HTTP client timeout. Zero leaves the SDK default.
	Timeout time.Duration

	// HTTPClient replaces the SDK's HTTP client when set. Tests point it at
	// httptest servers.
	HTTPClient *http.Client

	// Middleware is applied in the order specified; the first entry is the outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM implementation to add cross-cutting functionality.
type Middleware func(CoreLLM) CoreLLM

// Client implements ports.LLMClient on top of a middleware-wrapped provider.
type Client struct {
	core CoreLLM
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient creates a new LLM client with the specified provider and configuration.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return newClientFromCore(core, config.Middleware), nil
}

// NewClientFromCore wraps an existing CoreLLM. It is used to put middleware
// around test doubles.
func NewClientFromCore(core CoreLLM, middleware ...Middleware) *Client {
	return newClientFromCore(core, middleware)
}

func newClientFromCore(core CoreLLM, middleware []Middleware) *Client {
	// Apply middleware in reverse order so the first middleware is the outermost.
	for i := len(middleware) - 1; i >= 0; i-- {
		core = middleware[i](core)
	}
	return &Client{core: core}
}

// Complete sends a prompt to the LLM and returns the response text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt to the LLM and also returns token counts.
func (c *Client) CompleteWithUsage(
	ctx context.Context,
	prompt string,
	options map[string]any,
) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens returns an approximate token count for the given text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return estimateTokens(text), nil
}

// GetModel returns the currently configured model name from the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider under providerType.
// Registering an existing name replaces the previous factory.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}

// HasProvider reports whether a factory is registered for providerType.
func HasProvider(providerType string) bool {
	_, ok := providerFactories[providerType]
	return ok
}
