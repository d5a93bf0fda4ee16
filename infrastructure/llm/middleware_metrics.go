package llm

import (
	"context"
	"errors"
	"time"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

// metricsLLM records latency, request counts and token totals per provider.
type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
	provider  string
}

// MetricsMiddleware creates middleware that reports each request to collector
// under the given provider label.
func MetricsMiddleware(collector ports.MetricsCollector, provider string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{
			next:      next,
			collector: collector,
			provider:  provider,
		}
	}
}

// DoRequest forwards the request and records the outcome.
// Status is "success", "timeout" or the ProviderError type, falling back to "error".
func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)

	if m.collector == nil {
		return response, tokensIn, tokensOut, err
	}

	labels := map[string]string{
		"provider": m.provider,
		"model":    m.next.GetModel(),
		"status":   requestStatus(ctx, err),
	}

	m.collector.RecordHistogram("llm_latency_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("llm_requests_total", 1, labels)

	if err == nil {
		m.collector.RecordCounter("llm_tokens_total", float64(tokensIn), m.tokenLabels(labels["model"], "input"))
		m.collector.RecordCounter("llm_tokens_total", float64(tokensOut), m.tokenLabels(labels["model"], "output"))
	}

	return response, tokensIn, tokensOut, err
}

func (m *metricsLLM) tokenLabels(model, tokenType string) map[string]string {
	return map[string]string{"provider": m.provider, "model": model, "token_type": tokenType}
}

func requestStatus(ctx context.Context, err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timeout"
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Type != ErrorTypeUnknown {
		return pe.Type.String()
	}
	return "error"
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
