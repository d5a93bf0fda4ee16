package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimitedLLM paces requests with a token bucket shared by every client
// the middleware wraps.
type rateLimitedLLM struct {
	next       CoreLLM
	limiter    *rate.Limiter
	classifier *ErrorClassifier
}

// RateLimitMiddleware waits for a token before each request. limit is in
// requests per second and burst allows short spikes. A wait cut short by the
// caller's context fails with a classified context ProviderError, so a
// deadline reads as a timeout. A non-positive limit disables pacing.
func RateLimitMiddleware(provider string, limit rate.Limit, burst int) Middleware {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)
	classifier := &ErrorClassifier{Provider: provider}

	return func(next CoreLLM) CoreLLM {
		if limit <= 0 {
			return next
		}
		return &rateLimitedLLM{next: next, limiter: limiter, classifier: classifier}
	}
}

func (r *rateLimitedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if isContextError(err) {
			pe := r.classifier.ClassifyContextError(err)
			pe.Message = "waiting for rate limiter: " + pe.Message
			return "", 0, 0, pe
		}
		// Wait also fails when the deadline is shorter than the next token.
		return "", 0, 0, NewProviderError(r.classifier.Provider, ErrorTypeRateLimit, 0, "rate limiter", err)
	}
	return r.next.DoRequest(ctx, prompt, opts)
}

func (r *rateLimitedLLM) GetModel() string { return r.next.GetModel() }

func (r *rateLimitedLLM) SetModel(m string) { r.next.SetModel(m) }
