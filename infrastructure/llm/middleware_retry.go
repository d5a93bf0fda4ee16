package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/logging"
)

// RetryPolicy configures RetryMiddleware.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first. Zero disables retries.
	MaxRetries int

	// BaseDelay doubles per attempt, with ±25% jitter, up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Logger receives one warning per retry. Nil discards.
	Logger *slog.Logger
}

type retryLLM struct {
	next   CoreLLM
	policy RetryPolicy
	logger *slog.Logger
}

// RetryMiddleware retries requests failing with a retryable ProviderError
// (rate limit, server, network or timeout). Other errors, and any error once
// the caller's context is done, are returned immediately.
func RetryMiddleware(policy RetryPolicy) Middleware {
	return func(next CoreLLM) CoreLLM {
		if policy.MaxRetries <= 0 {
			return next
		}
		logger := policy.Logger
		if logger == nil {
			logger = logging.Discard()
		}
		return &retryLLM{next: next, policy: policy, logger: logger}
	}
}

func (r *retryLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		response, tokensIn, tokensOut, err := r.next.DoRequest(ctx, prompt, opts)
		if err == nil {
			return response, tokensIn, tokensOut, nil
		}

		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return "", 0, 0, err
		}
		if attempt == r.policy.MaxRetries {
			break
		}

		delay := r.calculateDelay(attempt)
		r.logger.WarnContext(ctx, "retrying llm request",
			"model", r.next.GetModel(),
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", 0, 0, fmt.Errorf("request failed after %d attempts: %w", r.policy.MaxRetries+1, lastErr)
}

func (r *retryLLM) calculateDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	// #nosec G115 - attempt is bounded between 0 and 30
	delay := r.policy.BaseDelay * time.Duration(1<<uint(attempt))

	// #nosec G404 - jitter does not need a secure source
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - delay/4

	if r.policy.MaxDelay > 0 && delay > r.policy.MaxDelay {
		delay = r.policy.MaxDelay
	}
	return delay
}

func (r *retryLLM) GetModel() string { return r.next.GetModel() }

func (r *retryLLM) SetModel(m string) { r.next.SetModel(m) }
