package llm

import (
	"context"
	"fmt"
	"time"
)

type timeoutLLM struct {
	next       CoreLLM
	timeout    time.Duration
	classifier *ErrorClassifier
}

// TimeoutMiddleware gives every request its own deadline. A request that
// runs past it fails with a retryable timeout ProviderError naming the
// provider and the limit; a cancelled caller context is passed through
// unchanged. A non-positive timeout disables the middleware.
func TimeoutMiddleware(provider string, timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		if timeout <= 0 {
			return next
		}
		return &timeoutLLM{
			next:       next,
			timeout:    timeout,
			classifier: &ErrorClassifier{Provider: provider},
		}
	}
}

func (t *timeoutLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, in, out, err := t.next.DoRequest(callCtx, prompt, opts)
	if err != nil && ctx.Err() == nil && callCtx.Err() == context.DeadlineExceeded {
		pe := t.classifier.ClassifyContextError(callCtx.Err())
		pe.Message = fmt.Sprintf("request timed out after %s", t.timeout)
		return "", 0, 0, pe
	}
	return resp, in, out, err
}

func (t *timeoutLLM) GetModel() string { return t.next.GetModel() }

func (t *timeoutLLM) SetModel(m string) { t.next.SetModel(m) }
