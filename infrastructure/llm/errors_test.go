package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ProviderError
		want string
	}{
		{
			name: "full",
			err:  NewProviderError("openai", ErrorTypeRateLimit, 429, "slow down", errors.New("raw")),
			want: "openai error (HTTP 429) [rate_limit]: slow down: raw",
		},
		{
			name: "no status or type",
			err:  NewProviderError("google", ErrorTypeUnknown, 0, "request failed", nil),
			want: "google error: request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorClassifier_ClassifyHTTPError(t *testing.T) {
	ec := &ErrorClassifier{Provider: "openai"}

	tests := []struct {
		status    int
		want      ErrorType
		retryable bool
	}{
		{http.StatusUnauthorized, ErrorTypeAuthentication, false},
		{http.StatusForbidden, ErrorTypeAuthentication, false},
		{http.StatusTooManyRequests, ErrorTypeRateLimit, true},
		{http.StatusNotFound, ErrorTypeNotFound, false},
		{http.StatusRequestTimeout, ErrorTypeTimeout, true},
		{http.StatusGatewayTimeout, ErrorTypeTimeout, true},
		{http.StatusBadGateway, ErrorTypeServerError, true},
		{http.StatusUnprocessableEntity, ErrorTypeBadRequest, false},
		{0, ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			pe := ec.ClassifyHTTPError(tt.status, "msg", nil)
			assert.Equal(t, tt.want, pe.Type)
			assert.Equal(t, tt.retryable, pe.IsRetryable())
		})
	}
}

func TestErrorClassifier_ClassifyContextError(t *testing.T) {
	ec := &ErrorClassifier{Provider: "anthropic"}

	deadline := ec.ClassifyContextError(fmt.Errorf("post: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrorTypeTimeout, deadline.Type)
	assert.ErrorIs(t, deadline, context.DeadlineExceeded)

	canceled := ec.ClassifyContextError(context.Canceled)
	assert.Equal(t, ErrorTypeNetwork, canceled.Type)

	other := ec.ClassifyContextError(errors.New("x"))
	assert.Equal(t, ErrorTypeUnknown, other.Type)
}

func TestIsRetryable(t *testing.T) {
	wrapped := fmt.Errorf("judge: %w", NewProviderError("openai", ErrorTypeServerError, 500, "", nil))
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}
