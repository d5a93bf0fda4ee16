package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		kind    ErrorKind
		op      string
		err     error
		wantMsg string
	}{
		{
			name:    "fetch error",
			kind:    KindFetch,
			op:      "FetchPost",
			err:     errors.New("post not found"),
			wantMsg: "fetch: post not found",
		},
		{
			name:    "agent error",
			kind:    KindAgent,
			op:      "Explain",
			err:     errors.New("openai error (HTTP 500)"),
			wantMsg: "agent: openai error (HTTP 500)",
		},
		{
			name:    "embedding error uses similarity prefix",
			kind:    KindEmbedding,
			op:      "Embed",
			err:     errors.New("timeout"),
			wantMsg: "similarity: timeout",
		},
		{
			name:    "nil underlying error",
			kind:    KindConfig,
			op:      "Load",
			wantMsg: "config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewError(tt.kind, tt.op, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error(), "Error message mismatch")
			assert.Equal(t, tt.kind, err.Kind, "Kind mismatch")
			assert.Equal(t, tt.op, err.Op, "Op mismatch")
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err), "Should unwrap to underlying error")
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	t.Run("direct error", func(t *testing.T) {
		err := NewError(KindValidation, "Explain", errors.New("bad url"))
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("wrapped error", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", NewError(KindJudge, "Golden", errors.New("boom")))
		assert.Equal(t, KindJudge, KindOf(err))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	})

	t.Run("nil error", func(t *testing.T) {
		assert.Equal(t, KindUnknown, KindOf(nil))
	})
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "fetch", KindFetch.String())
	assert.Equal(t, "agent", KindAgent.String())
	assert.Equal(t, "judge", KindJudge.String())
	assert.Equal(t, "config", KindConfig.String())
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "unknown", ErrorKind(99).String())
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("Config")
		err.AddError("missing openai api key")

		assert.Equal(t, "validation error for Config: missing openai api key", err.Error())
		assert.True(t, err.HasErrors(), "Should have errors")
		assert.Len(t, err.Errors, 1, "Should have one error")
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("Config")
		err.AddError("missing bluesky email")
		err.AddError("missing bluesky password")

		assert.Equal(t, "validation errors for Config: missing bluesky email; missing bluesky password", err.Error())
		assert.Len(t, err.Errors, 2, "Should have two errors")
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("Config")

		assert.False(t, err.HasErrors(), "Should not have errors")
		assert.Empty(t, err.Errors, "Errors slice should be empty")
	})
}

func TestCommonDomainErrors(t *testing.T) {
	tests := []struct {
		err     error
		message string
	}{
		{ErrMissingReference, "missing post_url/post_id"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error(), "Error message mismatch")
		})
	}
}
