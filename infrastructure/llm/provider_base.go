package llm

import (
	"sync"
	"unicode/utf8"
)

// DefaultMaxTokens caps completions when the caller sets no max_tokens.
const DefaultMaxTokens = 1024

// BaseProvider holds the model name a provider sends by default. SetModel
// may race with in-flight requests, hence the lock.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the name of the model currently configured for the provider.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name for the provider.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the provider-neutral form of a request's option map.
type RequestOptions struct {
	MaxTokens int
	Model     string

	// Temperature and TopP are nil when the provider default applies.
	Temperature *float64
	TopP        *float64

	System string

	// Schema requests a JSON reply conforming to it. Nil means free text.
	Schema *ResponseSchema

	// Extra holds any provider-specific options that are not part of the standardized set.
	Extra map[string]any
}

// ParseRequestOptions extracts and validates LLM request parameters from a map,
// using defaults for missing or invalid entries.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: ExtractOptionalInt(opts, OptionMaxTokens, DefaultMaxTokens, IsPositiveInt),
		Model:     ExtractOptionalString(opts, OptionModel, defaultModel, IsNonEmptyString),
		System:    ExtractOptionalString(opts, OptionSystem, "", nil),
		Schema:    schemaFromOptions(opts),
		Extra:     make(map[string]any),
	}

	if temp := ExtractOptionalFloat64(opts, OptionTemperature, -1, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}

	if topP := ExtractOptionalFloat64(opts, OptionTopP, -1, IsValidTopP); topP != -1 {
		options.TopP = &topP
	}

	for k, v := range opts {
		switch k {
		case OptionMaxTokens, OptionModel, OptionSystem, OptionTemperature, OptionTopP, OptionResponseSchema:
		default:
			options.Extra[k] = v
		}
	}

	return options
}

// charsPerToken is the rough ratio for English prose.
const charsPerToken = 4

// estimateTokens approximates the token count of text from its rune count, so
// posts in scripts with multi-byte characters are not overcounted.
func estimateTokens(text string) int {
	return utf8.RuneCountInString(text) / charsPerToken
}

// reportedOrEstimated prefers the count a provider reported and falls back
// to an estimate when the provider omitted usage.
func reportedOrEstimated(reported int, text string) int {
	if reported > 0 {
		return reported
	}
	return estimateTokens(text)
}
