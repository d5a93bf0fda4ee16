package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

// MockLLMClient is a deterministic LLM client for tests. Responses are chosen
// by the first registered substring found in the prompt; the empty pattern is
// the fallback.
type MockLLMClient struct {
	mu sync.Mutex

	model     string
	patterns  []string
	responses map[string]string

	// Err, when set, is returned by every call.
	Err error

	// TokensIn and TokensOut are reported by CompleteWithUsage.
	TokensIn  int
	TokensOut int

	prompts []string
	options []map[string]any
}

// NewMockLLMClient creates a mock that answers every prompt with a valid
// judge verdict unless other responses are registered.
func NewMockLLMClient(model string) *MockLLMClient {
	m := &MockLLMClient{
		model:     model,
		responses: make(map[string]string),
		TokensIn:  10,
		TokensOut: 20,
	}
	m.SetResponse("", `{"score": 4, "reasoning": "Mock verdict."}`)
	return m
}

// SetResponse registers the reply for prompts containing pattern. Patterns
// are matched in registration order.
func (m *MockLLMClient) SetResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.responses[pattern]; !ok && pattern != "" {
		m.patterns = append(m.patterns, pattern)
	}
	m.responses[pattern] = response
}

func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	out, _, _, err := m.CompleteWithUsage(ctx, prompt, options)
	return out, err
}

func (m *MockLLMClient) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	m.options = append(m.options, options)

	if m.Err != nil {
		return "", 0, 0, m.Err
	}
	return m.match(prompt), m.TokensIn, m.TokensOut, nil
}

func (m *MockLLMClient) match(prompt string) string {
	for _, p := range m.patterns {
		if strings.Contains(prompt, p) {
			return m.responses[p]
		}
	}
	return m.responses[""]
}

// EstimateTokens approximates one token per four characters.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	tokens := len(text) / 4
	if tokens == 0 {
		tokens = 1
	}
	return tokens, nil
}

func (m *MockLLMClient) GetModel() string { return m.model }

// Prompts returns the prompts received so far.
func (m *MockLLMClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastOptions returns the options of the most recent call, or nil.
func (m *MockLLMClient) LastOptions() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.options) == 0 {
		return nil
	}
	return m.options[len(m.options)-1]
}

// CallCount returns the number of calls received.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

var _ ports.LLMClient = (*MockLLMClient)(nil)
