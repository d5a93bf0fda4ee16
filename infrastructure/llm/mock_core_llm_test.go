package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockCoreLLM is a configurable CoreLLM used by the middleware and client tests.
type MockCoreLLM struct {
	mu sync.Mutex

	Response      string
	TokensIn      int
	TokensOut     int
	Model         string
	ResponseDelay time.Duration

	// Error is returned by every call when set.
	Error error

	// FailUntilAttempt makes the first N calls fail with FailWith (or Error),
	// after which calls succeed.
	FailUntilAttempt int
	FailWith         error

	CallCount      int
	LastPrompt     string
	LastOpts       map[string]any
	CallTimestamps []time.Time
}

// NewMockCoreLLM creates a mock that succeeds with fixed text and token counts.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastPrompt = prompt
	m.LastOpts = opts
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay := m.ResponseDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUntilAttempt > 0 && call <= m.FailUntilAttempt {
		switch {
		case m.FailWith != nil:
			return "", 0, 0, m.FailWith
		case m.Error != nil:
			return "", 0, 0, m.Error
		default:
			return "", 0, 0, errors.New("simulated failure")
		}
	}
	if m.Error != nil {
		return "", 0, 0, m.Error
	}

	return m.Response, m.TokensIn, m.TokensOut, nil
}

func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// GetCallCount returns the number of DoRequest calls.
func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// GetTimeBetweenCalls returns the gap between two recorded calls, or nil when
// either index is out of range.
func (m *MockCoreLLM) GetTimeBetweenCalls(call1, call2 int) *time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if call1 < 0 || call2 < 0 || call1 >= len(m.CallTimestamps) || call2 >= len(m.CallTimestamps) {
		return nil
	}

	d := m.CallTimestamps[call2].Sub(m.CallTimestamps[call1])
	return &d
}
