package domain

// Usage carries token, cost and timing metrics of one agent run.
// Every field is optional; absent values are omitted from JSON.
type Usage struct {
	InputTokens  *int     `json:"input_tokens,omitempty"`
	OutputTokens *int     `json:"output_tokens,omitempty"`
	TotalTokens  *int     `json:"total_tokens,omitempty"`
	Cost         *float64 `json:"cost,omitempty"`

	TimeToFirstTokenSeconds *float64 `json:"time_to_first_token_seconds,omitempty"`
	ModelRunDurationSeconds *float64 `json:"model_run_duration_seconds,omitempty"`
}

// TokenUsage is the subset of Usage reported under "token_usage" by the HTTP API.
type TokenUsage struct {
	InputTokens  *int     `json:"input_tokens,omitempty"`
	OutputTokens *int     `json:"output_tokens,omitempty"`
	TotalTokens  *int     `json:"total_tokens,omitempty"`
	Cost         *float64 `json:"cost,omitempty"`
}

// TokenUsage returns the token and cost fields, or nil when none is set.
func (u *Usage) TokenUsage() *TokenUsage {
	if u == nil {
		return nil
	}
	if u.InputTokens == nil && u.OutputTokens == nil && u.TotalTokens == nil && u.Cost == nil {
		return nil
	}
	return &TokenUsage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  u.TotalTokens,
		Cost:         u.Cost,
	}
}

// Explanation is the output of one explainer agent run.
type Explanation struct {
	// Text is the trimmed bullet-point explanation.
	Text string

	// Usage is nil when the agent reported no metrics.
	Usage *Usage

	// RequestElapsedSeconds is the wall-clock time of the whole run, rounded to 2 dp.
	RequestElapsedSeconds float64
}
