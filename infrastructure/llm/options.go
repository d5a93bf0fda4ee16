package llm

import (
	"cmp"
	"fmt"
	"math"
	"net/url"
	"time"
)

// Option keys understood by every provider. Unknown keys are passed to the
// provider through RequestOptions.Extra.
const (
	OptionMaxTokens      = "max_tokens"
	OptionModel          = "model"
	OptionSystem         = "system"
	OptionTemperature    = "temperature"
	OptionTopP           = "top_p"
	OptionResponseSchema = "response_schema"
)

// Accepted parameter ranges. MaxTemperature follows Gemini, the most
// permissive provider; Anthropic clamps further.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinTopP        = 0.0
	MaxTopP        = 1.0
	MinTimeout     = 1 * time.Second
	MaxTimeout     = 10 * time.Minute
)

func IsValidTemperature(v float64) bool { return v >= MinTemperature && v <= MaxTemperature }

func IsValidTopP(v float64) bool { return v >= MinTopP && v <= MaxTopP }

func IsPositiveInt(v int) bool { return v > 0 }

func IsNonEmptyString(v string) bool { return v != "" }

// ExtractOptionalInt returns opts[key] as an int, or defaultVal when the key
// is absent, not an integral number or rejected by validator.
func ExtractOptionalInt(opts map[string]any, key string, defaultVal int, validator func(int) bool) int {
	raw, ok := opts[key]
	if !ok {
		return defaultVal
	}
	v, ok := SafeInt(raw)
	if !ok || (validator != nil && !validator(v)) {
		return defaultVal
	}
	return v
}

// ExtractOptionalString returns opts[key] as a string, or defaultVal when the
// key is absent, not a string or rejected by validator.
func ExtractOptionalString(opts map[string]any, key string, defaultVal string, validator func(string) bool) string {
	v, ok := opts[key].(string)
	if !ok || (validator != nil && !validator(v)) {
		return defaultVal
	}
	return v
}

// ExtractOptionalFloat64 returns opts[key] widened to float64, or defaultVal
// when the key is absent, not numeric or rejected by validator.
func ExtractOptionalFloat64(opts map[string]any, key string, defaultVal float64, validator func(float64) bool) float64 {
	var v float64
	switch n := opts[key].(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	default:
		return defaultVal
	}
	if validator != nil && !validator(v) {
		return defaultVal
	}
	return v
}

// SafeInt converts a numeric option to int. Callers passing decoded JSON hand
// in float64, so fractional values truncate; NaN and out-of-range values fail.
func SafeInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		if int64(int(v)) != v {
			return 0, false
		}
		return int(v), true
	case float32:
		return SafeInt(float64(v))
	case float64:
		if math.IsNaN(v) || v > math.MaxInt || v < math.MinInt {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// Clamp limits v to [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// ValidateBaseURL normalises an endpoint override. An empty string selects
// the provider default.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, but got: %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return u.String(), nil
}

// ValidateTimeout clamps timeout into [MinTimeout, MaxTimeout]. Non-positive
// values return zero, leaving the SDK default.
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	return Clamp(timeout, MinTimeout, MaxTimeout)
}
