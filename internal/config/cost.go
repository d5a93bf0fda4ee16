package config

import "math"

// ModelCost is a model's price in USD per million tokens.
type ModelCost struct {
	Input  float64 `yaml:"input" validate:"gte=0"`
	Output float64 `yaml:"output" validate:"gte=0"`
}

// DefaultCosts returns the built-in price table.
func DefaultCosts() map[string]ModelCost {
	return map[string]ModelCost{
		"gpt-5.2":       {Input: 1.75, Output: 14.00},
		"gpt-5.2-pro":   {Input: 21.00, Output: 168.00},
		"gpt-5-mini":    {Input: 0.25, Output: 2.00},
		"gpt-4o":        {Input: 2.50, Output: 10.00},
		"gpt-4o-mini":   {Input: 0.15, Output: 0.60},
		"gpt-4.1":       {Input: 3.00, Output: 12.00},
		"gpt-4.1-mini":  {Input: 0.80, Output: 3.20},
		"gpt-4.1-nano":  {Input: 0.20, Output: 0.80},
		"gpt-4-turbo":   {Input: 10.00, Output: 30.00},
		"gpt-3.5-turbo": {Input: 0.50, Output: 1.50},
	}
}

// EstimateCost returns the USD cost of a call rounded to 4 dp.
// ok is false for models missing from the table.
func (c *Config) EstimateCost(model string, inputTokens, outputTokens int) (cost float64, ok bool) {
	return EstimateCost(c.Costs, model, inputTokens, outputTokens)
}

// EstimateCost prices a call against table.
func EstimateCost(table map[string]ModelCost, model string, inputTokens, outputTokens int) (float64, bool) {
	price, ok := table[model]
	if !ok {
		return 0, false
	}
	cost := (float64(inputTokens)*price.Input + float64(outputTokens)*price.Output) / 1e6
	return math.Round(cost*1e4) / 1e4, true
}
