package domain

// Verdict is the structured outcome of one LLM judge call.
type Verdict struct {
	// Score is the judge's 1-5 rating. Zero means the judge omitted the score
	// or returned one that could not be read as a number.
	Score int `json:"score"`

	// Reasoning is the judge's one-sentence justification.
	Reasoning string `json:"reasoning"`
}

// Valid reports whether the score falls inside the judge rubric.
func (v Verdict) Valid() bool { return v.Score >= 1 && v.Score <= 5 }
