package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Mode selects which metrics an evaluation run computes.
type Mode string

const (
	// ModeGolden compares explanations against human-authored references
	// (semantic similarity, lexical similarity, golden judge).
	ModeGolden Mode = "golden"

	// ModeNoGolden scores explanations for relevance only; the LLM judge is
	// the only evaluation signal in this mode.
	ModeNoGolden Mode = "no_golden"
)

// Item is one fixture entry. Items are immutable once loaded.
type Item struct {
	// ID optionally identifies the item in progress output and reports.
	ID *string `json:"id,omitempty"`

	// PostURL is the bsky.app URL of the post to explain.
	PostURL string `json:"post_url,omitempty"`

	// PostID is accepted in place of PostURL for fixtures that store an opaque reference.
	PostID string `json:"post_id,omitempty"`

	// ExpectedExplanation is the reference explanation. A non-nil value on the
	// first item makes the whole fixture golden.
	ExpectedExplanation *string `json:"expected_explanation,omitempty"`
}

// UnmarshalJSON accepts both string and numeric values for id and post_id.
func (it *Item) UnmarshalJSON(data []byte) error {
	type itemAlias Item
	var raw struct {
		itemAlias
		ID     json.RawMessage `json:"id"`
		PostID json.RawMessage `json:"post_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*it = Item(raw.itemAlias)

	id, err := stringOrNumber("id", raw.ID)
	if err != nil {
		return err
	}
	it.ID = id

	postID, err := stringOrNumber("post_id", raw.PostID)
	if err != nil {
		return err
	}
	it.PostID = ""
	if postID != nil {
		it.PostID = *postID
	}
	return nil
}

// stringOrNumber decodes a JSON string or number into its text form. Absent
// and null values give nil.
func stringOrNumber(field string, raw json.RawMessage) (*string, error) {
	v := strings.TrimSpace(string(raw))
	if v == "" || v == "null" {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("item %s must be a string or number, got %s", field, v)
	}
	s = n.String()
	return &s, nil
}

// Reference returns the post URL, falling back to the post ID.
// An empty result means the item cannot be evaluated.
func (it Item) Reference() string {
	if it.PostURL != "" {
		return it.PostURL
	}
	return it.PostID
}

// Label returns the text shown in progress output: the id, else the post
// reference, else "?".
func (it Item) Label() string {
	if it.ID != nil {
		return *it.ID
	}
	if ref := it.Reference(); ref != "" {
		return ref
	}
	return "?"
}

// Fixture is an ordered set of items loaded from a fixture file.
type Fixture struct {
	Items []Item `json:"items"`
}

// Mode infers the evaluation mode from the first item only. Every item in the
// fixture is evaluated under the returned mode, even if later items disagree.
func (f Fixture) Mode() Mode {
	if len(f.Items) > 0 && f.Items[0].ExpectedExplanation != nil {
		return ModeGolden
	}
	return ModeNoGolden
}

// Result is the per-item outcome of an evaluation run. A result with Error set
// is terminal and carries only ID, PostURL and Error.
type Result struct {
	ID                    *string  `json:"id"`
	PostURL               string   `json:"post_url,omitempty"`
	Explanation           *string  `json:"explanation,omitempty"`
	Usage                 *Usage   `json:"usage,omitempty"`
	RequestElapsedSeconds *float64 `json:"request_elapsed_seconds,omitempty"`

	// Golden mode.
	ExpectedExplanation *string  `json:"expected_explanation,omitempty"`
	Similarity          *float64 `json:"similarity,omitempty"`
	LexicalSimilarity   *float64 `json:"lexical_similarity,omitempty"`
	SimilarityError     string   `json:"similarity_error,omitempty"`
	JudgeScore          *int     `json:"judge_score,omitempty"`
	JudgeReasoning      *string  `json:"judge_reasoning,omitempty"`

	// No-golden mode.
	RelevanceScore     *int    `json:"relevance_score,omitempty"`
	RelevanceReasoning *string `json:"relevance_reasoning,omitempty"`

	// JudgeError records a judge failure without invalidating the result.
	JudgeError string `json:"judge_error,omitempty"`

	// Error marks a short-circuited item (missing reference, fetch or agent failure).
	Error string `json:"error,omitempty"`
}

// Failed reports whether the result carries a terminal error.
func (r Result) Failed() bool { return r.Error != "" }

// Summary aggregates all results of one run. Means exclude nil metrics and
// are nil when no value is present.
type Summary struct {
	Mode   Mode
	N      int
	Errors int

	// TotalCost sums the estimated agent cost over results that report one.
	TotalCost *float64

	// Golden mode.
	MeanSimilarity        *float64
	MeanLexicalSimilarity *float64
	MeanJudgeScore        *float64

	// No-golden mode.
	MeanRelevanceScore *float64
}

// MarshalJSON emits only the fields of the summary's mode. Means that have no
// values are written as null rather than omitted.
func (s Summary) MarshalJSON() ([]byte, error) {
	if s.Mode == ModeGolden {
		return json.Marshal(struct {
			Mode                  Mode     `json:"mode"`
			N                     int      `json:"n"`
			Errors                int      `json:"errors"`
			MeanSimilarity        *float64 `json:"mean_similarity"`
			MeanLexicalSimilarity *float64 `json:"mean_lexical_similarity"`
			MeanJudgeScore        *float64 `json:"mean_judge_score"`
			TotalCost             *float64 `json:"total_cost"`
		}{s.Mode, s.N, s.Errors, s.MeanSimilarity, s.MeanLexicalSimilarity, s.MeanJudgeScore, s.TotalCost})
	}
	return json.Marshal(struct {
		Mode               Mode     `json:"mode"`
		N                  int      `json:"n"`
		Errors             int      `json:"errors"`
		MeanRelevanceScore *float64 `json:"mean_relevance_score"`
		TotalCost          *float64 `json:"total_cost"`
	}{s.Mode, s.N, s.Errors, s.MeanRelevanceScore, s.TotalCost})
}

// Report is the only persisted artifact of a run.
type Report struct {
	Summary Summary  `json:"summary"`
	Results []Result `json:"results"`
}

// Ptr returns a pointer to v. It keeps optional result fields readable at call sites.
func Ptr[T any](v T) *T { return &v }

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
