package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
)

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestHarness_RunGolden(t *testing.T) {
	r, m := newTestRunner(t)
	m.fetcher.AddPost(postB, "bob.bsky.social", "ratio")
	m.explainer.Errs[postB] = errors.New("boom")

	path := writeFixture(t, `{"items": [
		{"id": "p1", "post_url": "`+postA+`", "expected_explanation": "• Good morning."},
		{"id": 2, "post_url": "`+postB+`", "expected_explanation": "• Ratio."},
		{"expected_explanation": "• orphan"}
	]}`)
	out := filepath.Join(t.TempDir(), "nested", "dir", "out.json")

	var buf bytes.Buffer
	h := NewHarness(r, &buf, nil)
	report, err := h.Run(context.Background(), path, RunOptions{OutputPath: out})
	require.NoError(t, err)

	assert.Equal(t, domain.ModeGolden, report.Summary.Mode)
	assert.Equal(t, 3, report.Summary.N)
	assert.Equal(t, 2, report.Summary.Errors)
	assert.Equal(t, 0.9, *report.Summary.MeanSimilarity)
	assert.Equal(t, 4.0, *report.Summary.MeanJudgeScore)
	assert.Equal(t, 0.0005, *report.Summary.TotalCost)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 7)
	assert.Equal(t, "Mode: golden (fixture: "+path+")", lines[0])
	assert.Equal(t, rule, lines[1])
	assert.Equal(t, "  [1] p1 ... ok", lines[2])
	assert.Equal(t, "  [2] 2 ... ERROR: agent: boom", lines[3])
	assert.Equal(t, "  [3] ? ... ERROR: missing post_url/post_id", lines[4])
	assert.Equal(t, rule, lines[5])
	assert.True(t, strings.HasPrefix(lines[6], "Summary: {"))
	assert.Equal(t, "Wrote "+out, lines[len(lines)-1])

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var written map[string]any
	require.NoError(t, json.Unmarshal(data, &written))
	results := written["results"].([]any)
	require.Len(t, results, 3)
	assert.Equal(t, "2", results[1].(map[string]any)["id"])
	assert.Nil(t, results[2].(map[string]any)["id"])
}

func TestHarness_RunNoGolden(t *testing.T) {
	r, _ := newTestRunner(t)
	path := writeFixture(t, `{"items": [{"post_url": "`+postA+`"}]}`)

	var buf bytes.Buffer
	report, err := NewHarness(r, &buf, nil).Run(context.Background(), path, RunOptions{NoReport: true, OutputPath: "unused.json"})
	require.NoError(t, err)

	assert.Equal(t, domain.ModeNoGolden, report.Summary.Mode)
	assert.Equal(t, 3.0, *report.Summary.MeanRelevanceScore)
	assert.NotContains(t, buf.String(), "Wrote")
	assert.Contains(t, buf.String(), "  [1] "+postA+" ... ok")
}

func TestHarness_RunConfigErrors(t *testing.T) {
	r, m := newTestRunner(t)

	t.Run("fixture not found", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "nope.json")
		_, err := NewHarness(r, &bytes.Buffer{}, nil).Run(context.Background(), missing, RunOptions{})

		var nf *FixtureNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "Fixture not found: "+missing, nf.Error())
		assert.Equal(t, domain.KindConfig, domain.KindOf(err))
	})

	t.Run("malformed fixture", func(t *testing.T) {
		_, err := NewHarness(r, &bytes.Buffer{}, nil).Run(context.Background(), writeFixture(t, "{"), RunOptions{})
		require.Error(t, err)
		assert.Equal(t, domain.KindConfig, domain.KindOf(err))
	})

	t.Run("skip judge without references", func(t *testing.T) {
		var buf bytes.Buffer
		path := writeFixture(t, `{"items": [{"post_url": "`+postA+`"}]}`)
		_, err := NewHarness(r, &buf, nil).Run(context.Background(), path, RunOptions{SkipJudge: true})

		require.ErrorIs(t, err, ErrJudgeRequired)
		assert.Empty(t, buf.String(), "nothing runs before the mode check")
		assert.Empty(t, m.fetcher.Calls())
	})
}

func TestHarness_RunCancelled(t *testing.T) {
	r, _ := newTestRunner(t)
	path := writeFixture(t, `{"items": [{"post_url": "`+postA+`"}]}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHarness(r, &bytes.Buffer{}, nil).Run(ctx, path, RunOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	f := domain.Ptr[float64]
	i := domain.Ptr[int]

	tests := []struct {
		name    string
		mode    domain.Mode
		results []domain.Result
		want    domain.Summary
	}{
		{
			name: "means skip absent values",
			mode: domain.ModeGolden,
			results: []domain.Result{
				{Similarity: f(0.9), LexicalSimilarity: f(0.5), JudgeScore: i(5)},
				{LexicalSimilarity: f(0.25), JudgeScore: i(4)},
				{Similarity: f(0.7), LexicalSimilarity: f(0.1)},
			},
			want: domain.Summary{
				Mode: domain.ModeGolden, N: 3,
				MeanSimilarity:        f(0.8),
				MeanLexicalSimilarity: f(0.2833),
				MeanJudgeScore:        f(4.5),
			},
		},
		{
			name:    "all failed leaves means nil",
			mode:    domain.ModeGolden,
			results: []domain.Result{{Error: "fetch: x"}, {Error: "agent: y"}},
			want:    domain.Summary{Mode: domain.ModeGolden, N: 2, Errors: 2},
		},
		{
			name: "relevance rounds to two places",
			mode: domain.ModeNoGolden,
			results: []domain.Result{
				{RelevanceScore: i(5), Usage: &domain.Usage{Cost: f(0.00012)}},
				{RelevanceScore: i(4), Usage: &domain.Usage{Cost: f(0.00031)}},
				{RelevanceScore: i(4)},
			},
			want: domain.Summary{
				Mode: domain.ModeNoGolden, N: 3,
				MeanRelevanceScore: f(4.33),
				TotalCost:          f(0.0004),
			},
		},
		{
			name: "empty run",
			mode: domain.ModeNoGolden,
			want: domain.Summary{Mode: domain.ModeNoGolden},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.mode, tt.results))
		})
	}
}

func TestSummarize_NullMeansInJSON(t *testing.T) {
	data, err := json.Marshal(Summarize(domain.ModeGolden, []domain.Result{{Error: "x"}}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"golden","n":1,"errors":1,"mean_similarity":null,"mean_lexical_similarity":null,"mean_judge_score":null,"total_cost":null}`, string(data))
}

func TestWriteReport_Unescaped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "report.json")
	report := domain.Report{
		Summary: domain.Summary{Mode: domain.ModeNoGolden, N: 1},
		Results: []domain.Result{{ID: domain.Ptr("é"), PostURL: postA, Explanation: domain.Ptr("• <b>café</b> & ☕")}},
	}

	require.NoError(t, WriteReport(path, report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, "• <b>café</b> & ☕")
	assert.Contains(t, s, "\n  \"summary\": {")
	assert.NotContains(t, s, `\u00e9`)
	assert.NotContains(t, s, `\u003c`)
}

func TestLoadFixture_NumericAndNullIDs(t *testing.T) {
	path := writeFixture(t, `{"items": [{"id": 7, "post_url": "a"}, {"id": null, "post_id": "b"}, {"id": "x", "post_url": "c"}]}`)

	fixture, err := LoadFixture(path)
	require.NoError(t, err)
	require.Len(t, fixture.Items, 3)
	assert.Equal(t, "7", *fixture.Items[0].ID)
	assert.Nil(t, fixture.Items[1].ID)
	assert.Equal(t, "b", fixture.Items[1].Label())
	assert.Equal(t, "x", *fixture.Items[2].ID)
}

func TestLoadFixture_ShippedGolden(t *testing.T) {
	fixture, err := LoadFixture(filepath.Join("..", "..", "eval", "fixtures", "golden.json"))
	require.NoError(t, err)

	require.NotEmpty(t, fixture.Items)
	assert.Equal(t, domain.ModeGolden, fixture.Mode())
	for i, it := range fixture.Items {
		assert.True(t, domain.IsPostURL(it.Reference()), "item %d reference %q", i, it.Reference())
		assert.NotNil(t, it.ExpectedExplanation, "item %d", i)
		assert.NotNil(t, it.ID, "item %d", i)
	}
	assert.Equal(t, "2", *fixture.Items[1].ID)
}
