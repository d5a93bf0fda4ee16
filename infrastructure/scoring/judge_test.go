package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/llm"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/testutils"
)

func TestNewJudge(t *testing.T) {
	t.Run("nil client", func(t *testing.T) {
		_, err := NewJudge(nil, JudgeConfig{}, nil)
		assert.Error(t, err)
	})

	t.Run("default max tokens", func(t *testing.T) {
		j, err := NewJudge(testutils.NewMockLLMClient("gpt-4o-mini"), JudgeConfig{}, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultJudgeMaxTokens, j.config.MaxTokens)
	})

	t.Run("max tokens out of range", func(t *testing.T) {
		_, err := NewJudge(testutils.NewMockLLMClient("gpt-4o-mini"), JudgeConfig{MaxTokens: 8}, nil)
		assert.ErrorContains(t, err, "validation failed")
	})
}

func TestJudge_Golden(t *testing.T) {
	client := testutils.NewMockLLMClient("gpt-4o-mini")
	client.SetResponse("", `{"score": 5, "reasoning": "Matches the reference."}`)
	j, err := NewJudge(client, JudgeConfig{}, nil)
	require.NoError(t, err)

	v, err := j.Golden(context.Background(), "gm frens", "• A crypto greeting.", "• Good morning, friends.")

	require.NoError(t, err)
	assert.Equal(t, domain.Verdict{Score: 5, Reasoning: "Matches the reference."}, v)

	prompts := client.Prompts()
	require.Len(t, prompts, 1)
	want := `You are an eval judge. Given the original post, the expected (reference) explanation, and the agent's explanation, score the agent's explanation from 1 to 5.
5 = matches intent and key content; 1 = wrong or irrelevant.
Respond with a JSON object: "score" (integer 1-5), "reasoning" (one short sentence).

Post:
gm frens

Expected (reference):
• A crypto greeting.

Agent explanation:
• Good morning, friends.
`
	assert.Equal(t, want, prompts[0])

	opts := client.LastOptions()
	assert.Equal(t, DefaultJudgeMaxTokens, opts[llm.OptionMaxTokens])
	schema, ok := opts[llm.OptionResponseSchema].(*llm.ResponseSchema)
	require.True(t, ok, "judge should request a structured reply")
	assert.Equal(t, "judge_verdict", schema.Name)
}

func TestJudge_Relevance(t *testing.T) {
	client := testutils.NewMockLLMClient("gpt-4o-mini")
	client.SetResponse("", "```json\n{\"score\": \"3\", \"reasoning\": \"Partly explains it.\"}\n```")
	j, err := NewJudge(client, JudgeConfig{MaxTokens: 256}, nil)
	require.NoError(t, err)

	v, err := j.Relevance(context.Background(), "post body", "• explanation")

	require.NoError(t, err)
	assert.Equal(t, 3, v.Score)
	assert.Equal(t, "Partly explains it.", v.Reasoning)

	prompt := client.Prompts()[0]
	assert.Contains(t, prompt, "score how relevant and accurate the explanation is (1-5)")
	assert.Contains(t, prompt, "Post:\npost body\n")
	assert.NotContains(t, prompt, "Expected (reference)")
	assert.Equal(t, 256, client.LastOptions()[llm.OptionMaxTokens])
}

func TestJudge_Errors(t *testing.T) {
	t.Run("client failure", func(t *testing.T) {
		client := testutils.NewMockLLMClient("gpt-4o-mini")
		client.Err = errors.New("upstream down")
		j, err := NewJudge(client, JudgeConfig{}, nil)
		require.NoError(t, err)

		_, err = j.Relevance(context.Background(), "p", "e")

		require.Error(t, err)
		assert.Equal(t, domain.KindJudge, domain.KindOf(err))
		assert.Equal(t, "judge: upstream down", err.Error())
	})

	t.Run("reply is not json", func(t *testing.T) {
		client := testutils.NewMockLLMClient("gpt-4o-mini")
		client.SetResponse("", "I would give this a four.")
		j, err := NewJudge(client, JudgeConfig{}, nil)
		require.NoError(t, err)

		_, err = j.Golden(context.Background(), "p", "x", "e")

		require.Error(t, err)
		assert.Equal(t, domain.KindJudge, domain.KindOf(err))
	})

	t.Run("out of rubric score is returned as is", func(t *testing.T) {
		client := testutils.NewMockLLMClient("gpt-4o-mini")
		client.SetResponse("", `{"score": 9, "reasoning": "Generous."}`)
		j, err := NewJudge(client, JudgeConfig{}, nil)
		require.NoError(t, err)

		v, err := j.Golden(context.Background(), "p", "x", "e")

		require.NoError(t, err)
		assert.Equal(t, 9, v.Score)
		assert.False(t, v.Valid())
	})
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    domain.Verdict
		wantErr bool
	}{
		{
			name:  "plain object",
			reply: `{"score": 4, "reasoning": "Good."}`,
			want:  domain.Verdict{Score: 4, Reasoning: "Good."},
		},
		{
			name:  "float score truncates",
			reply: `{"score": 4.7, "reasoning": "Good."}`,
			want:  domain.Verdict{Score: 4, Reasoning: "Good."},
		},
		{
			name:  "numeric string score",
			reply: `{"score": " 2 ", "reasoning": "Weak."}`,
			want:  domain.Verdict{Score: 2, Reasoning: "Weak."},
		},
		{
			name:  "missing score",
			reply: `{"reasoning": "No score."}`,
			want:  domain.Verdict{Score: 0, Reasoning: "No score."},
		},
		{
			name:  "malformed score",
			reply: `{"score": "excellent", "reasoning": "Words."}`,
			want:  domain.Verdict{Score: 0, Reasoning: "Words."},
		},
		{
			name:  "null score",
			reply: `{"score": null, "reasoning": ""}`,
			want:  domain.Verdict{},
		},
		{
			name:  "non-string reasoning",
			reply: `{"score": 3, "reasoning": 42}`,
			want:  domain.Verdict{Score: 3, Reasoning: "42"},
		},
		{
			name:  "object inside prose",
			reply: `Here you go: {"score": 5, "reasoning": "Spot on."} Thanks!`,
			want:  domain.Verdict{Score: 5, Reasoning: "Spot on."},
		},
		{
			name:  "empty reply",
			reply: "   ",
			want:  domain.Verdict{},
		},
		{
			name:    "prose only",
			reply:   "five out of five",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.reply)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
