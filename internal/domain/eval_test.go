package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixture_Mode(t *testing.T) {
	tests := []struct {
		name    string
		fixture string
		want    Mode
	}{
		{
			name:    "first item has expected explanation",
			fixture: `{"items":[{"post_url":"https://bsky.app/profile/a/post/1","expected_explanation":"ref"}]}`,
			want:    ModeGolden,
		},
		{
			name:    "empty expected explanation still counts as golden",
			fixture: `{"items":[{"post_url":"u","expected_explanation":""}]}`,
			want:    ModeGolden,
		},
		{
			name:    "null expected explanation",
			fixture: `{"items":[{"post_url":"u","expected_explanation":null}]}`,
			want:    ModeNoGolden,
		},
		{
			name:    "only later items carry references",
			fixture: `{"items":[{"post_url":"u"},{"post_url":"v","expected_explanation":"ref"}]}`,
			want:    ModeNoGolden,
		},
		{
			name:    "empty fixture",
			fixture: `{"items":[]}`,
			want:    ModeNoGolden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Fixture
			require.NoError(t, json.Unmarshal([]byte(tt.fixture), &f))
			assert.Equal(t, tt.want, f.Mode())
		})
	}
}

func TestItem_UnmarshalID(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		wantID *string
	}{
		{"string id", `{"id":"post-1"}`, Ptr("post-1")},
		{"numeric id", `{"id":7}`, Ptr("7")},
		{"null id", `{"id":null}`, nil},
		{"missing id", `{}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var it Item
			require.NoError(t, json.Unmarshal([]byte(tt.data), &it))
			assert.Equal(t, tt.wantID, it.ID)
		})
	}

	t.Run("object id is rejected", func(t *testing.T) {
		var it Item
		assert.Error(t, json.Unmarshal([]byte(`{"id":{"x":1}}`), &it))
	})

	t.Run("other fields survive", func(t *testing.T) {
		var it Item
		require.NoError(t, json.Unmarshal([]byte(`{"id":"a","post_id":"p","expected_explanation":"e"}`), &it))
		assert.Equal(t, "p", it.PostID)
		require.NotNil(t, it.ExpectedExplanation)
		assert.Equal(t, "e", *it.ExpectedExplanation)
	})

	t.Run("numeric post_id", func(t *testing.T) {
		var it Item
		require.NoError(t, json.Unmarshal([]byte(`{"post_id":3141}`), &it))
		assert.Equal(t, "3141", it.PostID)
		assert.Equal(t, "3141", it.Reference())
		assert.Nil(t, it.ID)
	})

	t.Run("object post_id is rejected", func(t *testing.T) {
		var it Item
		assert.ErrorContains(t, json.Unmarshal([]byte(`{"post_id":[1]}`), &it), "post_id")
	})
}

func TestItem_ReferenceAndLabel(t *testing.T) {
	assert.Equal(t, "u", Item{PostURL: "u", PostID: "p"}.Reference())
	assert.Equal(t, "p", Item{PostID: "p"}.Reference())
	assert.Empty(t, Item{}.Reference())

	assert.Equal(t, "id-1", Item{ID: Ptr("id-1"), PostURL: "u"}.Label())
	assert.Equal(t, "u", Item{PostURL: "u"}.Label())
	assert.Equal(t, "?", Item{}.Label())
}

func TestResult_ErrorRecordJSON(t *testing.T) {
	r := Result{ID: nil, PostURL: "https://bsky.app/profile/a/post/1", Error: "fetch: post not found"}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":null,"post_url":"https://bsky.app/profile/a/post/1","error":"fetch: post not found"}`, string(data))
	assert.True(t, r.Failed())
}

func TestSummary_MarshalJSON(t *testing.T) {
	t.Run("golden omits relevance", func(t *testing.T) {
		s := Summary{Mode: ModeGolden, N: 3, Errors: 1, MeanSimilarity: Ptr(0.8)}

		data, err := json.Marshal(s)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"mode": "golden",
			"n": 3,
			"errors": 1,
			"mean_similarity": 0.8,
			"mean_lexical_similarity": null,
			"mean_judge_score": null,
			"total_cost": null
		}`, string(data))
	})

	t.Run("no-golden omits similarity", func(t *testing.T) {
		s := Summary{Mode: ModeNoGolden, N: 2, MeanRelevanceScore: Ptr(4.5), TotalCost: Ptr(0.0123)}

		data, err := json.Marshal(s)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"mode": "no_golden",
			"n": 2,
			"errors": 0,
			"mean_relevance_score": 4.5,
			"total_cost": 0.0123
		}`, string(data))
	})
}
