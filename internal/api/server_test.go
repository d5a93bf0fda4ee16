package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/middleware"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/testutils"
)

const testPostURL = "https://bsky.app/profile/alice.bsky.social/post/abc123"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, explainer *testutils.MockExplainer) (*gin.Engine, *testutils.MockMetricsCollector) {
	t.Helper()
	metrics := testutils.NewMockMetricsCollector()
	r, err := NewRouter(Config{Explainer: explainer, Metrics: metrics})
	require.NoError(t, err)
	return r, metrics
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/explain", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Detail
}

func TestNewRouter_RequiresExplainer(t *testing.T) {
	_, err := NewRouter(Config{})
	require.Error(t, err)
	assert.Equal(t, domain.KindConfig, domain.KindOf(err))
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t, testutils.NewMockExplainer("x"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestExplain_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantDetail string
	}{
		{"missing", `{}`, msgPostURLRequired},
		{"empty", `{"post_url": ""}`, msgPostURLRequired},
		{"whitespace", `{"post_url": "   "}`, msgPostURLRequired},
		{"not a post", `{"post_url": "https://bsky.app/profile/alice.bsky.social"}`, msgPostURLInvalid},
		{"other host", `{"post_url": "https://twitter.com/alice/status/1"}`, msgPostURLInvalid},
		{"query string", `{"post_url": "` + testPostURL + `?x=1"}`, msgPostURLInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			explainer := testutils.NewMockExplainer("x")
			r, _ := newTestServer(t, explainer)

			w := post(r, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantDetail, detail(t, w))
			assert.Empty(t, explainer.Calls())
		})
	}

	assert.Equal(t, "post_url must be a bsky.app post URL (e.g. https://bsky.app/profile/HANDLE/post/RKEY)", msgPostURLInvalid)
}

func TestExplain_MalformedJSON(t *testing.T) {
	r, _ := newTestServer(t, testutils.NewMockExplainer("x"))

	for _, body := range []string{`{"post_url":`, `{"post_url": 42}`, ``} {
		w := post(r, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.True(t, strings.HasPrefix(detail(t, w), "invalid request body: "), body)
	}
}

func TestExplain_Success(t *testing.T) {
	explainer := testutils.NewMockExplainer("• Origin: a greeting.")
	explainer.Default.RequestElapsedSeconds = 3.21
	explainer.Default.Usage = &domain.Usage{
		InputTokens:             domain.Ptr(1200),
		OutputTokens:            domain.Ptr(300),
		TotalTokens:             domain.Ptr(1500),
		Cost:                    domain.Ptr(0.006),
		TimeToFirstTokenSeconds: domain.Ptr(1.234),
		ModelRunDurationSeconds: domain.Ptr(2.9),
	}
	r, metrics := newTestServer(t, explainer)

	w := post(r, `{"post_url": "  `+testPostURL+`  "}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"post_url": "`+testPostURL+`",
		"explanation": "• Origin: a greeting.",
		"request_elapsed_seconds": 3.21,
		"token_usage": {"input_tokens": 1200, "output_tokens": 300, "total_tokens": 1500, "cost": 0.006},
		"time_to_first_token_seconds": 1.23,
		"model_run_duration_seconds": 2.9
	}`, w.Body.String())
	assert.Equal(t, []string{testPostURL}, explainer.Calls())
	assert.Equal(t, 1.0, metrics.Counter("http_requests_total", map[string]string{"method": "POST", "route": "/explain", "status": "200"}))
}

func TestExplain_SuccessWithoutUsage(t *testing.T) {
	explainer := testutils.NewMockExplainer("• text")
	explainer.Default.Usage = &domain.Usage{TimeToFirstTokenSeconds: domain.Ptr(0.5)}
	r, _ := newTestServer(t, explainer)

	w := post(r, `{"post_url": "`+testPostURL+`"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "token_usage")
	assert.Nil(t, body["token_usage"])
	assert.Nil(t, body["model_run_duration_seconds"])
	assert.Equal(t, 0.5, body["time_to_first_token_seconds"])
}

func TestExplain_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "agent failure",
			err:        domain.NewError(domain.KindAgent, "Explain", errors.New("openai: server error")),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "agent: openai: server error",
		},
		{
			name:       "plain error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "boom",
		},
		{
			name:       "validation from a collaborator",
			err:        domain.NewError(domain.KindValidation, "Explain", errors.New("bad handle")),
			wantStatus: http.StatusBadRequest,
			wantDetail: "validation: bad handle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			explainer := testutils.NewMockExplainer("x")
			explainer.Errs[testPostURL] = tt.err
			r, metrics := newTestServer(t, explainer)

			w := post(r, `{"post_url": "`+testPostURL+`"}`)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantDetail, detail(t, w))
			assert.Equal(t, 1.0, metrics.Counter("http_requests_total", map[string]string{
				"method": "POST", "route": "/explain", "status": strconv.Itoa(tt.wantStatus),
			}))
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := middleware.NewPrometheusMetrics(reg)
	r, err := NewRouter(Config{
		Explainer: testutils.NewMockExplainer("x"),
		Metrics:   collector,
		Gatherer:  reg,
	})
	require.NoError(t, err)

	post(r, `{"post_url": "`+testPostURL+`"}`)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="POST",route="/explain",status="200"} 1`)
}

func TestMetricsEndpoint_NotRegisteredWithoutGatherer(t *testing.T) {
	r, _ := newTestServer(t, testutils.NewMockExplainer("x"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
