package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/testutils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.POST("/explain", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "boom"})
	})
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRequestMetrics(t *testing.T) {
	collector := testutils.NewMockMetricsCollector()
	r := newTestRouter(RequestMetrics(collector))

	serve(r, http.MethodGet, "/health")
	serve(r, http.MethodGet, "/health")
	serve(r, http.MethodPost, "/explain")
	serve(r, http.MethodGet, "/nope/123")

	assert.Equal(t, 2.0, collector.Counter("http_requests_total", map[string]string{"method": "GET", "route": "/health", "status": "200"}))
	assert.Equal(t, 1.0, collector.Counter("http_requests_total", map[string]string{"method": "POST", "route": "/explain", "status": "500"}))
	assert.Equal(t, 1.0, collector.Counter("http_requests_total", map[string]string{"method": "GET", "route": "unmatched", "status": "404"}))
	assert.Len(t, collector.Latencies[testutils.MetricKey("http_request_duration_seconds",
		map[string]string{"method": "GET", "route": "/health", "status": "200"})], 2)
}

func TestRequestMetrics_NilCollector(t *testing.T) {
	r := newTestRouter(RequestMetrics(nil))
	w := serve(r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := newTestRouter(RequestLogger(logger))

	serve(r, http.MethodGet, "/health")
	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), "path=/health")
	assert.Contains(t, buf.String(), "status=200")

	buf.Reset()
	serve(r, http.MethodPost, "/explain")
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "status=500")
	assert.Contains(t, buf.String(), "error=")

	buf.Reset()
	serve(r, http.MethodGet, "/missing")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := newTestRouter(Tracing("explainer-api"))
	serve(r, http.MethodGet, "/health")
	serve(r, http.MethodPost, "/explain")

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "GET /health", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, "POST /explain", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	var status int64
	for _, kv := range spans[1].Attributes() {
		if kv.Key == "http.response.status_code" {
			status = kv.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(500), status)
}
