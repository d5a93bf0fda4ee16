package middleware

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

// gather returns the metric family named name from reg, failing if absent.
func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	require.Failf(t, "metric not registered", "%s", name)
	return nil
}

// labelsOf flattens a metric's label pairs.
func labelsOf(m *dto.Metric) map[string]string {
	out := make(map[string]string)
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func TestPrometheusMetrics_RecordCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(reg)

	pm.RecordCounter("llm_requests_total", 1, map[string]string{"provider": "openai", "model": "gpt-4o-mini", "status": "success"})
	pm.RecordCounter("llm_requests_total", 2, map[string]string{"provider": "openai", "model": "gpt-4o-mini", "status": "success"})
	pm.RecordCounter("llm_requests_total", 1, map[string]string{"provider": "openai", "status": "error", "extra": "dropped"})

	mf := gather(t, reg, "llm_requests_total")
	assert.Equal(t, dto.MetricType_COUNTER, mf.GetType())
	assert.Equal(t, "LLM completion requests by provider, model and outcome.", mf.GetHelp())
	require.Len(t, mf.GetMetric(), 2)

	got := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		l := labelsOf(m)
		assert.NotContains(t, l, "extra", "undeclared labels are dropped")
		got[l["model"]+"/"+l["status"]] = m.GetCounter().GetValue()
	}
	assert.Equal(t, 3.0, got["gpt-4o-mini/success"])
	assert.Equal(t, 1.0, got["unknown/error"], "missing label values become unknown")
}

func TestPrometheusMetrics_UndeclaredMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(reg)

	pm.RecordCounter("custom_total", 1, map[string]string{"b": "2", "a": "1"})
	pm.RecordCounter("custom_total", 1, map[string]string{"a": "1"})

	mf := gather(t, reg, "custom_total")
	require.Len(t, mf.GetMetric(), 2)
	for _, m := range mf.GetMetric() {
		assert.Len(t, m.GetLabel(), 2, "label names are fixed by the first call")
	}
}

func TestPrometheusMetrics_RecordGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(reg)

	pm.RecordGauge("eval_last_run_cost", 0.05, map[string]string{"mode": "golden"})
	pm.RecordGauge("eval_last_run_cost", 0.02, map[string]string{"mode": "golden"})

	mf := gather(t, reg, "eval_last_run_cost")
	require.Len(t, mf.GetMetric(), 1)
	assert.Equal(t, 0.02, mf.GetMetric()[0].GetGauge().GetValue())
}

func TestPrometheusMetrics_RecordHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(reg)

	for _, s := range []float64{1, 4, 5, 5} {
		pm.RecordHistogram("eval_judge_score", s, map[string]string{"mode": "golden"})
	}

	mf := gather(t, reg, "eval_judge_score")
	require.Len(t, mf.GetMetric(), 1)
	h := mf.GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(4), h.GetSampleCount())
	assert.Equal(t, 15.0, h.GetSampleSum())
	require.Len(t, h.GetBucket(), 5)
	assert.Equal(t, uint64(1), h.GetBucket()[0].GetCumulativeCount(), "one score <= 1")
	assert.Equal(t, uint64(2), h.GetBucket()[3].GetCumulativeCount(), "two scores <= 4")
}

func TestPrometheusMetrics_RecordLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(reg)

	pm.RecordLatency("agent_run_latency_seconds", 1500*time.Millisecond, map[string]string{"model": "gpt-4o", "status": "success"})

	mf := gather(t, reg, "agent_run_latency_seconds")
	assert.Equal(t, dto.MetricType_HISTOGRAM, mf.GetType())
	assert.InDelta(t, 1.5, mf.GetMetric()[0].GetHistogram().GetSampleSum(), 1e-9)
}

func TestPrometheusMetrics_LabelHandling(t *testing.T) {
	tests := []struct {
		name   string
		labels map[string]string
	}{
		{"nil labels map", nil},
		{"empty labels map", map[string]string{}},
		{"empty label value", map[string]string{"mode": ""}},
		{"unrelated labels", map[string]string{"other": "value"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := NewPrometheusMetrics(prometheus.NewRegistry())

			assert.NotPanics(t, func() {
				pm.RecordCounter("eval_items_total", 1, tt.labels)
				pm.RecordGauge("some_gauge", 1, tt.labels)
				pm.RecordHistogram("eval_similarity", 0.5, tt.labels)
				pm.RecordLatency("http_request_duration_seconds", time.Millisecond, tt.labels)
			})
		})
	}
}

func TestPrometheusMetrics_Concurrent(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(reg)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				pm.RecordCounter("agent_tool_calls_total", 1, map[string]string{"tool": "web_search", "status": "success"})
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	mf := gather(t, reg, "agent_tool_calls_total")
	assert.Equal(t, 1000.0, mf.GetMetric()[0].GetCounter().GetValue())
}

func TestPrometheusMetrics_InterfaceCompliance(t *testing.T) {
	var metrics ports.MetricsCollector = NewPrometheusMetrics(prometheus.NewRegistry())
	assert.NotNil(t, metrics)
}
