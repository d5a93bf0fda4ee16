// Package middleware provides cross-cutting concerns for the explainer: the
// Prometheus metrics collector and gin middleware for request logging,
// metrics and tracing.
package middleware

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

// unknownLabel fills label values a caller did not supply.
const unknownLabel = "unknown"

// metricDef describes a metric emitted by the explainer. Metrics without a
// definition are registered on first use with the label names of that call.
type metricDef struct {
	help    string
	labels  []string
	buckets []float64
}

var metricDefs = map[string]metricDef{
	"llm_requests_total": {
		help:   "LLM completion requests by provider, model and outcome.",
		labels: []string{"provider", "model", "status"},
	},
	"llm_tokens_total": {
		help:   "Tokens consumed by LLM completions.",
		labels: []string{"provider", "model", "token_type"},
	},
	"llm_latency_seconds": {
		help:    "Latency of LLM completion requests.",
		labels:  []string{"provider", "model", "status"},
		buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	},
	"agent_runs_total": {
		help:   "Explainer agent runs by model and outcome.",
		labels: []string{"model", "status"},
	},
	"agent_run_latency_seconds": {
		help:    "Wall-clock time of explainer agent runs.",
		labels:  []string{"model", "status"},
		buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	},
	"agent_tool_calls_total": {
		help:   "Tool calls executed for the explainer agent.",
		labels: []string{"tool", "status"},
	},
	"agent_tool_latency_seconds": {
		help:   "Latency of explainer agent tool calls.",
		labels: []string{"tool", "status"},
	},
	"eval_items_total": {
		help:   "Evaluation items processed by mode and outcome.",
		labels: []string{"mode", "status"},
	},
	"eval_judge_score": {
		help:    "Judge scores given to explanations.",
		labels:  []string{"mode"},
		buckets: []float64{1, 2, 3, 4, 5},
	},
	"eval_similarity": {
		help:    "Similarity between produced and reference explanations.",
		labels:  []string{"kind"},
		buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	},
	"http_requests_total": {
		help:   "HTTP requests served by route and status.",
		labels: []string{"method", "route", "status"},
	},
	"http_request_duration_seconds": {
		help:   "Latency of HTTP requests by route and status.",
		labels: []string{"method", "route", "status"},
	},
}

// PrometheusMetrics implements ports.MetricsCollector on a Prometheus
// registry. Vectors are created lazily so each metric name is registered once.
type PrometheusMetrics struct {
	factory promauto.Factory

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labelNames map[string][]string
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a collector registering into reg. A nil reg
// uses the default registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusMetrics{
		factory:    promauto.With(reg),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labelNames: make(map[string][]string),
	}
}

// RecordLatency observes duration in seconds on the histogram named operation.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.RecordHistogram(operation, duration.Seconds(), labels)
}

// RecordCounter adds value to the counter named metric.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	pm.mu.Lock()
	vec, ok := pm.counters[metric]
	if !ok {
		def := pm.define(metric, labels)
		vec = pm.factory.NewCounterVec(prometheus.CounterOpts{Name: metric, Help: def.help}, def.labels)
		pm.counters[metric] = vec
	}
	values := pm.values(metric, labels)
	pm.mu.Unlock()

	vec.WithLabelValues(values...).Add(value)
}

// RecordGauge sets the gauge named metric.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.mu.Lock()
	vec, ok := pm.gauges[metric]
	if !ok {
		def := pm.define(metric, labels)
		vec = pm.factory.NewGaugeVec(prometheus.GaugeOpts{Name: metric, Help: def.help}, def.labels)
		pm.gauges[metric] = vec
	}
	values := pm.values(metric, labels)
	pm.mu.Unlock()

	vec.WithLabelValues(values...).Set(value)
}

// RecordHistogram observes value on the histogram named metric.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	pm.mu.Lock()
	vec, ok := pm.histograms[metric]
	if !ok {
		def := pm.define(metric, labels)
		buckets := def.buckets
		if buckets == nil {
			buckets = prometheus.DefBuckets
		}
		vec = pm.factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metric,
			Help:    def.help,
			Buckets: buckets,
		}, def.labels)
		pm.histograms[metric] = vec
	}
	values := pm.values(metric, labels)
	pm.mu.Unlock()

	vec.WithLabelValues(values...).Observe(value)
}

// define fixes the label names of metric. Callers hold pm.mu.
func (pm *PrometheusMetrics) define(metric string, labels map[string]string) metricDef {
	def, ok := metricDefs[metric]
	if !ok {
		names := make([]string, 0, len(labels))
		for k := range labels {
			names = append(names, k)
		}
		sort.Strings(names)
		def = metricDef{help: metric, labels: names}
	}
	pm.labelNames[metric] = def.labels
	return def
}

// values orders labels by the registered names. Missing or empty values
// become "unknown"; extra labels are dropped. Callers hold pm.mu.
func (pm *PrometheusMetrics) values(metric string, labels map[string]string) []string {
	names := pm.labelNames[metric]
	values := make([]string, len(names))
	for i, name := range names {
		v := labels[name]
		if v == "" {
			v = unknownLabel
		}
		values[i] = v
	}
	return values
}
