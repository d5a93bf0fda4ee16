package llm

import (
	"fmt"
	"sync"
	"time"
)

// mockMetricsCollector keys every metric by "<name>:<provider>:<status or token_type>".
type mockMetricsCollector struct {
	mu         sync.Mutex
	histograms map[string]float64
	counters   map[string]float64
	gauges     map[string]float64
	labels     []map[string]string
}

func newMockMetricsCollector() *mockMetricsCollector {
	return &mockMetricsCollector{
		histograms: make(map[string]float64),
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
	}
}

func metricKey(metric string, labels map[string]string) string {
	suffix := labels["status"]
	if tt, ok := labels["token_type"]; ok {
		suffix = tt
	}
	return fmt.Sprintf("%s:%s:%s", metric, labels["provider"], suffix)
}

func (m *mockMetricsCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	m.RecordHistogram(operation, duration.Seconds(), labels)
}

func (m *mockMetricsCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metricKey(metric, labels)] += value
	m.labels = append(m.labels, labels)
}

func (m *mockMetricsCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[metricKey(metric, labels)] = value
}

func (m *mockMetricsCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms[metricKey(metric, labels)] = value
}
