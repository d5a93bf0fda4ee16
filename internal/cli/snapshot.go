package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// runtimeMetricPrefixes are left out of snapshots; they describe the process,
// not the run.
var runtimeMetricPrefixes = []string{"go_", "process_"}

// metricsPath places the snapshot next to the report: out.json gives
// out.metrics.prom.
func metricsPath(reportPath string) string {
	return strings.TrimSuffix(reportPath, filepath.Ext(reportPath)) + ".metrics.prom"
}

// writeMetricsSnapshot writes the gathered run metrics (eval, agent and judge
// families) in the Prometheus text format.
func writeMetricsSnapshot(g prometheus.Gatherer, path string) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if isRuntimeMetric(mf.GetName()) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write metrics snapshot: %w", err)
	}
	return nil
}

func isRuntimeMetric(name string) bool {
	for _, p := range runtimeMetricPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
