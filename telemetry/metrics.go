package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Metrics = struct {
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	HarvestedFiles    *prometheus.CounterVec
	SweepDeletions    prometheus.Counter
}{
	ExecutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runbox",
		Name:      "executions_total",
		Help:      "Total sandbox executions by mode and terminal status.",
	}, []string{"mode", "status"}),

	ExecutionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "runbox",
		Name:      "execution_duration_seconds",
		Help:      "Sandbox execution duration in seconds, including harvest.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"mode"}),

	HarvestedFiles: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runbox",
		Name:      "harvested_files_total",
		Help:      "Total output files relocated to the public tree by category.",
	}, []string{"category"}),

	SweepDeletions: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "runbox",
		Name:      "sweep_deletions_total",
		Help:      "Total stale workspaces removed by the background sweep.",
	}),
}

// ObserveExecution records the outcome and duration of one execution.
func ObserveExecution(mode string, success bool, exitCode int, elapsed time.Duration) {
	status := "failure"
	switch {
	case success:
		status = "success"
	case exitCode == -1:
		status = "aborted"
	}

	Metrics.ExecutionsTotal.WithLabelValues(mode, status).Inc()
	Metrics.ExecutionDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}
