// Package metrics implements pipeline.Metrics against Prometheus, giving
// an operator per-project run counts, stage latency, and cluster/slice
// yield without touching the pipeline package itself.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_runs_started_total",
		Help: "Total discovery pipeline runs started",
	}, []string{"project"})

	runsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_runs_completed_total",
		Help: "Total discovery pipeline runs completed successfully",
	}, []string{"project"})

	runsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_runs_failed_total",
		Help: "Total discovery pipeline runs that failed",
	}, []string{"project", "reason"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discovery_run_duration_seconds",
		Help:    "Discovery pipeline run duration",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"project"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discovery_stage_duration_seconds",
		Help:    "Duration of one pipeline stage",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
	}, []string{"stage"})

	clustersFound = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discovery_clusters_found",
		Help:    "Number of non-noise clusters produced per run",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	}, []string{"project"})

	significantSlicesFound = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discovery_significant_slices_found",
		Help:    "Number of slices surviving the significance filter per run",
		Buckets: []float64{0, 1, 2, 5, 10, 20},
	}, []string{"project"})
)

// Prometheus implements pipeline.Metrics by recording every lifecycle
// event against the package-level collectors above. Its zero value is
// ready to use since the collectors are process-wide.
type Prometheus struct{}

func New() Prometheus { return Prometheus{} }

func (Prometheus) RunStarted(projectID string) {
	runsStarted.WithLabelValues(projectID).Inc()
}

func (Prometheus) RunCompleted(projectID string, duration time.Duration) {
	runsCompleted.WithLabelValues(projectID).Inc()
	runDuration.WithLabelValues(projectID).Observe(duration.Seconds())
}

func (Prometheus) RunFailed(projectID string, reason string) {
	runsFailed.WithLabelValues(projectID, reason).Inc()
}

func (Prometheus) StageDuration(stage string, duration time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (Prometheus) ClustersFound(projectID string, n int) {
	clustersFound.WithLabelValues(projectID).Observe(float64(n))
}

func (Prometheus) SignificantSlicesFound(projectID string, n int) {
	significantSlicesFound.WithLabelValues(projectID).Observe(float64(n))
}
