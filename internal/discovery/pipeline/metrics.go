package pipeline

import "time"

// Metrics receives pipeline lifecycle events. Adapters/metrics implements
// this against Prometheus; tests can supply a no-op or recording stub.
type Metrics interface {
	RunStarted(projectID string)
	RunCompleted(projectID string, duration time.Duration)
	RunFailed(projectID string, reason string)
	StageDuration(stage string, duration time.Duration)
	ClustersFound(projectID string, n int)
	SignificantSlicesFound(projectID string, n int)
}

// NoopMetrics discards every event. Used as the default so a caller that
// doesn't care about observability doesn't have to wire one up.
type NoopMetrics struct{}

func (NoopMetrics) RunStarted(string)                       {}
func (NoopMetrics) RunCompleted(string, time.Duration)       {}
func (NoopMetrics) RunFailed(string, string)                 {}
func (NoopMetrics) StageDuration(string, time.Duration)       {}
func (NoopMetrics) ClustersFound(string, int)                 {}
func (NoopMetrics) SignificantSlicesFound(string, int)        {}
