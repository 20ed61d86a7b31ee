// Package discovery holds the value types produced by the failure-discovery
// pipeline: per-trace features, badness scores, clusters, slices and the
// final report. All types here are immutable once constructed; every
// pipeline stage builds a new slice/struct rather than mutating inputs in
// place (embeddings are the one documented exception, see AddEmbeddings).
package discovery

import (
	"fmt"
	"sort"
	"time"
)

// TraceFeatures is the flattened, per-trace feature row the rest of the
// pipeline consumes. Fields mirror the root span plus everything the
// extractor could recover from descendant spans and annotations.
type TraceFeatures struct {
	TraceID      string
	Intent       string
	Route        string
	Model        string
	Provider     string
	PromptVersion string

	Input  string
	Output string

	ToolSequence     []string
	ToolNgrams       map[string]int
	ToolSuccessRate  float64
	ToolCallCount    int
	UniqueToolsUsed  int
	RetryCount       int

	LatencyMs     float64
	LLMLatencyMs  float64
	ToolLatencyMs float64
	LLMCallCount  int
	TokenCount    int
	ErrorCount    int

	QualityEval   *float64
	GroundingEval *float64

	Embedding []float64

	StartTime time.Time
	EndTime   time.Time
}

// BadnessWeights controls how individual badness signals combine into the
// overall score. Weights need not sum to 1; badness.Compute normalizes by
// the sum of weights whose signal is enabled (weight != 0) — every
// enabled signal is always computed, falling back to a documented
// default when its underlying input is absent, rather than being
// dropped from the average.
type BadnessWeights struct {
	QualityEval float64
	GroundingEval float64
	ToolErrors  float64
	Latency     float64
	ErrorCount  float64
}

// DefaultBadnessWeights matches the weighting used by the original
// discovery notebook: quality carries the most weight, latency
// contributes the least.
func DefaultBadnessWeights() BadnessWeights {
	return BadnessWeights{
		QualityEval:   0.3,
		GroundingEval: 0.2,
		ToolErrors:    0.2,
		Latency:       0.1,
		ErrorCount:    0.2,
	}
}

func (w BadnessWeights) ToMap() map[string]float64 {
	return map[string]float64{
		"quality_eval":   w.QualityEval,
		"grounding_eval": w.GroundingEval,
		"tool_errors":    w.ToolErrors,
		"latency":        w.Latency,
		"error_count":    w.ErrorCount,
	}
}

// BadnessScore is the aggregated [0,1] badness for one trace, along with
// the individual signals that fed it (for explainability / debugging).
type BadnessScore struct {
	TraceID string
	Overall float64
	Signals map[string]float64
}

// IsBad reports whether the trace crosses the fixed badness threshold
// used throughout clustering and slicing. A score exactly at the
// threshold does not count as bad.
func (b BadnessScore) IsBad(threshold float64) bool {
	return b.Overall > threshold
}

// ClusterResult describes one discovered cluster of traces.
type ClusterResult struct {
	ClusterID       int
	Size            int
	BadnessRate     float64
	AvgBadness      float64
	DominantIntent  string
	DominantRoute   string
	DominantModel   string
	ExampleTraceIDs []string
	Centroid        []float64
}

// IsProblematic flags clusters whose bad-trace rate clears the badness
// threshold and that are large enough to matter.
func (c ClusterResult) IsProblematic(badnessThreshold float64, minSize int) bool {
	return c.BadnessRate >= badnessThreshold && c.Size >= minSize
}

// Slice is one attribute-value conjunction found to correlate with
// elevated badness (e.g. intent=refund AND model=gpt-4o-mini).
type Slice struct {
	Attributes      map[string]string
	Size            int
	BadnessRate     float64
	BaselineRate    float64
	Lift            float64
	PValue          float64
	ExampleTraceIDs []string
}

// IsSignificant reports whether the slice cleared the configured
// significance threshold. Computed rather than stored so callers can
// re-evaluate against a different threshold without re-running the test.
func (s Slice) IsSignificant(threshold float64) bool {
	return s.PValue < threshold
}

// AttributeString renders the slice's attribute conjunction in a stable,
// human-readable form, e.g. "intent=refund, model=gpt-4o-mini".
func (s Slice) AttributeString() string {
	if len(s.Attributes) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(s.Attributes))
	for k := range s.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += k + "=" + s.Attributes[k]
	}
	return out
}

// DiscoveryReport is the final output of a pipeline run: the full set of
// clusters and the top-ranked slices (at most 20, not all of them
// necessarily significant), plus summary counts computed once at
// construction time.
type DiscoveryReport struct {
	ProjectID            string
	RunID                string
	TimeRangeStart        time.Time
	TimeRangeEnd          time.Time
	TotalTraces           int
	BaselineBadnessRate   float64
	Clusters              []ClusterResult
	TopSlices             []Slice
	NumClusters           int
	NumSignificantSlices  int
	GeneratedAt           time.Time
}

const topSliceLimit = 20

// NewDiscoveryReport assembles a report and computes its derived counts,
// truncating slices to the top 20 by lift (the pipeline is expected to
// pass slices already sorted).
func NewDiscoveryReport(projectID, runID string, rangeStart, rangeEnd time.Time, totalTraces int, baselineBadness float64, clusters []ClusterResult, slices []Slice, significanceThreshold float64, generatedAt time.Time) DiscoveryReport {
	top := slices
	if len(top) > topSliceLimit {
		top = top[:topSliceLimit]
	}
	significant := 0
	for _, s := range slices {
		if s.IsSignificant(significanceThreshold) {
			significant++
		}
	}
	return DiscoveryReport{
		ProjectID:            projectID,
		RunID:                runID,
		TimeRangeStart:       rangeStart,
		TimeRangeEnd:         rangeEnd,
		TotalTraces:          totalTraces,
		BaselineBadnessRate:  baselineBadness,
		Clusters:             clusters,
		TopSlices:            top,
		NumClusters:          len(clusters),
		NumSignificantSlices: significant,
		GeneratedAt:          generatedAt,
	}
}

// WorstCluster returns the cluster with the highest badness rate, if any.
func (r DiscoveryReport) WorstCluster() (ClusterResult, bool) {
	if len(r.Clusters) == 0 {
		return ClusterResult{}, false
	}
	worst := r.Clusters[0]
	for _, c := range r.Clusters[1:] {
		if c.BadnessRate > worst.BadnessRate {
			worst = c
		}
	}
	return worst, true
}

// WorstSlice returns the slice with the highest lift, if any.
func (r DiscoveryReport) WorstSlice() (Slice, bool) {
	if len(r.TopSlices) == 0 {
		return Slice{}, false
	}
	worst := r.TopSlices[0]
	for _, s := range r.TopSlices[1:] {
		if s.Lift > worst.Lift {
			worst = s
		}
	}
	return worst, true
}

// Summary renders a short human-readable digest, matching the style of
// a one-paragraph run summary a dashboard or CLI would print.
func (r DiscoveryReport) Summary() string {
	out := fmt.Sprintf("traces=%d clusters=%d significant_slices=%d", r.TotalTraces, r.NumClusters, r.NumSignificantSlices)
	if worstCluster, ok := r.WorstCluster(); ok {
		out += fmt.Sprintf(" worst_cluster_badness=%.2f", worstCluster.BadnessRate)
	}
	if worstSlice, ok := r.WorstSlice(); ok {
		out += " worst_slice=" + worstSlice.AttributeString()
	}
	return out
}
