// Package badness aggregates per-trace signals into a single [0,1]
// badness score.
package badness

import (
	discoverydomain "github.com/longregen/tracediscover/internal/domain/discovery"
	"github.com/longregen/tracediscover/pkg/statutil"
)

// defaultBadness is returned when the weights sum to zero, so no signal
// contributes — treated as "unknown, assume moderately bad" rather than
// either extreme. Missing inputs do not trigger it; each signal has its
// own default instead.
const defaultBadness = 0.5

// defaultLatencyP95 is the fallback p95 used to normalize latency when no
// trace in the batch has a positive latency to compute one from.
const defaultLatencyP95 = 30000.0

// qualityEvalDefault and groundingEvalDefault are used when a trace has
// no eval annotation at all: neither good nor bad, the midpoint of the
// [0,1] scale.
const qualityEvalDefault = 0.5
const groundingEvalDefault = 0.5

// errorCountSaturation is the error count at which the error_count
// signal reaches its maximum of 1.0.
const errorCountSaturation = 3.0

// Compute aggregates one trace's signals into an overall badness score,
// given the batch-wide p95 latency used to normalize the latency signal.
// All five signals are always computed, falling back to their
// documented defaults when the underlying input is absent, and the
// weighted average always divides by the full configured weight sum —
// a missing eval never shrinks the denominator.
func Compute(f discoverydomain.TraceFeatures, weights discoverydomain.BadnessWeights, latencyP95 float64) discoverydomain.BadnessScore {
	signals := make(map[string]float64)
	totalWeight := 0.0
	weighted := 0.0

	add := func(name string, weight, value float64) {
		if weight == 0 {
			return
		}
		signals[name] = value
		totalWeight += weight
		weighted += weight * value
	}

	quality := qualityEvalDefault
	if f.QualityEval != nil {
		quality = *f.QualityEval
	}
	add("quality_eval", weights.QualityEval, 1.0-quality)

	grounding := groundingEvalDefault
	if f.GroundingEval != nil {
		grounding = *f.GroundingEval
	}
	add("grounding_eval", weights.GroundingEval, 1.0-grounding)

	toolErrorRate := 1.0 - f.ToolSuccessRate
	add("tool_errors", weights.ToolErrors, toolErrorRate)

	latencySignal := 0.0
	if latencyP95 <= 0 {
		latencyP95 = defaultLatencyP95
	}
	if f.LatencyMs > 0 {
		latencySignal = f.LatencyMs / latencyP95
		if latencySignal > 1 {
			latencySignal = 1
		}
	}
	add("latency", weights.Latency, latencySignal)

	errorSignal := 0.0
	if f.ErrorCount > 0 {
		errorSignal = float64(f.ErrorCount) / errorCountSaturation
		if errorSignal > 1 {
			errorSignal = 1
		}
	}
	add("error_count", weights.ErrorCount, errorSignal)

	overall := defaultBadness
	if totalWeight > 0 {
		overall = weighted / totalWeight
	}

	return discoverydomain.BadnessScore{
		TraceID: f.TraceID,
		Overall: overall,
		Signals: signals,
	}
}

// ComputeBatch scores every trace in feats, computing the batch's p95
// latency (over positive latencies only) once up front and reusing it as
// the latency normalizer for every trace.
func ComputeBatch(feats []discoverydomain.TraceFeatures, weights discoverydomain.BadnessWeights) []discoverydomain.BadnessScore {
	var positiveLatencies []float64
	for _, f := range feats {
		if f.LatencyMs > 0 {
			positiveLatencies = append(positiveLatencies, f.LatencyMs)
		}
	}

	p95 := defaultLatencyP95
	if len(positiveLatencies) > 0 {
		p95 = statutil.Percentile95(positiveLatencies)
	}

	scores := make([]discoverydomain.BadnessScore, len(feats))
	for i, f := range feats {
		scores[i] = Compute(f, weights, p95)
	}
	return scores
}

// BadTraceIDs returns the trace IDs whose overall badness score is
// strictly above threshold.
func BadTraceIDs(scores []discoverydomain.BadnessScore, threshold float64) []string {
	var out []string
	for _, s := range scores {
		if s.IsBad(threshold) {
			out = append(out, s.TraceID)
		}
	}
	return out
}
