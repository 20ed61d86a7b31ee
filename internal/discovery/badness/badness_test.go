package badness

import (
	"testing"

	discoverydomain "github.com/longregen/tracediscover/internal/domain/discovery"
	"github.com/stretchr/testify/assert"
)

func TestCompute_AllSignalsPresent(t *testing.T) {
	quality := 0.2
	grounding := 0.9
	f := discoverydomain.TraceFeatures{
		TraceID: "t1", QualityEval: &quality, GroundingEval: &grounding,
		ToolSuccessRate: 0.5, ToolCallCount: 4, LatencyMs: 15000, ErrorCount: 1,
	}
	score := Compute(f, discoverydomain.DefaultBadnessWeights(), 30000)

	assert.Equal(t, "t1", score.TraceID)
	assert.InDelta(t, 0.8, score.Signals["quality_eval"], 1e-9)
	assert.InDelta(t, 0.1, score.Signals["grounding_eval"], 1e-9)
	assert.InDelta(t, 0.5, score.Signals["tool_errors"], 1e-9)
	assert.InDelta(t, 0.5, score.Signals["latency"], 1e-9)
	assert.True(t, score.Overall > 0 && score.Overall < 1)
}

func TestCompute_NoSignals(t *testing.T) {
	f := discoverydomain.TraceFeatures{TraceID: "t2"}
	weights := discoverydomain.BadnessWeights{}
	score := Compute(f, weights, 30000)
	assert.Equal(t, defaultBadness, score.Overall)
}

func TestCompute_LatencyClampedAtOne(t *testing.T) {
	f := discoverydomain.TraceFeatures{TraceID: "t3", LatencyMs: 1_000_000}
	weights := discoverydomain.BadnessWeights{Latency: 1.0}
	score := Compute(f, weights, 1000)
	assert.Equal(t, 1.0, score.Overall)
}

func TestComputeBatch_DefaultP95WhenNoPositiveLatency(t *testing.T) {
	feats := []discoverydomain.TraceFeatures{
		{TraceID: "t1", LatencyMs: 0},
		{TraceID: "t2", LatencyMs: 0},
	}
	scores := ComputeBatch(feats, discoverydomain.DefaultBadnessWeights())
	assert.Len(t, scores, 2)
}

func TestBadTraceIDs(t *testing.T) {
	scores := []discoverydomain.BadnessScore{
		{TraceID: "good", Overall: 0.1},
		{TraceID: "bad", Overall: 0.9},
	}
	assert.Equal(t, []string{"bad"}, BadTraceIDs(scores, 0.5))
}
