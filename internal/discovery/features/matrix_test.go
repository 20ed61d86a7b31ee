package features

import (
	"testing"

	discoverydomain "github.com/longregen/tracediscover/internal/domain/discovery"
	"github.com/stretchr/testify/assert"
)

func TestBuildFeatureMatrix_ScalarWidth(t *testing.T) {
	feats := []discoverydomain.TraceFeatures{
		{
			TraceID: "t1", ToolSuccessRate: 1.0, ToolCallCount: 2,
			LatencyMs: 120, LLMLatencyMs: 80, ToolLatencyMs: 30,
			LLMCallCount: 3, TokenCount: 50, ErrorCount: 0, UniqueToolsUsed: 2,
			ToolNgrams: map[string]int{"search": 1},
		},
		{
			TraceID: "t2", ToolSuccessRate: 0.5, ToolCallCount: 1,
			LatencyMs: 900, LLMLatencyMs: 400, ToolLatencyMs: 200,
			LLMCallCount: 1, TokenCount: 20, ErrorCount: 1, UniqueToolsUsed: 1,
			ToolNgrams: map[string]int{"search": 1, "fetch": 2},
		},
	}

	m, ngramCols := BuildFeatureMatrix(feats, false)
	rows, cols := m.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, ScalarWidth+len(ngramCols), cols)
	assert.Equal(t, 120.0, m.At(0, 0))
	assert.Equal(t, 80.0, m.At(0, 1))
	assert.Equal(t, 30.0, m.At(0, 2))
	assert.Equal(t, 50.0, m.At(0, 3))
	assert.Equal(t, 3.0, m.At(0, 4))
	assert.Equal(t, 2.0, m.At(0, 5))
	assert.Equal(t, 1.0, m.At(0, 6))
	assert.Equal(t, 0.0, m.At(0, 7))
	assert.Equal(t, 2.0, m.At(0, 8))
	assert.Equal(t, 1.0, m.At(1, 7))
}

func TestBuildFeatureMatrix_Empty(t *testing.T) {
	m, cols := BuildFeatureMatrix(nil, false)
	rows, c := m.Dims()
	assert.Equal(t, 0, rows)
	assert.Equal(t, 0, c)
	assert.Nil(t, cols)
}

func TestBuildFeatureMatrix_WithEmbeddings(t *testing.T) {
	feats := []discoverydomain.TraceFeatures{
		{TraceID: "t1", Embedding: []float64{0.1, 0.2, 0.3}},
		{TraceID: "t2", Embedding: []float64{0.4, 0.5, 0.6}},
	}
	m, _ := BuildFeatureMatrix(feats, true)
	_, cols := m.Dims()
	assert.Equal(t, 3+ScalarWidth, cols)
	assert.Equal(t, 0.1, m.At(0, 0))
}
