package features

import (
	"sort"

	discoverydomain "github.com/longregen/tracediscover/internal/domain/discovery"
	"gonum.org/v1/gonum/mat"
)

// ScalarWidth is the fixed width of the per-trace scalar block in the
// feature matrix.
const ScalarWidth = 9

// TopNgramCount bounds how many distinct tool n-grams contribute columns
// to the feature matrix; the rest are dropped rather than growing the
// matrix unboundedly across a large trace population.
const TopNgramCount = 20

// BuildFeatureMatrix flattens features into a dense matrix for
// clustering: an optional embedding block, a fixed 9-wide scalar block,
// and a block of the TopNgramCount most common tool n-grams across the
// whole batch (each column a 0/1 presence indicator per trace).
//
// Scalar column order: total_latency_ms, llm_latency_ms, tool_latency_ms,
// total_tokens, llm_calls, tool_calls, tool_success_rate, error_count,
// unique_tools_used.
func BuildFeatureMatrix(feats []discoverydomain.TraceFeatures, useEmbeddings bool) (*mat.Dense, []string) {
	n := len(feats)
	if n == 0 {
		return &mat.Dense{}, nil
	}

	embeddingWidth := 0
	if useEmbeddings {
		for _, f := range feats {
			if len(f.Embedding) > embeddingWidth {
				embeddingWidth = len(f.Embedding)
			}
		}
	}

	topNgrams := topNgramColumns(feats, TopNgramCount)
	width := embeddingWidth + ScalarWidth + len(topNgrams)

	data := make([]float64, n*width)
	for i, f := range feats {
		row := data[i*width : (i+1)*width]
		col := 0

		if useEmbeddings {
			for j := 0; j < embeddingWidth; j++ {
				if j < len(f.Embedding) {
					row[col+j] = f.Embedding[j]
				}
			}
			col += embeddingWidth
		}

		row[col+0] = f.LatencyMs
		row[col+1] = f.LLMLatencyMs
		row[col+2] = f.ToolLatencyMs
		row[col+3] = float64(f.TokenCount)
		row[col+4] = float64(f.LLMCallCount)
		row[col+5] = float64(f.ToolCallCount)
		row[col+6] = f.ToolSuccessRate
		row[col+7] = float64(f.ErrorCount)
		row[col+8] = float64(f.UniqueToolsUsed)
		col += ScalarWidth

		for j, ng := range topNgrams {
			if _, ok := f.ToolNgrams[ng]; ok {
				row[col+j] = 1
			}
		}
	}

	return mat.NewDense(n, width, data), topNgrams
}

// topNgramColumns returns the TopNgramCount most frequent n-grams across
// all traces, ordered by descending total count then lexicographically
// for determinism.
func topNgramColumns(feats []discoverydomain.TraceFeatures, limit int) []string {
	counts := make(map[string]int)
	for _, f := range feats {
		for ng, c := range f.ToolNgrams {
			counts[ng] += c
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
