package cluster

import (
	"sort"

	discoverydomain "github.com/longregen/tracediscover/internal/domain/discovery"
	"github.com/longregen/tracediscover/pkg/statutil"
)

const representativeCount = 5

const (
	defaultClusterBadnessRate = 0.5
	defaultClusterAvgBadness  = 0.0
)

// buildClusterResults turns raw labels into ClusterResult values: noise
// points (label -1) are skipped, each remaining label becomes one
// cluster, and results are sorted by badness rate descending (worst
// clusters first).
func buildClusterResults(inputs []Input, standardized [][]float64, labels []int) []discoverydomain.ClusterResult {
	byLabel := make(map[int][]int)
	for i, l := range labels {
		if l < 0 {
			continue
		}
		byLabel[l] = append(byLabel[l], i)
	}

	labelIDs := make([]int, 0, len(byLabel))
	for l := range byLabel {
		labelIDs = append(labelIDs, l)
	}
	sort.Ints(labelIDs)

	results := make([]discoverydomain.ClusterResult, 0, len(labelIDs))
	for clusterIdx, label := range labelIDs {
		memberIdx := byLabel[label]

		badnessSum := 0.0
		badCount := 0
		for _, idx := range memberIdx {
			badnessSum += inputs[idx].Badness
			if inputs[idx].Badness > 0.5 {
				badCount++
			}
		}
		size := len(memberIdx)
		avgBadness := defaultClusterAvgBadness
		badnessRate := defaultClusterBadnessRate
		if size > 0 {
			avgBadness = badnessSum / float64(size)
			badnessRate = float64(badCount) / float64(size)
		}

		intents := make([]string, len(memberIdx))
		routes := make([]string, len(memberIdx))
		models := make([]string, len(memberIdx))
		for i, idx := range memberIdx {
			intents[i] = inputs[idx].Intent
			routes[i] = inputs[idx].Route
			models[i] = inputs[idx].Model
		}

		centroid := centroidOf(standardized, memberIdx)
		representatives := selectRepresentatives(inputs, standardized, memberIdx, centroid)

		results = append(results, discoverydomain.ClusterResult{
			ClusterID:       clusterIdx,
			Size:            size,
			BadnessRate:     badnessRate,
			AvgBadness:      avgBadness,
			DominantIntent:  mode(intents),
			DominantRoute:   mode(routes),
			DominantModel:   mode(models),
			ExampleTraceIDs: representatives,
			Centroid:        centroid,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].BadnessRate > results[j].BadnessRate })
	return results
}

func centroidOf(rows [][]float64, idx []int) []float64 {
	if len(idx) == 0 {
		return nil
	}
	width := len(rows[idx[0]])
	sum := make([]float64, width)
	for _, i := range idx {
		for d, v := range rows[i] {
			sum[d] += v
		}
	}
	for d := range sum {
		sum[d] /= float64(len(idx))
	}
	return sum
}

// selectRepresentatives returns up to representativeCount trace IDs
// closest to the cluster centroid, ordered nearest-first.
func selectRepresentatives(inputs []Input, rows [][]float64, idx []int, centroid []float64) []string {
	type distIdx struct {
		i int
		d float64
	}
	dists := make([]distIdx, len(idx))
	for k, i := range idx {
		dists[k] = distIdx{i: i, d: statutil.EuclideanDistance(rows[i], centroid)}
	}
	sort.Slice(dists, func(a, b int) bool { return dists[a].d < dists[b].d })

	limit := representativeCount
	if limit > len(dists) {
		limit = len(dists)
	}
	out := make([]string, limit)
	for k := 0; k < limit; k++ {
		out[k] = inputs[dists[k].i].TraceID
	}
	return out
}

// mode returns the most frequent non-empty value, or "" if none.
func mode(values []string) string {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	best, bestCount := "", 0
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}
