package cluster

import (
	"math/rand"

	"github.com/longregen/tracediscover/pkg/statutil"
)

const kMeansMaxIterations = 100

// kMeansFinalInits and kMeansProbeInits are the number of random
// restarts used for, respectively, the production clustering fit and
// each per-k probe during elbow-rule k estimation. Every restart uses a
// distinct derived seed; the restart with the lowest inertia wins.
const kMeansFinalInits = 10
const kMeansProbeInits = 5

// kMeansLabels runs KMeans to convergence from kMeansFinalInits random
// restarts and returns the cluster label for every row from whichever
// restart reached the lowest inertia. k is clamped to [1, len(rows)].
func kMeansLabels(rows [][]float64, k int, seed int64) []int {
	n := len(rows)
	if n == 0 {
		return nil
	}
	if k > n {
		k = n
	}
	if k < 1 {
		k = 1
	}

	_, labels := kMeansBest(rows, k, seed, kMeansFinalInits)
	return labels
}

// kMeansBest runs nInit seeded KMeans fits (seed, seed+1, ..., seed+nInit-1)
// and returns the centroids/labels of the lowest-inertia fit.
func kMeansBest(rows [][]float64, k int, seed int64, nInit int) ([][]float64, []int) {
	if nInit < 1 {
		nInit = 1
	}
	bestCentroids, bestLabels := kMeansRun(rows, k, seed)
	bestInertia := inertia(rows, bestCentroids, bestLabels)
	for i := 1; i < nInit; i++ {
		centroids, labels := kMeansRun(rows, k, seed+int64(i))
		if in := inertia(rows, centroids, labels); in < bestInertia {
			bestCentroids, bestLabels, bestInertia = centroids, labels, in
		}
	}
	return bestCentroids, bestLabels
}

// kMeansRun runs Lloyd's algorithm to convergence (or kMeansMaxIterations)
// from a seeded random initial assignment of centroids to distinct input
// points, and returns the final centroids and labels.
func kMeansRun(rows [][]float64, k int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	n := len(rows)

	perm := rng.Perm(n)
	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float64(nil), rows[perm[i%n]]...)
	}

	labels := make([]int, n)
	for iter := 0; iter < kMeansMaxIterations; iter++ {
		changed := false
		for i, row := range rows {
			best, bestDist := 0, statutil.EuclideanDistance(row, centroids[0])
			for c := 1; c < k; c++ {
				d := statutil.EuclideanDistance(row, centroids[c])
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := 0; c < k; c++ {
			sums[c] = make([]float64, len(rows[0]))
		}
		for i, row := range rows {
			c := labels[i]
			counts[c]++
			for d, v := range row {
				sums[c][d] += v
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for d := range sums[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}

		if !changed && iter > 0 {
			break
		}
	}

	return centroids, labels
}

// inertia returns the sum of squared distances from each row to its
// assigned centroid, the objective KMeans minimizes.
func inertia(rows [][]float64, centroids [][]float64, labels []int) float64 {
	total := 0.0
	for i, row := range rows {
		d := statutil.EuclideanDistance(row, centroids[labels[i]])
		total += d * d
	}
	return total
}

// estimateK picks k via the elbow rule: run KMeans for k in [2, maxK],
// take the second difference of the inertia curve, and pick
// argmax(secondDiff)+2. Falls back to 3 when fewer than three candidate
// inertias are available to difference.
func estimateK(rows [][]float64, maxK int, seed int64) int {
	n := len(rows)
	upper := maxK + 1
	if upper > n {
		upper = n
	}

	var inertias []float64
	for k := 2; k < upper; k++ {
		centroids, labels := kMeansBest(rows, k, seed, kMeansProbeInits)
		inertias = append(inertias, inertia(rows, centroids, labels))
	}

	if len(inertias) < 3 {
		return 3
	}

	firstDiff := diff(inertias)
	secondDiff := diff(firstDiff)

	bestIdx, bestVal := 0, secondDiff[0]
	for i, v := range secondDiff {
		if v > bestVal {
			bestIdx, bestVal = i, v
		}
	}
	return bestIdx + 2
}

func diff(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		out[i-1] = xs[i] - xs[i-1]
	}
	return out
}
