package cluster

import (
	"sort"

	"github.com/longregen/tracediscover/pkg/statutil"
)

// densityLabels implements a simplified HDBSCAN: core distances from a
// k-nearest-neighbor radius, a minimum spanning tree over the mutual
// reachability metric, and a single-linkage merge that promotes a
// component to a cluster the first time its size reaches
// minClusterSize. Returns ok=false when the input is too small for
// minSamples to mean anything — the Go equivalent of the original
// pipeline's ImportError fallback, reinterpreted as genuine input
// degeneracy rather than a missing optional dependency.
func densityLabels(rows [][]float64, minClusterSize, minSamples int) ([]int, bool) {
	n := len(rows)
	if n <= minSamples || n < minClusterSize {
		return nil, false
	}

	core := coreDistances(rows, minSamples)
	edges := mutualReachabilityMST(rows, core)

	sort.Slice(edges, func(i, j int) bool { return edges[i].weight < edges[j].weight })

	uf := newUnionFind(n)
	componentLabel := make(map[int]int)
	nextLabel := 0

	for _, e := range edges {
		ru, rv := uf.find(e.u), uf.find(e.v)
		if ru == rv {
			continue
		}
		labelU, hasU := componentLabel[ru]
		labelV, hasV := componentLabel[rv]
		newRoot := uf.union(ru, rv)
		delete(componentLabel, ru)
		delete(componentLabel, rv)

		switch {
		case hasU && hasV:
			if labelU < labelV {
				componentLabel[newRoot] = labelU
			} else {
				componentLabel[newRoot] = labelV
			}
		case hasU:
			componentLabel[newRoot] = labelU
		case hasV:
			componentLabel[newRoot] = labelV
		default:
			if uf.size(newRoot) >= minClusterSize {
				componentLabel[newRoot] = nextLabel
				nextLabel++
			}
		}
	}

	labels := make([]int, n)
	for i := 0; i < n; i++ {
		root := uf.find(i)
		if label, ok := componentLabel[root]; ok {
			labels[i] = label
		} else {
			labels[i] = -1
		}
	}
	return labels, true
}

type edge struct {
	u, v   int
	weight float64
}

// coreDistances returns, for every point, the Euclidean distance to its
// minSamples-th nearest neighbor (excluding itself).
func coreDistances(rows [][]float64, minSamples int) []float64 {
	n := len(rows)
	core := make([]float64, n)
	for i := 0; i < n; i++ {
		dists := make([]float64, 0, n-1)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			dists = append(dists, statutil.EuclideanDistance(rows[i], rows[j]))
		}
		sort.Float64s(dists)
		idx := minSamples - 1
		if idx >= len(dists) {
			idx = len(dists) - 1
		}
		if idx < 0 {
			idx = 0
		}
		core[i] = dists[idx]
	}
	return core
}

// mutualReachabilityMST builds a minimum spanning tree over the complete
// graph whose edge weight is max(core[i], core[j], euclidean(i,j)), using
// Prim's algorithm (O(n^2), adequate for the batch sizes this pipeline
// targets).
func mutualReachabilityMST(rows [][]float64, core []float64) []edge {
	n := len(rows)
	if n < 2 {
		return nil
	}

	inTree := make([]bool, n)
	minEdge := make([]float64, n)
	minFrom := make([]int, n)
	for i := range minEdge {
		minEdge[i] = -1
	}

	inTree[0] = true
	for j := 1; j < n; j++ {
		minEdge[j] = mutualReachability(rows, core, 0, j)
		minFrom[j] = 0
	}

	edges := make([]edge, 0, n-1)
	for k := 1; k < n; k++ {
		next, bestW := -1, 0.0
		for j := 0; j < n; j++ {
			if inTree[j] || minEdge[j] < 0 {
				continue
			}
			if next == -1 || minEdge[j] < bestW {
				next, bestW = j, minEdge[j]
			}
		}
		if next == -1 {
			break
		}
		edges = append(edges, edge{u: minFrom[next], v: next, weight: bestW})
		inTree[next] = true

		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			w := mutualReachability(rows, core, next, j)
			if minEdge[j] < 0 || w < minEdge[j] {
				minEdge[j] = w
				minFrom[j] = next
			}
		}
	}
	return edges
}

func mutualReachability(rows [][]float64, core []float64, i, j int) float64 {
	d := statutil.EuclideanDistance(rows[i], rows[j])
	m := core[i]
	if core[j] > m {
		m = core[j]
	}
	if d > m {
		m = d
	}
	return m
}

type unionFind struct {
	parent []int
	sizes  []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), sizes: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.sizes[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// union merges the components containing x and y, returning the new
// root. Assumes x and y are already roots of distinct components.
func (uf *unionFind) union(x, y int) int {
	if uf.sizes[x] < uf.sizes[y] {
		x, y = y, x
	}
	uf.parent[y] = x
	uf.sizes[x] += uf.sizes[y]
	return x
}

func (uf *unionFind) size(root int) int {
	return uf.sizes[root]
}
