// Package cluster groups traces by standardized feature vector and
// annotates each group with badness statistics and dominant attributes.
package cluster

import (
	discoverydomain "github.com/longregen/tracediscover/internal/domain/discovery"
	"github.com/longregen/tracediscover/pkg/statutil"
)

// Method selects the clustering algorithm.
type Method string

const (
	MethodHDBSCAN Method = "hdbscan"
	MethodKMeans  Method = "kmeans"
)

// Config controls the clustering run.
type Config struct {
	Method         Method
	MinClusterSize int
	// NClusters pins k for kmeans; nil triggers the elbow-rule estimator.
	NClusters *int
	// Seed drives every source of randomness in this package (centroid
	// initialization). Fixed at 42 across the discovery pipeline so runs
	// are reproducible.
	Seed int64
	// MinSamples is the neighborhood size used for HDBSCAN-style core
	// distances. Defaults to 5 when zero.
	MinSamples int
	// MaxK bounds the elbow-rule search range for kmeans. The pipeline
	// computes this as min(10, n/5) over the batch size before calling
	// Run; 0 is a legitimate cap for small batches, not "unset".
	MaxK int
}

// Input is one trace's contribution to clustering: its standardized
// feature vector plus the attributes and badness needed to describe
// whatever cluster it ends up in.
type Input struct {
	TraceID string
	Vector  []float64
	Badness float64
	Intent  string
	Route   string
	Model   string
}

// Run clusters inputs and returns one ClusterResult per discovered
// cluster (sorted by badness rate descending), plus the raw label
// assigned to each input in the same order as inputs (-1 for noise,
// matching HDBSCAN/DBSCAN convention).
//
// Returns an empty result (no error) when len(inputs) < cfg.MinClusterSize,
// matching the source pipeline's precondition: clustering below the
// minimum cluster size is defined as "nothing found" rather than a
// failure.
func Run(inputs []Input, cfg Config) ([]discoverydomain.ClusterResult, []int) {
	if len(inputs) < cfg.MinClusterSize {
		return nil, make([]int, len(inputs))
	}

	rows := make([][]float64, len(inputs))
	for i, in := range inputs {
		rows[i] = in.Vector
	}
	standardized, _, _ := statutil.Standardize(rows)

	minSamples := cfg.MinSamples
	if minSamples == 0 {
		minSamples = 5
	}

	var labels []int
	switch cfg.Method {
	case MethodKMeans:
		k := resolveK(standardized, cfg)
		labels = kMeansLabels(standardized, k, cfg.Seed)
	default:
		var ok bool
		labels, ok = densityLabels(standardized, cfg.MinClusterSize, minSamples)
		if !ok {
			k := resolveK(standardized, cfg)
			labels = kMeansLabels(standardized, k, cfg.Seed)
		}
	}

	results := buildClusterResults(inputs, standardized, labels)
	return results, labels
}

// maxKFallback is used only when a caller sets MaxK to a negative value
// (a zero MaxK is a cap of 0, not "unset"); the discovery pipeline always computes and passes an
// explicit min(10, n/5) cap, including a legitimate 0 for small batches.
const maxKFallback = 10

func resolveK(rows [][]float64, cfg Config) int {
	if cfg.NClusters != nil {
		return *cfg.NClusters
	}
	maxK := cfg.MaxK
	if maxK < 0 {
		maxK = maxKFallback
	}
	return estimateK(rows, maxK, cfg.Seed)
}
