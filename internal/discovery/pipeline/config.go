package pipeline

import (
	"time"

	discoverydomain "github.com/longregen/tracediscover/internal/domain/discovery"
	"github.com/longregen/tracediscover/internal/discovery/cluster"
)

// Config is the full set of knobs a discovery run is invoked with.
// Field names and defaults mirror the run_discovery invocation table.
type Config struct {
	ClusterMethod         cluster.Method
	MinClusterSize        int
	NClusters             *int
	SliceAttributes       []string
	MinSliceSize          int
	MaxSliceDepth         int
	SignificanceThreshold float64
	BadnessWeights        discoverydomain.BadnessWeights
	EmbeddingModel        string
	SkipEmbeddings        bool
	MinTraces             int
	MaxTraces             int
}

// DefaultConfig matches the invocation defaults: HDBSCAN-style density
// clustering, slice attributes covering intent/route/model/prompt
// version, and a 50-10000 trace window wide enough for slice mining to
// have something to chew on without a pathologically long run.
func DefaultConfig() Config {
	return Config{
		ClusterMethod:         cluster.MethodHDBSCAN,
		MinClusterSize:        10,
		NClusters:             nil,
		SliceAttributes:       []string{"intent", "route", "model", "prompt_version"},
		MinSliceSize:          10,
		MaxSliceDepth:         2,
		SignificanceThreshold: 0.05,
		BadnessWeights:        discoverydomain.DefaultBadnessWeights(),
		EmbeddingModel:        "text-embedding-3-small",
		SkipEmbeddings:        false,
		MinTraces:             50,
		MaxTraces:             10000,
	}
}

// TimeRange is the [Start, End) window a run scans.
type TimeRange struct {
	Start time.Time
	End   time.Time
}
