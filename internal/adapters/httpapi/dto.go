package httpapi

import (
	"time"

	discoverydomain "github.com/longregen/tracediscover/internal/domain/discovery"
	"github.com/longregen/tracediscover/internal/discovery/cluster"
	"github.com/longregen/tracediscover/internal/discovery/pipeline"
)

// createRunRequest is the body of POST /projects/{project}/discovery-runs.
// Every field is optional; omitted fields fall back to pipeline.DefaultConfig.
type createRunRequest struct {
	Start                 *time.Time `json:"start"`
	End                   *time.Time `json:"end"`
	ClusterMethod         string     `json:"cluster_method"`
	MinClusterSize        *int       `json:"min_cluster_size"`
	NClusters             *int       `json:"n_clusters"`
	SliceAttributes       []string   `json:"slice_attributes"`
	MinSliceSize          *int       `json:"min_slice_size"`
	MaxSliceDepth         *int       `json:"max_slice_depth"`
	SignificanceThreshold *float64   `json:"significance_threshold"`
	EmbeddingModel        string     `json:"embedding_model"`
	SkipEmbeddings        bool       `json:"skip_embeddings"`
}

func (req createRunRequest) toConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	if req.ClusterMethod != "" {
		cfg.ClusterMethod = cluster.Method(req.ClusterMethod)
	}
	if req.MinClusterSize != nil {
		cfg.MinClusterSize = *req.MinClusterSize
	}
	if req.NClusters != nil {
		cfg.NClusters = req.NClusters
	}
	if len(req.SliceAttributes) > 0 {
		cfg.SliceAttributes = req.SliceAttributes
	}
	if req.MinSliceSize != nil {
		cfg.MinSliceSize = *req.MinSliceSize
	}
	if req.MaxSliceDepth != nil {
		cfg.MaxSliceDepth = *req.MaxSliceDepth
	}
	if req.SignificanceThreshold != nil {
		cfg.SignificanceThreshold = *req.SignificanceThreshold
	}
	if req.EmbeddingModel != "" {
		cfg.EmbeddingModel = req.EmbeddingModel
	}
	cfg.SkipEmbeddings = req.SkipEmbeddings
	return cfg
}

func (req createRunRequest) toTimeRange(now time.Time) pipeline.TimeRange {
	window := pipeline.TimeRange{Start: now.Add(-24 * time.Hour), End: now}
	if req.Start != nil {
		window.Start = *req.Start
	}
	if req.End != nil {
		window.End = *req.End
	}
	return window
}

type createRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type clusterResponse struct {
	ClusterID       int      `json:"cluster_id"`
	Size            int      `json:"size"`
	BadnessRate     float64  `json:"badness_rate"`
	AvgBadness      float64  `json:"avg_badness"`
	DominantIntent  string   `json:"dominant_intent"`
	DominantRoute   string   `json:"dominant_route"`
	DominantModel   string   `json:"dominant_model"`
	ExampleTraceIDs []string `json:"example_trace_ids"`
}

type sliceResponse struct {
	Attributes      map[string]string `json:"attributes"`
	Size            int               `json:"size"`
	BadnessRate     float64           `json:"badness_rate"`
	BaselineRate    float64           `json:"baseline_rate"`
	Lift            float64           `json:"lift"`
	PValue          float64           `json:"p_value"`
	ExampleTraceIDs []string          `json:"example_trace_ids"`
}

type runResponse struct {
	RunID               string             `json:"run_id"`
	ProjectID           string             `json:"project_id"`
	Status              string             `json:"status"`
	StartedAt           time.Time          `json:"started_at"`
	CompletedAt         *time.Time         `json:"completed_at,omitempty"`
	ErrorMessage        *string            `json:"error_message,omitempty"`
	TotalTraces         int                `json:"total_traces"`
	BaselineBadnessRate *float64           `json:"baseline_badness_rate,omitempty"`
	Clusters            []clusterResponse  `json:"clusters,omitempty"`
	Slices              []sliceResponse    `json:"slices,omitempty"`
}

func reportToSummary(r discoverydomain.DiscoveryReport) map[string]interface{} {
	return map[string]interface{}{
		"summary":                r.Summary(),
		"num_clusters":           r.NumClusters,
		"num_significant_slices": r.NumSignificantSlices,
	}
}
