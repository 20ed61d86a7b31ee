package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	discoverydomain "github.com/longregen/tracediscover/internal/domain/discovery"
	"github.com/longregen/tracediscover/internal/discovery/pipeline"
	"github.com/longregen/tracediscover/internal/ports"
)

// DiscoveryHandler triggers discovery pipeline runs and serves their
// results back. Runs execute in the background; the create endpoint
// returns as soon as the run is recorded as started.
type DiscoveryHandler struct {
	Orchestrator *pipeline.Orchestrator
	Repo         ports.DiscoveryRunRepository
	IDGen        ports.IDGenerator
	Now          func() time.Time
}

// NewDiscoveryHandler wires a handler from its dependencies, defaulting
// Now to time.Now.
func NewDiscoveryHandler(orchestrator *pipeline.Orchestrator, repo ports.DiscoveryRunRepository, idGen ports.IDGenerator) *DiscoveryHandler {
	return &DiscoveryHandler{Orchestrator: orchestrator, Repo: repo, IDGen: idGen, Now: time.Now}
}

func (h *DiscoveryHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// CreateRun handles POST /projects/{project}/discovery-runs. It records a
// "running" row synchronously and kicks off the pipeline in a goroutine;
// clients poll GetRun for completion.
func (h *DiscoveryHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	projectID, ok := requireURLParam(r, w, "project")
	if !ok {
		return
	}

	req, ok := decodeJSON[createRunRequest](r, w)
	if !ok {
		return
	}

	cfg := req.toConfig()
	window := req.toTimeRange(h.now())
	runID := h.IDGen.GenerateRunID()
	startedAt := h.now()

	configSummary := map[string]interface{}{
		"cluster_method":         string(cfg.ClusterMethod),
		"min_cluster_size":       cfg.MinClusterSize,
		"slice_attributes":       cfg.SliceAttributes,
		"min_slice_size":         cfg.MinSliceSize,
		"max_slice_depth":        cfg.MaxSliceDepth,
		"significance_threshold": cfg.SignificanceThreshold,
		"embedding_model":        cfg.EmbeddingModel,
		"skip_embeddings":        cfg.SkipEmbeddings,
	}

	if err := h.Repo.CreateRun(r.Context(), ports.DiscoveryRunRecord{
		ID: runID, ProjectID: projectID, StartedAt: startedAt, Status: "running", Config: configSummary,
	}); err != nil {
		log.Printf("httpapi: failed to create run %s: %v", runID, err)
		respondError(w, "internal_error", "Failed to create run", http.StatusInternalServerError)
		return
	}

	go h.execute(context.Background(), runID, projectID, window, cfg)

	respondJSON(w, createRunResponse{RunID: runID, Status: "running"}, http.StatusAccepted)
}

func (h *DiscoveryHandler) execute(ctx context.Context, runID, projectID string, window pipeline.TimeRange, cfg pipeline.Config) {
	report, err := h.Orchestrator.Run(ctx, projectID, window, cfg)
	completedAt := h.now()

	if err != nil {
		log.Printf("httpapi: run %s failed: %v", runID, err)
		if ferr := h.Repo.FailRun(ctx, runID, completedAt, err.Error()); ferr != nil {
			log.Printf("httpapi: failed to record failure for run %s: %v", runID, ferr)
		}
		return
	}

	if cerr := h.Repo.SaveClusters(ctx, runID, toClusterRecords(runID, report.Clusters)); cerr != nil {
		log.Printf("httpapi: failed to save clusters for run %s: %v", runID, cerr)
	}
	if serr := h.Repo.SaveSlices(ctx, runID, toSliceRecords(runID, report.TopSlices)); serr != nil {
		log.Printf("httpapi: failed to save slices for run %s: %v", runID, serr)
	}
	if err := h.Repo.CompleteRun(ctx, runID, completedAt, "completed", reportToSummary(report), report.TotalTraces, report.BaselineBadnessRate); err != nil {
		log.Printf("httpapi: failed to complete run %s: %v", runID, err)
	}
}

// GetRun handles GET /discovery-runs/{id}.
func (h *DiscoveryHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := requireURLParam(r, w, "id")
	if !ok {
		return
	}

	run, err := h.Repo.GetRun(r.Context(), runID)
	if err != nil {
		log.Printf("httpapi: failed to fetch run %s: %v", runID, err)
		respondError(w, "internal_error", "Failed to fetch run", http.StatusInternalServerError)
		return
	}
	if run == nil {
		respondError(w, "not_found", "Run not found", http.StatusNotFound)
		return
	}

	resp := runResponse{
		RunID: run.ID, ProjectID: run.ProjectID, Status: run.Status,
		StartedAt: run.StartedAt, CompletedAt: run.CompletedAt, ErrorMessage: run.ErrorMessage,
		TotalTraces: run.TotalTraces, BaselineBadnessRate: run.BaselineBadnessRate,
	}

	if run.Status == "completed" {
		clusters, err := h.Repo.GetClusters(r.Context(), runID)
		if err != nil {
			log.Printf("httpapi: failed to fetch clusters for run %s: %v", runID, err)
		}
		for _, c := range clusters {
			resp.Clusters = append(resp.Clusters, clusterResponse{
				ClusterID: c.ClusterIndex, Size: c.Size, BadnessRate: c.BadnessRate, AvgBadness: c.AvgBadness,
				DominantIntent: c.DominantIntent, DominantRoute: c.DominantRoute, DominantModel: c.DominantModel,
				ExampleTraceIDs: c.ExampleTraceIDs,
			})
		}

		slices, err := h.Repo.GetSlices(r.Context(), runID)
		if err != nil {
			log.Printf("httpapi: failed to fetch slices for run %s: %v", runID, err)
		}
		for _, s := range slices {
			resp.Slices = append(resp.Slices, sliceResponse{
				Attributes: s.Attributes, Size: s.Size, BadnessRate: s.BadnessRate, BaselineRate: s.BaselineRate,
				Lift: s.Lift, PValue: s.PValue, ExampleTraceIDs: s.ExampleTraceIDs,
			})
		}
	}

	respondJSON(w, resp, http.StatusOK)
}

func toClusterRecords(runID string, clusters []discoverydomain.ClusterResult) []ports.DiscoveryClusterRecord {
	out := make([]ports.DiscoveryClusterRecord, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, ports.DiscoveryClusterRecord{
			RunID: runID, ClusterIndex: c.ClusterID, Size: c.Size, BadnessRate: c.BadnessRate, AvgBadness: c.AvgBadness,
			DominantIntent: c.DominantIntent, DominantRoute: c.DominantRoute, DominantModel: c.DominantModel,
			ExampleTraceIDs: c.ExampleTraceIDs, Centroid: float64sToFloat32s(c.Centroid),
		})
	}
	return out
}

func toSliceRecords(runID string, slices []discoverydomain.Slice) []ports.DiscoverySliceRecord {
	out := make([]ports.DiscoverySliceRecord, 0, len(slices))
	for _, s := range slices {
		out = append(out, ports.DiscoverySliceRecord{
			RunID: runID, Attributes: s.Attributes, Size: s.Size, BadnessRate: s.BadnessRate,
			BaselineRate: s.BaselineRate, Lift: s.Lift, PValue: s.PValue, ExampleTraceIDs: s.ExampleTraceIDs,
		})
	}
	return out
}

func float64sToFloat32s(in []float64) []float32 {
	if len(in) == 0 {
		return nil
	}
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
