// Package pipeline orchestrates the end-to-end discovery run: fetch,
// extract, embed, score, cluster, slice, report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/longregen/tracediscover/internal/discovery/badness"
	"github.com/longregen/tracediscover/internal/discovery/cluster"
	discoverydomain "github.com/longregen/tracediscover/internal/domain/discovery"
	"github.com/longregen/tracediscover/internal/discovery/features"
	"github.com/longregen/tracediscover/internal/discovery/slice"
	"github.com/longregen/tracediscover/internal/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("tracediscover/pipeline")

// Orchestrator runs discovery pipelines against a fixed set of
// collaborators. A single Orchestrator is safe to reuse across
// concurrent runs (each Run call is independent; the only shared mutable
// state is whatever the injected EmbeddingProvider caches internally).
type Orchestrator struct {
	TraceStore        ports.TraceStore
	AnnotationStore   ports.AnnotationStore
	EmbeddingProvider ports.EmbeddingProvider
	Metrics           Metrics
	Schema            features.Schema
	Now               func() time.Time
}

// NewOrchestrator constructs an Orchestrator with sensible defaults for
// the fields that are safe to default (Schema, Metrics, Now); TraceStore
// is required and the others are optional depending on Config.
func NewOrchestrator(traceStore ports.TraceStore, annotationStore ports.AnnotationStore, embeddingProvider ports.EmbeddingProvider) *Orchestrator {
	return &Orchestrator{
		TraceStore:        traceStore,
		AnnotationStore:   annotationStore,
		EmbeddingProvider: embeddingProvider,
		Metrics:           NoopMetrics{},
		Schema:            features.DefaultSchema(),
		Now:               time.Now,
	}
}

// Run executes one discovery pipeline invocation end to end, returning
// ErrInsufficientData when the project doesn't have enough traces in the
// requested window to analyze, or a wrapped ErrTraceFetchFailed when the
// trace store itself is unreachable.
func (o *Orchestrator) Run(ctx context.Context, projectID string, window TimeRange, cfg Config) (discoverydomain.DiscoveryReport, error) {
	ctx, span := tracer.Start(ctx, "discovery.run")
	defer span.End()

	started := o.now()
	o.Metrics.RunStarted(projectID)

	report, err := o.run(ctx, projectID, window, cfg, started)
	duration := o.now().Sub(started)
	if err != nil {
		span.RecordError(err)
		o.Metrics.RunFailed(projectID, failureReason(err))
		log.Printf("[pipeline] run failed: project=%s duration=%s error=%v", projectID, duration, err)
		return discoverydomain.DiscoveryReport{}, err
	}

	o.Metrics.RunCompleted(projectID, duration)
	o.Metrics.ClustersFound(projectID, report.NumClusters)
	o.Metrics.SignificantSlicesFound(projectID, report.NumSignificantSlices)
	log.Printf("[pipeline] run completed: project=%s duration=%s %s", projectID, duration, report.Summary())
	return report, nil
}

// failureReason classifies an error into a small, bounded label suitable
// for a metrics dimension (the raw error string has unbounded cardinality).
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrTraceFetchFailed):
		return "trace_fetch_failed"
	default:
		return "unexpected"
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) run(ctx context.Context, projectID string, window TimeRange, cfg Config, started time.Time) (discoverydomain.DiscoveryReport, error) {
	spans, err := o.stageFetchSpans(ctx, projectID, window)
	if err != nil {
		return discoverydomain.DiscoveryReport{}, err
	}
	if len(spans) == 0 {
		return discoverydomain.DiscoveryReport{}, fmt.Errorf("%w: no spans found in window", ErrInsufficientData)
	}

	traceIDs := features.UniqueTraceIDs(spans)
	log.Printf("[pipeline] fetched %d spans across %d traces", len(spans), len(traceIDs))
	if len(traceIDs) < cfg.MinTraces {
		return discoverydomain.DiscoveryReport{}, fmt.Errorf("%w: %d unique traces, need at least %d", ErrInsufficientData, len(traceIDs), cfg.MinTraces)
	}
	if len(traceIDs) > cfg.MaxTraces {
		log.Printf("[pipeline] truncating from %d to %d traces", len(traceIDs), cfg.MaxTraces)
		traceIDs = traceIDs[:cfg.MaxTraces]
	}

	spansByTrace := features.GroupByTrace(spans)
	kept := make(map[string][]ports.SpanRow, len(traceIDs))
	for _, id := range traceIDs {
		kept[id] = spansByTrace[id]
	}

	annotations := o.stageFetchAnnotations(ctx, projectID, traceIDs)

	feats := o.stageExtractFeatures(ctx, kept, annotations)
	log.Printf("[pipeline] extracted features for %d/%d traces", len(feats), len(traceIDs))
	if len(feats) < cfg.MinTraces {
		return discoverydomain.DiscoveryReport{}, fmt.Errorf("%w: %d traces survived feature extraction, need at least %d", ErrInsufficientData, len(feats), cfg.MinTraces)
	}

	if !cfg.SkipEmbeddings && o.EmbeddingProvider != nil {
		o.stageAddEmbeddings(ctx, cfg.EmbeddingModel, feats)
	}

	scores := o.stageComputeBadness(ctx, feats, cfg.BadnessWeights)

	clusters := o.stageCluster(ctx, feats, scores, cfg)

	slices := o.stageRankSlices(ctx, feats, scores, cfg)

	baselineBadness := 0.0
	for _, s := range scores {
		if s.IsBad(0.5) {
			baselineBadness++
		}
	}
	if len(scores) > 0 {
		baselineBadness /= float64(len(scores))
	}

	report := discoverydomain.NewDiscoveryReport(
		projectID, "", window.Start, window.End,
		len(feats), baselineBadness, clusters, slices,
		cfg.SignificanceThreshold, o.now(),
	)
	return report, nil
}

func (o *Orchestrator) timeStage(ctx context.Context, name string, fn func(context.Context)) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes())
	defer span.End()
	start := o.now()
	fn(ctx)
	o.Metrics.StageDuration(name, o.now().Sub(start))
}

func (o *Orchestrator) stageFetchSpans(ctx context.Context, projectID string, window TimeRange) ([]ports.SpanRow, error) {
	var spans []ports.SpanRow
	var fetchErr error
	o.timeStage(ctx, "fetch_spans", func(ctx context.Context) {
		spans, fetchErr = o.TraceStore.FetchSpans(ctx, projectID, window.Start, window.End)
	})
	if fetchErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrTraceFetchFailed, fetchErr)
	}
	return spans, nil
}

func (o *Orchestrator) stageFetchAnnotations(ctx context.Context, projectID string, traceIDs []string) []ports.AnnotationRow {
	if o.AnnotationStore == nil {
		return nil
	}
	var annotations []ports.AnnotationRow
	o.timeStage(ctx, "fetch_annotations", func(ctx context.Context) {
		result, err := o.AnnotationStore.FetchAnnotations(ctx, projectID, traceIDs)
		if err != nil {
			log.Printf("[pipeline] annotation fetch failed, proceeding without eval signals: %v", err)
			return
		}
		annotations = result
	})
	return annotations
}

func (o *Orchestrator) stageExtractFeatures(ctx context.Context, spansByTrace map[string][]ports.SpanRow, annotations []ports.AnnotationRow) []discoverydomain.TraceFeatures {
	var feats []discoverydomain.TraceFeatures
	o.timeStage(ctx, "extract_features", func(context.Context) {
		feats = features.ExtractAll(o.Schema, spansByTrace, annotations)
	})
	return feats
}

func (o *Orchestrator) stageAddEmbeddings(ctx context.Context, model string, feats []discoverydomain.TraceFeatures) {
	o.timeStage(ctx, "add_embeddings", func(ctx context.Context) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[pipeline] embedding stage panicked, proceeding without embeddings: %v", r)
				}
			}()
			features.AddEmbeddings(ctx, o.EmbeddingProvider, model, feats)
		}()
	})
}

func (o *Orchestrator) stageComputeBadness(ctx context.Context, feats []discoverydomain.TraceFeatures, weights discoverydomain.BadnessWeights) []discoverydomain.BadnessScore {
	var scores []discoverydomain.BadnessScore
	o.timeStage(ctx, "compute_badness", func(context.Context) {
		scores = badness.ComputeBatch(feats, weights)
	})
	return scores
}

func (o *Orchestrator) stageCluster(ctx context.Context, feats []discoverydomain.TraceFeatures, scores []discoverydomain.BadnessScore, cfg Config) []discoverydomain.ClusterResult {
	var results []discoverydomain.ClusterResult
	o.timeStage(ctx, "cluster", func(context.Context) {
		useEmbeddings := !cfg.SkipEmbeddings && o.EmbeddingProvider != nil
		matrix, _ := features.BuildFeatureMatrix(feats, useEmbeddings)
		rows, cols := matrix.Dims()

		inputs := make([]cluster.Input, rows)
		for i := 0; i < rows; i++ {
			vec := make([]float64, cols)
			for c := 0; c < cols; c++ {
				vec[c] = matrix.At(i, c)
			}
			inputs[i] = cluster.Input{
				TraceID: feats[i].TraceID,
				Vector:  vec,
				Badness: scores[i].Overall,
				Intent:  feats[i].Intent,
				Route:   feats[i].Route,
				Model:   feats[i].Model,
			}
		}

		maxK := 10
		if n := rows / 5; n < maxK {
			maxK = n
		}

		results, _ = cluster.Run(inputs, cluster.Config{
			Method:         cfg.ClusterMethod,
			MinClusterSize: cfg.MinClusterSize,
			NClusters:      cfg.NClusters,
			Seed:           42,
			MaxK:           maxK,
		})
	})
	return results
}

func (o *Orchestrator) stageRankSlices(ctx context.Context, feats []discoverydomain.TraceFeatures, scores []discoverydomain.BadnessScore, cfg Config) []discoverydomain.Slice {
	var results []discoverydomain.Slice
	o.timeStage(ctx, "rank_slices", func(context.Context) {
		records := make([]slice.Record, len(feats))
		for i, f := range feats {
			records[i] = slice.Record{
				TraceID: f.TraceID,
				Attributes: map[string]string{
					"intent":         f.Intent,
					"route":          f.Route,
					"model":          f.Model,
					"provider":       f.Provider,
					"prompt_version": f.PromptVersion,
				},
				IsBad: scores[i].IsBad(0.5),
			}
		}
		results = slice.Rank(records, slice.Config{
			Attributes:            cfg.SliceAttributes,
			MinSliceSize:          cfg.MinSliceSize,
			MaxDepth:              cfg.MaxSliceDepth,
			SignificanceThreshold: cfg.SignificanceThreshold,
		})
	})
	return results
}
