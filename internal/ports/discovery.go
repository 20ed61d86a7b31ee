// Package ports declares the interfaces the discovery pipeline depends on
// and that adapters/* implement: fetching spans and annotations, producing
// embeddings, and persisting run results.
package ports

import (
	"context"
	"time"
)

// SpanRow is a read-only accessor over one row of trace-span data. It
// deliberately avoids committing to any particular tabular representation
// (database rows, Arrow record batches, in-memory structs) so the feature
// extractor can run against whatever TraceStore happens to return.
type SpanRow interface {
	TraceID() string
	SpanID() string
	ParentID() (string, bool)
	Name() string
	SpanKind() string
	StatusCode() string
	StartTime() time.Time
	EndTime() time.Time

	// Attribute returns a span attribute by key (e.g. "input.value",
	// "llm.model_name", "tool.name") and whether it was present.
	Attribute(key string) (string, bool)
}

// AnnotationRow is one human/automated annotation attached to a trace
// (quality or grounding evaluation, typically).
type AnnotationRow interface {
	TraceID() string
	Name() string
	Score() (float64, bool)
}

// TraceStore fetches the raw spans a discovery run operates over.
// FetchSpans failing is fatal to the run; annotations come from
// AnnotationStore, whose failures are tolerated (the pipeline proceeds
// without eval signals).
type TraceStore interface {
	FetchSpans(ctx context.Context, projectID string, start, end time.Time) ([]SpanRow, error)
}

// AnnotationStore fetches annotations for a set of traces. Kept separate
// from TraceStore because some deployments source annotations from a
// different backend than raw spans.
type AnnotationStore interface {
	FetchAnnotations(ctx context.Context, projectID string, traceIDs []string) ([]AnnotationRow, error)
}

// EmbeddingResult is one embedding vector and the model that produced it.
type EmbeddingResult struct {
	Embedding  []float32
	Model      string
	Dimensions int
}

// EmbeddingProvider produces text embeddings. Model is passed per call
// (rather than fixed at construction) so a single provider instance can
// serve multiple discovery runs configured with different embedding
// models.
type EmbeddingProvider interface {
	Embed(ctx context.Context, model, text string) (*EmbeddingResult, error)
	EmbedBatch(ctx context.Context, model string, texts []string) ([]*EmbeddingResult, error)
}

// DiscoveryRunRecord is the persisted row for one pipeline invocation.
type DiscoveryRunRecord struct {
	ID                  string
	ProjectID           string
	StartedAt           time.Time
	CompletedAt         *time.Time
	Status              string
	Config              map[string]interface{}
	Summary             map[string]interface{}
	ErrorMessage        *string
	TotalTraces         int
	BaselineBadnessRate *float64
}

// DiscoveryClusterRecord is the persisted row for one cluster found by a
// run.
type DiscoveryClusterRecord struct {
	RunID           string
	ClusterIndex    int
	Size            int
	BadnessRate     float64
	AvgBadness      float64
	DominantIntent  string
	DominantRoute   string
	DominantModel   string
	ExampleTraceIDs []string
	Centroid        []float32
}

// DiscoverySliceRecord is the persisted row for one significant slice
// found by a run.
type DiscoverySliceRecord struct {
	RunID           string
	Attributes      map[string]string
	Size            int
	BadnessRate     float64
	BaselineRate    float64
	Lift            float64
	PValue          float64
	ExampleTraceIDs []string
}

// IDGenerator mints identifiers for new entities.
type IDGenerator interface {
	GenerateRunID() string
}

// DiscoveryRunRepository persists runs, clusters and slices to durable
// storage, and serves them back for the HTTP API.
type DiscoveryRunRepository interface {
	CreateRun(ctx context.Context, run DiscoveryRunRecord) error
	CompleteRun(ctx context.Context, runID string, completedAt time.Time, status string, summary map[string]interface{}, totalTraces int, baselineBadness float64) error
	FailRun(ctx context.Context, runID string, completedAt time.Time, errMsg string) error
	GetRun(ctx context.Context, runID string) (*DiscoveryRunRecord, error)

	SaveClusters(ctx context.Context, runID string, clusters []DiscoveryClusterRecord) error
	SaveSlices(ctx context.Context, runID string, slices []DiscoverySliceRecord) error
	GetClusters(ctx context.Context, runID string) ([]DiscoveryClusterRecord, error)
	GetSlices(ctx context.Context, runID string) ([]DiscoverySliceRecord, error)
}
