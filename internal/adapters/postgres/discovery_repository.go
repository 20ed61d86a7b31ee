package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/tracediscover/internal/ports"
	"github.com/pgvector/pgvector-go"
)

// DiscoveryRepository implements ports.DiscoveryRunRepository against the
// trace_discovery_runs / trace_discovery_clusters / trace_discovery_slices
// tables.
type DiscoveryRepository struct {
	BaseRepository
}

// NewDiscoveryRepository wraps a pool in a DiscoveryRepository.
func NewDiscoveryRepository(pool *pgxpool.Pool) *DiscoveryRepository {
	return &DiscoveryRepository{BaseRepository: NewBaseRepository(pool)}
}

// CreateRun inserts the starting row for a new pipeline invocation.
func (r *DiscoveryRepository) CreateRun(ctx context.Context, run ports.DiscoveryRunRecord) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("discovery_repository: marshal config: %w", err)
	}

	query := `
		INSERT INTO trace_discovery_runs (id, project_id, started_at, status, config)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.conn(ctx).Exec(ctx, query, run.ID, run.ProjectID, run.StartedAt, run.Status, configJSON)
	if err != nil {
		return fmt.Errorf("discovery_repository: create run: %w", err)
	}
	return nil
}

// CompleteRun marks a run finished and stores its summary.
func (r *DiscoveryRepository) CompleteRun(ctx context.Context, runID string, completedAt time.Time, status string, summary map[string]interface{}, totalTraces int, baselineBadness float64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("discovery_repository: marshal summary: %w", err)
	}

	query := `
		UPDATE trace_discovery_runs
		SET completed_at = $2, status = $3, summary = $4, total_traces = $5, baseline_badness = $6
		WHERE id = $1
	`
	_, err = r.conn(ctx).Exec(ctx, query, runID, completedAt, status, summaryJSON, totalTraces, baselineBadness)
	if err != nil {
		return fmt.Errorf("discovery_repository: complete run: %w", err)
	}
	return nil
}

// FailRun marks a run failed with an error message.
func (r *DiscoveryRepository) FailRun(ctx context.Context, runID string, completedAt time.Time, errMsg string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE trace_discovery_runs
		SET completed_at = $2, status = 'failed', error_message = $3
		WHERE id = $1
	`
	_, err := r.conn(ctx).Exec(ctx, query, runID, completedAt, errMsg)
	if err != nil {
		return fmt.Errorf("discovery_repository: fail run: %w", err)
	}
	return nil
}

const getRunQuery = `
	SELECT id, project_id, started_at, completed_at, status, config, summary,
	       error_message, total_traces, baseline_badness
	FROM trace_discovery_runs
	WHERE id = $1
`

// GetRun fetches a run by ID, returning (nil, nil) if it doesn't exist.
func (r *DiscoveryRepository) GetRun(ctx context.Context, runID string) (*ports.DiscoveryRunRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.conn(ctx).QueryRow(ctx, getRunQuery, runID)

	var rec ports.DiscoveryRunRecord
	var configJSON, summaryJSON []byte
	var completedAt *time.Time
	var errMsg *string
	var totalTraces *int
	var baselineBadness *float64

	err := row.Scan(&rec.ID, &rec.ProjectID, &rec.StartedAt, &completedAt, &rec.Status,
		&configJSON, &summaryJSON, &errMsg, &totalTraces, &baselineBadness)
	if err != nil {
		if checkNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("discovery_repository: get run: %w", err)
	}

	rec.CompletedAt = completedAt
	rec.ErrorMessage = errMsg
	if totalTraces != nil {
		rec.TotalTraces = *totalTraces
	}
	rec.BaselineBadnessRate = baselineBadness

	if err := unmarshalJSONField(configJSON, &rec.Config); err != nil {
		return nil, fmt.Errorf("discovery_repository: decode config: %w", err)
	}
	if err := unmarshalJSONField(summaryJSON, &rec.Summary); err != nil {
		return nil, fmt.Errorf("discovery_repository: decode summary: %w", err)
	}

	return &rec, nil
}

// SaveClusters persists every cluster found by a run, replacing anything
// previously saved for that run.
func (r *DiscoveryRepository) SaveClusters(ctx context.Context, runID string, clusters []ports.DiscoveryClusterRecord) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM trace_discovery_clusters WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("discovery_repository: clear clusters: %w", err)
	}

	query := `
		INSERT INTO trace_discovery_clusters (
			run_id, cluster_index, size, badness_rate, avg_badness,
			dominant_intent, dominant_route, dominant_model, example_trace_ids, centroid
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, c := range clusters {
		exampleIDs, err := json.Marshal(c.ExampleTraceIDs)
		if err != nil {
			return fmt.Errorf("discovery_repository: marshal example_trace_ids: %w", err)
		}

		var centroid *pgvector.Vector
		if len(c.Centroid) > 0 {
			v := pgvector.NewVector(c.Centroid)
			centroid = &v
		}

		_, err = r.conn(ctx).Exec(ctx, query, runID, c.ClusterIndex, c.Size, c.BadnessRate, c.AvgBadness,
			c.DominantIntent, c.DominantRoute, c.DominantModel, exampleIDs, centroid)
		if err != nil {
			return fmt.Errorf("discovery_repository: insert cluster: %w", err)
		}
	}
	return nil
}

// SaveSlices persists every significant slice found by a run, replacing
// anything previously saved for that run.
func (r *DiscoveryRepository) SaveSlices(ctx context.Context, runID string, slices []ports.DiscoverySliceRecord) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM trace_discovery_slices WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("discovery_repository: clear slices: %w", err)
	}

	query := `
		INSERT INTO trace_discovery_slices (
			run_id, attributes, size, badness_rate, baseline_rate, lift, p_value, example_trace_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, s := range slices {
		attrsJSON, err := json.Marshal(s.Attributes)
		if err != nil {
			return fmt.Errorf("discovery_repository: marshal attributes: %w", err)
		}
		exampleIDs, err := json.Marshal(s.ExampleTraceIDs)
		if err != nil {
			return fmt.Errorf("discovery_repository: marshal example_trace_ids: %w", err)
		}

		_, err = r.conn(ctx).Exec(ctx, query, runID, attrsJSON, s.Size, s.BadnessRate, s.BaselineRate, s.Lift, s.PValue, exampleIDs)
		if err != nil {
			return fmt.Errorf("discovery_repository: insert slice: %w", err)
		}
	}
	return nil
}

const getClustersQuery = `
	SELECT run_id, cluster_index, size, badness_rate, avg_badness,
	       dominant_intent, dominant_route, dominant_model, example_trace_ids, centroid
	FROM trace_discovery_clusters
	WHERE run_id = $1
	ORDER BY badness_rate DESC
`

// GetClusters returns every cluster saved for a run, ordered worst-first.
func (r *DiscoveryRepository) GetClusters(ctx context.Context, runID string) ([]ports.DiscoveryClusterRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.conn(ctx).Query(ctx, getClustersQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("discovery_repository: query clusters: %w", err)
	}
	defer rows.Close()

	var out []ports.DiscoveryClusterRecord
	for rows.Next() {
		var c ports.DiscoveryClusterRecord
		var exampleIDsJSON []byte
		var centroid *pgvector.Vector

		err := rows.Scan(&c.RunID, &c.ClusterIndex, &c.Size, &c.BadnessRate, &c.AvgBadness,
			&c.DominantIntent, &c.DominantRoute, &c.DominantModel, &exampleIDsJSON, &centroid)
		if err != nil {
			return nil, fmt.Errorf("discovery_repository: scan cluster: %w", err)
		}

		if err := unmarshalJSONField(exampleIDsJSON, &c.ExampleTraceIDs); err != nil {
			return nil, fmt.Errorf("discovery_repository: decode example_trace_ids: %w", err)
		}
		if centroid != nil {
			c.Centroid = centroid.Slice()
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const getSlicesQuery = `
	SELECT run_id, attributes, size, badness_rate, baseline_rate, lift, p_value, example_trace_ids
	FROM trace_discovery_slices
	WHERE run_id = $1
	ORDER BY lift DESC
`

// GetSlices returns every significant slice saved for a run, ordered by
// lift descending.
func (r *DiscoveryRepository) GetSlices(ctx context.Context, runID string) ([]ports.DiscoverySliceRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.conn(ctx).Query(ctx, getSlicesQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("discovery_repository: query slices: %w", err)
	}
	defer rows.Close()

	var out []ports.DiscoverySliceRecord
	for rows.Next() {
		var s ports.DiscoverySliceRecord
		var attrsJSON, exampleIDsJSON []byte

		err := rows.Scan(&s.RunID, &attrsJSON, &s.Size, &s.BadnessRate, &s.BaselineRate, &s.Lift, &s.PValue, &exampleIDsJSON)
		if err != nil {
			return nil, fmt.Errorf("discovery_repository: scan slice: %w", err)
		}

		if err := unmarshalJSONField(attrsJSON, &s.Attributes); err != nil {
			return nil, fmt.Errorf("discovery_repository: decode attributes: %w", err)
		}
		if err := unmarshalJSONField(exampleIDsJSON, &s.ExampleTraceIDs); err != nil {
			return nil, fmt.Errorf("discovery_repository: decode example_trace_ids: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
