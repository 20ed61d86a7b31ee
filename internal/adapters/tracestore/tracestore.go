// Package tracestore adapts a Postgres-backed span/annotation table pair
// to ports.TraceStore and ports.AnnotationStore.
package tracestore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/tracediscover/internal/adapters/postgres"
	"github.com/longregen/tracediscover/internal/ports"
)

// SpanRecord implements ports.SpanRow over a row fetched from the spans
// table; attribute values are pre-flattened to strings at scan time so
// the feature extractor never has to deal with jsonb decoding.
type SpanRecord struct {
	traceID    string
	spanID     string
	parentID   string
	hasParent  bool
	name       string
	spanKind   string
	statusCode string
	startTime  time.Time
	endTime    time.Time
	attributes map[string]string
}

func (s SpanRecord) TraceID() string    { return s.traceID }
func (s SpanRecord) SpanID() string     { return s.spanID }
func (s SpanRecord) Name() string       { return s.name }
func (s SpanRecord) SpanKind() string   { return s.spanKind }
func (s SpanRecord) StatusCode() string { return s.statusCode }
func (s SpanRecord) StartTime() time.Time { return s.startTime }
func (s SpanRecord) EndTime() time.Time   { return s.endTime }
func (s SpanRecord) ParentID() (string, bool) {
	return s.parentID, s.hasParent
}
func (s SpanRecord) Attribute(key string) (string, bool) {
	v, ok := s.attributes[key]
	return v, ok
}

// AnnotationRecord implements ports.AnnotationRow.
type AnnotationRecord struct {
	traceID string
	name    string
	score   float64
	hasScore bool
}

func (a AnnotationRecord) TraceID() string { return a.traceID }
func (a AnnotationRecord) Name() string    { return a.name }
func (a AnnotationRecord) Score() (float64, bool) {
	return a.score, a.hasScore
}

// Store is a Postgres-backed TraceStore + AnnotationStore. It assumes a
// spans table (trace_id, span_id, parent_id, name, span_kind,
// status_code, start_time, end_time, attributes jsonb) and an
// annotations table (trace_id, name, score), both scoped by project_id.
type Store struct {
	postgres.BaseRepository
}

// NewStore wraps a pgx pool in a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{BaseRepository: postgres.NewBaseRepository(pool)}
}

const fetchSpansQuery = `
SELECT trace_id, span_id, parent_id, name, span_kind, status_code,
       start_time, end_time, attributes
FROM spans
WHERE project_id = $1 AND start_time >= $2 AND start_time < $3
ORDER BY trace_id, start_time
`

// FetchSpans returns every span for the project within [start, end).
func (s *Store) FetchSpans(ctx context.Context, projectID string, start, end time.Time) ([]ports.SpanRow, error) {
	rows, err := postgres.GetConn(ctx, s.Pool()).Query(ctx, fetchSpansQuery, projectID, start, end)
	if err != nil {
		return nil, fmt.Errorf("tracestore: query spans: %w", err)
	}
	defer rows.Close()

	var out []ports.SpanRow
	for rows.Next() {
		rec, err := scanSpan(rows)
		if err != nil {
			return nil, fmt.Errorf("tracestore: scan span: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tracestore: iterate spans: %w", err)
	}
	return out, nil
}

func scanSpan(row pgx.Rows) (SpanRecord, error) {
	var (
		traceID, spanID, name, spanKind, statusCode string
		parentID                                    *string
		startTime, endTime                          time.Time
		attrs                                       map[string]interface{}
	)
	if err := row.Scan(&traceID, &spanID, &parentID, &name, &spanKind, &statusCode, &startTime, &endTime, &attrs); err != nil {
		return SpanRecord{}, err
	}

	flat := make(map[string]string, len(attrs))
	for k, v := range attrs {
		flat[k] = fmt.Sprintf("%v", v)
	}

	rec := SpanRecord{
		traceID: traceID, spanID: spanID, name: name,
		spanKind: spanKind, statusCode: statusCode,
		startTime: startTime, endTime: endTime, attributes: flat,
	}
	if parentID != nil {
		rec.parentID, rec.hasParent = *parentID, true
	}
	return rec, nil
}

const fetchAnnotationsQuery = `
SELECT trace_id, name, score
FROM annotations
WHERE project_id = $1 AND trace_id = ANY($2)
`

// FetchAnnotations returns every annotation for the given trace IDs.
func (s *Store) FetchAnnotations(ctx context.Context, projectID string, traceIDs []string) ([]ports.AnnotationRow, error) {
	rows, err := postgres.GetConn(ctx, s.Pool()).Query(ctx, fetchAnnotationsQuery, projectID, traceIDs)
	if err != nil {
		return nil, fmt.Errorf("tracestore: query annotations: %w", err)
	}
	defer rows.Close()

	var out []ports.AnnotationRow
	for rows.Next() {
		var traceID, name string
		var score *float64
		if err := rows.Scan(&traceID, &name, &score); err != nil {
			return nil, fmt.Errorf("tracestore: scan annotation: %w", err)
		}
		rec := AnnotationRecord{traceID: traceID, name: name}
		if score != nil {
			rec.score, rec.hasScore = *score, true
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tracestore: iterate annotations: %w", err)
	}
	return out, nil
}
