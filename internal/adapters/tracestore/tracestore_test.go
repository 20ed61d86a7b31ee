package tracestore

import (
	"context"
	"testing"
	"time"

	"github.com/longregen/tracediscover/internal/adapters/postgres"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSpans(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	rows := pgxmock.NewRows([]string{
		"trace_id", "span_id", "parent_id", "name", "span_kind", "status_code",
		"start_time", "end_time", "attributes",
	}).AddRow(
		"trace-1", "span-1", nil, "root", "chain", "OK",
		start, start.Add(time.Second), map[string]interface{}{"input.value": "hi"},
	)
	mock.ExpectQuery("SELECT trace_id, span_id").WithArgs("proj1", start, end).WillReturnRows(rows)

	store := NewStore(nil)
	ctx := postgres.SetupMockContext(mock)

	spans, err := store.FetchSpans(ctx, "proj1", start, end)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "trace-1", spans[0].TraceID())
	v, ok := spans[0].Attribute("input.value")
	assert.True(t, ok)
	assert.Equal(t, "hi", v)

	_, hasParent := spans[0].ParentID()
	assert.False(t, hasParent)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchAnnotations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"trace_id", "name", "score"}).
		AddRow("trace-1", "quality", 0.9)
	mock.ExpectQuery("SELECT trace_id, name, score").
		WithArgs("proj1", []string{"trace-1"}).
		WillReturnRows(rows)

	store := NewStore(nil)
	ctx := postgres.SetupMockContext(mock)

	annotations, err := store.FetchAnnotations(ctx, "proj1", []string{"trace-1"})
	require.NoError(t, err)
	require.Len(t, annotations, 1)
	score, ok := annotations[0].Score()
	assert.True(t, ok)
	assert.Equal(t, 0.9, score)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchSpans_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT trace_id, span_id").WillReturnError(context.DeadlineExceeded)

	store := NewStore(nil)
	ctx := postgres.SetupMockContext(mock)

	_, err = store.FetchSpans(ctx, "proj1", time.Now(), time.Now())
	assert.Error(t, err)
}
