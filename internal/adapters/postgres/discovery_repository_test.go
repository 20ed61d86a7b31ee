package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/longregen/tracediscover/internal/ports"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoveryRepository_CreateRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO trace_discovery_runs").
		WithArgs("run-1", "proj1", started, "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewDiscoveryRepository(nil)
	ctx := SetupMockContext(mock)

	err = repo.CreateRun(ctx, ports.DiscoveryRunRecord{
		ID:        "run-1",
		ProjectID: "proj1",
		StartedAt: started,
		Status:    "running",
		Config:    map[string]interface{}{"min_cluster_size": 10},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscoveryRepository_GetRun_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, project_id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	repo := NewDiscoveryRepository(nil)
	ctx := SetupMockContext(mock)

	rec, err := repo.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestDiscoveryRepository_SaveClusters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM trace_discovery_clusters").
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO trace_discovery_clusters").
		WithArgs("run-1", 0, 12, 0.4, 0.3, "support", "refund", "gpt-4o-mini", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewDiscoveryRepository(nil)
	ctx := SetupMockContext(mock)

	err = repo.SaveClusters(ctx, "run-1", []ports.DiscoveryClusterRecord{
		{
			RunID: "run-1", ClusterIndex: 0, Size: 12, BadnessRate: 0.4, AvgBadness: 0.3,
			DominantIntent: "support", DominantRoute: "refund", DominantModel: "gpt-4o-mini",
			ExampleTraceIDs: []string{"t1", "t2"},
			Centroid:        []float32{0.1, 0.2, 0.3},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscoveryRepository_SaveSlices(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM trace_discovery_slices").
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO trace_discovery_slices").
		WithArgs("run-1", pgxmock.AnyArg(), 8, 0.5, 0.1, 5.0, 0.01, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewDiscoveryRepository(nil)
	ctx := SetupMockContext(mock)

	err = repo.SaveSlices(ctx, "run-1", []ports.DiscoverySliceRecord{
		{
			RunID: "run-1", Attributes: map[string]string{"route": "refund"},
			Size: 8, BadnessRate: 0.5, BaselineRate: 0.1, Lift: 5.0, PValue: 0.01,
			ExampleTraceIDs: []string{"t1"},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscoveryRepository_GetClusters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{
		"run_id", "cluster_index", "size", "badness_rate", "avg_badness",
		"dominant_intent", "dominant_route", "dominant_model", "example_trace_ids", "centroid",
	}).AddRow("run-1", 0, 12, 0.4, 0.3, "support", "refund", "gpt-4o-mini", []byte(`["t1","t2"]`), nil)
	mock.ExpectQuery("SELECT run_id, cluster_index").WithArgs("run-1").WillReturnRows(rows)

	repo := NewDiscoveryRepository(nil)
	ctx := SetupMockContext(mock)

	clusters, err := repo.GetClusters(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"t1", "t2"}, clusters[0].ExampleTraceIDs)
	assert.Nil(t, clusters[0].Centroid)
}
