package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/longregen/tracediscover/internal/ports"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionManager_Commit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trace_discovery_runs").
		WithArgs("run-commit", "proj1", started, "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	txMgr := NewTransactionManager(nil)
	repo := NewDiscoveryRepository(nil)

	err = txMgrWithMockPool(txMgr, mock).WithTransaction(context.Background(), func(txCtx context.Context) error {
		return repo.CreateRun(txCtx, ports.DiscoveryRunRecord{
			ID: "run-commit", ProjectID: "proj1", StartedAt: started, Status: "running",
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_Rollback(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	testErr := errors.New("test error")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trace_discovery_runs").
		WithArgs("run-rollback", "proj1", started, "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectRollback()

	txMgr := NewTransactionManager(nil)
	repo := NewDiscoveryRepository(nil)

	err = txMgrWithMockPool(txMgr, mock).WithTransaction(context.Background(), func(txCtx context.Context) error {
		if err := repo.CreateRun(txCtx, ports.DiscoveryRunRecord{
			ID: "run-rollback", ProjectID: "proj1", StartedAt: started, Status: "running",
		}); err != nil {
			return err
		}
		return testErr
	})
	require.ErrorIs(t, err, testErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_NestedReusesExistingTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trace_discovery_runs").
		WithArgs("run-outer", "proj1", started, "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO trace_discovery_runs").
		WithArgs("run-inner", "proj1", started, "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	txMgr := NewTransactionManager(nil)
	repo := NewDiscoveryRepository(nil)

	err = txMgrWithMockPool(txMgr, mock).WithTransaction(context.Background(), func(outerCtx context.Context) error {
		if err := repo.CreateRun(outerCtx, ports.DiscoveryRunRecord{
			ID: "run-outer", ProjectID: "proj1", StartedAt: started, Status: "running",
		}); err != nil {
			return err
		}

		return txMgr.WithTransaction(outerCtx, func(innerCtx context.Context) error {
			return repo.CreateRun(innerCtx, ports.DiscoveryRunRecord{
				ID: "run-inner", ProjectID: "proj1", StartedAt: started, Status: "running",
			})
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_GetTx_NoTransaction(t *testing.T) {
	ctx := context.Background()

	tx := GetTx(ctx)
	if tx != nil {
		t.Error("expected nil transaction in empty context")
	}
}

func TestTransactionManager_GetConn_ReturnsTxWhenPresent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := setupMockContext(mock)
	conn := GetConn(ctx, nil)
	assert.NotNil(t, conn)
	assert.NotNil(t, GetTx(ctx))
}

// txMgrWithMockPool swaps a TransactionManager's pool for a pgxmock
// instance so WithTransaction drives Begin/Commit/Rollback against the
// mock instead of a real connection.
func txMgrWithMockPool(tm *TransactionManager, mock pgxmock.PgxPoolIface) *TransactionManager {
	tm.pool = mock
	return tm
}
