package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BaseRepository is embedded by every trace_discovery_* repository
// (DiscoveryRepository, and anything else persisting runs, clusters or
// slices). It owns the pool and the tx-or-pool resolution every one of
// those repositories needs, so a run and its cluster/slice rows can be
// written inside a single transaction without each repository knowing
// about transactions itself.
type BaseRepository struct {
	pool *pgxpool.Pool
}

// NewBaseRepository wraps pool for embedding into a discovery repository.
func NewBaseRepository(pool *pgxpool.Pool) BaseRepository {
	return BaseRepository{pool: pool}
}

// Pool returns the underlying connection pool, for the rare caller that
// needs it directly (migrations, health checks); repository methods
// should go through conn() instead so they pick up an in-flight
// transaction.
func (r *BaseRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// conn resolves the querier a discovery repository method should run
// against: the transaction stashed in ctx by TransactionManager.WithTransaction
// if one is in flight (e.g. a run's header, clusters and slices written
// together), falling back to the pool otherwise.
func (r *BaseRepository) conn(ctx context.Context) interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
} {
	return GetConn(ctx, r.pool)
}
