package postgres

import (
	"context"

	"github.com/pashagolub/pgxmock/v4"
)

// setupMockContext creates a context with the mock as a transaction
// This allows the BaseRepository.conn() method to return the mock
func setupMockContext(mock pgxmock.PgxPoolIface) context.Context {
	return context.WithValue(context.Background(), txKey, mock)
}

// SetupMockContext is the exported form, for adapters in other packages
// (tracestore, discovery run persistence) that need GetConn to resolve a
// pgxmock instance instead of a real pool in their own tests.
func SetupMockContext(mock pgxmock.PgxPoolIface) context.Context {
	return setupMockContext(mock)
}
