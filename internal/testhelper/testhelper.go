package testhelper

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/yuku/testonce/internal/pgenv"
)

// GetTestDBPool returns a pgxpool.Pool connected to the postgres database.
// It uses environment variables for configuration. Integration tests are
// skipped in short mode.
func GetTestDBPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, pgenv.ConnString())
	require.NoError(t, err, "failed to create connection pool")
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("PostgreSQL not available: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

// DBExists reports whether a database with the given name exists.
func DBExists(t *testing.T, pool *pgxpool.Pool, dbName string) bool {
	t.Helper()
	var exists bool
	err := pool.
		QueryRow(context.Background(), "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).
		Scan(&exists)
	require.NoError(t, err)
	return exists
}
