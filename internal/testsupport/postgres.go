//go:build integration

// Package testsupport starts throwaway infrastructure for integration tests.
package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/JarvisScienz/progress-tracker/internal/persistence/postgres"
)

// Postgres starts a container, applies the embedded migrations and returns a
// pool. Both are torn down when the test ends.
func Postgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("progress"),
		postgrescontainer.WithUsername("progress"),
		postgrescontainer.WithPassword("progress"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applied, err := postgres.Migrate(ctx, pool)
	require.NoError(t, err)
	require.NotEmpty(t, applied)
	return pool
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
