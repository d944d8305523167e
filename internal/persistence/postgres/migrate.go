// Package postgres implements the activity and settings repositories on PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/tern/v2/migrate"
)

// VersionTable records the applied migration sequence.
const VersionTable = "schema_version"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies every embedded migration that has not run yet and returns
// the names of the ones it applied.
func Migrate(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	migrator, err := newMigrator(ctx, conn)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(migrator.Migrations))
	migrator.OnStart = func(_ int32, name, _, _ string) {
		applied = append(applied, name)
	}
	if err := migrator.Migrate(ctx); err != nil {
		return applied, fmt.Errorf("apply migrations: %w", err)
	}
	return applied, nil
}

// SchemaVersion reports the applied and the latest embedded migration sequence.
func SchemaVersion(ctx context.Context, pool *pgxpool.Pool) (current, latest int32, err error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	migrator, err := newMigrator(ctx, conn)
	if err != nil {
		return 0, 0, err
	}
	current, err = migrator.GetCurrentVersion(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("read schema version: %w", err)
	}
	return current, int32(len(migrator.Migrations)), nil
}

func newMigrator(ctx context.Context, conn *pgxpool.Conn) (*migrate.Migrator, error) {
	migrator, err := migrate.NewMigrator(ctx, conn.Conn(), VersionTable)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	files, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	if err := migrator.LoadMigrations(files); err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	return migrator, nil
}
