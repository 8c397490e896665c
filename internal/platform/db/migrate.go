package db

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate runs a goose command (up, down, status, redo, version) against the
// embedded schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, command string, args ...string) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("platform/db: goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, sqlDB, "migrations", args...); err != nil {
		return fmt.Errorf("platform/db: migrate %s: %w", command, err)
	}
	return nil
}
