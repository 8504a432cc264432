// Package migrate applies the scheduler's embedded SQL migrations.
package migrate

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Run applies any pending migrations in lexical order. Applied versions are
// recorded in schema_migrations so reruns are no-ops.
func Run(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT        PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var applied int
	for _, e := range entries {
		version := strings.TrimSuffix(e.Name(), ".sql")
		ok, err := applyOne(ctx, pool, e.Name(), version)
		if err != nil {
			return err
		}
		if ok {
			logger.Info("applied migration", "version", version)
			applied++
		}
	}
	if applied == 0 {
		logger.Debug("schema up to date", "versions", len(entries))
	}
	return nil
}

// applyOne applies a single migration unless its version is already recorded.
// Returns whether it ran.
func applyOne(ctx context.Context, pool *pgxpool.Pool, filename, version string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)",
		version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	if exists {
		return false, nil
	}

	sql, err := migrationFS.ReadFile("migrations/" + filename)
	if err != nil {
		return false, fmt.Errorf("read migration %s: %w", version, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return false, fmt.Errorf("apply migration %s: %w", version, err)
	}
	if _, err := pool.Exec(ctx,
		"INSERT INTO schema_migrations(version) VALUES($1)", version,
	); err != nil {
		return false, fmt.Errorf("record migration %s: %w", version, err)
	}
	return true, nil
}
