package db

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations run in order; each entry is applied once and recorded in
// schema_migrations under its version key.
var migrations = []struct {
	version string
	sql     string
}{
	{
		version: "001_audit_events",
		sql: `
			CREATE TABLE IF NOT EXISTS audit_events (
				event_id   TEXT PRIMARY KEY,
				tool_name  TEXT NOT NULL,
				trace_id   TEXT NOT NULL DEFAULT '',
				message    TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			);
			CREATE INDEX IF NOT EXISTS audit_events_created_at_idx
				ON audit_events (created_at DESC);
		`,
	},
}

func ApplyMigrations(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var already bool
		if err := conn.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`,
			m.version,
		).Scan(&already); err != nil {
			return fmt.Errorf("check migration %s: %w", m.version, err)
		}
		if already {
			continue
		}

		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations(version) VALUES($1)`, m.version,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.version, err)
		}
	}

	return nil
}
