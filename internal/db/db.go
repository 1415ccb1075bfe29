// Package db provides optional PostgreSQL persistence for the audit trail.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the underlying *sql.DB and provides typed query methods.
type DB struct {
	conn *sql.DB
}

// New opens a PostgreSQL connection, verifies connectivity, and applies
// pending migrations.
func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := ApplyMigrations(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the database connection pool.
func (d *DB) Close() error {
	return d.conn.Close()
}

// AuditEvent is one persisted record of an externally-triggered action.
type AuditEvent struct {
	EventID   string    `json:"event_id"`
	ToolName  string    `json:"tool_name"`
	TraceID   string    `json:"trace_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// InsertAuditEvent creates a new audit record.
func (d *DB) InsertAuditEvent(ctx context.Context, ev *AuditEvent) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO audit_events (event_id, tool_name, trace_id, message, created_at) VALUES ($1, $2, $3, $4, $5)`,
		ev.EventID, ev.ToolName, ev.TraceID, ev.Message, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit_event: %w", err)
	}
	return nil
}
