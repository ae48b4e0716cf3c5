package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for the preemption tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS paused_orchestrations (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		instance_id TEXT NOT NULL,
		paused_at   INTEGER NOT NULL,
		UNIQUE (name, instance_id)
	)`,

	// Resume scans newest-first.
	`CREATE INDEX IF NOT EXISTS idx_paused_orchestrations_paused_at ON paused_orchestrations(paused_at, seq)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
