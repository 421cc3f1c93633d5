package database

import (
	"context"
	"fmt"

	"github.com/smartpreach/smartpreach-server/internal/config"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS live_sessions (
		id                TEXT PRIMARY KEY,
		presentation_id   INTEGER,
		current_reference TEXT,
		slide_index       INTEGER NOT NULL DEFAULT 0,
		font_size         INTEGER NOT NULL DEFAULT 100,
		is_blackout       INTEGER NOT NULL DEFAULT 0,
		created_at        BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
		updated_at        BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_live_sessions_created_at ON live_sessions (created_at)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS live_sessions (
		id                TEXT PRIMARY KEY,
		presentation_id   INTEGER,
		current_reference TEXT,
		slide_index       INTEGER NOT NULL DEFAULT 0,
		font_size         INTEGER NOT NULL DEFAULT 100,
		is_blackout       INTEGER NOT NULL DEFAULT 0,
		created_at        INTEGER NOT NULL DEFAULT (CAST(strftime('%s', 'now') AS INTEGER)),
		updated_at        INTEGER NOT NULL DEFAULT (CAST(strftime('%s', 'now') AS INTEGER))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_live_sessions_created_at ON live_sessions (created_at)`,
}

// Migrate creates the live_sessions table if it does not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	statements := postgresSchema
	if db.DriverName() == config.DriverSQLite {
		statements = sqliteSchema
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
