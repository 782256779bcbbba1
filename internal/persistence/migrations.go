package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// Each entry moves user_version up by one. Never edit a shipped step;
// append a new one.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		connection_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		target TEXT NOT NULL,
		node_id TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		polled_at INTEGER NOT NULL
	);`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= len(migrations) {
		return nil
	}

	for v := version; v < len(migrations); v++ {
		if _, err := db.ExecContext(ctx, migrations[v]); err != nil {
			return fmt.Errorf("apply migration %d: %w", v+1, err)
		}
		// PRAGMA does not accept bind parameters.
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, v+1)); err != nil {
			return fmt.Errorf("record schema version %d: %w", v+1, err)
		}
	}

	return nil
}
