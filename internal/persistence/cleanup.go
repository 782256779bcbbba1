package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PruneSnapshots deletes cached snapshots for connections that are no longer
// configured, so removed connections do not linger in status output. The
// daemon runs it once at startup. Returns the number of rows removed.
func PruneSnapshots(ctx context.Context, db *sql.DB, configured []string) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("database is not initialized")
	}

	if len(configured) == 0 {
		res, err := db.ExecContext(ctx, `DELETE FROM snapshots;`)
		if err != nil {
			return 0, fmt.Errorf("prune snapshots: %w", err)
		}

		return res.RowsAffected()
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(configured)), ",")
	args := make([]any, 0, len(configured))
	for _, id := range configured {
		args = append(args, id)
	}

	// #nosec G201 -- the format argument is a placeholder list, values are bound.
	query := fmt.Sprintf(`DELETE FROM snapshots WHERE connection_id NOT IN (%s);`, placeholders)
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}

	return res.RowsAffected()
}
