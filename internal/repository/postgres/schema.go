package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// WorkItemTable holds the work items of the current analysis run plus the
// singleton setup and errors rows.
const WorkItemTable = "catalog_backup_item"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_backup_item (
		id         BIGSERIAL PRIMARY KEY,
		status     TEXT NOT NULL,
		import_id  TEXT,
		catalog_id BIGINT,
		data       TEXT NOT NULL DEFAULT '',
		actions    TEXT,
		tstamp     BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS catalog_backup_item_status_idx ON catalog_backup_item (status, id)`,
	`CREATE INDEX IF NOT EXISTS catalog_backup_item_catalog_idx ON catalog_backup_item (catalog_id)`,
}

// EnsureSchema creates the work-item table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	return Exec(ctx, db, schema)
}

// Exec runs statements one by one.
func Exec(ctx context.Context, db *sqlx.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
