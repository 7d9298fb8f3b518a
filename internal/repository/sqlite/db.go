package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/postgres"
)

const driverName = "sqlite"

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

var schema = []string{
	`PRAGMA busy_timeout = 5000`,
	`CREATE TABLE IF NOT EXISTS catalog_backup_item (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		status     TEXT NOT NULL,
		import_id  TEXT,
		catalog_id INTEGER,
		data       TEXT NOT NULL DEFAULT '',
		actions    TEXT,
		tstamp     INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS catalog_backup_item_status_idx ON catalog_backup_item (status, id)`,
	`CREATE INDEX IF NOT EXISTS catalog_backup_item_catalog_idx ON catalog_backup_item (catalog_id)`,
}

// Open opens the local state database used by CLI runs and creates the
// work-item table. The file is created when it does not exist.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serialises writers on the file.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := postgres.Exec(ctx, db, schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
