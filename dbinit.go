package main

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

const schemaName = "jiracal"

// dbInit brings the state database up to the current schema version.
func dbInit(ctx context.Context, db *sql.DB) error {
	var dbVersion int
	err := db.QueryRowContext(ctx, "SELECT version FROM db_version WHERE name = ?", schemaName).Scan(&dbVersion)
	if err != nil {
		_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS db_version (
			name TEXT PRIMARY KEY,
			version INTEGER
		)`)
		if err != nil {
			return errors.Wrap(err, "creating db_version table")
		}
		_, err = db.ExecContext(ctx, `INSERT OR IGNORE INTO db_version (name, version) VALUES (?, 0)`, schemaName)
		if err != nil {
			return errors.Wrap(err, "initializing db_version table")
		}
		dbVersion = 0
	}

	if dbVersion == 0 {
		_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS links (
			direction TEXT,
			source_id TEXT,
			target_id TEXT,
			target_container TEXT,
			created_at TEXT,
			PRIMARY KEY (direction, source_id)
		)`)
		if err != nil {
			return errors.Wrap(err, "creating links table")
		}

		_, err = db.ExecContext(ctx, `UPDATE db_version SET version = 1 WHERE name = ?`, schemaName)
		if err != nil {
			return errors.Wrap(err, "updating db_version table")
		}
	}

	return nil
}
