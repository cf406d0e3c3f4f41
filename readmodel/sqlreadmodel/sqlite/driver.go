// Package sqlite is the SQLite driver for the SQL read-model repository.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/dogmatiq/processkit/internal/x/sqlx"
)

// Driver is the read-model driver for SQLite.
var Driver = driver{}

type driver struct{}

// IsCompatibleWith returns nil if this driver can be used with db.
func (driver) IsCompatibleWith(ctx context.Context, db *sql.DB) error {
	// Verify that we're using SQLite and that $1-style placeholders are
	// supported.
	var version string
	return db.QueryRowContext(
		ctx,
		`SELECT sqlite_version() WHERE 1 = $1`,
		1,
	).Scan(&version)
}

// BeginRead starts a transaction.
//
// SQLite transactions are serializable, so a plain transaction observes a
// consistent snapshot.
func (driver) BeginRead(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
	return db.BeginTx(ctx, nil)
}

// Table returns the name of the process instance table.
func (driver) Table() string {
	return "process_instance"
}

// CreateSchema creates the schema elements required by the SQLite driver.
func (driver) CreateSchema(ctx context.Context, db *sql.DB) (err error) {
	defer sqlx.Recover(&err)

	tx := sqlx.Begin(ctx, db, nil)
	defer tx.Rollback() // nolint:errcheck

	sqlx.Exec(
		ctx,
		tx,
		`CREATE TABLE IF NOT EXISTS process_instance (
			id                     TEXT NOT NULL PRIMARY KEY,
			name                   TEXT NOT NULL DEFAULT '',
			process_definition_id  TEXT NOT NULL DEFAULT '',
			process_definition_key TEXT NOT NULL DEFAULT '',
			business_key           TEXT NOT NULL DEFAULT '',
			initiator              TEXT NOT NULL DEFAULT '',
			status                 TEXT NOT NULL DEFAULT '',
			parent_id              TEXT NOT NULL DEFAULT '',
			start_date             INTEGER NOT NULL DEFAULT 0,
			last_modified          INTEGER NOT NULL DEFAULT 0
		)`,
	)

	sqlx.Exec(
		ctx,
		tx,
		`CREATE INDEX IF NOT EXISTS process_instance_by_start_date
		ON process_instance (start_date DESC, id)`,
	)

	sqlx.Exec(
		ctx,
		tx,
		`CREATE INDEX IF NOT EXISTS process_instance_by_parent
		ON process_instance (parent_id, id)`,
	)

	return tx.Commit()
}

// DropSchema drops the schema elements required by the SQLite driver.
func (driver) DropSchema(ctx context.Context, db *sql.DB) (err error) {
	defer sqlx.Recover(&err)

	sqlx.Exec(ctx, db, `DROP TABLE IF EXISTS process_instance`)

	return nil
}
