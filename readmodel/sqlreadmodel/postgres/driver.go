// Package postgres is the PostgreSQL driver for the SQL read-model repository.
package postgres

import (
	"context"
	"database/sql"

	"github.com/dogmatiq/processkit/internal/x/sqlx"
)

// Driver is the read-model driver for PostgreSQL.
var Driver = driver{}

type driver struct{}

// IsCompatibleWith returns nil if this driver can be used with db.
func (driver) IsCompatibleWith(ctx context.Context, db *sql.DB) error {
	// Verify that we're using PostgreSQL and that $1-style placeholders are
	// supported.
	var pid int64
	return db.QueryRowContext(
		ctx,
		`SELECT pg_backend_pid() WHERE 1 = $1`,
		1,
	).Scan(&pid)
}

// BeginRead starts a read-only transaction.
func (driver) BeginRead(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
	return db.BeginTx(
		ctx,
		&sql.TxOptions{
			Isolation: sql.LevelRepeatableRead,
			ReadOnly:  true,
		},
	)
}

// Table returns the qualified name of the process instance table.
func (driver) Table() string {
	return "processkit.process_instance"
}

// CreateSchema creates any SQL schema elements required by the driver.
func (driver) CreateSchema(ctx context.Context, db *sql.DB) (err error) {
	defer sqlx.Recover(&err)

	tx := sqlx.Begin(ctx, db, nil)
	defer tx.Rollback() // nolint:errcheck

	sqlx.Exec(ctx, tx, `CREATE SCHEMA IF NOT EXISTS processkit`)

	// Text columns use the "C" collation so that ordering and range
	// comparisons are byte-wise.
	sqlx.Exec(
		ctx,
		tx,
		`CREATE TABLE IF NOT EXISTS processkit.process_instance (
			id                     TEXT COLLATE "C" NOT NULL PRIMARY KEY,
			name                   TEXT COLLATE "C" NOT NULL DEFAULT '',
			process_definition_id  TEXT COLLATE "C" NOT NULL DEFAULT '',
			process_definition_key TEXT COLLATE "C" NOT NULL DEFAULT '',
			business_key           TEXT COLLATE "C" NOT NULL DEFAULT '',
			initiator              TEXT COLLATE "C" NOT NULL DEFAULT '',
			status                 TEXT COLLATE "C" NOT NULL DEFAULT '',
			parent_id              TEXT COLLATE "C" NOT NULL DEFAULT '',
			start_date             BIGINT NOT NULL DEFAULT 0,
			last_modified          BIGINT NOT NULL DEFAULT 0
		)`,
	)

	sqlx.Exec(
		ctx,
		tx,
		`CREATE INDEX IF NOT EXISTS process_instance_by_start_date
		ON processkit.process_instance (start_date DESC, id)`,
	)

	sqlx.Exec(
		ctx,
		tx,
		`CREATE INDEX IF NOT EXISTS process_instance_by_parent
		ON processkit.process_instance (parent_id, id)`,
	)

	return tx.Commit()
}

// DropSchema removes any SQL schema elements created by CreateSchema().
func (driver) DropSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS processkit CASCADE`)
	return err
}
