// Package sqlreadmodel is a read-model repository that stores process
// instances in an SQL database.
package sqlreadmodel

import (
	"context"
	"database/sql"
)

// Driver is used to interface with the underlying SQL database.
//
// Every built-in driver uses $1-style placeholders.
type Driver interface {
	// IsCompatibleWith returns nil if this driver can be used with db.
	IsCompatibleWith(ctx context.Context, db *sql.DB) error

	// BeginRead starts a transaction that observes a consistent snapshot of
	// the database.
	BeginRead(ctx context.Context, db *sql.DB) (*sql.Tx, error)

	// Table returns the qualified name of the process instance table.
	Table() string

	// CreateSchema creates any SQL schema elements required by the driver.
	CreateSchema(ctx context.Context, db *sql.DB) error

	// DropSchema removes any SQL schema elements created by CreateSchema().
	DropSchema(ctx context.Context, db *sql.DB) error
}
