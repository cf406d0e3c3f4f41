package sqlx

import (
	"context"
	"database/sql"
)

// DB is the subset of *sql.DB used by the read-model. It is also satisfied by
// *sql.Tx and *sql.Conn, so queries can run inside a transaction.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Scanner reads the columns of the current row.
type Scanner interface {
	Scan(dest ...any) error
}

var (
	_ DB      = (*sql.DB)(nil)
	_ DB      = (*sql.Tx)(nil)
	_ DB      = (*sql.Conn)(nil)
	_ Scanner = (*sql.Rows)(nil)
	_ Scanner = (*sql.Row)(nil)
)
