package sqlx

import (
	"context"
	"database/sql"
)

// Begin starts a transaction on db, or panics with a PanicSentinel if the
// transaction can not be started.
func Begin(ctx context.Context, db *sql.DB, opts *sql.TxOptions) *sql.Tx {
	tx, err := db.BeginTx(ctx, opts)
	Must(err)
	return tx
}
