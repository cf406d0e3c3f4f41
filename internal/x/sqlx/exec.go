package sqlx

import (
	"context"
	"database/sql"
)

// Exec executes a statement on the given DB.
func Exec(
	ctx context.Context,
	db DB,
	query string,
	args ...any,
) sql.Result {
	res, err := db.ExecContext(ctx, query, args...)
	Must(err)
	return res
}
