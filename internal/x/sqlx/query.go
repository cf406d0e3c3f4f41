package sqlx

import (
	"context"
	"database/sql"
)

// Query executes a query on the given DB.
func Query(
	ctx context.Context,
	db DB,
	query string,
	args ...any,
) *sql.Rows {
	rows, err := db.QueryContext(ctx, query, args...)
	Must(err)
	return rows
}

// QueryInto executes single-column, single-row query on the given DB and scans
// the result into a value.
func QueryInto(
	ctx context.Context,
	db DB,
	value any,
	query string,
	args ...any,
) {
	row := db.QueryRowContext(ctx, query, args...)
	Must(row.Scan(value))
}

// QueryInt64 executes a single-column, single-row query on the given DB and
// returns a single int64 result.
func QueryInt64(
	ctx context.Context,
	db DB,
	query string,
	args ...any,
) (v int64) {
	QueryInto(ctx, db, &v, query, args...)
	return v
}

// Each calls fn for each row produced by the query, then closes the rows.
func Each(
	ctx context.Context,
	db DB,
	fn func(Scanner),
	query string,
	args ...any,
) {
	rows := Query(ctx, db, query, args...)
	defer rows.Close()

	for rows.Next() {
		fn(rows)
	}

	Must(rows.Err())
}
