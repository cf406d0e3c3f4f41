package bboltx

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/dogmatiq/linger"
	"go.etcd.io/bbolt"
)

// Open opens the database at the given path, creating it and its parent
// directory if necessary.
//
// If mode is zero, 0600 is used. The time spent waiting for the file lock is
// bounded by the deadline of ctx, if it is sooner than opts.Timeout.
// context.DeadlineExceeded is returned if the lock is not obtained in time.
func Open(
	ctx context.Context,
	path string,
	mode os.FileMode,
	opts *bbolt.Options,
) (*bbolt.DB, error) {
	if mode == 0 {
		mode = 0600
	}

	// A non-positive timeout means "wait forever" to BoltDB, so an expired
	// context must be caught here.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}

	opts = withTimeout(ctx, opts)

	db, err := bbolt.Open(path, mode, opts)
	if errors.Is(err, bbolt.ErrTimeout) {
		return nil, context.DeadlineExceeded
	}

	return db, err
}

// withTimeout returns a copy of opts with a timeout no later than the
// deadline of ctx.
func withTimeout(ctx context.Context, opts *bbolt.Options) *bbolt.Options {
	timeout, ok := linger.FromContextDeadline(ctx)
	if !ok {
		return opts
	}

	var o bbolt.Options
	if opts == nil {
		o = *bbolt.DefaultOptions
	} else {
		o = *opts
	}

	if o.Timeout == 0 || o.Timeout > timeout {
		o.Timeout = timeout
	}

	return &o
}
