// Package retry repeats operations that fail transiently.
package retry

import (
	"context"
	"time"

	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
)

// DefaultStrategy is the default backoff strategy used between attempts.
var DefaultStrategy backoff.Strategy = backoff.WithTransforms(
	backoff.Exponential(100*time.Millisecond),
	linger.FullJitter,
	linger.Limiter(0, 5*time.Second),
)

// Do calls fn until it succeeds, it has been attempted n times, or ctx is
// canceled.
//
// s determines the delay between attempts. If it is nil, DefaultStrategy is
// used. If n is less than one, fn is attempted once.
//
// If observe is non-nil it is called with each error that is about to be
// retried, along with the 1-based number of the failed attempt.
//
// It returns the error from the last attempt, or ctx.Err() if ctx is
// canceled while waiting to retry.
func Do(
	ctx context.Context,
	s backoff.Strategy,
	n int,
	fn func(context.Context) error,
	observe func(attempt int, err error),
) error {
	if s == nil {
		s = DefaultStrategy
	}

	counter := backoff.Counter{Strategy: s}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || attempt >= n {
			return err
		}

		if observe != nil {
			observe(attempt, err)
		}

		if err := counter.Sleep(ctx, err); err != nil {
			return err
		}
	}
}
