package correlation

import (
	"context"
	"time"
)

// Reply is the outcome of a pending call.
type Reply struct {
	// Value is the value that the call was resolved with. It is nil if Err is
	// non-nil.
	Value any

	// Err is the error that the call failed with.
	Err error
}

// PendingCall is a single in-flight request awaiting its reply.
//
// A call is resolved exactly once, by whichever of Registry.Resolve(),
// Registry.Expire() or Registry.Cancel() removes it from the registry first.
type PendingCall struct {
	// ID is the correlation ID of the call.
	ID string

	// Deadline is the time after which the call is expired.
	Deadline time.Time

	done  chan struct{}
	reply Reply
}

// Done returns a channel that is closed when the call is resolved.
func (c *PendingCall) Done() <-chan struct{} {
	return c.done
}

// Reply returns the reply that the call was resolved with.
//
// It must not be called before the channel returned by Done() is closed.
func (c *PendingCall) Reply() Reply {
	return c.reply
}

// Await blocks until the call is resolved, then returns its reply.
func (c *PendingCall) Await(ctx context.Context) (Reply, error) {
	select {
	case <-c.done:
		return c.reply, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// resolve stores r and wakes any waiters.
//
// It must only be called by the party that removed c from the registry.
func (c *PendingCall) resolve(r Reply) {
	c.reply = r
	close(c.done)
}
