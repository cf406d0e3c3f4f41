// Package correlation matches replies to the requests that are waiting for
// them.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTimeout is the error that a call is resolved with when no reply arrives
// before its deadline.
var ErrTimeout = errors.New("timed out waiting for a reply")

// DuplicateCorrelationIDError is returned by Registry.Register() if a call
// with the same ID is already pending.
type DuplicateCorrelationIDError struct {
	ID string
}

func (e DuplicateCorrelationIDError) Error() string {
	return fmt.Sprintf("a call with correlation ID %s is already pending", e.ID)
}

// Registry is a set of pending calls keyed by correlation ID.
//
// It is safe for concurrent use. The zero-value is ready to use.
type Registry struct {
	calls sync.Map // map[string]*PendingCall
	count atomic.Int64
}

// Register adds a new pending call with the given ID and deadline.
func (r *Registry) Register(id string, deadline time.Time) (*PendingCall, error) {
	c := &PendingCall{
		ID:       id,
		Deadline: deadline,
		done:     make(chan struct{}),
	}

	// The call must be counted before it is visible to finish().
	r.count.Add(1)

	if _, loaded := r.calls.LoadOrStore(id, c); loaded {
		r.count.Add(-1)
		return nil, DuplicateCorrelationIDError{id}
	}

	return c, nil
}

// Resolve resolves the call with the given ID with v.
//
// It returns false if there is no such call, which is the case if the call
// has already been resolved, expired or canceled.
func (r *Registry) Resolve(id string, v any) bool {
	return r.finish(id, Reply{Value: v})
}

// Fail resolves the call with the given ID with an error.
//
// It returns false if there is no such call.
func (r *Registry) Fail(id string, err error) bool {
	return r.finish(id, Reply{Err: err})
}

// Expire resolves the call with the given ID with ErrTimeout.
//
// It returns false if there is no such call.
func (r *Registry) Expire(id string) bool {
	return r.finish(id, Reply{Err: ErrTimeout})
}

// Cancel resolves the call with the given ID with cause. It is used when the
// caller stops waiting.
//
// It returns false if there is no such call.
func (r *Registry) Cancel(id string, cause error) bool {
	return r.finish(id, Reply{Err: cause})
}

// Has returns true if a call with the given ID is pending.
func (r *Registry) Has(id string) bool {
	_, ok := r.calls.Load(id)
	return ok
}

// Len returns the number of pending calls.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Wait blocks until c is resolved and returns its reply.
//
// If c's deadline passes first it is expired. If ctx is canceled first it is
// canceled with ctx.Err(). In both cases the call is removed from the
// registry before Wait returns. A reply that arrives concurrently with the
// deadline or the cancellation may still win, in which case it is returned.
func (r *Registry) Wait(ctx context.Context, c *PendingCall) Reply {
	timer := time.NewTimer(time.Until(c.Deadline))
	defer timer.Stop()

	select {
	case <-c.done:
	case <-timer.C:
		r.Expire(c.ID)
	case <-ctx.Done():
		r.Cancel(c.ID, ctx.Err())
	}

	<-c.done
	return c.reply
}

// finish removes the call with the given ID and resolves it with rep.
//
// The removal is atomic, so only one of any concurrent callers resolves the
// call.
func (r *Registry) finish(id string, rep Reply) bool {
	v, ok := r.calls.LoadAndDelete(id)
	if !ok {
		return false
	}

	r.count.Add(-1)
	v.(*PendingCall).resolve(rep)

	return true
}
