package syncx

import (
	"context"
	"sync"
)

// UnlockFunc is a function used to unlock a previously locked mutex.
type UnlockFunc func()

// MutexNamespace is a set of named, context-aware mutexes.
//
// A mutex exists only while it is locked or has callers waiting to lock it.
type MutexNamespace struct {
	m       sync.Mutex
	mutexes map[string]*namedMutex
}

type namedMutex struct {
	guard chan struct{}
	refs  int
}

// Lock acquires an exclusive lock on the mutex with the given name.
//
// It blocks until the mutex is acquired or ctx is canceled. The returned
// function must be called to unlock the mutex. Calling it more than once has
// no further effect.
func (ns *MutexNamespace) Lock(ctx context.Context, name string) (UnlockFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := ns.ref(name)

	select {
	case <-ctx.Done():
		ns.unref(name, m)
		return nil, ctx.Err()

	case m.guard <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-m.guard
				ns.unref(name, m)
			})
		}, nil
	}
}

// ref returns the mutex with the given name, creating it if necessary, and
// increments its reference count.
func (ns *MutexNamespace) ref(name string) *namedMutex {
	ns.m.Lock()
	defer ns.m.Unlock()

	if ns.mutexes == nil {
		ns.mutexes = map[string]*namedMutex{}
	}

	m, ok := ns.mutexes[name]
	if !ok {
		m = &namedMutex{guard: make(chan struct{}, 1)}
		ns.mutexes[name] = m
	}

	m.refs++

	return m
}

// unref decrements the reference count of m, removing it from the namespace
// when it reaches zero.
func (ns *MutexNamespace) unref(name string, m *namedMutex) {
	ns.m.Lock()
	defer ns.m.Unlock()

	m.refs--

	if m.refs == 0 {
		delete(ns.mutexes, name)
	}
}
