// Package boltdb is a read-model repository that stores process instances in
// a BoltDB database.
package boltdb

import (
	"context"

	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/processkit/internal/x/bboltx"
	"github.com/dogmatiq/processkit/readmodel"
	"go.etcd.io/bbolt"
)

var (
	// instancesBucket maps each instance ID to its marshaled row.
	instancesBucket = []byte("instances")

	// childrenBucket contains a nested bucket for each parent ID, in which
	// each key is the ID of a child instance.
	childrenBucket = []byte("children")
)

// Repository is an implementation of readmodel.Repository that stores
// process instances in a BoltDB database.
type Repository struct {
	// DB is the database in which the rows are stored.
	DB *bbolt.DB

	// Marshaler is used to marshal and unmarshal rows. It must support the
	// types returned by readmodel.Types().
	Marshaler marshalkit.ValueMarshaler
}

var (
	_ readmodel.Repository = (*Repository)(nil)
	_ readmodel.Viewer     = (*Repository)(nil)
)

// Load returns the process instance with the given ID.
func (r *Repository) Load(ctx context.Context, id string) (pi *readmodel.ProcessInstance, ok bool, err error) {
	err = r.view(ctx, func(s snapshot) {
		pi, ok = s.load(id)
	})
	return pi, ok, err
}

// FindPage returns a page of the process instances that match c.
func (r *Repository) FindPage(
	ctx context.Context,
	c readmodel.Criteria,
	req readmodel.PageRequest,
) (p readmodel.Page, err error) {
	err = r.view(ctx, func(s snapshot) {
		p = s.findPage(c, req)
	})
	return p, err
}

// FindChildren returns a page of the process instances whose parent is one
// of the given instances.
func (r *Repository) FindChildren(
	ctx context.Context,
	parentIDs []string,
	req readmodel.PageRequest,
) (p readmodel.Page, err error) {
	err = r.view(ctx, func(s snapshot) {
		p = s.findChildren(parentIDs, req)
	})
	return p, err
}

// FindAllChildren returns every process instance whose parent is the given
// instance.
func (r *Repository) FindAllChildren(
	ctx context.Context,
	parentID string,
) (rows []*readmodel.ProcessInstance, err error) {
	err = r.view(ctx, func(s snapshot) {
		rows = s.findAllChildren(parentID)
	})
	return rows, err
}

// Save adds or replaces a process instance.
func (r *Repository) Save(ctx context.Context, pi *readmodel.ProcessInstance) error {
	data, err := marshal(r.Marshaler, pi)
	if err != nil {
		return err
	}

	return r.update(ctx, func(tx *bbolt.Tx) {
		s := snapshot{tx, r.Marshaler}

		if prev, ok := s.load(pi.ID); ok {
			unindex(tx, prev)
		}

		bboltx.Put(
			bboltx.CreateBucketIfNotExists(tx, instancesBucket),
			[]byte(pi.ID),
			data,
		)

		if pi.ParentID != "" {
			bboltx.Put(
				bboltx.CreateBucketIfNotExists(tx, childrenBucket, []byte(pi.ParentID)),
				[]byte(pi.ID),
				nil,
			)
		}
	})
}

// Delete removes a process instance.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.update(ctx, func(tx *bbolt.Tx) {
		s := snapshot{tx, r.Marshaler}

		prev, ok := s.load(id)
		if !ok {
			return
		}

		unindex(tx, prev)
		bboltx.Delete(
			bboltx.Bucket(tx, instancesBucket),
			[]byte(id),
		)
	})
}

// View calls fn with a read-only repository that reads from a single BoltDB
// transaction.
func (r *Repository) View(
	ctx context.Context,
	fn func(context.Context, readmodel.Repository) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.DB.View(func(tx *bbolt.Tx) error {
		return fn(ctx, &view{snapshot{tx, r.Marshaler}})
	})
}

// view executes fn within a read-only transaction.
func (r *Repository) view(ctx context.Context, fn func(snapshot)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.DB.View(func(tx *bbolt.Tx) (err error) {
		defer bboltx.Recover(&err)
		fn(snapshot{tx, r.Marshaler})
		return nil
	})
}

// update executes fn within a read-write transaction.
func (r *Repository) update(ctx context.Context, fn func(*bbolt.Tx)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.DB.Update(func(tx *bbolt.Tx) (err error) {
		defer bboltx.Recover(&err)
		fn(tx)
		return nil
	})
}

// unindex removes pi from the children index of its parent.
func unindex(tx *bbolt.Tx, pi *readmodel.ProcessInstance) {
	if pi.ParentID == "" {
		return
	}

	children := bboltx.Bucket(tx, childrenBucket)
	if children == nil {
		return
	}

	if b := children.Bucket([]byte(pi.ParentID)); b != nil {
		bboltx.Delete(b, []byte(pi.ID))
		bboltx.DeleteBucketIfEmpty(children, []byte(pi.ParentID))
	}
}
