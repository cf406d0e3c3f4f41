package boltdb

import (
	"context"

	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/processkit/internal/x/bboltx"
	"github.com/dogmatiq/processkit/readmodel"
	"go.etcd.io/bbolt"
)

// snapshot reads rows from a single transaction.
//
// Its methods panic with a bboltx.PanicSentinel if a row can not be read.
type snapshot struct {
	tx        *bbolt.Tx
	marshaler marshalkit.ValueMarshaler
}

func (s snapshot) load(id string) (*readmodel.ProcessInstance, bool) {
	b := bboltx.Bucket(s.tx, instancesBucket)
	if b == nil {
		return nil, false
	}

	data := b.Get([]byte(id))
	if data == nil {
		return nil, false
	}

	pi, err := unmarshal(s.marshaler, data)
	bboltx.Must(err)

	return pi, true
}

func (s snapshot) findPage(c readmodel.Criteria, req readmodel.PageRequest) readmodel.Page {
	var matches []*readmodel.ProcessInstance

	if b := bboltx.Bucket(s.tx, instancesBucket); b != nil {
		bboltx.Must(b.ForEach(func(_, data []byte) error {
			pi, err := unmarshal(s.marshaler, data)
			if err != nil {
				return err
			}

			if c.Match(pi) {
				matches = append(matches, pi)
			}

			return nil
		}))
	}

	readmodel.SortPage(matches)

	return readmodel.NewPage(
		req,
		len(matches),
		readmodel.Window(matches, req),
	)
}

func (s snapshot) findChildren(parentIDs []string, req readmodel.PageRequest) readmodel.Page {
	seen := map[string]struct{}{}
	var matches []*readmodel.ProcessInstance

	for _, id := range parentIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		matches = append(matches, s.findAllChildren(id)...)
	}

	readmodel.SortChildren(matches)

	return readmodel.NewPage(
		req,
		len(matches),
		readmodel.Window(matches, req),
	)
}

func (s snapshot) findAllChildren(parentID string) []*readmodel.ProcessInstance {
	rows := []*readmodel.ProcessInstance{}

	if parentID == "" {
		return rows
	}

	b := bboltx.Bucket(s.tx, childrenBucket, []byte(parentID))
	if b == nil {
		return rows
	}

	// Keys are iterated in byte order, which is the order required of the
	// result.
	bboltx.Must(b.ForEach(func(k, _ []byte) error {
		if pi, ok := s.load(string(k)); ok {
			rows = append(rows, pi)
		}
		return nil
	}))

	return rows
}

// view is the read-only readmodel.Repository passed to the function given to
// Repository.View().
type view struct {
	s snapshot
}

func (v *view) Load(_ context.Context, id string) (pi *readmodel.ProcessInstance, ok bool, err error) {
	defer bboltx.Recover(&err)
	pi, ok = v.s.load(id)
	return pi, ok, nil
}

func (v *view) FindPage(
	_ context.Context,
	c readmodel.Criteria,
	req readmodel.PageRequest,
) (p readmodel.Page, err error) {
	defer bboltx.Recover(&err)
	return v.s.findPage(c, req), nil
}

func (v *view) FindChildren(
	_ context.Context,
	parentIDs []string,
	req readmodel.PageRequest,
) (p readmodel.Page, err error) {
	defer bboltx.Recover(&err)
	return v.s.findChildren(parentIDs, req), nil
}

func (v *view) FindAllChildren(_ context.Context, parentID string) (rows []*readmodel.ProcessInstance, err error) {
	defer bboltx.Recover(&err)
	return v.s.findAllChildren(parentID), nil
}

func (*view) Save(context.Context, *readmodel.ProcessInstance) error {
	return readmodel.ErrReadOnly
}

func (*view) Delete(context.Context, string) error {
	return readmodel.ErrReadOnly
}
