// Package memory is an in-memory read-model repository.
package memory

import (
	"context"

	"github.com/dogmatiq/processkit/internal/x/syncx"
	"github.com/dogmatiq/processkit/readmodel"
)

// Repository is an implementation of readmodel.Repository that stores
// process instances in memory.
type Repository struct {
	m    syncx.RWMutex
	rows map[string]*readmodel.ProcessInstance
}

var (
	_ readmodel.Repository = (*Repository)(nil)
	_ readmodel.Viewer     = (*Repository)(nil)
)

// Load returns the process instance with the given ID.
func (r *Repository) Load(ctx context.Context, id string) (*readmodel.ProcessInstance, bool, error) {
	if err := r.m.RLock(ctx); err != nil {
		return nil, false, err
	}
	defer r.m.RUnlock()

	return snapshot{r}.Load(ctx, id)
}

// FindPage returns a page of the process instances that match c.
func (r *Repository) FindPage(
	ctx context.Context,
	c readmodel.Criteria,
	req readmodel.PageRequest,
) (readmodel.Page, error) {
	if err := r.m.RLock(ctx); err != nil {
		return readmodel.Page{}, err
	}
	defer r.m.RUnlock()

	return snapshot{r}.FindPage(ctx, c, req)
}

// FindChildren returns a page of the process instances whose parent is one
// of the given instances.
func (r *Repository) FindChildren(
	ctx context.Context,
	parentIDs []string,
	req readmodel.PageRequest,
) (readmodel.Page, error) {
	if err := r.m.RLock(ctx); err != nil {
		return readmodel.Page{}, err
	}
	defer r.m.RUnlock()

	return snapshot{r}.FindChildren(ctx, parentIDs, req)
}

// FindAllChildren returns every process instance whose parent is the given
// instance.
func (r *Repository) FindAllChildren(ctx context.Context, parentID string) ([]*readmodel.ProcessInstance, error) {
	if err := r.m.RLock(ctx); err != nil {
		return nil, err
	}
	defer r.m.RUnlock()

	return snapshot{r}.FindAllChildren(ctx, parentID)
}

// Save adds or replaces a process instance.
func (r *Repository) Save(ctx context.Context, pi *readmodel.ProcessInstance) error {
	if err := r.m.Lock(ctx); err != nil {
		return err
	}
	defer r.m.Unlock()

	if r.rows == nil {
		r.rows = map[string]*readmodel.ProcessInstance{}
	}

	row := pi.Clone()
	row.Subprocesses = nil
	r.rows[pi.ID] = row

	return nil
}

// Delete removes a process instance.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.m.Lock(ctx); err != nil {
		return err
	}
	defer r.m.Unlock()

	delete(r.rows, id)

	return nil
}

// View calls fn with a read-only repository. Writes to r block until fn
// returns.
func (r *Repository) View(
	ctx context.Context,
	fn func(context.Context, readmodel.Repository) error,
) error {
	if err := r.m.RLock(ctx); err != nil {
		return err
	}
	defer r.m.RUnlock()

	return fn(ctx, snapshot{r})
}

// snapshot is a read-only view of a repository. The caller must hold a
// read-lock on the repository.
type snapshot struct {
	r *Repository
}

func (s snapshot) Load(_ context.Context, id string) (*readmodel.ProcessInstance, bool, error) {
	if row, ok := s.r.rows[id]; ok {
		return row.Clone(), true, nil
	}

	return nil, false, nil
}

func (s snapshot) FindPage(
	_ context.Context,
	c readmodel.Criteria,
	req readmodel.PageRequest,
) (readmodel.Page, error) {
	return page(s.r.rows, c.Match, readmodel.SortPage, req), nil
}

func (s snapshot) FindChildren(
	_ context.Context,
	parentIDs []string,
	req readmodel.PageRequest,
) (readmodel.Page, error) {
	parents := map[string]struct{}{}
	for _, id := range parentIDs {
		parents[id] = struct{}{}
	}

	return page(
		s.r.rows,
		func(pi *readmodel.ProcessInstance) bool {
			if pi.ParentID == "" {
				return false
			}

			_, ok := parents[pi.ParentID]
			return ok
		},
		readmodel.SortChildren,
		req,
	), nil
}

func (s snapshot) FindAllChildren(_ context.Context, parentID string) ([]*readmodel.ProcessInstance, error) {
	rows := filter(
		s.r.rows,
		func(pi *readmodel.ProcessInstance) bool {
			return parentID != "" && pi.ParentID == parentID
		},
	)

	readmodel.SortChildren(rows)

	return rows, nil
}

func (snapshot) Save(context.Context, *readmodel.ProcessInstance) error {
	return readmodel.ErrReadOnly
}

func (snapshot) Delete(context.Context, string) error {
	return readmodel.ErrReadOnly
}

// page returns the page of rows that match pred.
func page(
	rows map[string]*readmodel.ProcessInstance,
	pred func(*readmodel.ProcessInstance) bool,
	sort func([]*readmodel.ProcessInstance),
	req readmodel.PageRequest,
) readmodel.Page {
	matches := filter(rows, pred)
	sort(matches)

	return readmodel.NewPage(
		req,
		len(matches),
		readmodel.Window(matches, req),
	)
}

// filter returns clones of the rows that match pred.
func filter(
	rows map[string]*readmodel.ProcessInstance,
	pred func(*readmodel.ProcessInstance) bool,
) []*readmodel.ProcessInstance {
	matches := []*readmodel.ProcessInstance{}

	for _, row := range rows {
		if pred(row) {
			matches = append(matches, row.Clone())
		}
	}

	return matches
}
