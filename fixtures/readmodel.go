package fixtures

import (
	"context"

	"github.com/dogmatiq/processkit/readmodel"
)

// RepositoryStub is a test implementation of the readmodel.Repository
// interface.
type RepositoryStub struct {
	readmodel.Repository

	LoadFunc            func(context.Context, string) (*readmodel.ProcessInstance, bool, error)
	FindPageFunc        func(context.Context, readmodel.Criteria, readmodel.PageRequest) (readmodel.Page, error)
	FindChildrenFunc    func(context.Context, []string, readmodel.PageRequest) (readmodel.Page, error)
	FindAllChildrenFunc func(context.Context, string) ([]*readmodel.ProcessInstance, error)
	SaveFunc            func(context.Context, *readmodel.ProcessInstance) error
	DeleteFunc          func(context.Context, string) error
}

// Load returns the process instance with the given ID.
func (r *RepositoryStub) Load(ctx context.Context, id string) (*readmodel.ProcessInstance, bool, error) {
	if r.LoadFunc != nil {
		return r.LoadFunc(ctx, id)
	}

	if r.Repository != nil {
		return r.Repository.Load(ctx, id)
	}

	return nil, false, nil
}

// FindPage returns a page of the process instances that match c.
func (r *RepositoryStub) FindPage(
	ctx context.Context,
	c readmodel.Criteria,
	req readmodel.PageRequest,
) (readmodel.Page, error) {
	if r.FindPageFunc != nil {
		return r.FindPageFunc(ctx, c, req)
	}

	if r.Repository != nil {
		return r.Repository.FindPage(ctx, c, req)
	}

	return readmodel.Page{}, nil
}

// FindChildren returns a page of the children of the given parents.
func (r *RepositoryStub) FindChildren(
	ctx context.Context,
	parentIDs []string,
	req readmodel.PageRequest,
) (readmodel.Page, error) {
	if r.FindChildrenFunc != nil {
		return r.FindChildrenFunc(ctx, parentIDs, req)
	}

	if r.Repository != nil {
		return r.Repository.FindChildren(ctx, parentIDs, req)
	}

	return readmodel.Page{}, nil
}

// FindAllChildren returns every child of the given parent.
func (r *RepositoryStub) FindAllChildren(ctx context.Context, parentID string) ([]*readmodel.ProcessInstance, error) {
	if r.FindAllChildrenFunc != nil {
		return r.FindAllChildrenFunc(ctx, parentID)
	}

	if r.Repository != nil {
		return r.Repository.FindAllChildren(ctx, parentID)
	}

	return nil, nil
}

// Save adds or replaces a process instance.
func (r *RepositoryStub) Save(ctx context.Context, pi *readmodel.ProcessInstance) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, pi)
	}

	if r.Repository != nil {
		return r.Repository.Save(ctx, pi)
	}

	return nil
}

// Delete removes a process instance.
func (r *RepositoryStub) Delete(ctx context.Context, id string) error {
	if r.DeleteFunc != nil {
		return r.DeleteFunc(ctx, id)
	}

	if r.Repository != nil {
		return r.Repository.Delete(ctx, id)
	}

	return nil
}
