package readmodel

import (
	"context"

	"github.com/dogmatiq/dodeca/logging"
)

// Query reads process instances along with their subprocesses.
//
// When the repository implements Viewer, the instances and their
// subprocesses are read from the same snapshot.
type Query struct {
	// Repository is the source of the process instance rows.
	Repository Repository

	// Logger is the target for log messages. If it is nil,
	// logging.DefaultLogger is used.
	Logger logging.Logger
}

// FindPage returns a page of the process instances that match c, each with
// its subprocesses attached.
func (q *Query) FindPage(ctx context.Context, c Criteria, r PageRequest) (p Page, err error) {
	err = View(
		ctx,
		q.Repository,
		func(ctx context.Context, repo Repository) error {
			p, err = repo.FindPage(ctx, c, r)
			if err != nil {
				return err
			}

			g := &Grouper{repo, q.Logger}
			p, err = g.Attach(ctx, p, r)
			return err
		},
	)

	return p, err
}

// Load returns the process instance with the given ID, with all of its
// subprocesses attached.
func (q *Query) Load(ctx context.Context, id string) (pi *ProcessInstance, ok bool, err error) {
	err = View(
		ctx,
		q.Repository,
		func(ctx context.Context, repo Repository) error {
			pi, ok, err = repo.Load(ctx, id)
			if !ok || err != nil {
				return err
			}

			g := &Grouper{repo, q.Logger}
			return g.AttachOne(ctx, pi)
		},
	)

	return pi, ok, err
}
