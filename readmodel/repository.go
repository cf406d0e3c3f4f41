package readmodel

import (
	"context"
	"errors"
	"sort"
)

// ErrReadOnly is returned when a write is attempted within a read-only view
// of a repository.
var ErrReadOnly = errors.New("repository view is read-only")

// Repository stores process instance rows.
type Repository interface {
	// Load returns the process instance with the given ID.
	//
	// ok is false if there is no such instance.
	Load(ctx context.Context, id string) (pi *ProcessInstance, ok bool, err error)

	// FindPage returns a page of the process instances that match c, most
	// recently started first.
	FindPage(ctx context.Context, c Criteria, r PageRequest) (Page, error)

	// FindChildren returns a page of the process instances whose parent is
	// one of the given instances, ordered by ID.
	FindChildren(ctx context.Context, parentIDs []string, r PageRequest) (Page, error)

	// FindAllChildren returns every process instance whose parent is the
	// given instance, ordered by ID.
	FindAllChildren(ctx context.Context, parentID string) ([]*ProcessInstance, error)

	// Save adds or replaces a process instance.
	Save(ctx context.Context, pi *ProcessInstance) error

	// Delete removes a process instance. It is not an error if the instance
	// does not exist.
	Delete(ctx context.Context, id string) error
}

// Viewer is an interface for repositories that can run a series of reads
// against a consistent snapshot.
type Viewer interface {
	// View calls fn with a read-only repository that reads from a single
	// snapshot. Writes made through that repository fail with ErrReadOnly.
	View(ctx context.Context, fn func(context.Context, Repository) error) error
}

// View calls fn with a read-only snapshot of r if r implements Viewer;
// otherwise fn is called with r itself.
func View(ctx context.Context, r Repository, fn func(context.Context, Repository) error) error {
	if v, ok := r.(Viewer); ok {
		return v.View(ctx, fn)
	}

	return fn(ctx, r)
}

// SortPage sorts rows into the order used by FindPage().
func SortPage(rows []*ProcessInstance) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]

		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.After(b.StartDate)
		}

		return a.ID < b.ID
	})
}

// SortChildren sorts rows into the order used by FindChildren() and
// FindAllChildren().
func SortChildren(rows []*ProcessInstance) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ID < rows[j].ID
	})
}
