package readmodel

import (
	"context"
	"sort"

	"github.com/dogmatiq/dodeca/logging"
)

// Grouper attaches each process instance's subprocesses to it.
type Grouper struct {
	// Repository is the source of the subprocess rows.
	Repository Repository

	// Logger is the target for log messages. If it is nil,
	// logging.DefaultLogger is used.
	Logger logging.Logger
}

// Attach populates the Subprocesses of every instance on page p.
//
// The subprocesses are fetched with a single query that is paginated using
// r, the same request used to fetch p. Consequently, if the instances on p
// have more subprocesses in total than fit on one page, only the first page
// of them, ordered by ID, is attached.
//
// Instances without subprocesses are given an empty, non-nil set. The page
// itself is returned unchanged apart from its content being modified in
// place.
func (g *Grouper) Attach(ctx context.Context, p Page, r PageRequest) (Page, error) {
	if len(p.Content) == 0 {
		return p, nil
	}

	ids := make([]string, len(p.Content))
	for i, pi := range p.Content {
		ids[i] = pi.ID
	}

	children, err := g.Repository.FindChildren(ctx, ids, r)
	if err != nil {
		return p, err
	}

	if n := len(children.Content); children.TotalElements > n {
		logging.Debug(
			g.logger(),
			"attached %d of %d subprocesses to page %d",
			n,
			children.TotalElements,
			p.Number,
		)
	}

	groups := group(children.Content)

	for _, pi := range p.Content {
		if s, ok := groups[pi.ID]; ok {
			pi.Subprocesses = s
		} else {
			pi.Subprocesses = []ProcessInstanceSummary{}
		}
	}

	return p, nil
}

// AttachOne populates the Subprocesses of pi with all of its subprocesses.
func (g *Grouper) AttachOne(ctx context.Context, pi *ProcessInstance) error {
	children, err := g.Repository.FindAllChildren(ctx, pi.ID)
	if err != nil {
		return err
	}

	if s, ok := group(children)[pi.ID]; ok {
		pi.Subprocesses = s
	} else {
		pi.Subprocesses = []ProcessInstanceSummary{}
	}

	return nil
}

func (g *Grouper) logger() logging.Logger {
	if g.Logger == nil {
		return logging.DefaultLogger
	}

	return g.Logger
}

// group returns the summaries of the given rows keyed by parent ID. Each set
// contains each ID once and is ordered by ID.
func group(children []*ProcessInstance) map[string][]ProcessInstanceSummary {
	seen := map[string]map[string]struct{}{}
	groups := map[string][]ProcessInstanceSummary{}

	for _, c := range children {
		ids, ok := seen[c.ParentID]
		if !ok {
			ids = map[string]struct{}{}
			seen[c.ParentID] = ids
		}

		if _, ok := ids[c.ID]; ok {
			continue
		}
		ids[c.ID] = struct{}{}

		groups[c.ParentID] = append(groups[c.ParentID], c.Summary())
	}

	for _, s := range groups {
		sort.Slice(s, func(i, j int) bool {
			return s[i].ID < s[j].ID
		})
	}

	return groups
}
