package repotest

import (
	"context"
	"time"

	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/internal/x/gomegax"
	"github.com/dogmatiq/processkit/readmodel"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// Out is a container for values that are provided by the repository-specific
// "before" function to the test-suite.
type Out struct {
	// Repository is the repository to be tested. It must be empty.
	Repository readmodel.Repository

	// TestTimeout is the maximum duration allowed for each test.
	TestTimeout time.Duration
}

// DefaultTestTimeout is the default test timeout.
const DefaultTestTimeout = 3 * time.Second

// epoch is the start date of the first instance in each test.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Declare declares generic behavioral tests for a specific repository
// implementation.
func Declare(
	before func(context.Context) Out,
	after func(),
) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		repo   readmodel.Repository
	)

	// instance returns a row that starts n hours after the epoch.
	instance := func(id, parentID string, n int) *readmodel.ProcessInstance {
		return &readmodel.ProcessInstance{
			ID:                   id,
			Name:                 "<name " + id + ">",
			ProcessDefinitionID:  "<definition>",
			ProcessDefinitionKey: "<key>",
			BusinessKey:          "<business-key " + id + ">",
			Initiator:            "<initiator>",
			Status:               command.Running,
			ParentID:             parentID,
			StartDate:            epoch.Add(time.Duration(n) * time.Hour),
			LastModified:         epoch.Add(time.Duration(n)*time.Hour + time.Minute),
		}
	}

	save := func(rows ...*readmodel.ProcessInstance) {
		for _, pi := range rows {
			err := repo.Save(ctx, pi)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
		}
	}

	ids := func(rows []*readmodel.ProcessInstance) []string {
		var result []string
		for _, pi := range rows {
			result = append(result, pi.ID)
		}
		return result
	}

	ginkgo.BeforeEach(func() {
		setupCtx, cancelSetup := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelSetup()

		out := before(setupCtx)
		repo = out.Repository

		if out.TestTimeout <= 0 {
			out.TestTimeout = DefaultTestTimeout
		}

		ctx, cancel = context.WithTimeout(context.Background(), out.TestTimeout)
	})

	ginkgo.AfterEach(func() {
		if after != nil {
			after()
		}

		if cancel != nil {
			cancel()
		}
	})

	ginkgo.Describe("func Load()", func() {
		ginkgo.It("returns false if the instance does not exist", func() {
			_, ok, err := repo.Load(ctx, "<unknown>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeFalse())
		})

		ginkgo.It("returns the saved instance", func() {
			pi := instance("<instance>", "<parent>", 0)
			save(pi)

			x, ok, err := repo.Load(ctx, "<instance>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(x).To(gomegax.EqualX(pi))
		})
	})

	ginkgo.Describe("func Save()", func() {
		ginkgo.It("replaces an existing instance", func() {
			save(instance("<instance>", "", 0))

			pi := instance("<instance>", "", 0)
			pi.Status = command.Completed
			pi.Name = "<updated>"
			save(pi)

			x, ok, err := repo.Load(ctx, "<instance>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(x).To(gomegax.EqualX(pi))
		})

		ginkgo.It("does not store the subprocesses", func() {
			pi := instance("<instance>", "", 0)
			pi.Subprocesses = []readmodel.ProcessInstanceSummary{{ID: "<child>"}}
			save(pi)

			x, _, err := repo.Load(ctx, "<instance>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(x.Subprocesses).To(gomega.BeNil())
		})
	})

	ginkgo.Describe("func Delete()", func() {
		ginkgo.It("removes the instance", func() {
			save(instance("<instance>", "", 0))

			err := repo.Delete(ctx, "<instance>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			_, ok, err := repo.Load(ctx, "<instance>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeFalse())
		})

		ginkgo.It("does not return an error if the instance does not exist", func() {
			err := repo.Delete(ctx, "<unknown>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("func FindPage()", func() {
		ginkgo.BeforeEach(func() {
			save(
				instance("<a>", "", 0),
				instance("<b>", "", 2),
				instance("<c>", "", 1),
				instance("<d>", "", 2),
				instance("<e>", "<a>", 3),
			)
		})

		ginkgo.It("returns the most recently started instances first", func() {
			p, err := repo.FindPage(ctx, nil, readmodel.PageRequest{Size: 10})
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ids(p.Content)).To(gomega.Equal([]string{"<e>", "<b>", "<d>", "<c>", "<a>"}))
		})

		ginkgo.It("returns the requested page", func() {
			p, err := repo.FindPage(ctx, nil, readmodel.PageRequest{Number: 1, Size: 2})
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ids(p.Content)).To(gomega.Equal([]string{"<d>", "<c>"}))
			gomega.Expect(p.Number).To(gomega.Equal(1))
			gomega.Expect(p.Size).To(gomega.Equal(2))
			gomega.Expect(p.TotalElements).To(gomega.Equal(5))
			gomega.Expect(p.TotalPages()).To(gomega.Equal(3))
		})

		ginkgo.It("returns an empty page beyond the last page", func() {
			p, err := repo.FindPage(ctx, nil, readmodel.PageRequest{Number: 5, Size: 2})
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(p.Content).To(gomega.BeEmpty())
			gomega.Expect(p.TotalElements).To(gomega.Equal(5))
		})

		ginkgo.DescribeTable(
			"it returns the instances that match the criteria",
			func(criteria string, expected []string) {
				c, err := readmodel.ParseCriteria(criteria)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				p, err := repo.FindPage(ctx, c, readmodel.PageRequest{Size: 10})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ids(p.Content)).To(gomega.Equal(expected))
				gomega.Expect(p.TotalElements).To(gomega.Equal(len(expected)))
			},
			ginkgo.Entry("equality", "id:<c>", []string{"<c>"}),
			ginkgo.Entry("negation", "parentId!", []string{"<e>"}),
			ginkgo.Entry("top-level instances", "parentId:", []string{"<b>", "<d>", "<c>", "<a>"}),
			ginkgo.Entry("starts with", "name:<NAME <b*", []string{"<b>"}),
			ginkgo.Entry("like", "businessKey~ <D", []string{"<d>"}),
			ginkgo.Entry("after", "startDate>2024-01-01T01:00:00Z", []string{"<e>", "<b>", "<d>"}),
			ginkgo.Entry("before", "startDate<2024-01-01T01:00:00Z", []string{"<a>"}),
			ginkgo.Entry("conjunction", "startDate>2024-01-01T01:00:00Z,parentId:", []string{"<b>", "<d>"}),
			ginkgo.Entry("no matches", "status:SUSPENDED", []string(nil)),
		)
	})

	ginkgo.Describe("func FindChildren()", func() {
		ginkgo.BeforeEach(func() {
			save(
				instance("<a>", "", 0),
				instance("<b>", "", 1),
				instance("<a2>", "<a>", 2),
				instance("<a1>", "<a>", 3),
				instance("<b1>", "<b>", 4),
				instance("<c1>", "<c>", 5),
			)
		})

		ginkgo.It("returns the children of the given parents ordered by ID", func() {
			p, err := repo.FindChildren(ctx, []string{"<a>", "<b>"}, readmodel.PageRequest{Size: 10})
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ids(p.Content)).To(gomega.Equal([]string{"<a1>", "<a2>", "<b1>"}))
			gomega.Expect(p.TotalElements).To(gomega.Equal(3))
		})

		ginkgo.It("paginates the children", func() {
			p, err := repo.FindChildren(ctx, []string{"<a>", "<b>"}, readmodel.PageRequest{Size: 2})
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ids(p.Content)).To(gomega.Equal([]string{"<a1>", "<a2>"}))
			gomega.Expect(p.TotalElements).To(gomega.Equal(3))
		})

		ginkgo.It("returns an empty page if there are no parents", func() {
			p, err := repo.FindChildren(ctx, nil, readmodel.PageRequest{Size: 10})
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(p.Content).To(gomega.BeEmpty())
			gomega.Expect(p.TotalElements).To(gomega.BeZero())
		})
	})

	ginkgo.Describe("func FindAllChildren()", func() {
		ginkgo.It("returns every child of the parent ordered by ID", func() {
			save(instance("<a>", "", 0))

			for i := 9; i >= 0; i-- {
				save(instance(string(rune('a'+i)), "<a>", i+1))
			}

			rows, err := repo.FindAllChildren(ctx, "<a>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ids(rows)).To(gomega.Equal([]string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}))
		})

		ginkgo.It("returns an empty slice if the parent has no children", func() {
			rows, err := repo.FindAllChildren(ctx, "<a>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("type Query", func() {
		ginkgo.BeforeEach(func() {
			save(
				instance("<A>", "", 0),
				instance("<B>", "", 1),
				instance("<C>", "", 2),
				instance("<A1>", "<A>", 3),
				instance("<A2>", "<A>", 4),
				instance("<B1>", "<B>", 5),
				instance("<B2>", "<B>", 6),
				instance("<B3>", "<B>", 7),
			)
		})

		ginkgo.It("attaches the subprocesses to each instance on the page", func() {
			q := &readmodel.Query{Repository: repo}

			c, err := readmodel.ParseCriteria("parentId:")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			p, err := q.FindPage(ctx, c, readmodel.PageRequest{Size: 10})
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ids(p.Content)).To(gomega.Equal([]string{"<C>", "<B>", "<A>"}))

			gomega.Expect(p.Content[0].Subprocesses).To(gomega.And(
				gomega.Not(gomega.BeNil()),
				gomega.BeEmpty(),
			))
			gomega.Expect(p.Content[1].Subprocesses).To(gomega.HaveLen(3))
			gomega.Expect(p.Content[2].Subprocesses).To(gomega.Equal([]readmodel.ProcessInstanceSummary{
				{ID: "<A1>", Name: "<name <A1>>", ProcessDefinitionKey: "<key>", Status: command.Running},
				{ID: "<A2>", Name: "<name <A2>>", ProcessDefinitionKey: "<key>", Status: command.Running},
			}))
		})

		ginkgo.It("loads a single instance with all of its subprocesses", func() {
			q := &readmodel.Query{Repository: repo}

			pi, ok, err := q.Load(ctx, "<B>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(pi.Subprocesses).To(gomega.HaveLen(3))
		})
	})

	ginkgo.When("the repository supports views", func() {
		ginkgo.BeforeEach(func() {
			if _, ok := repo.(readmodel.Viewer); !ok {
				ginkgo.Skip("repository does not implement readmodel.Viewer")
			}
		})

		ginkgo.It("reads from the view", func() {
			save(instance("<instance>", "", 0))

			err := repo.(readmodel.Viewer).View(
				ctx,
				func(ctx context.Context, r readmodel.Repository) error {
					_, ok, err := r.Load(ctx, "<instance>")
					gomega.Expect(ok).To(gomega.BeTrue())
					return err
				},
			)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
		})

		ginkgo.It("does not allow writes from within the view", func() {
			err := repo.(readmodel.Viewer).View(
				ctx,
				func(ctx context.Context, r readmodel.Repository) error {
					return r.Save(ctx, instance("<instance>", "", 0))
				},
			)
			gomega.Expect(err).To(gomega.Equal(readmodel.ErrReadOnly))
		})

		ginkgo.It("returns the error from the function", func() {
			err := repo.(readmodel.Viewer).View(
				ctx,
				func(context.Context, readmodel.Repository) error {
					return context.Canceled
				},
			)
			gomega.Expect(err).To(gomega.Equal(context.Canceled))
		})
	})
}
