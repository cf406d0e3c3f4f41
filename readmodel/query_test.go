package readmodel_test

import (
	"context"
	"errors"

	. "github.com/dogmatiq/processkit/fixtures"
	. "github.com/dogmatiq/processkit/readmodel"
	"github.com/dogmatiq/processkit/readmodel/memory"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// viewerStub is a repository stub that records the use of View().
type viewerStub struct {
	RepositoryStub
	views int
}

func (v *viewerStub) View(ctx context.Context, fn func(context.Context, Repository) error) error {
	v.views++
	return fn(ctx, &v.RepositoryStub)
}

var _ = Describe("type Query", func() {
	var (
		ctx   context.Context
		repo  *memory.Repository
		query *Query
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = &memory.Repository{}
		query = &Query{Repository: repo}

		Expect(repo.Save(ctx, &ProcessInstance{ID: "<parent>"})).To(Succeed())
		Expect(repo.Save(ctx, &ProcessInstance{ID: "<child>", ParentID: "<parent>"})).To(Succeed())
	})

	Describe("func FindPage()", func() {
		It("returns the page with the subprocesses attached", func() {
			c, err := ParseCriteria("parentId:")
			Expect(err).ShouldNot(HaveOccurred())

			p, err := query.FindPage(ctx, c, PageRequest{})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(p.Content).To(HaveLen(1))
			Expect(p.Content[0].Subprocesses).To(Equal([]ProcessInstanceSummary{{ID: "<child>"}}))
		})

		It("performs both reads within a single view", func() {
			v := &viewerStub{RepositoryStub: RepositoryStub{Repository: repo}}
			query.Repository = v

			_, err := query.FindPage(ctx, nil, PageRequest{})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(v.views).To(Equal(1))
		})

		It("returns an error if the page can not be read", func() {
			query.Repository = &RepositoryStub{
				FindPageFunc: func(context.Context, Criteria, PageRequest) (Page, error) {
					return Page{}, errors.New("<error>")
				},
			}

			_, err := query.FindPage(ctx, nil, PageRequest{})
			Expect(err).To(MatchError("<error>"))
		})
	})

	Describe("func Load()", func() {
		It("returns the instance with its subprocesses attached", func() {
			pi, ok, err := query.Load(ctx, "<parent>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(pi.Subprocesses).To(Equal([]ProcessInstanceSummary{{ID: "<child>"}}))
		})

		It("returns false if the instance does not exist", func() {
			_, ok, err := query.Load(ctx, "<unknown>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})
})
