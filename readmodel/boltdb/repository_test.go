package boltdb_test

import (
	"context"

	. "github.com/dogmatiq/processkit/fixtures"
	"github.com/dogmatiq/processkit/internal/testing/boltdbtest"
	"github.com/dogmatiq/processkit/internal/testing/repotest"
	"github.com/dogmatiq/processkit/internal/x/bboltx"
	"github.com/dogmatiq/processkit/readmodel"
	. "github.com/dogmatiq/processkit/readmodel/boltdb"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.etcd.io/bbolt"
)

var _ = Describe("type Repository", func() {
	var (
		db    *bbolt.DB
		close func()
	)

	Context("repository behavior", func() {
		repotest.Declare(
			func(ctx context.Context) repotest.Out {
				db, close = boltdbtest.Open()

				return repotest.Out{
					Repository: &Repository{
						DB:        db,
						Marshaler: Marshaler,
					},
				}
			},
			func() {
				close()
			},
		)
	})

	When("the row has been moved to a different parent", func() {
		var (
			ctx  context.Context
			repo *Repository
		)

		BeforeEach(func() {
			ctx = context.Background()
			db, close = boltdbtest.Open()
			repo = &Repository{DB: db, Marshaler: Marshaler}

			Expect(repo.Save(ctx, &readmodel.ProcessInstance{ID: "<child>", ParentID: "<a>"})).To(Succeed())
			Expect(repo.Save(ctx, &readmodel.ProcessInstance{ID: "<child>", ParentID: "<b>"})).To(Succeed())
		})

		AfterEach(func() {
			close()
		})

		It("is only listed under its current parent", func() {
			rows, err := repo.FindAllChildren(ctx, "<a>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(rows).To(BeEmpty())

			rows, err = repo.FindAllChildren(ctx, "<b>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(rows).To(HaveLen(1))
		})

		It("removes the empty index bucket of the previous parent", func() {
			err := db.View(func(tx *bbolt.Tx) error {
				Expect(bboltx.Bucket(tx, []byte("children"), []byte("<a>"))).To(BeNil())
				return nil
			})
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("removes the index entry when the row is deleted", func() {
			Expect(repo.Delete(ctx, "<child>")).To(Succeed())

			err := db.View(func(tx *bbolt.Tx) error {
				Expect(bboltx.Bucket(tx, []byte("children"), []byte("<b>"))).To(BeNil())
				return nil
			})
			Expect(err).ShouldNot(HaveOccurred())
		})
	})

	It("returns an error if a stored row is corrupt", func() {
		ctx := context.Background()
		db, close = boltdbtest.Open()
		defer close()

		err := db.Update(func(tx *bbolt.Tx) error {
			bboltx.Put(
				bboltx.CreateBucketIfNotExists(tx, []byte("instances")),
				[]byte("<instance>"),
				[]byte("<garbage>"),
			)
			return nil
		})
		Expect(err).ShouldNot(HaveOccurred())

		repo := &Repository{DB: db, Marshaler: Marshaler}

		_, _, err = repo.Load(ctx, "<instance>")
		Expect(err).To(MatchError("data is corrupt, missing media-type"))

		_, err = repo.FindPage(ctx, nil, readmodel.PageRequest{})
		Expect(err).To(MatchError("data is corrupt, missing media-type"))
	})
})
