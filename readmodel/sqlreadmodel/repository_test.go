package sqlreadmodel_test

import (
	"context"
	"database/sql"
	"regexp"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/internal/testing/repotest"
	"github.com/dogmatiq/processkit/readmodel"
	. "github.com/dogmatiq/processkit/readmodel/sqlreadmodel"
	"github.com/dogmatiq/processkit/readmodel/sqlreadmodel/sqlite"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	_ "modernc.org/sqlite"
)

var _ = Describe("type Repository", func() {
	Context("when using an in-memory SQLite database", func() {
		var db *sql.DB

		repotest.Declare(
			func(ctx context.Context) repotest.Out {
				var err error
				db, err = sql.Open("sqlite", ":memory:")
				Expect(err).ShouldNot(HaveOccurred())

				// Each connection to ":memory:" is a separate database.
				db.SetMaxOpenConns(1)

				err = CreateSchema(ctx, db)
				Expect(err).ShouldNot(HaveOccurred())

				return repotest.Out{
					Repository: &Repository{DB: db},
				}
			},
			func() {
				db.Close()
			},
		)
	})

	Context("when using a mock database", func() {
		var (
			ctx  context.Context
			db   *sql.DB
			mock sqlmock.Sqlmock
			repo *Repository
		)

		BeforeEach(func() {
			ctx = context.Background()

			var err error
			db, mock, err = sqlmock.New()
			Expect(err).ShouldNot(HaveOccurred())

			repo = &Repository{
				DB:     db,
				Driver: sqlite.Driver,
			}
		})

		AfterEach(func() {
			Expect(mock.ExpectationsWereMet()).To(Succeed())
			db.Close()
		})

		It("upserts the row when saving", func() {
			mock.
				ExpectExec(regexp.QuoteMeta(`INSERT INTO process_instance`)).
				WithArgs(
					"<instance>",
					"<name>",
					"", "", "", "",
					"RUNNING",
					"<parent>",
					int64(0),
					int64(0),
				).
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := repo.Save(ctx, &readmodel.ProcessInstance{
				ID:       "<instance>",
				Name:     "<name>",
				Status:   command.Running,
				ParentID: "<parent>",
			})
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("translates the criteria into a parameterized query", func() {
			c, err := readmodel.ParseCriteria("name~50%_off,status:RUNNING")
			Expect(err).ShouldNot(HaveOccurred())

			where := `WHERE LOWER(name) LIKE $1 ESCAPE '\' AND status = $2`

			mock.ExpectBegin()
			mock.
				ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM process_instance ` + where)).
				WithArgs(`%50\%\_off%`, "RUNNING").
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
			mock.
				ExpectQuery(regexp.QuoteMeta(where + ` ORDER BY start_date DESC, id ASC LIMIT $3 OFFSET $4`)).
				WithArgs(`%50\%\_off%`, "RUNNING", 20, 0).
				WillReturnRows(sqlmock.NewRows(nil))
			mock.ExpectRollback()

			p, err := repo.FindPage(ctx, c, readmodel.PageRequest{})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(p.Content).To(BeEmpty())
		})

		It("does not query the database for the children of no parents", func() {
			mock.ExpectBegin()
			mock.ExpectRollback()

			p, err := repo.FindChildren(ctx, []string{""}, readmodel.PageRequest{})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(p.Content).To(BeEmpty())
		})

		It("returns an error if no built-in driver is compatible", func() {
			repo.Driver = nil

			err := repo.Delete(ctx, "<instance>")
			Expect(err).To(MatchError(ContainSubstring("could not find a driver that is compatible with")))
		})
	})
})
