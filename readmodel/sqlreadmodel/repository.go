package sqlreadmodel

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/internal/x/sqlx"
	"github.com/dogmatiq/processkit/readmodel"
)

// Repository is an implementation of readmodel.Repository that stores
// process instances in an SQL database.
//
// The schema must be created with CreateSchema() or Driver.CreateSchema()
// before the repository is used.
type Repository struct {
	// DB is the SQL database to use.
	DB *sql.DB

	// Driver is the driver to use with this database. If it is nil, it is
	// chosen automatically from one of the built-in drivers.
	Driver Driver

	m      sync.Mutex
	driver Driver
}

var (
	_ readmodel.Repository = (*Repository)(nil)
	_ readmodel.Viewer     = (*Repository)(nil)
)

// Load returns the process instance with the given ID.
func (r *Repository) Load(ctx context.Context, id string) (*readmodel.ProcessInstance, bool, error) {
	d, err := r.selectDriver(ctx)
	if err != nil {
		return nil, false, err
	}

	pi, ok, err := reader{r.DB, d.Table()}.Load(ctx, id)
	return pi, ok, convertContextErrors(ctx, err)
}

// FindPage returns a page of the process instances that match c.
//
// The count and the content of the page are read from the same transaction.
func (r *Repository) FindPage(
	ctx context.Context,
	c readmodel.Criteria,
	req readmodel.PageRequest,
) (p readmodel.Page, err error) {
	err = r.View(
		ctx,
		func(ctx context.Context, repo readmodel.Repository) error {
			p, err = repo.FindPage(ctx, c, req)
			return err
		},
	)

	return p, err
}

// FindChildren returns a page of the process instances whose parent is one
// of the given instances.
func (r *Repository) FindChildren(
	ctx context.Context,
	parentIDs []string,
	req readmodel.PageRequest,
) (p readmodel.Page, err error) {
	err = r.View(
		ctx,
		func(ctx context.Context, repo readmodel.Repository) error {
			p, err = repo.FindChildren(ctx, parentIDs, req)
			return err
		},
	)

	return p, err
}

// FindAllChildren returns every process instance whose parent is the given
// instance.
func (r *Repository) FindAllChildren(ctx context.Context, parentID string) ([]*readmodel.ProcessInstance, error) {
	d, err := r.selectDriver(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := reader{r.DB, d.Table()}.FindAllChildren(ctx, parentID)
	return rows, convertContextErrors(ctx, err)
}

// Save adds or replaces a process instance.
func (r *Repository) Save(ctx context.Context, pi *readmodel.ProcessInstance) (err error) {
	defer func() {
		err = convertContextErrors(ctx, err)
	}()
	defer sqlx.Recover(&err)

	d, err := r.selectDriver(ctx)
	if err != nil {
		return err
	}

	sqlx.Exec(
		ctx,
		r.DB,
		`INSERT INTO `+d.Table()+` (
			id,
			name,
			process_definition_id,
			process_definition_key,
			business_key,
			initiator,
			status,
			parent_id,
			start_date,
			last_modified
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		) ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			process_definition_id = excluded.process_definition_id,
			process_definition_key = excluded.process_definition_key,
			business_key = excluded.business_key,
			initiator = excluded.initiator,
			status = excluded.status,
			parent_id = excluded.parent_id,
			start_date = excluded.start_date,
			last_modified = excluded.last_modified`,
		pi.ID,
		pi.Name,
		pi.ProcessDefinitionID,
		pi.ProcessDefinitionKey,
		pi.BusinessKey,
		pi.Initiator,
		string(pi.Status),
		pi.ParentID,
		sqlx.MarshalTime(pi.StartDate),
		sqlx.MarshalTime(pi.LastModified),
	)

	return nil
}

// Delete removes a process instance.
func (r *Repository) Delete(ctx context.Context, id string) (err error) {
	defer func() {
		err = convertContextErrors(ctx, err)
	}()
	defer sqlx.Recover(&err)

	d, err := r.selectDriver(ctx)
	if err != nil {
		return err
	}

	sqlx.Exec(
		ctx,
		r.DB,
		`DELETE FROM `+d.Table()+` WHERE id = $1`,
		id,
	)

	return nil
}

// View calls fn with a read-only repository that reads from a single
// transaction.
func (r *Repository) View(
	ctx context.Context,
	fn func(context.Context, readmodel.Repository) error,
) error {
	d, err := r.selectDriver(ctx)
	if err != nil {
		return err
	}

	tx, err := d.BeginRead(ctx, r.DB)
	if err != nil {
		return convertContextErrors(ctx, err)
	}
	defer tx.Rollback() // nolint:errcheck

	return convertContextErrors(
		ctx,
		fn(ctx, reader{tx, d.Table()}),
	)
}

// selectDriver returns the driver to use, selecting a built-in driver the
// first time it is called if r.Driver is nil.
func (r *Repository) selectDriver(ctx context.Context) (Driver, error) {
	if r.Driver != nil {
		return r.Driver, nil
	}

	r.m.Lock()
	defer r.m.Unlock()

	if r.driver == nil {
		d, err := SelectDriver(ctx, r.DB)
		if err != nil {
			return nil, err
		}

		r.driver = d
	}

	return r.driver, nil
}

// selectColumns is the column list used when selecting rows.
const selectColumns = `SELECT
	id,
	name,
	process_definition_id,
	process_definition_key,
	business_key,
	initiator,
	status,
	parent_id,
	start_date,
	last_modified
FROM `

// reader is a read-only readmodel.Repository that queries a specific DB,
// which is typically a transaction.
type reader struct {
	db    sqlx.DB
	table string
}

func (r reader) Load(ctx context.Context, id string) (_ *readmodel.ProcessInstance, _ bool, err error) {
	defer sqlx.Recover(&err)

	row := r.db.QueryRowContext(
		ctx,
		selectColumns+r.table+` WHERE id = $1`,
		id,
	)

	pi, err := scan(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	return pi, true, nil
}

func (r reader) FindPage(
	ctx context.Context,
	c readmodel.Criteria,
	req readmodel.PageRequest,
) (_ readmodel.Page, err error) {
	defer sqlx.Recover(&err)

	return r.page(
		ctx,
		matching(c),
		"start_date DESC, id ASC",
		req,
	), nil
}

func (r reader) FindChildren(
	ctx context.Context,
	parentIDs []string,
	req readmodel.PageRequest,
) (_ readmodel.Page, err error) {
	defer sqlx.Recover(&err)

	w, ok := childrenOf(parentIDs)
	if !ok {
		return readmodel.NewPage(req, 0, []*readmodel.ProcessInstance{}), nil
	}

	return r.page(ctx, w, "id ASC", req), nil
}

func (r reader) FindAllChildren(ctx context.Context, parentID string) (_ []*readmodel.ProcessInstance, err error) {
	defer sqlx.Recover(&err)

	if parentID == "" {
		return []*readmodel.ProcessInstance{}, nil
	}

	return r.selectRows(
		ctx,
		selectColumns+r.table+` WHERE parent_id = $1 ORDER BY id ASC`,
		parentID,
	), nil
}

func (reader) Save(context.Context, *readmodel.ProcessInstance) error {
	return readmodel.ErrReadOnly
}

func (reader) Delete(context.Context, string) error {
	return readmodel.ErrReadOnly
}

// page returns the page of rows selected by w.
func (r reader) page(
	ctx context.Context,
	w *where,
	order string,
	req readmodel.PageRequest,
) readmodel.Page {
	total := sqlx.QueryInt64(
		ctx,
		r.db,
		`SELECT COUNT(*) FROM `+r.table+w.String(),
		w.args...,
	)

	var q strings.Builder
	q.WriteString(selectColumns)
	q.WriteString(r.table)
	q.WriteString(w.String())
	fmt.Fprintf(
		&q,
		" ORDER BY %s LIMIT %s OFFSET %s",
		order,
		w.arg(req.Limit()),
		w.arg(req.Offset()),
	)

	return readmodel.NewPage(
		req,
		int(total),
		r.selectRows(ctx, q.String(), w.args...),
	)
}

// selectRows returns the rows produced by the given query.
func (r reader) selectRows(ctx context.Context, query string, args ...any) []*readmodel.ProcessInstance {
	rows := []*readmodel.ProcessInstance{}

	sqlx.Each(
		ctx,
		r.db,
		func(s sqlx.Scanner) {
			pi, err := scan(s)
			sqlx.Must(err)
			rows = append(rows, pi)
		},
		query,
		args...,
	)

	return rows
}

// scan scans a row produced by a query that uses selectColumns.
func scan(s sqlx.Scanner) (*readmodel.ProcessInstance, error) {
	var (
		pi           readmodel.ProcessInstance
		status       string
		startDate    int64
		lastModified int64
	)

	if err := s.Scan(
		&pi.ID,
		&pi.Name,
		&pi.ProcessDefinitionID,
		&pi.ProcessDefinitionKey,
		&pi.BusinessKey,
		&pi.Initiator,
		&status,
		&pi.ParentID,
		&startDate,
		&lastModified,
	); err != nil {
		return nil, err
	}

	pi.Status = command.ProcessInstanceStatus(status)
	pi.StartDate = sqlx.UnmarshalTime(startDate)
	pi.LastModified = sqlx.UnmarshalTime(lastModified)

	return &pi, nil
}
