package sqlreadmodel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dogmatiq/processkit/internal/x/sqlx"
	"github.com/dogmatiq/processkit/readmodel"
)

// columns maps each searchable field to its column.
var columns = map[readmodel.Field]string{
	readmodel.IDField:                   "id",
	readmodel.NameField:                 "name",
	readmodel.ProcessDefinitionIDField:  "process_definition_id",
	readmodel.ProcessDefinitionKeyField: "process_definition_key",
	readmodel.BusinessKeyField:          "business_key",
	readmodel.InitiatorField:            "initiator",
	readmodel.StatusField:               "status",
	readmodel.ParentIDField:             "parent_id",
	readmodel.StartDateField:            "start_date",
	readmodel.LastModifiedField:         "last_modified",
}

// where is a WHERE clause under construction.
type where struct {
	conditions []string
	args       []any
}

// arg adds an argument and returns its placeholder.
func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

// add adds a condition.
func (w *where) add(format string, v ...any) {
	w.conditions = append(w.conditions, fmt.Sprintf(format, v...))
}

// String returns the clause, including the WHERE keyword, or an empty string
// if there are no conditions.
func (w *where) String() string {
	if len(w.conditions) == 0 {
		return ""
	}

	return " WHERE " + strings.Join(w.conditions, " AND ")
}

// matching returns the clause that selects the rows that match c.
func matching(c readmodel.Criteria) *where {
	w := &where{}

	for _, t := range c {
		col := columns[t.Field]

		if t.Operator == readmodel.LikeOp {
			w.add(`LOWER(%s) LIKE %s ESCAPE '\'`, col, w.arg(likePattern(t.Value)))
			continue
		}

		var v any = t.Value
		if t.Field.IsTime() {
			v = sqlx.MarshalTime(t.Time)
		}

		w.add("%s %s %s", col, operators[t.Operator], w.arg(v))
	}

	return w
}

// childrenOf returns the clause that selects the children of the given
// parents. Empty IDs are ignored. It returns false if no parents remain.
func childrenOf(parentIDs []string) (*where, bool) {
	w := &where{}
	var placeholders []string

	for _, id := range parentIDs {
		if id != "" {
			placeholders = append(placeholders, w.arg(id))
		}
	}

	if len(placeholders) == 0 {
		return nil, false
	}

	w.add("parent_id IN (%s)", strings.Join(placeholders, ", "))

	return w, true
}

var operators = map[readmodel.Operator]string{
	readmodel.EqualOp:       "=",
	readmodel.NotEqualOp:    "<>",
	readmodel.GreaterThanOp: ">",
	readmodel.LessThanOp:    "<",
}

// likePattern converts a readmodel pattern to a lower-case LIKE pattern that
// uses '\' as the escape character.
func likePattern(p string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(p) {
		switch r {
		case '*':
			b.WriteByte('%')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}
