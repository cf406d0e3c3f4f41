package readmodel

import (
	"fmt"
	"strings"
	"time"

	"github.com/dogmatiq/processkit/command"
)

// Field is the name of a process instance attribute that can be searched.
type Field string

const (
	IDField                   Field = "id"
	NameField                 Field = "name"
	ProcessDefinitionIDField  Field = "processDefinitionId"
	ProcessDefinitionKeyField Field = "processDefinitionKey"
	BusinessKeyField          Field = "businessKey"
	InitiatorField            Field = "initiator"
	StatusField               Field = "status"
	ParentIDField             Field = "parentId"
	StartDateField            Field = "startDate"
	LastModifiedField         Field = "lastModified"
)

// Fields is the set of searchable fields.
var Fields = []Field{
	IDField,
	NameField,
	ProcessDefinitionIDField,
	ProcessDefinitionKeyField,
	BusinessKeyField,
	InitiatorField,
	StatusField,
	ParentIDField,
	StartDateField,
	LastModifiedField,
}

// IsTime returns true if f holds a timestamp.
func (f Field) IsTime() bool {
	return f == StartDateField || f == LastModifiedField
}

// String returns the value of f in pi.
func (f Field) String(pi *ProcessInstance) string {
	switch f {
	case IDField:
		return pi.ID
	case NameField:
		return pi.Name
	case ProcessDefinitionIDField:
		return pi.ProcessDefinitionID
	case ProcessDefinitionKeyField:
		return pi.ProcessDefinitionKey
	case BusinessKeyField:
		return pi.BusinessKey
	case InitiatorField:
		return pi.Initiator
	case StatusField:
		return string(pi.Status)
	case ParentIDField:
		return pi.ParentID
	case StartDateField:
		return pi.StartDate.Format(time.RFC3339Nano)
	case LastModifiedField:
		return pi.LastModified.Format(time.RFC3339Nano)
	default:
		panic(fmt.Sprintf("unrecognized field: %s", f))
	}
}

// Time returns the value of f in pi. It panics if f does not hold a
// timestamp.
func (f Field) Time(pi *ProcessInstance) time.Time {
	switch f {
	case StartDateField:
		return pi.StartDate
	case LastModifiedField:
		return pi.LastModified
	default:
		panic(fmt.Sprintf("%s is not a time field", f))
	}
}

// Operator is a comparison used in a search term.
type Operator byte

const (
	// EqualOp matches values equal to the term's value.
	EqualOp Operator = ':'

	// NotEqualOp matches values that differ from the term's value.
	NotEqualOp Operator = '!'

	// GreaterThanOp matches values after the term's value.
	GreaterThanOp Operator = '>'

	// LessThanOp matches values before the term's value.
	LessThanOp Operator = '<'

	// LikeOp matches values against a case-insensitive pattern in which '*'
	// matches any sequence of characters.
	LikeOp Operator = '~'
)

// Term is a single condition on a field.
type Term struct {
	Field    Field
	Operator Operator

	// Value is the operand. For LikeOp terms it is a pattern.
	Value string

	// Time is the operand parsed as a timestamp, for time fields only.
	Time time.Time
}

func (t Term) String() string {
	return string(t.Field) + string(t.Operator) + t.Value
}

// Match returns true if pi satisfies the term.
func (t Term) Match(pi *ProcessInstance) bool {
	if t.Field.IsTime() {
		v := t.Field.Time(pi)

		switch t.Operator {
		case EqualOp:
			return v.Equal(t.Time)
		case NotEqualOp:
			return !v.Equal(t.Time)
		case GreaterThanOp:
			return v.After(t.Time)
		case LessThanOp:
			return v.Before(t.Time)
		}

		return false
	}

	v := t.Field.String(pi)

	switch t.Operator {
	case EqualOp:
		return v == t.Value
	case NotEqualOp:
		return v != t.Value
	case GreaterThanOp:
		return v > t.Value
	case LessThanOp:
		return v < t.Value
	case LikeOp:
		return MatchPattern(t.Value, v)
	}

	return false
}

// Criteria is a conjunction of search terms. The empty criteria matches every
// process instance.
type Criteria []Term

// Match returns true if pi satisfies every term.
func (c Criteria) Match(pi *ProcessInstance) bool {
	for _, t := range c {
		if !t.Match(pi) {
			return false
		}
	}

	return true
}

func (c Criteria) String() string {
	terms := make([]string, len(c))
	for i, t := range c {
		terms[i] = t.String()
	}

	return strings.Join(terms, ",")
}

// ParseCriteria parses a comma-separated list of search terms.
//
// Each term is a field name, an operator and a value, such as
// "status:RUNNING" or "startDate>2024-01-01T00:00:00Z". An equality term
// whose value contains '*' is a pattern match, as is any '~' term. A '~' term
// without a wildcard matches values containing the given text.
func ParseCriteria(s string) (Criteria, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var c Criteria

	for _, text := range strings.Split(s, ",") {
		t, err := parseTerm(strings.TrimSpace(text))
		if err != nil {
			return nil, err
		}

		c = append(c, t)
	}

	return c, nil
}

// parseTerm parses a single search term.
func parseTerm(text string) (Term, error) {
	i := strings.IndexAny(text, ":!><~")
	if i <= 0 {
		return Term{}, fmt.Errorf("invalid search term %q: expected <field><operator><value>", text)
	}

	t := Term{
		Field:    Field(text[:i]),
		Operator: Operator(text[i]),
		Value:    text[i+1:],
	}

	if !isField(t.Field) {
		return Term{}, fmt.Errorf("invalid search term %q: unrecognized field %q", text, t.Field)
	}

	if t.Operator == EqualOp && strings.Contains(t.Value, "*") {
		t.Operator = LikeOp
	} else if t.Operator == LikeOp && !strings.Contains(t.Value, "*") {
		t.Value = "*" + t.Value + "*"
	}

	if t.Field.IsTime() {
		if t.Operator == LikeOp {
			return Term{}, fmt.Errorf("invalid search term %q: %s does not support pattern matching", text, t.Field)
		}

		v, err := parseTime(t.Value)
		if err != nil {
			return Term{}, fmt.Errorf("invalid search term %q: %w", text, err)
		}

		t.Time = v
		return t, nil
	}

	if t.Field == StatusField && t.Operator != LikeOp {
		if !isStatus(command.ProcessInstanceStatus(t.Value)) {
			return Term{}, fmt.Errorf("invalid search term %q: unrecognized status %q", text, t.Value)
		}
	}

	return t, nil
}

// parseTime parses a timestamp in RFC 3339 format, or a date.
func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not an RFC 3339 timestamp or date", v)
	}

	return t, nil
}

func isField(f Field) bool {
	for _, x := range Fields {
		if x == f {
			return true
		}
	}

	return false
}

func isStatus(s command.ProcessInstanceStatus) bool {
	switch s {
	case command.Running, command.Suspended, command.Completed, command.Cancelled:
		return true
	default:
		return false
	}
}

// MatchPattern returns true if v matches the case-insensitive pattern p, in
// which '*' matches any sequence of characters.
func MatchPattern(p, v string) bool {
	p = strings.ToLower(p)
	v = strings.ToLower(v)

	parts := strings.Split(p, "*")

	if !strings.HasPrefix(v, parts[0]) {
		return false
	}
	v = v[len(parts[0]):]

	last := len(parts) - 1
	if last == 0 {
		return v == ""
	}

	for _, part := range parts[1:last] {
		i := strings.Index(v, part)
		if i == -1 {
			return false
		}
		v = v[i+len(part):]
	}

	return strings.HasSuffix(v, parts[last])
}
