// Package readmodel is a queryable projection of the process instances known
// to a process engine, including the grouping of subprocesses under their
// parent instances.
package readmodel

import (
	"reflect"
	"time"

	"github.com/dogmatiq/processkit/command"
)

// DefaultPageSize is the page size used when a PageRequest does not specify
// one.
var DefaultPageSize = 20

// ProcessInstance is the read-model row for a single process instance.
type ProcessInstance struct {
	ID                   string                        `json:"id"`
	Name                 string                        `json:"name,omitempty"`
	ProcessDefinitionID  string                        `json:"processDefinitionId,omitempty"`
	ProcessDefinitionKey string                        `json:"processDefinitionKey,omitempty"`
	BusinessKey          string                        `json:"businessKey,omitempty"`
	Initiator            string                        `json:"initiator,omitempty"`
	Status               command.ProcessInstanceStatus `json:"status"`
	ParentID             string                        `json:"parentId,omitempty"`
	StartDate            time.Time                     `json:"startDate"`
	LastModified         time.Time                     `json:"lastModified"`

	// Subprocesses is the set of instances whose ParentID is this instance's
	// ID, ordered by ID. It is nil until it is populated by a Grouper.
	Subprocesses []ProcessInstanceSummary `json:"-"`
}

// Types returns the types that repositories marshal.
func Types() []reflect.Type {
	return []reflect.Type{
		reflect.TypeOf(ProcessInstance{}),
	}
}

// NewProcessInstance returns the row for the given process instance.
func NewProcessInstance(pi command.ProcessInstance, modified time.Time) *ProcessInstance {
	return &ProcessInstance{
		ID:                   pi.ID,
		Name:                 pi.Name,
		ProcessDefinitionID:  pi.ProcessDefinitionID,
		ProcessDefinitionKey: pi.ProcessDefinitionKey,
		BusinessKey:          pi.BusinessKey,
		Initiator:            pi.Initiator,
		Status:               pi.Status,
		ParentID:             pi.ParentID,
		StartDate:            pi.StartDate,
		LastModified:         modified,
	}
}

// Summary returns the summary of pi used when it is grouped under its parent.
func (pi *ProcessInstance) Summary() ProcessInstanceSummary {
	return ProcessInstanceSummary{
		ID:                   pi.ID,
		Name:                 pi.Name,
		ProcessDefinitionKey: pi.ProcessDefinitionKey,
		Status:               pi.Status,
	}
}

// Clone returns a deep copy of pi.
func (pi *ProcessInstance) Clone() *ProcessInstance {
	c := *pi

	if pi.Subprocesses != nil {
		c.Subprocesses = append([]ProcessInstanceSummary{}, pi.Subprocesses...)
	}

	return &c
}

// ProcessInstanceSummary is the minimal representation of a subprocess.
type ProcessInstanceSummary struct {
	ID                   string                        `json:"id"`
	Name                 string                        `json:"name,omitempty"`
	ProcessDefinitionKey string                        `json:"processDefinitionKey,omitempty"`
	Status               command.ProcessInstanceStatus `json:"status"`
}

// PageRequest identifies a page of results.
type PageRequest struct {
	// Number is the 0-based page number.
	Number int

	// Size is the maximum number of rows on the page. If it is zero,
	// DefaultPageSize is used.
	Size int
}

// Limit returns the maximum number of rows on the page.
func (r PageRequest) Limit() int {
	if r.Size <= 0 {
		return DefaultPageSize
	}

	return r.Size
}

// Offset returns the number of rows that precede the page.
func (r PageRequest) Offset() int {
	if r.Number <= 0 {
		return 0
	}

	return r.Number * r.Limit()
}

// Page is a single page of process instances.
type Page struct {
	// Number is the 0-based page number.
	Number int

	// Size is the requested page size.
	Size int

	// TotalElements is the number of rows across all pages.
	TotalElements int

	// Content is the rows on this page.
	Content []*ProcessInstance
}

// NewPage returns a page of rows for the given request.
func NewPage(r PageRequest, total int, content []*ProcessInstance) Page {
	number := r.Number
	if number < 0 {
		number = 0
	}

	return Page{
		Number:        number,
		Size:          r.Limit(),
		TotalElements: total,
		Content:       content,
	}
}

// TotalPages returns the number of pages needed to hold every row.
func (p Page) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}

	return (p.TotalElements + p.Size - 1) / p.Size
}

// Window returns the rows of all that belong on the page identified by r.
func Window(all []*ProcessInstance, r PageRequest) []*ProcessInstance {
	begin := r.Offset()
	if begin >= len(all) {
		return []*ProcessInstance{}
	}

	end := begin + r.Limit()
	if end > len(all) {
		end = len(all)
	}

	return all[begin:end]
}
