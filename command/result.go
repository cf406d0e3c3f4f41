package command

import "time"

// Status is the outcome tag carried by every result.
type Status string

const (
	// Success indicates that the command succeeded and the result carries a
	// value.
	Success Status = "success"

	// Empty indicates that the command succeeded without producing a value.
	Empty Status = "empty"

	// Failure indicates that the engine rejected or failed to execute the
	// command.
	Failure Status = "error"
)

// Result is the outcome of executing a Command.
//
// The set of implementations is closed; every implementation is declared in
// this package.
type Result interface {
	// Status returns the outcome tag of the result.
	Status() Status

	isResult()
}

// ProcessInstanceStatus is the lifecycle state of a process instance as
// reported by the engine.
type ProcessInstanceStatus string

const (
	Running   ProcessInstanceStatus = "RUNNING"
	Suspended ProcessInstanceStatus = "SUSPENDED"
	Completed ProcessInstanceStatus = "COMPLETED"
	Cancelled ProcessInstanceStatus = "CANCELLED"
)

// ProcessInstance describes a process instance as reported by the engine.
type ProcessInstance struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name,omitempty"`
	ProcessDefinitionID  string                `json:"processDefinitionId"`
	ProcessDefinitionKey string                `json:"processDefinitionKey"`
	BusinessKey          string                `json:"businessKey,omitempty"`
	Initiator            string                `json:"initiator,omitempty"`
	Status               ProcessInstanceStatus `json:"status"`
	ParentID             string                `json:"parentId,omitempty"`
	StartDate            time.Time             `json:"startDate"`
}

// Task describes a user task as reported by the engine.
type Task struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	ProcessInstanceID string    `json:"processInstanceId"`
	Assignee          string    `json:"assignee,omitempty"`
	Status            string    `json:"status"`
	CreatedDate       time.Time `json:"createdDate"`
}

// ProcessDefinition describes a deployed process definition.
type ProcessDefinition struct {
	ID      string `json:"id"`
	Key     string `json:"key"`
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// ProcessInstanceResult is a successful result carrying a process instance.
type ProcessInstanceResult struct {
	Instance ProcessInstance
}

// TaskResult is a successful result carrying a task.
type TaskResult struct {
	Task Task
}

// ProcessDefinitionsResult is a successful result carrying the deployed
// process definitions.
type ProcessDefinitionsResult struct {
	Definitions []ProcessDefinition
}

// EmptyResult is a successful result that carries no value.
type EmptyResult struct{}

// ErrorResult is a result indicating that the command failed on the engine.
type ErrorResult struct {
	Code    ErrorCode
	Message string
}

// Status returns Success.
func (ProcessInstanceResult) Status() Status { return Success }

// Status returns Success.
func (TaskResult) Status() Status { return Success }

// Status returns Success.
func (ProcessDefinitionsResult) Status() Status { return Success }

// Status returns Empty.
func (EmptyResult) Status() Status { return Empty }

// Status returns Failure.
func (ErrorResult) Status() Status { return Failure }

func (ProcessInstanceResult) isResult()    {}
func (TaskResult) isResult()               {}
func (ProcessDefinitionsResult) isResult() {}
func (EmptyResult) isResult()              {}
func (ErrorResult) isResult()              {}
