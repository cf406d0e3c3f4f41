// Package command defines the closed set of commands that can be sent to a
// process engine, and the results the engine sends back.
package command

import (
	"errors"
	"fmt"
)

// Kind identifies the kind of a command.
type Kind string

const (
	StartProcessKind           Kind = "start-process"
	SuspendProcessKind         Kind = "suspend-process"
	ResumeProcessKind          Kind = "resume-process"
	DeleteProcessKind          Kind = "delete-process"
	SetProcessVariablesKind    Kind = "set-process-variables"
	RemoveProcessVariablesKind Kind = "remove-process-variables"
	ClaimTaskKind              Kind = "claim-task"
	ReleaseTaskKind            Kind = "release-task"
	CompleteTaskKind           Kind = "complete-task"
	CreateTaskVariableKind     Kind = "create-task-variable"
	UpdateTaskVariableKind     Kind = "update-task-variable"
	SendSignalKind             Kind = "send-signal"
	StartMessageKind           Kind = "start-message"
	ReceiveMessageKind         Kind = "receive-message"
	SyncProcessDefinitionsKind Kind = "sync-process-definitions"
)

// Command is a request for the process engine to change state.
//
// The set of implementations is closed; every implementation is declared in
// this package.
type Command interface {
	// Kind returns the kind of the command.
	Kind() Kind

	// Description returns a human-readable description of the command.
	Description() string

	// Validate returns a non-nil error if the command is malformed.
	Validate() error

	isCommand()
}

var (
	errNoProcessInstanceID = errors.New("process instance ID must not be empty")
	errNoTaskID            = errors.New("task ID must not be empty")
	errNoVariables         = errors.New("at least one variable must be provided")
	errNoVariableName      = errors.New("variable name must not be empty")
)

// StartProcess starts a new instance of a process definition.
//
// The definition is identified by either its ID or its key. If both are
// given the ID takes precedence.
type StartProcess struct {
	ProcessDefinitionID  string
	ProcessDefinitionKey string
	BusinessKey          string
	Name                 string
	Variables            map[string]any
}

// Kind returns StartProcessKind.
func (StartProcess) Kind() Kind { return StartProcessKind }

// Description returns a human-readable description of the command.
func (c StartProcess) Description() string {
	return fmt.Sprintf("starting process %s", definitionRef(c.ProcessDefinitionID, c.ProcessDefinitionKey))
}

// Validate returns a non-nil error if the command is malformed.
func (c StartProcess) Validate() error {
	if c.ProcessDefinitionID == "" && c.ProcessDefinitionKey == "" {
		return errors.New("either the process definition ID or key must be provided")
	}
	return nil
}

// SuspendProcess suspends a running process instance.
type SuspendProcess struct {
	ProcessInstanceID string
}

// Kind returns SuspendProcessKind.
func (SuspendProcess) Kind() Kind { return SuspendProcessKind }

// Description returns a human-readable description of the command.
func (c SuspendProcess) Description() string {
	return fmt.Sprintf("suspending process instance %s", c.ProcessInstanceID)
}

// Validate returns a non-nil error if the command is malformed.
func (c SuspendProcess) Validate() error {
	return requireInstance(c.ProcessInstanceID)
}

// ResumeProcess resumes a suspended process instance.
type ResumeProcess struct {
	ProcessInstanceID string
}

// Kind returns ResumeProcessKind.
func (ResumeProcess) Kind() Kind { return ResumeProcessKind }

// Description returns a human-readable description of the command.
func (c ResumeProcess) Description() string {
	return fmt.Sprintf("resuming process instance %s", c.ProcessInstanceID)
}

// Validate returns a non-nil error if the command is malformed.
func (c ResumeProcess) Validate() error {
	return requireInstance(c.ProcessInstanceID)
}

// DeleteProcess cancels and removes a process instance.
type DeleteProcess struct {
	ProcessInstanceID string
	Reason            string
}

// Kind returns DeleteProcessKind.
func (DeleteProcess) Kind() Kind { return DeleteProcessKind }

// Description returns a human-readable description of the command.
func (c DeleteProcess) Description() string {
	if c.Reason == "" {
		return fmt.Sprintf("deleting process instance %s", c.ProcessInstanceID)
	}
	return fmt.Sprintf("deleting process instance %s: %s", c.ProcessInstanceID, c.Reason)
}

// Validate returns a non-nil error if the command is malformed.
func (c DeleteProcess) Validate() error {
	return requireInstance(c.ProcessInstanceID)
}

// SetProcessVariables adds or replaces variables on a process instance.
type SetProcessVariables struct {
	ProcessInstanceID string
	Variables         map[string]any
}

// Kind returns SetProcessVariablesKind.
func (SetProcessVariables) Kind() Kind { return SetProcessVariablesKind }

// Description returns a human-readable description of the command.
func (c SetProcessVariables) Description() string {
	return fmt.Sprintf("setting %d variable(s) on process instance %s", len(c.Variables), c.ProcessInstanceID)
}

// Validate returns a non-nil error if the command is malformed.
func (c SetProcessVariables) Validate() error {
	if err := requireInstance(c.ProcessInstanceID); err != nil {
		return err
	}
	if len(c.Variables) == 0 {
		return errNoVariables
	}
	return nil
}

// RemoveProcessVariables removes variables from a process instance.
type RemoveProcessVariables struct {
	ProcessInstanceID string
	Names             []string
}

// Kind returns RemoveProcessVariablesKind.
func (RemoveProcessVariables) Kind() Kind { return RemoveProcessVariablesKind }

// Description returns a human-readable description of the command.
func (c RemoveProcessVariables) Description() string {
	return fmt.Sprintf("removing %d variable(s) from process instance %s", len(c.Names), c.ProcessInstanceID)
}

// Validate returns a non-nil error if the command is malformed.
func (c RemoveProcessVariables) Validate() error {
	if err := requireInstance(c.ProcessInstanceID); err != nil {
		return err
	}
	if len(c.Names) == 0 {
		return errNoVariables
	}
	for _, n := range c.Names {
		if n == "" {
			return errNoVariableName
		}
	}
	return nil
}

// ClaimTask assigns a task to a user.
type ClaimTask struct {
	TaskID   string
	Assignee string
}

// Kind returns ClaimTaskKind.
func (ClaimTask) Kind() Kind { return ClaimTaskKind }

// Description returns a human-readable description of the command.
func (c ClaimTask) Description() string {
	return fmt.Sprintf("claiming task %s for %s", c.TaskID, c.Assignee)
}

// Validate returns a non-nil error if the command is malformed.
func (c ClaimTask) Validate() error {
	if err := requireTask(c.TaskID); err != nil {
		return err
	}
	if c.Assignee == "" {
		return errors.New("assignee must not be empty")
	}
	return nil
}

// ReleaseTask removes the assignee from a claimed task.
type ReleaseTask struct {
	TaskID string
}

// Kind returns ReleaseTaskKind.
func (ReleaseTask) Kind() Kind { return ReleaseTaskKind }

// Description returns a human-readable description of the command.
func (c ReleaseTask) Description() string {
	return fmt.Sprintf("releasing task %s", c.TaskID)
}

// Validate returns a non-nil error if the command is malformed.
func (c ReleaseTask) Validate() error {
	return requireTask(c.TaskID)
}

// CompleteTask completes a task, optionally setting variables.
type CompleteTask struct {
	TaskID    string
	Variables map[string]any
}

// Kind returns CompleteTaskKind.
func (CompleteTask) Kind() Kind { return CompleteTaskKind }

// Description returns a human-readable description of the command.
func (c CompleteTask) Description() string {
	return fmt.Sprintf("completing task %s", c.TaskID)
}

// Validate returns a non-nil error if the command is malformed.
func (c CompleteTask) Validate() error {
	return requireTask(c.TaskID)
}

// CreateTaskVariable creates a new variable local to a task.
type CreateTaskVariable struct {
	TaskID string
	Name   string
	Value  any
}

// Kind returns CreateTaskVariableKind.
func (CreateTaskVariable) Kind() Kind { return CreateTaskVariableKind }

// Description returns a human-readable description of the command.
func (c CreateTaskVariable) Description() string {
	return fmt.Sprintf("creating variable %q on task %s", c.Name, c.TaskID)
}

// Validate returns a non-nil error if the command is malformed.
func (c CreateTaskVariable) Validate() error {
	return requireTaskVariable(c.TaskID, c.Name)
}

// UpdateTaskVariable replaces the value of an existing task variable.
type UpdateTaskVariable struct {
	TaskID string
	Name   string
	Value  any
}

// Kind returns UpdateTaskVariableKind.
func (UpdateTaskVariable) Kind() Kind { return UpdateTaskVariableKind }

// Description returns a human-readable description of the command.
func (c UpdateTaskVariable) Description() string {
	return fmt.Sprintf("updating variable %q on task %s", c.Name, c.TaskID)
}

// Validate returns a non-nil error if the command is malformed.
func (c UpdateTaskVariable) Validate() error {
	return requireTaskVariable(c.TaskID, c.Name)
}

// SendSignal broadcasts a BPMN signal to every waiting process instance.
type SendSignal struct {
	Name      string
	Variables map[string]any
}

// Kind returns SendSignalKind.
func (SendSignal) Kind() Kind { return SendSignalKind }

// Description returns a human-readable description of the command.
func (c SendSignal) Description() string {
	return fmt.Sprintf("sending signal %q", c.Name)
}

// Validate returns a non-nil error if the command is malformed.
func (c SendSignal) Validate() error {
	if c.Name == "" {
		return errors.New("signal name must not be empty")
	}
	return nil
}

// StartMessage starts a process instance from a BPMN message start event.
type StartMessage struct {
	Name        string
	BusinessKey string
	Variables   map[string]any
}

// Kind returns StartMessageKind.
func (StartMessage) Kind() Kind { return StartMessageKind }

// Description returns a human-readable description of the command.
func (c StartMessage) Description() string {
	return fmt.Sprintf("starting process from message %q", c.Name)
}

// Validate returns a non-nil error if the command is malformed.
func (c StartMessage) Validate() error {
	if c.Name == "" {
		return errors.New("message name must not be empty")
	}
	return nil
}

// ReceiveMessage delivers a BPMN message to a waiting process instance.
type ReceiveMessage struct {
	Name           string
	CorrelationKey string
	Variables      map[string]any
}

// Kind returns ReceiveMessageKind.
func (ReceiveMessage) Kind() Kind { return ReceiveMessageKind }

// Description returns a human-readable description of the command.
func (c ReceiveMessage) Description() string {
	return fmt.Sprintf("delivering message %q (correlation key %q)", c.Name, c.CorrelationKey)
}

// Validate returns a non-nil error if the command is malformed.
func (c ReceiveMessage) Validate() error {
	if c.Name == "" {
		return errors.New("message name must not be empty")
	}
	if c.CorrelationKey == "" {
		return errors.New("correlation key must not be empty")
	}
	return nil
}

// SyncProcessDefinitions asks the engine for its deployed process
// definitions.
type SyncProcessDefinitions struct{}

// Kind returns SyncProcessDefinitionsKind.
func (SyncProcessDefinitions) Kind() Kind { return SyncProcessDefinitionsKind }

// Description returns a human-readable description of the command.
func (SyncProcessDefinitions) Description() string {
	return "synchronizing process definitions"
}

// Validate always returns nil.
func (SyncProcessDefinitions) Validate() error { return nil }

func (StartProcess) isCommand()           {}
func (SuspendProcess) isCommand()         {}
func (ResumeProcess) isCommand()          {}
func (DeleteProcess) isCommand()          {}
func (SetProcessVariables) isCommand()    {}
func (RemoveProcessVariables) isCommand() {}
func (ClaimTask) isCommand()              {}
func (ReleaseTask) isCommand()            {}
func (CompleteTask) isCommand()           {}
func (CreateTaskVariable) isCommand()     {}
func (UpdateTaskVariable) isCommand()     {}
func (SendSignal) isCommand()             {}
func (StartMessage) isCommand()           {}
func (ReceiveMessage) isCommand()         {}
func (SyncProcessDefinitions) isCommand() {}

func requireInstance(id string) error {
	if id == "" {
		return errNoProcessInstanceID
	}
	return nil
}

func requireTask(id string) error {
	if id == "" {
		return errNoTaskID
	}
	return nil
}

func requireTaskVariable(id, name string) error {
	if err := requireTask(id); err != nil {
		return err
	}
	if name == "" {
		return errNoVariableName
	}
	return nil
}

func definitionRef(id, key string) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("with key %q", key)
}
