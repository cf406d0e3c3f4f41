// Package simulator is an in-memory stand-in for a BPMN process engine.
//
// It does not execute BPMN. Each started instance has a single user task,
// and completes when that task is completed. It exists so that the command
// protocol and the read-model can be exercised without a real engine.
package simulator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/event"
	"github.com/dogmatiq/processkit/executor"
	"github.com/dogmatiq/processkit/internal/x/syncx"
	"github.com/dogmatiq/processkit/transport"
)

// Task statuses reported by the simulator.
const (
	TaskCreated   = "CREATED"
	TaskAssigned  = "ASSIGNED"
	TaskCompleted = "COMPLETED"
)

// Definition is a process definition deployed to the simulator.
type Definition struct {
	command.ProcessDefinition

	// Subprocesses is the keys of the definitions that are started as
	// children of each new instance of this definition.
	Subprocesses []string

	// StartMessage is the name of a message that starts an instance of this
	// definition, if any.
	StartMessage string
}

// Engine is an in-memory process engine.
type Engine struct {
	// Definitions is the set of deployed process definitions.
	Definitions []Definition

	// Publisher is used to publish lifecycle events. If it is nil, no events
	// are published.
	Publisher transport.Publisher

	// EventTopic is the topic that events are published to. If it is empty,
	// envelope.DefaultEventTopic is used.
	EventTopic string

	// Marshaler is used to marshal events.
	Marshaler marshalkit.ValueMarshaler

	// Logger is the target for log messages. If it is nil,
	// logging.DefaultLogger is used.
	Logger logging.Logger

	// Now returns the current time. If it is nil, time.Now is used.
	Now func() time.Time

	// locks serializes the operations on each instance so that events about
	// the same instance are published in order.
	locks syncx.MutexNamespace

	m         sync.Mutex
	instances map[string]*instance
	tasks     map[string]*task
}

type instance struct {
	state     command.ProcessInstance
	variables map[string]any
	tasks     map[string]struct{}
}

type task struct {
	state     command.Task
	variables map[string]any
}

// Mux returns a command handler that executes commands against e.
func (e *Engine) Mux() *executor.Mux {
	return &executor.Mux{
		StartProcess:           e.StartProcess,
		SuspendProcess:         e.SuspendProcess,
		ResumeProcess:          e.ResumeProcess,
		DeleteProcess:          e.DeleteProcess,
		SetProcessVariables:    e.SetProcessVariables,
		RemoveProcessVariables: e.RemoveProcessVariables,
		ClaimTask:              e.ClaimTask,
		ReleaseTask:            e.ReleaseTask,
		CompleteTask:           e.CompleteTask,
		CreateTaskVariable:     e.CreateTaskVariable,
		UpdateTaskVariable:     e.UpdateTaskVariable,
		SendSignal:             e.SendSignal,
		StartMessage:           e.StartMessage,
		ReceiveMessage:         e.ReceiveMessage,
		SyncProcessDefinitions: e.SyncProcessDefinitions,
	}
}

// StartProcess starts an instance of the latest version of a definition.
func (e *Engine) StartProcess(ctx context.Context, c command.StartProcess) (command.ProcessInstance, error) {
	def, ok := e.definition(func(d Definition) bool {
		if c.ProcessDefinitionID != "" {
			return d.ID == c.ProcessDefinitionID
		}
		return d.Key == c.ProcessDefinitionKey
	})
	if !ok {
		return command.ProcessInstance{}, command.Errorf(
			command.NotFound,
			"process definition %s not found",
			firstNonEmpty(c.ProcessDefinitionID, c.ProcessDefinitionKey),
		)
	}

	return e.start(ctx, def, c.Name, c.BusinessKey, "", c.Variables)
}

// StartMessage starts an instance of the definition that is started by the
// named message.
func (e *Engine) StartMessage(ctx context.Context, c command.StartMessage) (command.ProcessInstance, error) {
	def, ok := e.definition(func(d Definition) bool {
		return d.StartMessage == c.Name
	})
	if !ok {
		return command.ProcessInstance{}, command.Errorf(
			command.NotFound,
			"no process definition is started by message %q",
			c.Name,
		)
	}

	return e.start(ctx, def, "", c.BusinessKey, "", c.Variables)
}

// SuspendProcess suspends a running instance.
func (e *Engine) SuspendProcess(ctx context.Context, c command.SuspendProcess) (command.ProcessInstance, error) {
	return e.transition(ctx, c.ProcessInstanceID, command.Running, command.Suspended)
}

// ResumeProcess resumes a suspended instance.
func (e *Engine) ResumeProcess(ctx context.Context, c command.ResumeProcess) (command.ProcessInstance, error) {
	return e.transition(ctx, c.ProcessInstanceID, command.Suspended, command.Running)
}

// DeleteProcess cancels an instance and removes it, along with its
// subprocesses.
func (e *Engine) DeleteProcess(ctx context.Context, c command.DeleteProcess) (command.ProcessInstance, error) {
	unlock, err := e.locks.Lock(ctx, c.ProcessInstanceID)
	if err != nil {
		return command.ProcessInstance{}, err
	}
	defer unlock()

	e.m.Lock()
	inst, ok := e.instances[c.ProcessInstanceID]
	if !ok {
		e.m.Unlock()
		return command.ProcessInstance{}, notFound(c.ProcessInstanceID)
	}

	inst.state.Status = command.Cancelled
	result := inst.state
	removed := e.remove(c.ProcessInstanceID)
	e.m.Unlock()

	for _, id := range removed {
		if err := e.publish(ctx, event.ProcessInstanceDeleted{ProcessInstanceID: id}); err != nil {
			return command.ProcessInstance{}, err
		}
	}

	return result, nil
}

// SetProcessVariables sets variables on an instance.
func (e *Engine) SetProcessVariables(ctx context.Context, c command.SetProcessVariables) error {
	return e.update(ctx, c.ProcessInstanceID, func(inst *instance) (bool, error) {
		for k, v := range c.Variables {
			inst.variables[k] = v
		}
		return true, nil
	})
}

// RemoveProcessVariables removes variables from an instance.
func (e *Engine) RemoveProcessVariables(ctx context.Context, c command.RemoveProcessVariables) error {
	return e.update(ctx, c.ProcessInstanceID, func(inst *instance) (bool, error) {
		for _, n := range c.Names {
			delete(inst.variables, n)
		}
		return true, nil
	})
}

// ClaimTask assigns a task to a user.
func (e *Engine) ClaimTask(ctx context.Context, c command.ClaimTask) (command.Task, error) {
	return e.updateTask(ctx, c.TaskID, func(_ *instance, t *task) error {
		if t.state.Assignee != "" && t.state.Assignee != c.Assignee {
			return command.Errorf(command.Conflict, "task %s is already assigned to %s", c.TaskID, t.state.Assignee)
		}

		t.state.Assignee = c.Assignee
		t.state.Status = TaskAssigned
		return nil
	})
}

// ReleaseTask removes the assignee of a task.
func (e *Engine) ReleaseTask(ctx context.Context, c command.ReleaseTask) (command.Task, error) {
	return e.updateTask(ctx, c.TaskID, func(_ *instance, t *task) error {
		if t.state.Assignee == "" {
			return command.Errorf(command.Conflict, "task %s is not assigned", c.TaskID)
		}

		t.state.Assignee = ""
		t.state.Status = TaskCreated
		return nil
	})
}

// CompleteTask completes a task. The instance completes once it has no open
// tasks.
func (e *Engine) CompleteTask(ctx context.Context, c command.CompleteTask) (command.Task, error) {
	var result command.Task

	instanceID, err := e.taskInstance(c.TaskID)
	if err != nil {
		return command.Task{}, err
	}

	err = e.update(ctx, instanceID, func(inst *instance) (bool, error) {
		t, ok := e.tasks[c.TaskID]
		if !ok {
			return false, taskNotFound(c.TaskID)
		}

		if inst.state.Status != command.Running {
			return false, command.Errorf(command.Conflict, "process instance %s is %s", instanceID, inst.state.Status)
		}

		for k, v := range c.Variables {
			inst.variables[k] = v
		}

		t.state.Status = TaskCompleted
		result = t.state

		delete(e.tasks, c.TaskID)
		delete(inst.tasks, c.TaskID)

		if len(inst.tasks) == 0 {
			inst.state.Status = command.Completed
		}

		return true, nil
	})

	return result, err
}

// CreateTaskVariable creates a new variable on a task.
func (e *Engine) CreateTaskVariable(ctx context.Context, c command.CreateTaskVariable) error {
	_, err := e.updateTask(ctx, c.TaskID, func(_ *instance, t *task) error {
		if _, ok := t.variables[c.Name]; ok {
			return command.Errorf(command.Conflict, "variable %q already exists on task %s", c.Name, c.TaskID)
		}

		t.variables[c.Name] = c.Value
		return nil
	})
	return err
}

// UpdateTaskVariable changes the value of an existing task variable.
func (e *Engine) UpdateTaskVariable(ctx context.Context, c command.UpdateTaskVariable) error {
	_, err := e.updateTask(ctx, c.TaskID, func(_ *instance, t *task) error {
		if _, ok := t.variables[c.Name]; !ok {
			return command.Errorf(command.NotFound, "variable %q not found on task %s", c.Name, c.TaskID)
		}

		t.variables[c.Name] = c.Value
		return nil
	})
	return err
}

// SendSignal broadcasts a signal. The simulator has no signal catch events,
// so signals have no effect.
func (e *Engine) SendSignal(context.Context, command.SendSignal) error {
	return nil
}

// ReceiveMessage delivers a message to the running instance whose business
// key is the message's correlation key.
func (e *Engine) ReceiveMessage(ctx context.Context, c command.ReceiveMessage) error {
	e.m.Lock()
	var id string
	for _, inst := range e.instances {
		if inst.state.BusinessKey == c.CorrelationKey && inst.state.Status == command.Running {
			id = inst.state.ID
			break
		}
	}
	e.m.Unlock()

	if id == "" {
		return command.Errorf(
			command.NotFound,
			"no running process instance is waiting for message %q with correlation key %q",
			c.Name,
			c.CorrelationKey,
		)
	}

	return e.update(ctx, id, func(inst *instance) (bool, error) {
		for k, v := range c.Variables {
			inst.variables[k] = v
		}
		return true, nil
	})
}

// SyncProcessDefinitions returns the deployed definitions ordered by key and
// version.
func (e *Engine) SyncProcessDefinitions(context.Context, command.SyncProcessDefinitions) ([]command.ProcessDefinition, error) {
	defs := make([]command.ProcessDefinition, 0, len(e.Definitions))
	for _, d := range e.Definitions {
		defs = append(defs, d.ProcessDefinition)
	}

	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Key != defs[j].Key {
			return defs[i].Key < defs[j].Key
		}
		return defs[i].Version < defs[j].Version
	})

	return defs, nil
}

// Variables returns a copy of the variables of an instance.
func (e *Engine) Variables(id string) (map[string]any, bool) {
	e.m.Lock()
	defer e.m.Unlock()

	inst, ok := e.instances[id]
	if !ok {
		return nil, false
	}

	vars := make(map[string]any, len(inst.variables))
	for k, v := range inst.variables {
		vars[k] = v
	}

	return vars, true
}

// Tasks returns the open tasks of an instance, ordered by ID.
func (e *Engine) Tasks(id string) []command.Task {
	e.m.Lock()
	defer e.m.Unlock()

	var tasks []command.Task

	if inst, ok := e.instances[id]; ok {
		for tid := range inst.tasks {
			tasks = append(tasks, e.tasks[tid].state)
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ID < tasks[j].ID
	})

	return tasks
}
