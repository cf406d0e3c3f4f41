package executor

import (
	"context"

	"github.com/dogmatiq/processkit/command"
)

// Mux is a Handler that routes each kind of command to a separate function.
//
// Commands of a kind that has no function produce an ErrorResult with the
// command.Unsupported code.
type Mux struct {
	StartProcess           func(context.Context, command.StartProcess) (command.ProcessInstance, error)
	SuspendProcess         func(context.Context, command.SuspendProcess) (command.ProcessInstance, error)
	ResumeProcess          func(context.Context, command.ResumeProcess) (command.ProcessInstance, error)
	DeleteProcess          func(context.Context, command.DeleteProcess) (command.ProcessInstance, error)
	SetProcessVariables    func(context.Context, command.SetProcessVariables) error
	RemoveProcessVariables func(context.Context, command.RemoveProcessVariables) error
	ClaimTask              func(context.Context, command.ClaimTask) (command.Task, error)
	ReleaseTask            func(context.Context, command.ReleaseTask) (command.Task, error)
	CompleteTask           func(context.Context, command.CompleteTask) (command.Task, error)
	CreateTaskVariable     func(context.Context, command.CreateTaskVariable) error
	UpdateTaskVariable     func(context.Context, command.UpdateTaskVariable) error
	SendSignal             func(context.Context, command.SendSignal) error
	StartMessage           func(context.Context, command.StartMessage) (command.ProcessInstance, error)
	ReceiveMessage         func(context.Context, command.ReceiveMessage) error
	SyncProcessDefinitions func(context.Context, command.SyncProcessDefinitions) ([]command.ProcessDefinition, error)
}

// HandleCommand executes c using the function for its kind.
func (m *Mux) HandleCommand(ctx context.Context, c command.Command) (command.Result, error) {
	switch c := c.(type) {
	case command.StartProcess:
		return instance(ctx, m.StartProcess, c)
	case command.SuspendProcess:
		return instance(ctx, m.SuspendProcess, c)
	case command.ResumeProcess:
		return instance(ctx, m.ResumeProcess, c)
	case command.DeleteProcess:
		return instance(ctx, m.DeleteProcess, c)
	case command.SetProcessVariables:
		return empty(ctx, m.SetProcessVariables, c)
	case command.RemoveProcessVariables:
		return empty(ctx, m.RemoveProcessVariables, c)
	case command.ClaimTask:
		return task(ctx, m.ClaimTask, c)
	case command.ReleaseTask:
		return task(ctx, m.ReleaseTask, c)
	case command.CompleteTask:
		return task(ctx, m.CompleteTask, c)
	case command.CreateTaskVariable:
		return empty(ctx, m.CreateTaskVariable, c)
	case command.UpdateTaskVariable:
		return empty(ctx, m.UpdateTaskVariable, c)
	case command.SendSignal:
		return empty(ctx, m.SendSignal, c)
	case command.StartMessage:
		return instance(ctx, m.StartMessage, c)
	case command.ReceiveMessage:
		return empty(ctx, m.ReceiveMessage, c)
	case command.SyncProcessDefinitions:
		if m.SyncProcessDefinitions == nil {
			return nil, unsupported(c)
		}

		defs, err := m.SyncProcessDefinitions(ctx, c)
		if err != nil {
			return nil, err
		}

		return command.ProcessDefinitionsResult{Definitions: defs}, nil
	default:
		return nil, unsupported(c)
	}
}

func instance[C command.Command](
	ctx context.Context,
	fn func(context.Context, C) (command.ProcessInstance, error),
	c C,
) (command.Result, error) {
	if fn == nil {
		return nil, unsupported(c)
	}

	pi, err := fn(ctx, c)
	if err != nil {
		return nil, err
	}

	return command.ProcessInstanceResult{Instance: pi}, nil
}

func task[C command.Command](
	ctx context.Context,
	fn func(context.Context, C) (command.Task, error),
	c C,
) (command.Result, error) {
	if fn == nil {
		return nil, unsupported(c)
	}

	t, err := fn(ctx, c)
	if err != nil {
		return nil, err
	}

	return command.TaskResult{Task: t}, nil
}

func empty[C command.Command](
	ctx context.Context,
	fn func(context.Context, C) error,
	c C,
) (command.Result, error) {
	if fn == nil {
		return nil, unsupported(c)
	}

	if err := fn(ctx, c); err != nil {
		return nil, err
	}

	return command.EmptyResult{}, nil
}

func unsupported(c command.Command) error {
	return command.Errorf(command.Unsupported, "%s commands are not supported", c.Kind())
}
