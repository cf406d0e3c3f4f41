package gateway

import (
	"context"

	"github.com/dogmatiq/processkit/command"
)

// StartProcess starts a new process instance.
func (g *Gateway) StartProcess(ctx context.Context, c command.StartProcess) (command.ProcessInstance, error) {
	r, err := expect[command.ProcessInstanceResult](ctx, g, c)
	return r.Instance, err
}

// SuspendProcess suspends a running process instance.
func (g *Gateway) SuspendProcess(ctx context.Context, c command.SuspendProcess) (command.ProcessInstance, error) {
	r, err := expect[command.ProcessInstanceResult](ctx, g, c)
	return r.Instance, err
}

// ResumeProcess resumes a suspended process instance.
func (g *Gateway) ResumeProcess(ctx context.Context, c command.ResumeProcess) (command.ProcessInstance, error) {
	r, err := expect[command.ProcessInstanceResult](ctx, g, c)
	return r.Instance, err
}

// DeleteProcess cancels a process instance.
func (g *Gateway) DeleteProcess(ctx context.Context, c command.DeleteProcess) (command.ProcessInstance, error) {
	r, err := expect[command.ProcessInstanceResult](ctx, g, c)
	return r.Instance, err
}

// SetProcessVariables adds or replaces variables on a process instance.
func (g *Gateway) SetProcessVariables(ctx context.Context, c command.SetProcessVariables) error {
	_, err := expect[command.EmptyResult](ctx, g, c)
	return err
}

// RemoveProcessVariables removes variables from a process instance.
func (g *Gateway) RemoveProcessVariables(ctx context.Context, c command.RemoveProcessVariables) error {
	_, err := expect[command.EmptyResult](ctx, g, c)
	return err
}

// ClaimTask assigns a task to a user.
func (g *Gateway) ClaimTask(ctx context.Context, c command.ClaimTask) (command.Task, error) {
	r, err := expect[command.TaskResult](ctx, g, c)
	return r.Task, err
}

// ReleaseTask removes the assignee from a task.
func (g *Gateway) ReleaseTask(ctx context.Context, c command.ReleaseTask) (command.Task, error) {
	r, err := expect[command.TaskResult](ctx, g, c)
	return r.Task, err
}

// CompleteTask completes a task.
func (g *Gateway) CompleteTask(ctx context.Context, c command.CompleteTask) (command.Task, error) {
	r, err := expect[command.TaskResult](ctx, g, c)
	return r.Task, err
}

// CreateTaskVariable creates a variable local to a task.
func (g *Gateway) CreateTaskVariable(ctx context.Context, c command.CreateTaskVariable) error {
	_, err := expect[command.EmptyResult](ctx, g, c)
	return err
}

// UpdateTaskVariable replaces the value of a task variable.
func (g *Gateway) UpdateTaskVariable(ctx context.Context, c command.UpdateTaskVariable) error {
	_, err := expect[command.EmptyResult](ctx, g, c)
	return err
}

// SendSignal broadcasts a signal to the process engine.
func (g *Gateway) SendSignal(ctx context.Context, c command.SendSignal) error {
	_, err := expect[command.EmptyResult](ctx, g, c)
	return err
}

// StartMessage starts a process instance from a message start event.
func (g *Gateway) StartMessage(ctx context.Context, c command.StartMessage) (command.ProcessInstance, error) {
	r, err := expect[command.ProcessInstanceResult](ctx, g, c)
	return r.Instance, err
}

// ReceiveMessage delivers a message to a waiting process instance.
func (g *Gateway) ReceiveMessage(ctx context.Context, c command.ReceiveMessage) error {
	_, err := expect[command.EmptyResult](ctx, g, c)
	return err
}

// SyncProcessDefinitions returns the process definitions deployed to the
// engine.
func (g *Gateway) SyncProcessDefinitions(ctx context.Context) ([]command.ProcessDefinition, error) {
	r, err := expect[command.ProcessDefinitionsResult](ctx, g, command.SyncProcessDefinitions{})
	return r.Definitions, err
}

// expect dispatches c and returns its result as an R.
func expect[R command.Result](ctx context.Context, g *Gateway, c command.Command) (R, error) {
	var zero R

	r, err := g.Dispatch(ctx, c)
	if err != nil {
		return zero, err
	}

	if x, ok := r.(R); ok {
		return x, nil
	}

	return zero, UnexpectedResultError{c.Kind(), r}
}
