package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/envelope"
	"github.com/dogmatiq/processkit/event"
	"github.com/google/uuid"
)

// start creates an instance of def, and an instance of each of its
// subprocess definitions as children of the new instance.
func (e *Engine) start(
	ctx context.Context,
	def Definition,
	name, businessKey, parentID string,
	vars map[string]any,
	ancestors ...string,
) (command.ProcessInstance, error) {
	for _, k := range ancestors {
		if k == def.Key {
			return command.ProcessInstance{}, command.Errorf(
				command.Internal,
				"process definition %s starts itself as a subprocess",
				def.Key,
			)
		}
	}

	id := uuid.NewString()

	unlock, err := e.locks.Lock(ctx, id)
	if err != nil {
		return command.ProcessInstance{}, err
	}
	defer unlock()

	if name == "" {
		name = def.Name
	}

	inst := &instance{
		state: command.ProcessInstance{
			ID:                   id,
			Name:                 name,
			ProcessDefinitionID:  def.ID,
			ProcessDefinitionKey: def.Key,
			BusinessKey:          businessKey,
			Status:               command.Running,
			ParentID:             parentID,
			StartDate:            e.now(),
		},
		variables: map[string]any{},
		tasks:     map[string]struct{}{},
	}

	for k, v := range vars {
		inst.variables[k] = v
	}

	t := &task{
		state: command.Task{
			ID:                uuid.NewString(),
			Name:              def.Name,
			ProcessInstanceID: id,
			Status:            TaskCreated,
			CreatedDate:       inst.state.StartDate,
		},
		variables: map[string]any{},
	}
	inst.tasks[t.state.ID] = struct{}{}

	e.m.Lock()
	if e.instances == nil {
		e.instances = map[string]*instance{}
		e.tasks = map[string]*task{}
	}
	e.instances[id] = inst
	e.tasks[t.state.ID] = t
	result := inst.state
	e.m.Unlock()

	if err := e.publish(ctx, event.ProcessInstanceUpdated{Instance: result}); err != nil {
		return command.ProcessInstance{}, err
	}

	for _, key := range def.Subprocesses {
		sub, ok := e.definition(func(d Definition) bool {
			return d.Key == key
		})
		if !ok {
			return command.ProcessInstance{}, command.Errorf(
				command.NotFound,
				"subprocess definition %s of %s not found",
				key,
				def.Key,
			)
		}

		if _, err := e.start(ctx, sub, "", businessKey, id, nil, append(ancestors, def.Key)...); err != nil {
			return command.ProcessInstance{}, err
		}
	}

	return result, nil
}

// transition changes the status of an instance from one status to another.
func (e *Engine) transition(
	ctx context.Context,
	id string,
	from, to command.ProcessInstanceStatus,
) (result command.ProcessInstance, err error) {
	err = e.update(ctx, id, func(inst *instance) (bool, error) {
		if inst.state.Status != from {
			return false, command.Errorf(
				command.Conflict,
				"process instance %s is %s, expected %s",
				id,
				inst.state.Status,
				from,
			)
		}

		inst.state.Status = to
		result = inst.state

		return true, nil
	})

	return result, err
}

// update calls fn with the instance with the given ID while holding its
// lock. If fn returns true, the instance's new state is published.
func (e *Engine) update(
	ctx context.Context,
	id string,
	fn func(*instance) (bool, error),
) error {
	unlock, err := e.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	e.m.Lock()
	inst, ok := e.instances[id]
	if !ok {
		e.m.Unlock()
		return notFound(id)
	}

	changed, err := fn(inst)
	state := inst.state
	e.m.Unlock()

	if err != nil || !changed {
		return err
	}

	return e.publish(ctx, event.ProcessInstanceUpdated{Instance: state})
}

// updateTask calls fn with the task with the given ID, and its instance,
// while holding the instance's lock.
func (e *Engine) updateTask(
	ctx context.Context,
	id string,
	fn func(*instance, *task) error,
) (result command.Task, err error) {
	instanceID, err := e.taskInstance(id)
	if err != nil {
		return command.Task{}, err
	}

	err = e.update(ctx, instanceID, func(inst *instance) (bool, error) {
		t, ok := e.tasks[id]
		if !ok {
			return false, taskNotFound(id)
		}

		if err := fn(inst, t); err != nil {
			return false, err
		}

		result = t.state
		return false, nil
	})

	return result, err
}

// taskInstance returns the ID of the instance that owns a task.
func (e *Engine) taskInstance(id string) (string, error) {
	e.m.Lock()
	defer e.m.Unlock()

	t, ok := e.tasks[id]
	if !ok {
		return "", taskNotFound(id)
	}

	return t.state.ProcessInstanceID, nil
}

// remove deletes an instance and its descendants, returning their IDs with
// each parent before its children. e.m must be held.
func (e *Engine) remove(id string) []string {
	inst, ok := e.instances[id]
	if !ok {
		return nil
	}

	for tid := range inst.tasks {
		delete(e.tasks, tid)
	}
	delete(e.instances, id)

	removed := []string{id}

	var children []string
	for cid, c := range e.instances {
		if c.state.ParentID == id {
			children = append(children, cid)
		}
	}

	for _, cid := range children {
		removed = append(removed, e.remove(cid)...)
	}

	return removed
}

// definition returns the latest version of the first definition key that
// matches pred.
func (e *Engine) definition(pred func(Definition) bool) (Definition, bool) {
	var (
		latest Definition
		found  bool
	)

	for _, d := range e.Definitions {
		if !pred(d) {
			continue
		}

		if !found || (d.Key == latest.Key && d.Version > latest.Version) {
			latest = d
			found = true
		}
	}

	return latest, found
}

// publish publishes e to the event topic.
func (e *Engine) publish(ctx context.Context, ev event.Event) error {
	if e.Publisher == nil {
		return nil
	}

	m, err := event.Marshal(e.Marshaler, ev)
	if err != nil {
		return err
	}

	topic := e.EventTopic
	if topic == "" {
		topic = envelope.DefaultEventTopic
	}

	if err := e.Publisher.Publish(ctx, topic, m); err != nil {
		logging.Log(e.logger(), "unable to publish %T event: %s", ev, err)
		return fmt.Errorf("unable to publish event: %w", err)
	}

	return nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}

	return time.Now()
}

func (e *Engine) logger() logging.Logger {
	if e.Logger == nil {
		return logging.DefaultLogger
	}

	return e.Logger
}

func notFound(id string) error {
	return command.Errorf(command.NotFound, "process instance %s not found", id)
}

func taskNotFound(id string) error {
	return command.Errorf(command.NotFound, "task %s not found", id)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
