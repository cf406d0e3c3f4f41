// Package event defines the lifecycle events that a process engine publishes
// about its process instances.
package event

import (
	"fmt"
	"reflect"

	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/transport"
)

// Event is a notification about a change to a process instance.
type Event interface {
	isEvent()
}

// ProcessInstanceUpdated indicates that a process instance was created or
// that its state changed.
type ProcessInstanceUpdated struct {
	Instance command.ProcessInstance
}

// ProcessInstanceDeleted indicates that a process instance was removed from
// the engine.
type ProcessInstanceDeleted struct {
	ProcessInstanceID string
}

func (ProcessInstanceUpdated) isEvent() {}
func (ProcessInstanceDeleted) isEvent() {}

// Types returns the types of every event.
func Types() []reflect.Type {
	return []reflect.Type{
		reflect.TypeOf(ProcessInstanceUpdated{}),
		reflect.TypeOf(ProcessInstanceDeleted{}),
	}
}

// Marshal marshals e into a transport message.
func Marshal(vm marshalkit.ValueMarshaler, e Event) (transport.Message, error) {
	p, err := vm.Marshal(e)
	if err != nil {
		return transport.Message{}, err
	}

	return transport.NewMessage(p, nil), nil
}

// Unmarshal unmarshals an event from a transport message.
func Unmarshal(vm marshalkit.ValueMarshaler, m transport.Message) (Event, error) {
	v, err := vm.Unmarshal(m.Packet())
	if err != nil {
		return nil, err
	}

	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && !rv.IsNil() {
		v = rv.Elem().Interface()
	}

	if e, ok := v.(Event); ok {
		return e, nil
	}

	return nil, fmt.Errorf("%T is not an event", v)
}
