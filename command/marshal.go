package command

import (
	"fmt"
	"reflect"

	"github.com/dogmatiq/marshalkit"
)

// Types returns the types of every command and result.
func Types() []reflect.Type {
	return []reflect.Type{
		reflect.TypeOf(StartProcess{}),
		reflect.TypeOf(SuspendProcess{}),
		reflect.TypeOf(ResumeProcess{}),
		reflect.TypeOf(DeleteProcess{}),
		reflect.TypeOf(SetProcessVariables{}),
		reflect.TypeOf(RemoveProcessVariables{}),
		reflect.TypeOf(ClaimTask{}),
		reflect.TypeOf(ReleaseTask{}),
		reflect.TypeOf(CompleteTask{}),
		reflect.TypeOf(CreateTaskVariable{}),
		reflect.TypeOf(UpdateTaskVariable{}),
		reflect.TypeOf(SendSignal{}),
		reflect.TypeOf(StartMessage{}),
		reflect.TypeOf(ReceiveMessage{}),
		reflect.TypeOf(SyncProcessDefinitions{}),
		reflect.TypeOf(ProcessInstanceResult{}),
		reflect.TypeOf(TaskResult{}),
		reflect.TypeOf(ProcessDefinitionsResult{}),
		reflect.TypeOf(EmptyResult{}),
		reflect.TypeOf(ErrorResult{}),
	}
}

// UnmarshalCommand unmarshals a command from p.
func UnmarshalCommand(vm marshalkit.ValueMarshaler, p marshalkit.Packet) (Command, error) {
	v, err := unmarshal(vm, p)
	if err != nil {
		return nil, err
	}

	if c, ok := v.(Command); ok {
		return c, nil
	}

	return nil, fmt.Errorf("%T is not a command", v)
}

// UnmarshalResult unmarshals a result from p.
func UnmarshalResult(vm marshalkit.ValueMarshaler, p marshalkit.Packet) (Result, error) {
	v, err := unmarshal(vm, p)
	if err != nil {
		return nil, err
	}

	if r, ok := v.(Result); ok {
		return r, nil
	}

	return nil, fmt.Errorf("%T is not a result", v)
}

// unmarshal unmarshals a value from p, dereferencing it if the marshaler
// produces a pointer.
func unmarshal(vm marshalkit.ValueMarshaler, p marshalkit.Packet) (any, error) {
	v, err := vm.Unmarshal(p)
	if err != nil {
		return nil, err
	}

	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Elem().Interface(), nil
	}

	return v, nil
}
