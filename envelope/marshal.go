package envelope

import (
	"errors"

	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/transport"
)

// MarshalCommand marshals env into a transport message.
func MarshalCommand(vm marshalkit.ValueMarshaler, env Command) (transport.Message, error) {
	p, err := vm.Marshal(env.Payload)
	if err != nil {
		return transport.Message{}, err
	}

	return transport.NewMessage(
		p,
		map[string]string{
			CommandIDHeader:    env.ID,
			ReplyChannelHeader: env.ReplyChannel,
		},
	), nil
}

// UnmarshalCommand unmarshals a command envelope from a transport message.
//
// The headers are populated even if the payload can not be decoded, so that
// the failure can still be reported to the caller.
func UnmarshalCommand(vm marshalkit.ValueMarshaler, m transport.Message) (Command, error) {
	env := Command{
		ID:           m.Headers[CommandIDHeader],
		ReplyChannel: m.Headers[ReplyChannelHeader],
	}

	if env.ReplyChannel == "" {
		return env, errors.New("command has no reply channel token")
	}

	var err error
	env.Payload, err = command.UnmarshalCommand(vm, m.Packet())
	return env, err
}

// MarshalResult marshals env into a transport message.
func MarshalResult(vm marshalkit.ValueMarshaler, env Result) (transport.Message, error) {
	p, err := vm.Marshal(env.Payload)
	if err != nil {
		return transport.Message{}, err
	}

	return transport.NewMessage(
		p,
		map[string]string{
			ReplyChannelHeader: env.ReplyChannel,
		},
	), nil
}

// UnmarshalResult unmarshals a result envelope from a transport message.
func UnmarshalResult(vm marshalkit.ValueMarshaler, m transport.Message) (Result, error) {
	env := Result{
		ReplyChannel: m.Headers[ReplyChannelHeader],
	}

	var err error
	env.Payload, err = command.UnmarshalResult(vm, m.Packet())
	return env, err
}
