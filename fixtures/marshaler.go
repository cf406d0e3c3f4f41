package fixtures

import (
	"github.com/dogmatiq/marshalkit/codec"
	"github.com/dogmatiq/marshalkit/codec/json"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/event"
	"github.com/dogmatiq/processkit/readmodel"
)

// Marshaler is a marshaler that supports every command, result, event and
// read-model type.
var Marshaler *codec.Marshaler

func init() {
	m, err := codec.NewMarshaler(
		append(
			append(command.Types(), event.Types()...),
			readmodel.Types()...,
		),
		[]codec.Codec{
			&json.Codec{},
		},
	)
	if err != nil {
		panic(err)
	}

	Marshaler = m
}
