package boltdb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/processkit/readmodel"
)

// separator divides the media-type from the data in a stored row.
const separator = '\n'

// marshal marshals pi to its stored representation, which is the media-type
// of the marshaled packet followed by the separator and the packet data.
func marshal(vm marshalkit.ValueMarshaler, pi *readmodel.ProcessInstance) ([]byte, error) {
	row := *pi
	row.Subprocesses = nil

	p, err := vm.Marshal(row)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, len(p.MediaType)+1+len(p.Data))
	data = append(data, p.MediaType...)
	data = append(data, separator)
	data = append(data, p.Data...)

	return data, nil
}

// unmarshal unmarshals a row from its stored representation.
func unmarshal(vm marshalkit.ValueMarshaler, data []byte) (*readmodel.ProcessInstance, error) {
	n := bytes.IndexByte(data, separator)
	if n == -1 {
		return nil, errors.New("data is corrupt, missing media-type")
	}

	v, err := vm.Unmarshal(marshalkit.Packet{
		MediaType: string(data[:n]),
		Data:      data[n+1:],
	})
	if err != nil {
		return nil, err
	}

	switch v := v.(type) {
	case *readmodel.ProcessInstance:
		return v, nil
	case readmodel.ProcessInstance:
		return &v, nil
	default:
		return nil, fmt.Errorf("data is corrupt, expected a process instance, got %T", v)
	}
}
