// Package transport defines the publish/subscribe abstraction used to carry
// commands, results and events between processes.
package transport

import (
	"context"
	"errors"

	"github.com/dogmatiq/marshalkit"
)

// ErrSubscriptionClosed is returned by Subscription.Next() after the
// subscription has been closed.
var ErrSubscriptionClosed = errors.New("subscription is closed")

// Message is a unit of data sent over a topic.
type Message struct {
	// Headers contains string metadata about the message.
	Headers map[string]string

	// MediaType is the MIME type of Data.
	MediaType string

	// Data is the message body.
	Data []byte
}

// NewMessage returns a message containing the data in p.
func NewMessage(p marshalkit.Packet, headers map[string]string) Message {
	return Message{
		Headers:   headers,
		MediaType: p.MediaType,
		Data:      p.Data,
	}
}

// Header returns the value of the header with the given name.
func (m Message) Header(k string) (string, bool) {
	v, ok := m.Headers[k]
	return v, ok
}

// Packet returns the message body as a marshalkit packet.
func (m Message) Packet() marshalkit.Packet {
	return marshalkit.Packet{
		MediaType: m.MediaType,
		Data:      m.Data,
	}
}

// Message returns m.
func (m Message) Message() (Message, error) {
	return m, nil
}

// Delivery is a message received from a subscription.
type Delivery interface {
	// Header returns the value of the header with the given name without
	// necessarily decoding the entire message.
	Header(k string) (string, bool)

	// Message returns the full message.
	Message() (Message, error)
}

// Publisher publishes messages to topics.
type Publisher interface {
	// Publish sends m to every subscriber of the given topic.
	Publish(ctx context.Context, topic string, m Message) error
}

// Subscriber subscribes to topics.
type Subscriber interface {
	// Subscribe starts receiving the messages published to the given topic.
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription is a stream of deliveries from a single topic.
type Subscription interface {
	// Next blocks until the next delivery is available or ctx is canceled.
	Next(ctx context.Context) (Delivery, error)

	// Close stops the subscription.
	Close() error
}

// Broker is both a Publisher and a Subscriber.
type Broker interface {
	Publisher
	Subscriber
}

// CloneHeaders returns a copy of h.
func CloneHeaders(h map[string]string) map[string]string {
	c := make(map[string]string, len(h))
	for k, v := range h {
		c[k] = v
	}
	return c
}
