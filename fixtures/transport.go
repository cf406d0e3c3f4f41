package fixtures

import (
	"context"

	"github.com/dogmatiq/processkit/transport"
)

// PublisherStub is a test implementation of the transport.Publisher
// interface.
type PublisherStub struct {
	transport.Publisher

	PublishFunc func(context.Context, string, transport.Message) error
}

// Publish sends m to every subscriber of the given topic.
func (p *PublisherStub) Publish(ctx context.Context, topic string, m transport.Message) error {
	if p.PublishFunc != nil {
		return p.PublishFunc(ctx, topic, m)
	}

	if p.Publisher != nil {
		return p.Publisher.Publish(ctx, topic, m)
	}

	return nil
}

// SubscriberStub is a test implementation of the transport.Subscriber
// interface.
type SubscriberStub struct {
	transport.Subscriber

	SubscribeFunc func(context.Context, string) (transport.Subscription, error)
}

// Subscribe starts receiving the messages published to the given topic.
func (s *SubscriberStub) Subscribe(ctx context.Context, topic string) (transport.Subscription, error) {
	if s.SubscribeFunc != nil {
		return s.SubscribeFunc(ctx, topic)
	}

	if s.Subscriber != nil {
		return s.Subscriber.Subscribe(ctx, topic)
	}

	return nil, nil
}

// DeliveryStub is a test implementation of the transport.Delivery interface.
type DeliveryStub struct {
	Msg transport.Message

	MessageFunc func() (transport.Message, error)
}

// Header returns the value of the header with the given name.
func (d *DeliveryStub) Header(k string) (string, bool) {
	return d.Msg.Header(k)
}

// Message returns the full message.
func (d *DeliveryStub) Message() (transport.Message, error) {
	if d.MessageFunc != nil {
		return d.MessageFunc()
	}

	return d.Msg, nil
}
