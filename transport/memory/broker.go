// Package memory provides an in-process implementation of the transport
// interfaces.
package memory

import (
	"context"
	"sync"

	"github.com/dogmatiq/processkit/transport"
)

// DefaultBufferSize is the default number of undelivered messages buffered
// for each subscription.
const DefaultBufferSize = 100

// Broker is an in-process publish/subscribe broker.
//
// Messages published to a topic with no subscribers are discarded.
type Broker struct {
	// BufferSize is the number of undelivered messages buffered for each
	// subscription. If it is zero, DefaultBufferSize is used. Publishing
	// blocks while any subscriber's buffer is full.
	BufferSize int

	m      sync.RWMutex
	topics map[string]map[*subscription]struct{}
}

// Publish sends m to every subscriber of the given topic.
func (b *Broker) Publish(ctx context.Context, topic string, m transport.Message) error {
	b.m.RLock()
	subs := make([]*subscription, 0, len(b.topics[topic]))
	for s := range b.topics[topic] {
		subs = append(subs, s)
	}
	b.m.RUnlock()

	for _, s := range subs {
		c := m
		c.Headers = transport.CloneHeaders(m.Headers)

		select {
		case s.messages <- c:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Subscribe starts receiving the messages published to the given topic.
func (b *Broker) Subscribe(ctx context.Context, topic string) (transport.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := b.BufferSize
	if n == 0 {
		n = DefaultBufferSize
	}

	s := &subscription{
		broker:   b,
		topic:    topic,
		messages: make(chan transport.Message, n),
		done:     make(chan struct{}),
	}

	b.m.Lock()
	defer b.m.Unlock()

	if b.topics == nil {
		b.topics = map[string]map[*subscription]struct{}{}
	}

	subs := b.topics[topic]
	if subs == nil {
		subs = map[*subscription]struct{}{}
		b.topics[topic] = subs
	}

	subs[s] = struct{}{}

	return s, nil
}

// remove unregisters s from its topic.
func (b *Broker) remove(s *subscription) {
	b.m.Lock()
	defer b.m.Unlock()

	subs := b.topics[s.topic]
	delete(subs, s)

	if len(subs) == 0 {
		delete(b.topics, s.topic)
	}
}

type subscription struct {
	broker   *Broker
	topic    string
	messages chan transport.Message
	once     sync.Once
	done     chan struct{}
}

func (s *subscription) Next(ctx context.Context) (transport.Delivery, error) {
	select {
	case m := <-s.messages:
		return m, nil
	case <-s.done:
		return nil, transport.ErrSubscriptionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.done)
	})

	return nil
}
