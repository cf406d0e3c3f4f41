// Package redis provides an implementation of the transport interfaces that
// uses Redis Pub/Sub.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dogmatiq/processkit/transport"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
)

// Broker is a publish/subscribe broker that uses Redis Pub/Sub channels as
// topics.
//
// Redis Pub/Sub is fire-and-forget; messages published while no subscriber
// is connected are lost.
type Broker struct {
	// Client is the Redis client used to publish and subscribe.
	Client redis.UniversalClient
}

// frame is the JSON representation of a message on a Redis channel.
type frame struct {
	Headers   map[string]string `json:"headers,omitempty"`
	MediaType string            `json:"mediaType"`
	Data      []byte            `json:"data"`
}

// Publish sends m to every subscriber of the given topic.
func (b *Broker) Publish(ctx context.Context, topic string, m transport.Message) error {
	data, err := json.Marshal(frame{m.Headers, m.MediaType, m.Data})
	if err != nil {
		return err
	}

	return b.Client.Publish(ctx, topic, data).Err()
}

// Subscribe starts receiving the messages published to the given topic.
//
// It blocks until Redis has confirmed the subscription, so that messages
// published after it returns are guaranteed to be received.
func (b *Broker) Subscribe(ctx context.Context, topic string) (transport.Subscription, error) {
	ps := b.Client.Subscribe(ctx, topic)

	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("unable to subscribe to %s: %w", topic, err)
	}

	return &subscription{pubsub: ps}, nil
}

type subscription struct {
	pubsub *redis.PubSub
}

func (s *subscription) Next(ctx context.Context) (transport.Delivery, error) {
	m, err := s.pubsub.ReceiveMessage(ctx)
	if err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return nil, transport.ErrSubscriptionClosed
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, err
	}

	return delivery(m.Payload), nil
}

func (s *subscription) Close() error {
	err := s.pubsub.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

// delivery is a raw frame received from Redis.
//
// Headers are read directly from the raw frame so that messages that are
// discarded based on their headers are never fully decoded.
type delivery string

func (d delivery) Header(k string) (v string, ok bool) {
	gjson.Get(string(d), "headers").ForEach(
		func(key, value gjson.Result) bool {
			if key.String() == k {
				v, ok = value.String(), true
				return false
			}
			return true
		},
	)

	return v, ok
}

func (d delivery) Message() (transport.Message, error) {
	var f frame
	if err := json.Unmarshal([]byte(d), &f); err != nil {
		return transport.Message{}, fmt.Errorf("unable to decode message frame: %w", err)
	}

	return transport.Message{
		Headers:   f.Headers,
		MediaType: f.MediaType,
		Data:      f.Data,
	}, nil
}
