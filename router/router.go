// Package router delivers the results of commands to the calls that are
// waiting for them.
package router

import (
	"context"
	"fmt"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/processkit/correlation"
	"github.com/dogmatiq/processkit/envelope"
	"github.com/dogmatiq/processkit/internal/mlog"
	"github.com/dogmatiq/processkit/transport"
)

// Router consumes results and resolves the matching pending calls.
//
// Results that are not addressed to a call pending in Registry are dropped.
// This is expected when several gateway replicas share the result topic.
type Router struct {
	// Subscriber is used to subscribe to the result topic.
	Subscriber transport.Subscriber

	// Topic is the topic that results are consumed from. If it is empty,
	// envelope.DefaultResultTopic is used.
	Topic string

	// Marshaler is used to unmarshal result payloads.
	Marshaler marshalkit.ValueMarshaler

	// Registry is the set of calls awaiting their results.
	Registry *correlation.Registry

	// Replica is the ID of the gateway instance that owns Registry.
	Replica string

	// Logger is the target for log messages. If it is nil,
	// logging.DefaultLogger is used.
	Logger logging.Logger
}

// Run consumes results until ctx is canceled or the subscription fails.
func (r *Router) Run(ctx context.Context) error {
	topic := r.Topic
	if topic == "" {
		topic = envelope.DefaultResultTopic
	}

	sub, err := r.Subscriber.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("unable to subscribe to results: %w", err)
	}
	defer sub.Close()

	return r.Consume(ctx, sub)
}

// Consume routes each delivery from sub until ctx is canceled or sub fails.
func (r *Router) Consume(ctx context.Context, sub transport.Subscription) error {
	for {
		d, err := sub.Next(ctx)
		if err != nil {
			return err
		}

		r.Route(d)
	}
}

// Route delivers the result in d to its pending call.
//
// It returns false if the result was dropped. The payload is only decoded
// once the call is known to be pending in this replica.
func (r *Router) Route(d transport.Delivery) bool {
	token, ok := d.Header(envelope.ReplyChannelHeader)
	if !ok || token == "" {
		r.drop(token, "no reply channel token")
		return false
	}

	ch, err := envelope.ParseReplyChannel(token)
	if err != nil {
		r.drop(token, err.Error())
		return false
	}

	if ch.Replica != r.Replica {
		r.drop(token, "addressed to another replica")
		return false
	}

	if !r.Registry.Has(ch.CorrelationID) {
		r.drop(token, "no pending call")
		return false
	}

	m, err := d.Message()
	if err == nil {
		var env envelope.Result
		env, err = envelope.UnmarshalResult(r.Marshaler, m)
		if err == nil {
			return r.resolve(token, ch.CorrelationID, env.Payload)
		}
	}

	if r.Registry.Fail(ch.CorrelationID, fmt.Errorf("unable to decode result: %w", err)) {
		return true
	}

	r.drop(token, "no pending call")
	return false
}

// resolve resolves the call with the given ID with v.
func (r *Router) resolve(token, id string, v any) bool {
	if r.Registry.Resolve(id, v) {
		return true
	}

	// The call was resolved by another path after the check above.
	r.drop(token, "no pending call")
	return false
}

func (r *Router) drop(token, reason string) {
	logger := r.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}

	mlog.LogUnroutable(logger, token, reason)
}
