package readmodel

import (
	"context"
	"fmt"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/processkit/envelope"
	"github.com/dogmatiq/processkit/event"
	"github.com/dogmatiq/processkit/internal/mlog"
	"github.com/dogmatiq/processkit/retry"
	"github.com/dogmatiq/processkit/transport"
)

// DefaultApplyAttempts is the default number of times applying an event to
// the repository is attempted before the projector fails.
var DefaultApplyAttempts = 5

// Projector keeps a repository up to date by applying the lifecycle events
// published by a process engine.
type Projector struct {
	// Subscriber is used to subscribe to the event topic.
	Subscriber transport.Subscriber

	// Topic is the topic that events are consumed from. If it is empty,
	// envelope.DefaultEventTopic is used.
	Topic string

	// Marshaler is used to unmarshal events.
	Marshaler marshalkit.ValueMarshaler

	// Repository is the repository that events are applied to.
	Repository Repository

	// ApplyAttempts is the maximum number of times to attempt applying an
	// event. If it is zero, DefaultApplyAttempts is used.
	ApplyAttempts int

	// ApplyBackoff is the strategy used to delay retries. If it is nil,
	// retry.DefaultStrategy is used.
	ApplyBackoff backoff.Strategy

	// Logger is the target for log messages. If it is nil,
	// logging.DefaultLogger is used.
	Logger logging.Logger

	// Now returns the current time. If it is nil, time.Now is used.
	Now func() time.Time
}

// Run applies events until ctx is canceled, the subscription fails or an
// event can not be applied.
func (p *Projector) Run(ctx context.Context) error {
	topic := p.Topic
	if topic == "" {
		topic = envelope.DefaultEventTopic
	}

	sub, err := p.Subscriber.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("unable to subscribe to events: %w", err)
	}
	defer sub.Close()

	for {
		d, err := sub.Next(ctx)
		if err != nil {
			return err
		}

		if err := p.Handle(ctx, d); err != nil {
			return err
		}
	}
}

// Handle applies the event in d.
//
// Events that can not be decoded are logged and skipped.
func (p *Projector) Handle(ctx context.Context, d transport.Delivery) error {
	m, err := d.Message()
	if err != nil {
		logging.Log(p.logger(), "unable to read event, skipping: %s", err)
		return nil
	}

	e, err := event.Unmarshal(p.Marshaler, m)
	if err != nil {
		logging.Log(p.logger(), "unable to decode event, skipping: %s", err)
		return nil
	}

	attempts := p.ApplyAttempts
	if attempts == 0 {
		attempts = DefaultApplyAttempts
	}

	err = retry.Do(
		ctx,
		p.ApplyBackoff,
		attempts,
		func(ctx context.Context) error {
			return p.Apply(ctx, e)
		},
		func(_ int, err error) {
			mlog.LogProjection(p.logger(), e, err)
		},
	)

	mlog.LogProjection(p.logger(), e, err)

	return err
}

// Apply applies e to the repository.
func (p *Projector) Apply(ctx context.Context, e event.Event) error {
	switch e := e.(type) {
	case event.ProcessInstanceUpdated:
		return p.Repository.Save(
			ctx,
			NewProcessInstance(e.Instance, p.now()),
		)
	case event.ProcessInstanceDeleted:
		return p.Repository.Delete(ctx, e.ProcessInstanceID)
	default:
		panic(fmt.Sprintf("unsupported event type: %T", e))
	}
}

func (p *Projector) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}

	return time.Now()
}

func (p *Projector) logger() logging.Logger {
	if p.Logger == nil {
		return logging.DefaultLogger
	}

	return p.Logger
}
