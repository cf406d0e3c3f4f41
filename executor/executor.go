// Package executor consumes commands, passes them to a process engine and
// publishes their results.
package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/envelope"
	"github.com/dogmatiq/processkit/internal/mlog"
	"github.com/dogmatiq/processkit/internal/tracing"
	"github.com/dogmatiq/processkit/retry"
	"github.com/dogmatiq/processkit/transport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrencyLimit is the default number of commands that are
// executed concurrently.
var DefaultConcurrencyLimit = 16

// DefaultPublishAttempts is the default number of times publishing a result
// is attempted before it is abandoned.
var DefaultPublishAttempts = 5

// Handler executes commands against a process engine.
type Handler interface {
	// HandleCommand executes c and returns its result.
	//
	// If it returns an error, the caller receives a command.ErrorResult
	// describing it. A nil result is sent as command.EmptyResult.
	HandleCommand(ctx context.Context, c command.Command) (command.Result, error)
}

// Executor consumes commands from a topic, executes them with a Handler and
// publishes each result to the reply channel given by the command.
type Executor struct {
	// Subscriber is used to subscribe to the command topic.
	Subscriber transport.Subscriber

	// Publisher is used to publish results.
	Publisher transport.Publisher

	// CommandTopic is the topic that commands are consumed from. If it is
	// empty, envelope.DefaultCommandTopic is used.
	CommandTopic string

	// ResultTopic is the topic that results are published to. If it is empty,
	// envelope.DefaultResultTopic is used.
	ResultTopic string

	// Marshaler is used to marshal commands and results.
	Marshaler marshalkit.ValueMarshaler

	// Handler executes the commands.
	Handler Handler

	// ConcurrencyLimit is the maximum number of commands executed at once. If
	// it is zero, DefaultConcurrencyLimit is used.
	ConcurrencyLimit int

	// PublishAttempts is the maximum number of times to attempt publishing a
	// result. If it is zero, DefaultPublishAttempts is used.
	PublishAttempts int

	// PublishBackoff is the strategy used to delay publish retries. If it is
	// nil, retry.DefaultStrategy is used.
	PublishBackoff backoff.Strategy

	// Logger is the target for log messages. If it is nil,
	// logging.DefaultLogger is used.
	Logger logging.Logger

	// TracerProvider is used to create execution spans. If it is nil, the
	// global tracer provider is used.
	TracerProvider trace.TracerProvider

	once   sync.Once
	tracer trace.Tracer
}

// Run executes commands until ctx is canceled or the subscription fails.
//
// Commands that are being executed when the subscription ends are allowed to
// finish before Run returns.
func (x *Executor) Run(ctx context.Context) error {
	x.once.Do(x.init)

	sub, err := x.Subscriber.Subscribe(ctx, x.CommandTopic)
	if err != nil {
		return fmt.Errorf("unable to subscribe to commands: %w", err)
	}
	defer sub.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(x.ConcurrencyLimit)

	for {
		d, err := sub.Next(ctx)
		if err != nil {
			g.Wait()
			return err
		}

		g.Go(func() error {
			x.Execute(ctx, d)
			return nil
		})
	}
}

// Execute executes the command in d and publishes its result.
//
// It returns false if no result could be published, either because the
// command has no reply channel or because publishing failed.
func (x *Executor) Execute(ctx context.Context, d transport.Delivery) bool {
	x.once.Do(x.init)

	env := envelope.Command{}
	env.ID, _ = d.Header(envelope.CommandIDHeader)
	env.ReplyChannel, _ = d.Header(envelope.ReplyChannelHeader)

	m, err := d.Message()
	if err == nil {
		ctx = tracing.Extract(ctx, m.Headers)
		env, err = envelope.UnmarshalCommand(x.Marshaler, m)
	}

	if err != nil {
		if env.ReplyChannel == "" {
			mlog.LogMalformedCommand(x.Logger, env, err, false)
			return false
		}

		mlog.LogMalformedCommand(x.Logger, env, err, true)

		return x.reply(ctx, env, command.ErrorResult{
			Code:    command.Malformed,
			Message: fmt.Sprintf("unable to decode command: %s", err),
		})
	}

	r := x.handle(ctx, env)
	mlog.LogExecute(x.Logger, env, r)

	return x.reply(ctx, env, r)
}

// handle passes the command in env to the handler and returns its result.
func (x *Executor) handle(ctx context.Context, env envelope.Command) command.Result {
	ctx, span := x.tracer.Start(
		ctx,
		"execute "+string(env.Payload.Kind()),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(tracing.CommandAttributes(env)...),
	)
	defer span.End()

	if err := env.Payload.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return command.ErrorResult{Code: command.Invalid, Message: err.Error()}
	}

	r, err := x.Handler.HandleCommand(ctx, env.Payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return command.NewErrorResult(err)
	}

	if r == nil {
		return command.EmptyResult{}
	}

	return r
}

// reply publishes r to the reply channel of env.
func (x *Executor) reply(ctx context.Context, env envelope.Command, r command.Result) bool {
	m, err := envelope.MarshalResult(x.Marshaler, envelope.PackResult(env, r))
	if err != nil {
		logging.Log(x.Logger, "unable to marshal %T result for command %s: %s", r, env.ID, err)
		return false
	}

	err = retry.Do(
		ctx,
		x.PublishBackoff,
		x.PublishAttempts,
		func(ctx context.Context) error {
			return x.Publisher.Publish(ctx, x.ResultTopic, m)
		},
		func(_ int, err error) {
			logging.Log(x.Logger, "unable to publish result for command %s, retrying: %s", env.ID, err)
		},
	)
	if err != nil {
		logging.Log(x.Logger, "unable to publish result for command %s: %s", env.ID, err)
		return false
	}

	return true
}

// init applies defaults to the executor's configuration.
func (x *Executor) init() {
	if x.CommandTopic == "" {
		x.CommandTopic = envelope.DefaultCommandTopic
	}

	if x.ResultTopic == "" {
		x.ResultTopic = envelope.DefaultResultTopic
	}

	if x.ConcurrencyLimit == 0 {
		x.ConcurrencyLimit = DefaultConcurrencyLimit
	}

	if x.PublishAttempts == 0 {
		x.PublishAttempts = DefaultPublishAttempts
	}

	if x.Logger == nil {
		x.Logger = logging.DefaultLogger
	}

	tp := x.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	x.tracer = tp.Tracer(tracing.InstrumentationName)
}
