// Package gateway sends commands to a remote process engine and waits for
// their results.
package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/correlation"
	"github.com/dogmatiq/processkit/envelope"
	"github.com/dogmatiq/processkit/internal/mlog"
	"github.com/dogmatiq/processkit/internal/tracing"
	"github.com/dogmatiq/processkit/retry"
	"github.com/dogmatiq/processkit/semaphore"
	"github.com/dogmatiq/processkit/transport"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	// DefaultReplyTimeout is the default time to wait for the result of a
	// command.
	DefaultReplyTimeout = 30 * time.Second

	// DefaultPublishAttempts is the default number of times publishing a
	// command is attempted before the dispatch fails.
	DefaultPublishAttempts = 5
)

// ErrTimeout is returned when no result arrives before the reply timeout.
var ErrTimeout = correlation.ErrTimeout

// Gateway publishes commands and blocks until their results are routed back
// to it.
//
// Results are delivered to the gateway's registry by a router.Router
// configured with the same Registry and Replica.
type Gateway struct {
	// Publisher is used to publish command messages.
	Publisher transport.Publisher

	// Topic is the topic that commands are published to. If it is empty,
	// envelope.DefaultCommandTopic is used.
	Topic string

	// Marshaler is used to marshal command payloads.
	Marshaler marshalkit.ValueMarshaler

	// Registry is the set of calls awaiting their results. If it is nil, a
	// new registry is created when the gateway is first used.
	Registry *correlation.Registry

	// Replica is the ID of this gateway instance, used to build reply channel
	// tokens. If it is empty, a UUID is generated when the gateway is first
	// used.
	Replica string

	// ReplyTimeout is the maximum time to wait for a result. If it is zero,
	// DefaultReplyTimeout is used.
	ReplyTimeout time.Duration

	// PublishAttempts is the maximum number of times to attempt publishing a
	// command. If it is zero, DefaultPublishAttempts is used.
	PublishAttempts int

	// PublishBackoff is the strategy used to delay publish retries. If it is
	// nil, retry.DefaultStrategy is used.
	PublishBackoff backoff.Strategy

	// Semaphore limits the number of outstanding calls. The zero-value
	// imposes no limit.
	Semaphore semaphore.Semaphore

	// Logger is the target for log messages. If it is nil,
	// logging.DefaultLogger is used.
	Logger logging.Logger

	// MeterProvider is used to create the gateway's metrics. If it is nil,
	// the global meter provider is used.
	MeterProvider metric.MeterProvider

	// TracerProvider is used to create dispatch spans. If it is nil, the
	// global tracer provider is used.
	TracerProvider trace.TracerProvider

	// GenerateID is used to generate correlation IDs. If it is nil, a UUID is
	// generated.
	GenerateID func() string

	once      sync.Once
	packer    envelope.Packer
	tracer    trace.Tracer
	dispatchC metric.Int64Counter
	latency   metric.Float64Histogram
	inFlight  metric.Int64UpDownCounter
}

// Dispatch publishes c and blocks until its result arrives, the reply
// timeout elapses or ctx is canceled.
//
// The returned error is an InvalidCommandError, DispatchFailedError,
// RemoteCommandError, ErrTimeout or ctx.Err(). A RemoteCommandError is
// accompanied by the command.ErrorResult that caused it.
func (g *Gateway) Dispatch(ctx context.Context, c command.Command) (command.Result, error) {
	g.once.Do(g.init)

	if err := c.Validate(); err != nil {
		return nil, InvalidCommandError{c.Kind(), err}
	}

	if err := g.Semaphore.Acquire(ctx); err != nil {
		return nil, err
	}
	defer g.Semaphore.Release()

	env, _ := g.packer.PackCommand(c)

	ctx, span := g.tracer.Start(
		ctx,
		"dispatch "+string(c.Kind()),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(tracing.CommandAttributes(env)...),
	)
	defer span.End()

	start := time.Now()
	r, outcome, err := g.dispatch(ctx, env, start)

	attrs := metric.WithAttributes(
		tracing.CommandKindKey.String(string(c.Kind())),
		tracing.OutcomeKey.String(outcome),
	)
	g.dispatchC.Add(ctx, 1, attrs)
	g.latency.Record(ctx, time.Since(start).Seconds(), attrs)

	span.SetAttributes(tracing.OutcomeKey.String(outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return r, err
}

// dispatch registers a pending call for env, publishes it and waits for the
// result. It returns the outcome used to label metrics.
func (g *Gateway) dispatch(
	ctx context.Context,
	env envelope.Command,
	start time.Time,
) (command.Result, string, error) {
	kind := env.Payload.Kind()

	m, err := envelope.MarshalCommand(g.Marshaler, env)
	if err != nil {
		return nil, tracing.OutcomeDispatchFailed, DispatchFailedError{kind, 0, err}
	}

	tracing.Inject(ctx, m.Headers)

	// The call must be registered before publishing, otherwise a fast result
	// may be dropped as unroutable.
	call, err := g.Registry.Register(env.ID, start.Add(g.ReplyTimeout))
	if err != nil {
		panic(err)
	}

	inFlight := metric.WithAttributes(tracing.CommandKindKey.String(string(kind)))
	g.inFlight.Add(ctx, 1, inFlight)
	defer g.inFlight.Add(ctx, -1, inFlight)

	attempts := 0
	err = retry.Do(
		ctx,
		g.PublishBackoff,
		g.PublishAttempts,
		func(ctx context.Context) error {
			attempts++
			mlog.LogDispatch(g.Logger, env, attempts)
			return g.Publisher.Publish(ctx, g.Topic, m)
		},
		func(_ int, err error) {
			mlog.LogPublishFailure(g.Logger, env, err, true)
		},
	)
	if err != nil {
		g.Registry.Cancel(env.ID, err)
		mlog.LogPublishFailure(g.Logger, env, err, false)
		return nil, tracing.OutcomeDispatchFailed, DispatchFailedError{kind, attempts, err}
	}

	rep := g.Registry.Wait(ctx, call)

	if rep.Err != nil {
		switch {
		case errors.Is(rep.Err, correlation.ErrTimeout):
			mlog.LogTimeout(g.Logger, env, g.ReplyTimeout)
			return nil, tracing.OutcomeTimeout, rep.Err
		case ctx.Err() != nil && errors.Is(rep.Err, ctx.Err()):
			return nil, tracing.OutcomeCanceled, rep.Err
		default:
			return nil, tracing.OutcomeMalformedResult, rep.Err
		}
	}

	r := rep.Value.(command.Result)
	mlog.LogResult(g.Logger, env, r, time.Since(start))

	if e, ok := r.(command.ErrorResult); ok {
		return r, tracing.OutcomeRemoteError, RemoteCommandError{kind, e.Code, e.Message}
	}

	return r, tracing.OutcomeSuccess, nil
}

// init applies defaults to the gateway's configuration.
func (g *Gateway) init() {
	if g.Topic == "" {
		g.Topic = envelope.DefaultCommandTopic
	}

	if g.Registry == nil {
		g.Registry = &correlation.Registry{}
	}

	if g.Replica == "" {
		g.Replica = uuid.NewString()
	}

	if g.ReplyTimeout == 0 {
		g.ReplyTimeout = DefaultReplyTimeout
	}

	if g.PublishAttempts == 0 {
		g.PublishAttempts = DefaultPublishAttempts
	}

	if g.Logger == nil {
		g.Logger = logging.DefaultLogger
	}

	mp := g.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	tp := g.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	g.packer = envelope.Packer{
		Replica:    g.Replica,
		GenerateID: g.GenerateID,
	}

	g.tracer = tp.Tracer(tracing.InstrumentationName)

	meter := mp.Meter(tracing.InstrumentationName)
	var err error

	g.dispatchC, err = meter.Int64Counter(
		"processkit.gateway.commands",
		metric.WithDescription("The number of commands dispatched, by kind and outcome."),
		metric.WithUnit("{command}"),
	)
	must(err)

	g.latency, err = meter.Float64Histogram(
		"processkit.gateway.duration",
		metric.WithDescription("The time from dispatching a command to receiving its result."),
		metric.WithUnit("s"),
	)
	must(err)

	g.inFlight, err = meter.Int64UpDownCounter(
		"processkit.gateway.in_flight",
		metric.WithDescription("The number of commands awaiting their results."),
		metric.WithUnit("{command}"),
	)
	must(err)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
