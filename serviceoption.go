package processkit

import (
	"fmt"
	"reflect"
	"runtime"
	"time"

	"github.com/dogmatiq/configkit"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/marshalkit/codec"
	"github.com/dogmatiq/marshalkit/codec/json"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/envelope"
	"github.com/dogmatiq/processkit/event"
	"github.com/dogmatiq/processkit/executor"
	"github.com/dogmatiq/processkit/gateway"
	"github.com/dogmatiq/processkit/readmodel"
	"github.com/dogmatiq/processkit/retry"
	"github.com/dogmatiq/processkit/transport"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	// DefaultIdentityName is the name of the service's identity.
	//
	// It is overridden by the WithIdentity() option.
	DefaultIdentityName = "processkit"

	// DefaultReplyTimeout is the default duration the service waits for the
	// result of a command.
	//
	// It is overridden by the WithReplyTimeout() option.
	DefaultReplyTimeout = gateway.DefaultReplyTimeout

	// DefaultPublishBackoff is the default backoff strategy for publish
	// retries.
	//
	// It is overridden by the WithPublishBackoff() option.
	DefaultPublishBackoff backoff.Strategy = retry.DefaultStrategy

	// DefaultConcurrencyLimit is the default number of commands that a hosted
	// handler may execute concurrently.
	//
	// It is overridden by the WithConcurrencyLimit() option.
	DefaultConcurrencyLimit = uint(runtime.GOMAXPROCS(0) * 2)

	// DefaultOutstandingCallLimit is the default number of dispatched
	// commands that may be awaiting their results at the same time. Zero
	// means there is no limit.
	//
	// It is overridden by the WithOutstandingCallLimit() option.
	DefaultOutstandingCallLimit uint

	// DefaultTopics is the default set of topics.
	//
	// It is overridden by the WithTopics() option.
	DefaultTopics = Topics{
		Commands: envelope.DefaultCommandTopic,
		Results:  envelope.DefaultResultTopic,
		Events:   envelope.DefaultEventTopic,
	}

	// DefaultLogger is the default target for log messages produced by the
	// service.
	//
	// It is overridden by the WithLogger() option.
	DefaultLogger = logging.DefaultLogger
)

// ServiceOption configures the behavior of a service.
type ServiceOption func(*serviceOptions)

// Broker is a transport that can both publish and subscribe.
type Broker interface {
	transport.Publisher
	transport.Subscriber
}

// Topics is the set of topics used by a service.
type Topics struct {
	Commands string
	Results  string
	Events   string
}

// WithIdentity returns a service option that sets the identity of the
// service.
//
// The identity key is used to build the reply channel tokens of the commands
// dispatched by this service, so it must be unique to each replica that
// shares a broker. It must be an RFC 4122 UUID. The name must be a non-empty
// printable string without whitespace. WithIdentity panics if either is
// invalid.
//
// If this option is omitted, the identity name is DefaultIdentityName and
// the key is a random UUID.
func WithIdentity(name, key string) ServiceOption {
	id, err := configkit.NewIdentity(name, key)
	if err != nil {
		panic(fmt.Sprintf("invalid identity: %s", err))
	}

	return func(opts *serviceOptions) {
		opts.Identity = id
	}
}

// WithBroker returns a service option that sets the transport used to carry
// commands, results and events.
//
// If this option is omitted or b is nil, the service uses a new in-memory
// broker, which is only useful when the command handler is hosted by the
// same service.
func WithBroker(b Broker) ServiceOption {
	return func(opts *serviceOptions) {
		opts.Broker = b
	}
}

// WithTopics returns a service option that sets the topics used for commands,
// results and events.
//
// Any empty topic is replaced by the corresponding topic in DefaultTopics.
func WithTopics(t Topics) ServiceOption {
	return func(opts *serviceOptions) {
		opts.Topics = t
	}
}

// WithReplyTimeout returns a service option that sets the duration the
// service waits for the result of a command.
//
// If this option is omitted or d is zero DefaultReplyTimeout is used.
func WithReplyTimeout(d time.Duration) ServiceOption {
	if d < 0 {
		panic("duration must not be negative")
	}

	return func(opts *serviceOptions) {
		opts.ReplyTimeout = d
	}
}

// WithPublishBackoff returns a service option that sets the backoff strategy
// used to delay publish retries.
//
// If this option is omitted or s is nil DefaultPublishBackoff is used.
func WithPublishBackoff(s backoff.Strategy) ServiceOption {
	return func(opts *serviceOptions) {
		opts.PublishBackoff = s
	}
}

// WithConcurrencyLimit returns a service option that limits the number of
// commands executed concurrently by a hosted handler. It has no effect unless
// the WithHandler() option is also used.
//
// If this option is omitted or n is zero DefaultConcurrencyLimit is used.
func WithConcurrencyLimit(n uint) ServiceOption {
	return func(opts *serviceOptions) {
		opts.ConcurrencyLimit = n
	}
}

// WithOutstandingCallLimit returns a service option that limits the number of
// dispatched commands that may be awaiting their results at the same time.
// Callers beyond the limit block until an earlier call completes or their
// context is canceled.
//
// If this option is omitted or n is zero DefaultOutstandingCallLimit is used.
func WithOutstandingCallLimit(n uint) ServiceOption {
	return func(opts *serviceOptions) {
		opts.OutstandingCallLimit = n
	}
}

// WithReadModel returns a service option that sets the repository that
// process instances are projected into and queried from.
//
// If this option is omitted or r is nil, an in-memory repository is used.
func WithReadModel(r readmodel.Repository) ServiceOption {
	return func(opts *serviceOptions) {
		opts.ReadModel = r
	}
}

// WithHandler returns a service option that hosts a command handler on the
// service, in place of a remote process engine.
//
// If this option is omitted, commands are executed by whichever executor is
// subscribed to the command topic.
func WithHandler(h executor.Handler) ServiceOption {
	return func(opts *serviceOptions) {
		opts.Handler = h
	}
}

// NewDefaultMarshaler returns the default marshaler, which supports every
// command, result, event and read-model type.
//
// It is used if the WithMarshaler() option is omitted.
func NewDefaultMarshaler() marshalkit.ValueMarshaler {
	var types []reflect.Type
	types = append(types, command.Types()...)
	types = append(types, event.Types()...)
	types = append(types, readmodel.Types()...)

	m, err := codec.NewMarshaler(
		types,
		[]codec.Codec{
			&json.Codec{},
		},
	)
	if err != nil {
		panic(err)
	}

	return m
}

// WithMarshaler returns a service option that sets the marshaler used to
// marshal and unmarshal commands, results and events.
//
// If this option is omitted or m is nil, NewDefaultMarshaler() is called to
// obtain the default marshaler.
func WithMarshaler(m marshalkit.ValueMarshaler) ServiceOption {
	return func(opts *serviceOptions) {
		opts.Marshaler = m
	}
}

// WithLogger returns a service option that sets the target for log messages
// produced by the service.
//
// If this option is omitted or l is nil DefaultLogger is used.
func WithLogger(l logging.Logger) ServiceOption {
	return func(opts *serviceOptions) {
		opts.Logger = l
	}
}

// WithTracerProvider returns a service option that sets the provider of the
// tracers used to trace command dispatch and execution.
//
// If this option is omitted or p is nil, the global tracer provider is used.
func WithTracerProvider(p trace.TracerProvider) ServiceOption {
	return func(opts *serviceOptions) {
		opts.TracerProvider = p
	}
}

// WithMeterProvider returns a service option that sets the provider of the
// meters used to record dispatch metrics.
//
// If this option is omitted or p is nil, the global meter provider is used.
func WithMeterProvider(p metric.MeterProvider) ServiceOption {
	return func(opts *serviceOptions) {
		opts.MeterProvider = p
	}
}

// serviceOptions is a container for a fully-resolved set of service options.
type serviceOptions struct {
	Identity             configkit.Identity
	Broker               Broker
	Topics               Topics
	ReplyTimeout         time.Duration
	PublishBackoff       backoff.Strategy
	ConcurrencyLimit     uint
	OutstandingCallLimit uint
	ReadModel            readmodel.Repository
	Handler              executor.Handler
	Marshaler            marshalkit.ValueMarshaler
	Logger               logging.Logger
	TracerProvider       trace.TracerProvider
	MeterProvider        metric.MeterProvider
}

// resolveServiceOptions returns a fully-populated set of service options
// built from the given set of option functions.
//
// The tracer and meter providers are left nil when they are not set, in
// which case the components use the global providers.
func resolveServiceOptions(options ...ServiceOption) *serviceOptions {
	opts := &serviceOptions{}

	for _, o := range options {
		o(opts)
	}

	if opts.Identity.Key == "" {
		opts.Identity = configkit.MustNewIdentity(
			DefaultIdentityName,
			uuid.NewString(),
		)
	}

	if opts.Topics.Commands == "" {
		opts.Topics.Commands = DefaultTopics.Commands
	}

	if opts.Topics.Results == "" {
		opts.Topics.Results = DefaultTopics.Results
	}

	if opts.Topics.Events == "" {
		opts.Topics.Events = DefaultTopics.Events
	}

	if opts.ReplyTimeout == 0 {
		opts.ReplyTimeout = DefaultReplyTimeout
	}

	if opts.PublishBackoff == nil {
		opts.PublishBackoff = DefaultPublishBackoff
	}

	if opts.ConcurrencyLimit == 0 {
		opts.ConcurrencyLimit = DefaultConcurrencyLimit
	}

	if opts.OutstandingCallLimit == 0 {
		opts.OutstandingCallLimit = DefaultOutstandingCallLimit
	}

	if opts.Marshaler == nil {
		opts.Marshaler = NewDefaultMarshaler()
	}

	if opts.Logger == nil {
		opts.Logger = DefaultLogger
	}

	return opts
}
