// Package processkit is a client for BPMN process engines that are driven by
// asynchronous commands over a publish/subscribe transport.
//
// A Service dispatches commands and waits for their results, and keeps a
// queryable read-model of process instances, with each instance's
// subprocesses grouped beneath it.
package processkit

import (
	"context"
	"sync"

	"github.com/dogmatiq/configkit"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/correlation"
	"github.com/dogmatiq/processkit/executor"
	"github.com/dogmatiq/processkit/gateway"
	"github.com/dogmatiq/processkit/internal/x/loggingx"
	"github.com/dogmatiq/processkit/readmodel"
	"github.com/dogmatiq/processkit/readmodel/memory"
	"github.com/dogmatiq/processkit/router"
	"github.com/dogmatiq/processkit/semaphore"
	"github.com/dogmatiq/processkit/transport"
	transportmemory "github.com/dogmatiq/processkit/transport/memory"
	"golang.org/x/sync/errgroup"
)

// Service dispatches commands to a process engine and maintains a read-model
// of its process instances.
type Service struct {
	opts      *serviceOptions
	logger    logging.Logger
	registry  *correlation.Registry
	gateway   *gateway.Gateway
	query     *readmodel.Query
	router    *router.Router
	projector *readmodel.Projector
	executor  *executor.Executor

	ready chan struct{}
	wg    sync.WaitGroup
}

// New returns a new service configured by the given options.
func New(options ...ServiceOption) *Service {
	opts := resolveServiceOptions(options...)

	if opts.Broker == nil {
		opts.Broker = &transportmemory.Broker{}
	}

	if opts.ReadModel == nil {
		opts.ReadModel = &memory.Repository{}
	}

	s := &Service{
		opts: opts,
		logger: loggingx.WithPrefix(
			opts.Logger,
			"@%s  ",
			opts.Identity.Name,
		),
		registry: &correlation.Registry{},
		ready:    make(chan struct{}),
	}

	s.gateway = &gateway.Gateway{
		Publisher:      opts.Broker,
		Topic:          opts.Topics.Commands,
		Marshaler:      opts.Marshaler,
		Registry:       s.registry,
		Replica:        opts.Identity.Key,
		ReplyTimeout:   opts.ReplyTimeout,
		PublishBackoff: opts.PublishBackoff,
		Semaphore:      semaphore.New(int(opts.OutstandingCallLimit)),
		Logger:         s.logger,
		MeterProvider:  opts.MeterProvider,
		TracerProvider: opts.TracerProvider,
	}

	s.query = &readmodel.Query{
		Repository: opts.ReadModel,
		Logger:     s.logger,
	}

	s.router = &router.Router{
		Subscriber: s.subscriber(),
		Topic:      opts.Topics.Results,
		Marshaler:  opts.Marshaler,
		Registry:   s.registry,
		Replica:    opts.Identity.Key,
		Logger:     s.logger,
	}

	s.projector = &readmodel.Projector{
		Subscriber:   s.subscriber(),
		Topic:        opts.Topics.Events,
		Marshaler:    opts.Marshaler,
		Repository:   opts.ReadModel,
		ApplyBackoff: opts.PublishBackoff,
		Logger:       s.logger,
	}

	if opts.Handler != nil {
		s.executor = &executor.Executor{
			Subscriber:       s.subscriber(),
			Publisher:        opts.Broker,
			CommandTopic:     opts.Topics.Commands,
			ResultTopic:      opts.Topics.Results,
			Marshaler:        opts.Marshaler,
			Handler:          opts.Handler,
			ConcurrencyLimit: int(opts.ConcurrencyLimit),
			PublishBackoff:   opts.PublishBackoff,
			Logger:           s.logger,
			TracerProvider:   opts.TracerProvider,
		}
	}

	return s
}

// Identity returns the identity of the service.
func (s *Service) Identity() configkit.Identity {
	return s.opts.Identity
}

// Dispatch sends c to the process engine and blocks until its result
// arrives. See gateway.Gateway.Dispatch() for the errors it returns.
//
// Results are only received while Run() is running.
func (s *Service) Dispatch(ctx context.Context, c command.Command) (command.Result, error) {
	return s.gateway.Dispatch(ctx, c)
}

// Gateway returns the gateway used to dispatch commands. It provides a typed
// method for each kind of command.
func (s *Service) Gateway() *gateway.Gateway {
	return s.gateway
}

// FindPage returns a page of the process instances that match c, each with
// its subprocesses attached.
func (s *Service) FindPage(
	ctx context.Context,
	c readmodel.Criteria,
	r readmodel.PageRequest,
) (readmodel.Page, error) {
	return s.query.FindPage(ctx, c, r)
}

// Load returns the process instance with the given ID, with all of its
// subprocesses attached.
func (s *Service) Load(ctx context.Context, id string) (*readmodel.ProcessInstance, bool, error) {
	return s.query.Load(ctx, id)
}

// Ready returns a channel that is closed once Run() has subscribed to every
// topic it consumes.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Run routes results, projects events and, if a handler is hosted, executes
// commands until ctx is canceled or an error occurs.
//
// Run must not be called more than once.
func (s *Service) Run(ctx context.Context) error {
	logging.Log(
		s.logger,
		"running @%s service, identity key is %s",
		s.opts.Identity.Name,
		s.opts.Identity.Key,
	)

	go func() {
		s.wg.Wait()
		close(s.ready)
	}()

	parent := ctx
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.router.Run(ctx)
	})

	g.Go(func() error {
		return s.projector.Run(ctx)
	})

	if s.executor != nil {
		g.Go(func() error {
			return s.executor.Run(ctx)
		})
	}

	err := g.Wait()

	if parent.Err() != nil {
		return parent.Err()
	}

	return err
}

// subscriber returns a subscriber that marks the service as ready once its
// first subscription attempt completes.
func (s *Service) subscriber() transport.Subscriber {
	s.wg.Add(1)
	return &readySubscriber{
		Subscriber: s.opts.Broker,
		done:       s.wg.Done,
	}
}

type readySubscriber struct {
	transport.Subscriber

	once sync.Once
	done func()
}

func (s *readySubscriber) Subscribe(ctx context.Context, topic string) (transport.Subscription, error) {
	sub, err := s.Subscriber.Subscribe(ctx, topic)
	s.once.Do(s.done)
	return sub, err
}
