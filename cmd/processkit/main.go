// Command processkit runs a processkit service.
//
// It routes the results of commands dispatched by the service and projects
// process instance events into a read-model. When PROCESSKIT_SIMULATE is set,
// it also hosts an in-memory process engine simulator.
//
// Configuration is read from PROCESSKIT_* environment variables, and from a
// .env file in the working directory, if present.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/processkit"
	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/internal/simulator"
	"github.com/dogmatiq/processkit/internal/x/loggingx"
	"go.uber.org/zap"
)

// newContext returns a cancelable context that is canceled when the process
// receives a SIGTERM or SIGINT.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	ctx, cancel := newContext()
	defer cancel()

	if err := run(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func run(ctx context.Context) error {
	if err := loadDotEnv(".env"); err != nil {
		return err
	}

	cfg, err := parseConfig(nil)
	if err != nil {
		return err
	}

	z, err := newZapLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer z.Sync()

	logger := loggingx.Zap{Logger: z}

	shutdown, err := setupTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	broker, closeBroker, err := openBroker(cfg)
	if err != nil {
		return err
	}
	defer closeBroker()

	repo, closeRepo, err := openReadModel(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	marshaler := processkit.NewDefaultMarshaler()

	options := []processkit.ServiceOption{
		processkit.WithIdentity(cfg.IdentityName, cfg.identityKey()),
		processkit.WithBroker(broker),
		processkit.WithTopics(processkit.Topics{
			Commands: cfg.CommandTopic,
			Results:  cfg.ResultTopic,
			Events:   cfg.EventTopic,
		}),
		processkit.WithReplyTimeout(cfg.ReplyTimeout),
		processkit.WithConcurrencyLimit(cfg.ConcurrencyLimit),
		processkit.WithOutstandingCallLimit(cfg.OutstandingCallLimit),
		processkit.WithReadModel(repo),
		processkit.WithMarshaler(marshaler),
		processkit.WithLogger(logger),
	}

	if cfg.Simulate {
		defs, err := loadDefinitions(cfg.SimulatorDefinitions)
		if err != nil {
			return err
		}

		engine := &simulator.Engine{
			Definitions: defs,
			Publisher:   broker,
			EventTopic:  cfg.EventTopic,
			Marshaler:   marshaler,
			Logger:      loggingx.WithPrefix(logger, "simulator  "),
		}

		options = append(options, processkit.WithHandler(engine.Mux()))
	}

	svc := processkit.New(options...)

	go syncDefinitions(ctx, svc, logger)

	return svc.Run(ctx)
}

// newZapLogger returns the production zap logger, at the debug level if
// debug is true.
func newZapLogger(debug bool) (*zap.Logger, error) {
	c := zap.NewProductionConfig()

	if debug {
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return c.Build()
}

// syncDefinitions logs the process definitions deployed to the engine once
// the service is ready.
func syncDefinitions(
	ctx context.Context,
	svc *processkit.Service,
	logger logging.Logger,
) {
	select {
	case <-ctx.Done():
		return
	case <-svc.Ready():
	}

	defs, err := svc.Gateway().SyncProcessDefinitions(ctx)
	if err != nil {
		logging.Log(logger, "unable to synchronize process definitions: %s", err)
		return
	}

	for _, d := range defs {
		logDefinition(logger, d)
	}
}

func logDefinition(logger logging.Logger, d command.ProcessDefinition) {
	logging.Log(
		logger,
		"process definition %s is deployed, key is %s, version %d",
		d.ID,
		d.Key,
		d.Version,
	)
}
