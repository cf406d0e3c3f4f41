package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dogmatiq/configkit"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// envPrefix is the prefix of every environment variable read by the binary.
const envPrefix = "PROCESSKIT_"

// Read-model storage kinds.
const (
	memoryReadModel   = "memory"
	boltReadModel     = "bolt"
	postgresReadModel = "postgres"
	sqliteReadModel   = "sqlite"
)

type config struct {
	IdentityName string `env:"IDENTITY_NAME" envDefault:"processkit"`
	IdentityKey  string `env:"IDENTITY_KEY"`

	RedisURL     string `env:"REDIS_URL"`
	CommandTopic string `env:"COMMAND_TOPIC"`
	ResultTopic  string `env:"RESULT_TOPIC"`
	EventTopic   string `env:"EVENT_TOPIC"`

	ReadModel string `env:"READMODEL" envDefault:"memory"`
	BoltPath  string `env:"BOLT_PATH" envDefault:"processkit.boltdb"`
	DSN       string `env:"DSN"`

	ReplyTimeout         time.Duration `env:"REPLY_TIMEOUT" envDefault:"30s"`
	ConcurrencyLimit     uint          `env:"CONCURRENCY_LIMIT"`
	OutstandingCallLimit uint          `env:"OUTSTANDING_CALL_LIMIT"`

	Simulate             bool   `env:"SIMULATE"`
	SimulatorDefinitions string `env:"SIMULATOR_DEFINITIONS"`

	Debug        bool   `env:"DEBUG"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// parseConfig parses the configuration from the given environment. If
// environ is nil, the process environment is used.
func parseConfig(environ map[string]string) (config, error) {
	var cfg config

	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      envPrefix,
		Environment: environ,
	}); err != nil {
		return config{}, fmt.Errorf("unable to parse configuration: %w", err)
	}

	switch cfg.ReadModel {
	case memoryReadModel, boltReadModel:
	case postgresReadModel, sqliteReadModel:
		if cfg.DSN == "" {
			return config{}, fmt.Errorf("%sDSN must be set when using the %s read-model", envPrefix, cfg.ReadModel)
		}
	default:
		return config{}, fmt.Errorf("unrecognized read-model: %q", cfg.ReadModel)
	}

	if cfg.ReplyTimeout < 0 {
		return config{}, fmt.Errorf("%sREPLY_TIMEOUT must not be negative", envPrefix)
	}

	if err := configkit.ValidateIdentityName(cfg.IdentityName); err != nil {
		return config{}, fmt.Errorf("%sIDENTITY_NAME is invalid: %w", envPrefix, err)
	}

	// An empty key is replaced with a random one by identityKey().
	if cfg.IdentityKey != "" {
		if err := configkit.ValidateIdentityKey(cfg.IdentityKey); err != nil {
			return config{}, fmt.Errorf("%sIDENTITY_KEY is invalid: %w", envPrefix, err)
		}
	}

	return cfg, nil
}

// identityKey returns the configured identity key, or a random key if none
// is configured.
func (c config) identityKey() string {
	if c.IdentityKey != "" {
		return c.IdentityKey
	}

	return uuid.NewString()
}

// loadDotEnv loads environment variables from the file at path, if it
// exists. Variables that are already set are not overridden.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}
