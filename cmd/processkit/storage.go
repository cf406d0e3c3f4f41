package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dogmatiq/processkit"
	"github.com/dogmatiq/processkit/internal/x/bboltx"
	"github.com/dogmatiq/processkit/readmodel"
	"github.com/dogmatiq/processkit/readmodel/boltdb"
	"github.com/dogmatiq/processkit/readmodel/memory"
	"github.com/dogmatiq/processkit/readmodel/sqlreadmodel"
	transportmemory "github.com/dogmatiq/processkit/transport/memory"
	transportredis "github.com/dogmatiq/processkit/transport/redis"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

// sqlDriverNames maps each SQL read-model kind to its database/sql driver.
var sqlDriverNames = map[string]string{
	postgresReadModel: "postgres",
	sqliteReadModel:   "sqlite",
}

// openBroker returns the broker described by cfg.
//
// Without a Redis URL the broker is in-memory, which is only useful in
// combination with the simulator.
func openBroker(cfg config) (processkit.Broker, func(), error) {
	if cfg.RedisURL == "" {
		return &transportmemory.Broker{}, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	c := redis.NewClient(opts)

	return &transportredis.Broker{Client: c}, func() { c.Close() }, nil
}

// openReadModel returns the read-model repository described by cfg, creating
// its schema if necessary.
func openReadModel(ctx context.Context, cfg config) (readmodel.Repository, func(), error) {
	switch cfg.ReadModel {
	case boltReadModel:
		db, err := bboltx.Open(ctx, cfg.BoltPath, 0, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open %s: %w", cfg.BoltPath, err)
		}

		return &boltdb.Repository{
			DB:        db,
			Marshaler: processkit.NewDefaultMarshaler(),
		}, func() { db.Close() }, nil

	case postgresReadModel, sqliteReadModel:
		db, err := sql.Open(sqlDriverNames[cfg.ReadModel], cfg.DSN)
		if err != nil {
			return nil, nil, err
		}

		if cfg.ReadModel == sqliteReadModel {
			db.SetMaxOpenConns(1)
		}

		if err := sqlreadmodel.CreateSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("unable to create the read-model schema: %w", err)
		}

		return &sqlreadmodel.Repository{DB: db}, func() { db.Close() }, nil

	default:
		return &memory.Repository{}, func() {}, nil
	}
}
