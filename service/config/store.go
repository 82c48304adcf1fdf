package config

import (
	"context"
	"io"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/activitystore/gormengine"
	"github.com/mallorca-activities/activitystore-go/activitystore/postgresengine"
	"github.com/mallorca-activities/activitystore-go/activitystore/restengine"
)

// OpenStore opens the configured backend and returns it with its closer.
// The telemetry may be disabled, in which case the store records no spans or metrics.
//
//nolint:gocyclo
func (cfg Config) OpenStore(ctx context.Context, logger Logger, telemetry *Telemetry) (activitystore.Store, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case BackendREST:
		options := []restengine.Option{
			restengine.WithContextualLogger(logger),
			restengine.WithLocation(cfg.Location()),
		}

		if cfg.RESTAPIKey != "" {
			options = append(options, restengine.WithAPIKey(cfg.RESTAPIKey))
		}

		if telemetry != nil && telemetry.Enabled() {
			options = append(options, restengine.WithMetrics(telemetry.Metrics), restengine.WithTracing(telemetry.Tracing))
		}

		store, err := restengine.NewStore(cfg.RESTURL, options...)
		if err != nil {
			return nil, noop, err
		}

		return store, noop, nil

	case BackendGorm:
		options := []gormengine.Option{
			gormengine.WithContextualLogger(logger),
			gormengine.WithLocation(cfg.Location()),
		}

		if cfg.DatabaseSchema != "" {
			options = append(options, gormengine.WithSchema(cfg.DatabaseSchema))
		}

		if telemetry != nil && telemetry.Enabled() {
			options = append(options, gormengine.WithMetrics(telemetry.Metrics), gormengine.WithTracing(telemetry.Tracing))
		}

		store, err := gormengine.OpenPostgres(cfg.DatabaseURL, options...)
		if err != nil {
			return nil, noop, err
		}

		return store, noop, nil

	default:
		return cfg.openPostgresStore(ctx, logger, telemetry)
	}
}

func (cfg Config) openPostgresStore(ctx context.Context, logger Logger, telemetry *Telemetry) (activitystore.Store, func(), error) {
	options := []postgresengine.Option{
		postgresengine.WithContextualLogger(logger),
		postgresengine.WithLocation(cfg.Location()),
	}

	if cfg.DatabaseSchema != "" {
		options = append(options, postgresengine.WithSchema(cfg.DatabaseSchema))
	}

	if telemetry != nil && telemetry.Enabled() {
		options = append(options, postgresengine.WithMetrics(telemetry.Metrics), postgresengine.WithTracing(telemetry.Tracing))
	}

	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	switch cfg.AdapterType {
	case AdapterSQLDB:
		primary, err := OpenSQLDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, closeAll, err
		}

		closers = append(closers, closer(primary))

		if cfg.ReplicaURL == "" {
			store, err := postgresengine.NewStoreFromSQLDB(primary, options...)
			return store, closeAll, err
		}

		replica, err := OpenSQLDB(ctx, cfg.ReplicaURL)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}

		closers = append(closers, closer(replica))
		store, err := postgresengine.NewStoreFromSQLDBAndReplica(primary, replica, options...)

		return store, closeAll, err

	case AdapterSQLX:
		primary, err := OpenSQLX(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, closeAll, err
		}

		closers = append(closers, closer(primary))

		if cfg.ReplicaURL == "" {
			store, err := postgresengine.NewStoreFromSQLX(primary, options...)
			return store, closeAll, err
		}

		replica, err := OpenSQLX(ctx, cfg.ReplicaURL)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}

		closers = append(closers, closer(replica))
		store, err := postgresengine.NewStoreFromSQLXAndReplica(primary, replica, options...)

		return store, closeAll, err

	default:
		primary, err := OpenPGXPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, closeAll, err
		}

		closers = append(closers, primary.Close)

		if cfg.ReplicaURL == "" {
			store, err := postgresengine.NewStoreFromPGXPool(primary, options...)
			return store, closeAll, err
		}

		replica, err := OpenPGXPool(ctx, cfg.ReplicaURL)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}

		closers = append(closers, replica.Close)
		store, err := postgresengine.NewStoreFromPGXPoolAndReplica(primary, replica, options...)

		return store, closeAll, err
	}
}

func closer(c io.Closer) func() {
	return func() { _ = c.Close() }
}
