package main

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/config"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing/eventhandling"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore/boltengine"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore/memoryengine"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore/postgresengine"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/example/library"
)

// storage bundles what the configured engine provides: the event store,
// a transaction manager for the projection and the projection's counters.
type storage struct {
	events    eventsourcing.EventStore
	txManager eventhandling.TransactionManager
	counters  library.CounterStore
	closers   []func()
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStorage(ctx context.Context, conf *config.Config, options ...eventstore.Option) (*storage, error) {
	options = append(options, eventstore.WithTableName(conf.Storage.TableName))

	switch conf.Storage.Engine {
	case config.EngineMemory:
		return openMemoryStorage(options...)
	case config.EngineBolt:
		return openBoltStorage(conf.Bolt, options...)
	case config.EnginePostgres:
		return openPostgresStorage(ctx, conf.Postgres, options...)
	default:
		return nil, config.ErrUnknownEngine
	}
}

func openMemoryStorage(options ...eventstore.Option) (*storage, error) {
	events, err := memoryengine.NewEventStore(options...)
	if err != nil {
		return nil, err
	}

	return &storage{
		events: events,
		txManager: eventhandling.TransactionManagerFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		}),
		counters: library.NewMemoryCounterStore(),
	}, nil
}

func openBoltStorage(conf config.Bolt, options ...eventstore.Option) (*storage, error) {
	db, err := boltengine.Open(conf.File, conf.OpenTimeout)
	if err != nil {
		return nil, err
	}

	s := &storage{closers: []func(){func() { _ = db.Close() }}}

	if s.events, err = boltengine.NewEventStore(db, library.NewEventRegistry(), options...); err != nil {
		s.Close()
		return nil, err
	}

	if s.txManager, err = boltengine.NewTransactionManager(db); err != nil {
		s.Close()
		return nil, err
	}

	if s.counters, err = library.NewBoltCounterStore(db); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func openPostgresStorage(ctx context.Context, conf config.Postgres, options ...eventstore.Option) (*storage, error) {
	primary, err := openPGXPool(ctx, conf, conf.DSN)
	if err != nil {
		return nil, err
	}

	s := &storage{closers: []func(){primary.Close}}

	var events *postgresengine.EventStore
	if conf.ReplicaDSN != "" {
		replica, replicaErr := openPGXPool(ctx, conf, conf.ReplicaDSN)
		if replicaErr != nil {
			s.Close()
			return nil, replicaErr
		}

		s.closers = append(s.closers, replica.Close)
		events, err = postgresengine.NewEventStoreFromPGXPoolAndReplica(primary, replica, library.NewEventRegistry(), options...)
	} else {
		events, err = postgresengine.NewEventStoreFromPGXPool(primary, library.NewEventRegistry(), options...)
	}

	if err != nil {
		s.Close()
		return nil, err
	}

	counters, err := library.NewPostgresCounterStore(primary)
	if err != nil {
		s.Close()
		return nil, err
	}

	if err = errors.Join(events.EnsureSchema(ctx), counters.EnsureSchema(ctx)); err != nil {
		s.Close()
		return nil, err
	}

	txManager, err := postgresengine.NewPGXTransactionManager(primary)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.events, s.txManager, s.counters = events, txManager, counters

	return s, nil
}

func openPGXPool(ctx context.Context, conf config.Postgres, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := conf.PGXPoolConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
