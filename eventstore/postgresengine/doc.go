// Package postgresengine provides a PostgreSQL implementation of eventsourcing.EventStore.
//
// All events live in one table, keyed by aggregate type, aggregate id and sequence number.
// Appends are a single INSERT that only writes if the stored maximum sequence number of the aggregate
// is directly followed by the new events, so concurrent writers can never interleave.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Atomic event appending with concurrency conflict detection
//   - Optional read replica for eventually consistent reads
//   - Transaction managers that let event handlers write projections and events in one transaction
//   - Logging, metrics and tracing through eventstore options
//
// Usage examples:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewEventStoreFromPGXPool(db, registry, eventstore.WithTableName("my_events"))
//	_ = store.EnsureSchema(ctx)
//
//	txManager, _ := postgresengine.NewPGXTransactionManager(db)
//	listener, _ := eventhandling.NewTransactionalListener(projection, txManager)
package postgresengine
