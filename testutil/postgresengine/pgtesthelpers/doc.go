// Package pgtesthelpers provides test utilities for PostgreSQL EventStore testing with multi-adapter support.
//
// This package enables testing across different PostgreSQL drivers (pgx, sql.DB, sqlx.DB) through
// a unified Wrapper interface. Test adapter selection is controlled via the ADAPTER_TYPE environment
// variable, enabling comprehensive testing of all database implementations.
//
// Every wrapper works on its own events table, created for the test and dropped at cleanup,
// so tests can run in parallel on one database.
//
// Environment Variables:
//
//	EVENTSOURCING_POSTGRES_DSN: PostgreSQL instance DSN, tests are skipped when it is not set
//	EVENTSOURCING_POSTGRES_REPLICA_DSN: optional replica DSN for the replica tests
//	ADAPTER_TYPE: selects adapter (pgx.pool, sql.db, sqlx.db)
package pgtesthelpers
