// Package eventstore holds what the EventStore engines have in common:
// validation of appended event streams, engine settings and their functional options,
// and the instrumentation every engine reports through.
//
// The engines live in the sub packages:
//   - memoryengine: the default, process-local store
//   - boltengine: a durable single file store on go.etcd.io/bbolt
//   - postgresengine: a PostgreSQL store with pgx, database/sql and sqlx adapters
//
// All of them implement eventsourcing.EventStore with the same semantics:
// the events of one append belong to one aggregate and carry contiguous sequence numbers,
// and the first of them must directly follow the last stored sequence number of that aggregate.
// Otherwise the append fails with an error matching eventsourcing.ErrConcurrencyConflict and nothing is stored.
package eventstore
