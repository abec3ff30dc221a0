// Package adapters provide database adapter implementations for the PostgreSQL event store.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgx.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, allowing the event store to work with any supported connection type.
//
// Every adapter runs its statements in the transaction carried by the context, if there is one.
// Reads without a transaction go to the replica when one is configured and the context allows
// eventual consistency.
package adapters
