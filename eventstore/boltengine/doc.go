// Package boltengine provides a durable EventStore in a single bbolt file.
//
// Layout: the root bucket (named after the table name setting) holds one bucket per aggregate type,
// which holds one bucket per aggregate id. Inside, each event is stored under its sequence number
// as big-endian uint64 key, so a cursor walks the events in sequence order.
// Values are JSON documents with the event id, type, time of occurrence and payload.
//
// bbolt serializes all write transactions, so the check that an append continues the stored
// sequence and the writing of the events happen atomically.
//
// The TransactionManager runs event handlers of an eventhandling.TransactionalListener
// in one bbolt write transaction, which the store joins when it finds it in the context.
package boltengine
