// Package repository loads and saves event-sourced aggregates.
//
// A Repository reads the history of an aggregate from an eventsourcing.EventStore, rebuilds the aggregate,
// and later appends its new events and publishes them on an eventsourcing.EventBus once they are persisted.
// Concurrent access to the same aggregate is controlled by a LockManager:
//   - OptimisticLockManager detects conflicting writers at save time via compare-and-swap of a version
//   - PessimisticLockManager serializes load-modify-save cycles with a re-entrant lock per aggregate
//
// Locks are held by a LockOwner. Load uses the owner carried in the context (see WithLockOwner) or a fresh one,
// and Save releases the lock of the owner that loaded the aggregate.
package repository
