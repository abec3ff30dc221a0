package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// PessimisticLockManager grants one owner at a time exclusive access to an aggregate.
// Locks are re-entrant for the same owner.
//
// An entry lives as long as an owner holds or waits for its lock and is removed when the last one leaves,
// so the map does not grow with the number of aggregates ever touched.
type PessimisticLockManager struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	owner LockOwner
	holds int
	// refs counts the owner holding the lock plus all owners waiting for it.
	refs int
	// sem contains a token while the lock is held.
	sem chan struct{}
}

// NewPessimisticLockManager creates a PessimisticLockManager without any locks.
func NewPessimisticLockManager() *PessimisticLockManager {
	return &PessimisticLockManager{entries: make(map[uuid.UUID]*lockEntry)}
}

// ObtainLock blocks until the owner holds the lock or ctx is done.
func (m *PessimisticLockManager) ObtainLock(ctx context.Context, aggregateID uuid.UUID, owner LockOwner) error {
	m.mu.Lock()

	entry, ok := m.entries[aggregateID]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.entries[aggregateID] = entry
	}

	if entry.holds > 0 && entry.owner == owner {
		entry.holds++
		m.mu.Unlock()

		return nil
	}

	entry.refs++
	m.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		m.mu.Lock()
		entry.refs--
		m.retire(aggregateID, entry)
		m.mu.Unlock()

		return ctx.Err()
	}

	m.mu.Lock()
	entry.owner = owner
	entry.holds = 1
	m.mu.Unlock()

	return nil
}

// ValidateLock reports whether the owner currently holds the lock of the aggregate.
func (m *PessimisticLockManager) ValidateLock(aggregate eventsourcing.Aggregate, owner LockOwner) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[aggregate.AggregateID()]

	return ok && entry.holds > 0 && entry.owner == owner
}

// ReleaseLock gives up one hold of the owner.
// Returns eventsourcing.ErrNoLockHeld if there is no lock for the aggregate
// and eventsourcing.ErrIllegalMonitorState if the lock is not held by the owner.
func (m *PessimisticLockManager) ReleaseLock(aggregateID uuid.UUID, owner LockOwner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[aggregateID]
	if !ok {
		return eventsourcing.ErrNoLockHeld
	}

	if entry.holds == 0 || entry.owner != owner {
		return eventsourcing.ErrIllegalMonitorState
	}

	entry.holds--
	if entry.holds > 0 {
		return nil
	}

	entry.owner = LockOwner{}
	entry.refs--
	<-entry.sem
	m.retire(aggregateID, entry)

	return nil
}

// retire removes the entry once nobody holds or waits for it. Callers hold m.mu.
func (m *PessimisticLockManager) retire(aggregateID uuid.UUID, entry *lockEntry) {
	if entry.refs == 0 && m.entries[aggregateID] == entry {
		delete(m.entries, aggregateID)
	}
}

// LockCount returns the number of aggregates that are currently locked or waited for.
func (m *PessimisticLockManager) LockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}
