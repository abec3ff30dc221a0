package repository

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// unknownVersion marks an aggregate that was loaded but whose version was never validated in this process.
const unknownVersion = int64(math.MinInt64)

// OptimisticLockManager never blocks. It keeps the expected version of every aggregate it has seen
// and lets exactly one of several concurrent writers of the same version win.
type OptimisticLockManager struct {
	versions sync.Map // uuid.UUID -> int64
}

// NewOptimisticLockManager creates an OptimisticLockManager without any known versions.
func NewOptimisticLockManager() *OptimisticLockManager {
	return &OptimisticLockManager{}
}

// ObtainLock registers the aggregate with an unknown version if it is not known yet.
func (m *OptimisticLockManager) ObtainLock(_ context.Context, aggregateID uuid.UUID, _ LockOwner) error {
	m.versions.LoadOrStore(aggregateID, unknownVersion)
	return nil
}

// ValidateLock advances the stored version from the aggregate's last committed sequence number
// to the sequence number its last uncommitted event will get.
// It fails if another writer advanced the version first.
func (m *OptimisticLockManager) ValidateLock(aggregate eventsourcing.Aggregate, _ LockOwner) bool {
	aggregateID := aggregate.AggregateID()
	lastCommitted, _ := aggregate.LastCommittedSequenceNumber()
	newVersion := lastCommitted + int64(aggregate.UncommittedEventCount())

	if m.versions.CompareAndSwap(aggregateID, lastCommitted, newVersion) {
		return true
	}

	if m.versions.CompareAndSwap(aggregateID, unknownVersion, newVersion) {
		return true
	}

	_, loaded := m.versions.LoadOrStore(aggregateID, newVersion)

	return !loaded
}

// RevertLock forgets the version the aggregate's last ValidateLock advanced to, unless another writer
// advanced it further in the meantime. The next validation then trusts the aggregate's committed sequence number,
// the event store rejects it if that is stale.
func (m *OptimisticLockManager) RevertLock(aggregate eventsourcing.Aggregate, _ LockOwner) {
	lastCommitted, _ := aggregate.LastCommittedSequenceNumber()
	newVersion := lastCommitted + int64(aggregate.UncommittedEventCount())

	m.versions.CompareAndSwap(aggregate.AggregateID(), newVersion, unknownVersion)
}

// ReleaseLock is a no-op, the version must survive to detect later conflicts.
func (m *OptimisticLockManager) ReleaseLock(_ uuid.UUID, _ LockOwner) error {
	return nil
}
