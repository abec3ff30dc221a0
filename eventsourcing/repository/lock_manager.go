package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// LockManager controls concurrent access to aggregates.
type LockManager interface {
	// ObtainLock acquires the lock for the aggregate, blocking until it is acquired or ctx is done.
	ObtainLock(ctx context.Context, aggregateID uuid.UUID, owner LockOwner) error
	// ValidateLock reports whether the owner may save the aggregate's uncommitted events.
	ValidateLock(aggregate eventsourcing.Aggregate, owner LockOwner) bool
	ReleaseLock(aggregateID uuid.UUID, owner LockOwner) error
}

// LockReverter is implemented by a LockManager whose ValidateLock changes state.
// The Repository calls RevertLock when the validated events could not be appended.
type LockReverter interface {
	RevertLock(aggregate eventsourcing.Aggregate, owner LockOwner)
}

// LockingStrategy selects the LockManager a Repository creates.
type LockingStrategy int

const (
	Optimistic LockingStrategy = iota
	Pessimistic
)

func (s LockingStrategy) String() string {
	switch s {
	case Optimistic:
		return "optimistic"
	case Pessimistic:
		return "pessimistic"
	default:
		return fmt.Sprintf("LockingStrategy(%d)", int(s))
	}
}

// ParseLockingStrategy maps "optimistic" and "pessimistic" to the LockingStrategy.
func ParseLockingStrategy(name string) (LockingStrategy, error) {
	switch name {
	case "optimistic", "":
		return Optimistic, nil
	case "pessimistic":
		return Pessimistic, nil
	default:
		return Optimistic, fmt.Errorf("%w: %q", ErrUnknownLockingStrategy, name)
	}
}

func newLockManager(strategy LockingStrategy) (LockManager, error) {
	switch strategy {
	case Optimistic:
		return NewOptimisticLockManager(), nil
	case Pessimistic:
		return NewPessimisticLockManager(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownLockingStrategy, strategy)
	}
}

// LockOwner identifies the logical holder of a lock, the Go counterpart of a locking thread.
type LockOwner uuid.UUID

// NewLockOwner returns a fresh owner.
func NewLockOwner() LockOwner {
	return LockOwner(uuid.New())
}

func (o LockOwner) String() string {
	return uuid.UUID(o).String()
}

type lockOwnerKey struct{}

// WithLockOwner returns a context whose loads all use the given owner, so that nested loads of the same
// aggregate re-enter a pessimistic lock instead of deadlocking.
func WithLockOwner(ctx context.Context, owner LockOwner) context.Context {
	return context.WithValue(ctx, lockOwnerKey{}, owner)
}

// LockOwnerFromContext returns the owner set with WithLockOwner.
func LockOwnerFromContext(ctx context.Context) (LockOwner, bool) {
	owner, ok := ctx.Value(lockOwnerKey{}).(LockOwner)
	return owner, ok
}
