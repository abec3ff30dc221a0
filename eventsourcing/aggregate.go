package eventsourcing

import (
	"errors"

	"github.com/google/uuid"
)

// Aggregate is an entity whose state is derived entirely by folding its ordered event history.
//
// Domain aggregates implement it by embedding AggregateRoot and must be used through pointers.
type Aggregate interface {
	AggregateID() uuid.UUID
	Apply(event Event) error
	InitializeState(stream EventStream) error
	UncommittedEvents() EventStream
	UncommittedEventCount() int
	LastCommittedSequenceNumber() (int64, bool)
	CommitEvents()
}

// FoldFunc changes the state of an aggregate according to one event.
type FoldFunc func(event Event) error

// AggregateRoot implements the bookkeeping part of Aggregate.
// The domain part is supplied as FoldFunc, usually built with FoldWith from a HandlerTable.
type AggregateRoot struct {
	aggregateID   uuid.UUID
	uncommitted   *EventContainer
	fold          FoldFunc
	lastCommitted int64
	hasCommitted  bool
	initialized   bool
	applied       bool
}

// NewAggregateRoot creates the root for a new aggregate with the given id.
func NewAggregateRoot(aggregateID uuid.UUID, fold FoldFunc) AggregateRoot {
	return AggregateRoot{
		aggregateID: aggregateID,
		uncommitted: NewEventContainer(aggregateID),
		fold:        fold,
	}
}

// AggregateID returns the identity of the aggregate.
func (r *AggregateRoot) AggregateID() uuid.UUID {
	return r.aggregateID
}

// Apply records the event as uncommitted and folds it into the state before returning.
func (r *AggregateRoot) Apply(event Event) error {
	if err := r.uncommitted.AddEvent(event); err != nil {
		return err
	}

	r.applied = true

	return r.foldEvent(event)
}

// InitializeState folds the complete history of the aggregate.
// It is allowed exactly once and only before any event was applied.
func (r *AggregateRoot) InitializeState(stream EventStream) error {
	if r.initialized || r.applied {
		return ErrAlreadyInitialized
	}

	r.initialized = true

	var last int64
	var consumed bool

	for stream.HasNext() {
		event, err := stream.Next()
		if err != nil {
			return err
		}

		if event.AggregateID() != r.aggregateID {
			return errors.Join(ErrIdentityMismatch, &identityMismatch{expected: r.aggregateID, actual: event.AggregateID()})
		}

		if err = r.foldEvent(event); err != nil {
			return err
		}

		if sequenceNumber, ok := event.SequenceNumber(); ok {
			last = sequenceNumber
			consumed = true
		}
	}

	if !consumed {
		return nil
	}

	r.lastCommitted = last
	r.hasCommitted = true

	return r.uncommitted.SetFirstSequenceNumber(last + 1)
}

// UncommittedEvents returns a snapshot stream of the events applied since the last commit.
func (r *AggregateRoot) UncommittedEvents() EventStream {
	return r.uncommitted.EventStream()
}

// UncommittedEventCount returns the number of events applied since the last commit.
func (r *AggregateRoot) UncommittedEventCount() int {
	return r.uncommitted.Size()
}

// LastCommittedSequenceNumber returns false for an aggregate that has no persisted history.
func (r *AggregateRoot) LastCommittedSequenceNumber() (int64, bool) {
	return r.lastCommitted, r.hasCommitted
}

// CommitEvents marks all uncommitted events as committed.
func (r *AggregateRoot) CommitEvents() {
	if last, ok := r.uncommitted.LastSequenceNumber(); ok && r.uncommitted.Size() > 0 {
		r.lastCommitted = last
		r.hasCommitted = true
	}

	r.uncommitted.Clear()
}

func (r *AggregateRoot) foldEvent(event Event) error {
	if r.fold == nil {
		return &UnhandledEventError{Event: event}
	}

	return r.fold(event)
}
