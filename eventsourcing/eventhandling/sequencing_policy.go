package eventhandling

import (
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// SequencingPolicy maps an event to its sequencing key.
// Events with equal keys are handled one after another in publishing order,
// events without a key may be handled concurrently with anything else.
// Keys must be comparable.
type SequencingPolicy interface {
	SequenceKey(event eventsourcing.Event) (key any, ok bool)
}

type sequentialKey struct{}

// SequentialPolicy puts all events into one sequence.
type SequentialPolicy struct{}

// SequenceKey returns the same key for every event.
func (SequentialPolicy) SequenceKey(_ eventsourcing.Event) (any, bool) {
	return sequentialKey{}, true
}

// FullConcurrencyPolicy puts no ordering constraint on any event.
type FullConcurrencyPolicy struct{}

// SequenceKey never returns a key.
func (FullConcurrencyPolicy) SequenceKey(_ eventsourcing.Event) (any, bool) {
	return nil, false
}

// SequentialPerAggregatePolicy orders the events of each aggregate,
// while events of different aggregates may be handled concurrently.
type SequentialPerAggregatePolicy struct{}

// SequenceKey returns the event's aggregate id.
func (SequentialPerAggregatePolicy) SequenceKey(event eventsourcing.Event) (any, bool) {
	return event.AggregateID(), true
}

// SequencingPolicyFunc adapts a function to a SequencingPolicy.
type SequencingPolicyFunc func(event eventsourcing.Event) (any, bool)

// SequenceKey calls f(event).
func (f SequencingPolicyFunc) SequenceKey(event eventsourcing.Event) (any, bool) {
	return f(event)
}
