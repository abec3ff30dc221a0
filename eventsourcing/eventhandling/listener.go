package eventhandling

import (
	"context"
	"reflect"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// Listener receives the events it can handle from an event bus.
type Listener interface {
	// CanHandle reports whether events of the given Go type are of interest.
	CanHandle(eventType reflect.Type) bool
	Handle(ctx context.Context, event eventsourcing.Event) error
	// SequencingPolicy decides which events this listener must see in order.
	SequencingPolicy() SequencingPolicy
}

// CommitThresholder is implemented by listeners that declare how many events may share one transaction.
type CommitThresholder interface {
	// CommitThreshold returns the preferred maximum batch size for the event, or 0 for no preference.
	CommitThreshold(event eventsourcing.Event) int
}

// ListenerAdapter turns a target object with a HandlerTable into a Listener.
type ListenerAdapter[T any] struct {
	target T
	table  *eventsourcing.HandlerTable[T]
	policy SequencingPolicy
}

// NewListenerAdapter creates a Listener dispatching to the target via the table.
// The policy defaults to SequentialPolicy when nil.
func NewListenerAdapter[T any](target T, table *eventsourcing.HandlerTable[T], policy SequencingPolicy) *ListenerAdapter[T] {
	if policy == nil {
		policy = SequentialPolicy{}
	}

	return &ListenerAdapter[T]{target: target, table: table, policy: policy}
}

// CanHandle reports whether the handler table has a handler for the event type.
func (a *ListenerAdapter[T]) CanHandle(eventType reflect.Type) bool {
	return a.table.CanHandle(eventType)
}

// Handle dispatches the event to the handler resolved for its type.
// Returns an *eventsourcing.UnhandledEventError if there is none.
func (a *ListenerAdapter[T]) Handle(ctx context.Context, event eventsourcing.Event) error {
	return a.table.Dispatch(ctx, a.target, event)
}

// SequencingPolicy returns the policy the adapter was created with.
func (a *ListenerAdapter[T]) SequencingPolicy() SequencingPolicy {
	return a.policy
}

// CommitThreshold returns the threshold of the handler for the event, 0 if it has none.
func (a *ListenerAdapter[T]) CommitThreshold(event eventsourcing.Event) int {
	return a.table.CommitThreshold(reflect.TypeOf(event))
}

// Target returns the adapted object.
func (a *ListenerAdapter[T]) Target() T {
	return a.target
}
