package eventsourcing

import (
	"context"
	"reflect"
	"sync"
)

// HandlerTable maps event types to handler functions of a target type T (an aggregate or a listener).
//
// Handlers are registered for a concrete event type (usually a pointer type like *MoneyDeposited)
// or for an interface type that a group of events implement. Resolution for a runtime event type:
//  1. a handler registered for exactly that type wins
//  2. otherwise, among the interface handlers the event implements, the most specific one wins:
//     an interface that implements another candidate interface beats that candidate
//  3. remaining ties go to the handler registered first
//
// Registration must be completed before the table is used, resolution results are cached.
type HandlerTable[T any] struct {
	entries  []*handlerEntry[T]
	resolved sync.Map // reflect.Type -> *handlerEntry[T], nil for no handler
}

type handlerEntry[T any] struct {
	eventType       reflect.Type
	invoke          func(ctx context.Context, target T, event Event) error
	commitThreshold int
}

// HandlerOption configures a single handler registration.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	commitThreshold int
}

// WithCommitThreshold sets how many events handled by this handler may be grouped into one transaction
// by a TransactionalListener.
func WithCommitThreshold(threshold int) HandlerOption {
	return func(c *handlerConfig) {
		c.commitThreshold = threshold
	}
}

// NewHandlerTable creates an empty table.
func NewHandlerTable[T any]() *HandlerTable[T] {
	return &HandlerTable[T]{}
}

// On registers a context-aware handler that may fail for events of type E.
func On[T any, E Event](table *HandlerTable[T], handler func(ctx context.Context, target T, event E) error, options ...HandlerOption) *HandlerTable[T] {
	config := handlerConfig{}
	for _, option := range options {
		option(&config)
	}

	table.entries = append(table.entries, &handlerEntry[T]{
		eventType: reflect.TypeFor[E](),
		invoke: func(ctx context.Context, target T, event Event) error {
			return handler(ctx, target, event.(E))
		},
		commitThreshold: config.commitThreshold,
	})

	return table
}

// When registers a plain state transition for events of type E, the usual shape of aggregate fold handlers.
func When[T any, E Event](table *HandlerTable[T], handler func(target T, event E)) *HandlerTable[T] {
	return On(table, func(_ context.Context, target T, event E) error {
		handler(target, event)
		return nil
	})
}

// CanHandle reports whether a handler resolves for the given event type.
func (t *HandlerTable[T]) CanHandle(eventType reflect.Type) bool {
	return t.resolve(eventType) != nil
}

// CommitThreshold returns the commit threshold configured for the handler of the event type, or 0 if none.
func (t *HandlerTable[T]) CommitThreshold(eventType reflect.Type) int {
	if entry := t.resolve(eventType); entry != nil {
		return entry.commitThreshold
	}

	return 0
}

// Dispatch invokes the resolved handler, or returns an *UnhandledEventError.
func (t *HandlerTable[T]) Dispatch(ctx context.Context, target T, event Event) error {
	entry := t.resolve(reflect.TypeOf(event))
	if entry == nil {
		return &UnhandledEventError{Event: event}
	}

	return entry.invoke(ctx, target, event)
}

func (t *HandlerTable[T]) resolve(eventType reflect.Type) *handlerEntry[T] {
	if eventType == nil {
		return nil
	}

	if cached, ok := t.resolved.Load(eventType); ok {
		return cached.(*handlerEntry[T])
	}

	entry := t.lookup(eventType)
	t.resolved.Store(eventType, entry)

	return entry
}

func (t *HandlerTable[T]) lookup(eventType reflect.Type) *handlerEntry[T] {
	for _, entry := range t.entries {
		if entry.eventType == eventType {
			return entry
		}
	}

	var best *handlerEntry[T]

	for _, entry := range t.entries {
		if entry.eventType.Kind() != reflect.Interface || !eventType.Implements(entry.eventType) {
			continue
		}

		if best == nil || isMoreSpecific(entry.eventType, best.eventType) {
			best = entry
		}
	}

	return best
}

func isMoreSpecific(candidate, current reflect.Type) bool {
	return candidate.Implements(current) && !current.Implements(candidate)
}

// FoldWith builds the FoldFunc of an aggregate from its handler table.
func FoldWith[T any](table *HandlerTable[T], target T) FoldFunc {
	return func(event Event) error {
		return table.Dispatch(context.Background(), target, event)
	}
}
