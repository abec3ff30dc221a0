package eventhandling

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// SimpleEventBus invokes the listeners in the publisher's goroutine, one event and one listener after another.
// Sequencing policies are irrelevant here, everything happens in publishing order.
type SimpleEventBus struct {
	mu        sync.RWMutex
	listeners []Listener
	observer  eventsourcing.Observer
}

// NewSimpleEventBus creates a synchronous bus. Executor and pool options are ignored.
func NewSimpleEventBus(options ...Option) (*SimpleEventBus, error) {
	cfg := config{}
	for _, option := range options {
		if err := option(&cfg); err != nil {
			return nil, err
		}
	}

	return &SimpleEventBus{observer: cfg.observer}, nil
}

// Subscribe registers the listener. Subscribing a listener twice has no effect.
func (b *SimpleEventBus) Subscribe(listener Listener) error {
	if listener == nil {
		return ErrNilListener
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subscribed := range b.listeners {
		if subscribed == listener {
			return nil
		}
	}

	b.listeners = append(b.listeners, listener)

	return nil
}

// Unsubscribe removes the listener, unknown listeners are ignored.
func (b *SimpleEventBus) Unsubscribe(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, subscribed := range b.listeners {
		if subscribed == listener {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Publish hands every event to every subscribed listener that can handle it.
// A failing listener does not stop the others, all errors are joined.
func (b *SimpleEventBus) Publish(ctx context.Context, events ...eventsourcing.Event) error {
	b.mu.RLock()
	listeners := append([]Listener(nil), b.listeners...)
	b.mu.RUnlock()

	var errs []error

	for _, event := range events {
		eventType := reflect.TypeOf(event)

		for _, listener := range listeners {
			if !listener.CanHandle(eventType) {
				continue
			}

			start := time.Now()
			labels := map[string]string{
				eventsourcing.LabelOperation: operationHandle,
				labelListener:                listenerName(listener),
			}

			if err := safeHandle(ctx, listener, event); err != nil {
				b.observer.Error(ctx, logMsgHandlerFailed, err,
					logAttrListener, listenerName(listener),
					logAttrEventType, eventTypeName(event),
					logAttrEventID, event.EventID().String())

				labels[eventsourcing.LabelStatus] = eventsourcing.StatusError
				labels[eventsourcing.LabelErrorType] = errorTypeHandler
				b.observer.IncrementCounter(ctx, metricHandlerFailures, labels)
				errs = append(errs, err)
			} else {
				labels[eventsourcing.LabelStatus] = eventsourcing.StatusSuccess
			}

			b.observer.RecordDuration(ctx, metricHandlerDuration, time.Since(start), labels)
		}
	}

	return errors.Join(errs...)
}
