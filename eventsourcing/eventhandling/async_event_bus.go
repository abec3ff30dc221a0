package eventhandling

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// AsyncEventBus delivers events to listeners on an Executor, without blocking the publisher on their execution.
//
// Per listener, events with the same sequencing key are handled one after another in the order they were published.
// There is no ordering across keys or across listeners.
type AsyncEventBus struct {
	mu        sync.RWMutex
	listeners []*listenerManager
	closed    bool
	inFlight  sync.WaitGroup
	executor  Executor
	ownedPool *WorkerPool
	observer  eventsourcing.Observer
}

// NewAsyncEventBus creates a bus. Without WithExecutor, it creates its own WorkerPool and shuts it down on Shutdown.
func NewAsyncEventBus(options ...Option) (*AsyncEventBus, error) {
	cfg := config{workerCount: defaultWorkerCount}
	for _, option := range options {
		if err := option(&cfg); err != nil {
			return nil, err
		}
	}

	bus := &AsyncEventBus{executor: cfg.executor, observer: cfg.observer}

	if bus.executor == nil {
		pool, err := NewWorkerPool(cfg.workerCount, cfg.queueCapacity)
		if err != nil {
			return nil, err
		}

		pool.onPanic = bus.recordTaskPanic
		bus.executor = pool
		bus.ownedPool = pool
	}

	return bus, nil
}

// Subscribe registers the listener. Subscribing a listener twice has no effect.
// Listeners are compared with ==, so their dynamic types must be comparable, usually pointers.
func (b *AsyncEventBus) Subscribe(listener Listener) error {
	if listener == nil {
		return ErrNilListener
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusShutdown
	}

	for _, manager := range b.listeners {
		if manager.listener == listener {
			return nil
		}
	}

	b.listeners = append(b.listeners, newListenerManager(listener, b))

	return nil
}

// Unsubscribe removes the listener. Events already scheduled for it are still handled.
func (b *AsyncEventBus) Unsubscribe(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, manager := range b.listeners {
		if manager.listener == listener {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Publish schedules the events for all subscribed listeners that can handle them.
//
// The handlers get a context that carries the values of ctx but is never canceled.
// If the executor rejects an event for a listener, the event is not scheduled for that listener
// and the returned error matches ErrEventRejected; the other listeners still get it.
func (b *AsyncEventBus) Publish(ctx context.Context, events ...eventsourcing.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusShutdown
	}

	handlerCtx := context.WithoutCancel(ctx)
	var errs []error

	for _, event := range events {
		eventType := reflect.TypeOf(event)
		item := queuedEvent{ctx: handlerCtx, event: event}

		for _, manager := range b.listeners {
			if !manager.listener.CanHandle(eventType) {
				continue
			}

			if err := b.route(manager, item); err != nil {
				b.recordRejection(ctx, manager.listener, event, err)
				errs = append(errs, err)

				continue
			}

			b.observer.IncrementCounter(ctx, metricEventsPublished, map[string]string{
				eventsourcing.LabelOperation: operationPublish,
				eventsourcing.LabelStatus:    eventsourcing.StatusSuccess,
				labelListener:                listenerName(manager.listener),
			})
		}
	}

	return errors.Join(errs...)
}

func (b *AsyncEventBus) route(manager *listenerManager, item queuedEvent) error {
	if key, ok := manager.listener.SequencingPolicy().SequenceKey(item.event); ok {
		return manager.schedule(key, item)
	}

	b.inFlight.Add(1)
	err := b.executor.Submit(func() {
		defer b.inFlight.Done()
		b.invoke(manager.listener, item)
	})

	if err != nil {
		b.inFlight.Done()
		return errors.Join(ErrEventRejected, err)
	}

	return nil
}

// Shutdown refuses new events and waits until all scheduled events were handled or ctx is done.
// The executor is shut down only if the bus created it.
func (b *AsyncEventBus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if b.ownedPool != nil {
		return b.ownedPool.Shutdown(ctx)
	}

	return nil
}

// ActiveSchedulerCount returns the number of sequencing keys of the listener with queued or running work.
func (b *AsyncEventBus) ActiveSchedulerCount(listener Listener) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, manager := range b.listeners {
		if manager.listener == listener {
			return manager.schedulerCount()
		}
	}

	return 0
}

// invoke runs the listener for one event. Failures and panics are logged and counted, never propagated.
func (b *AsyncEventBus) invoke(listener Listener, item queuedEvent) {
	ctx, span := b.observer.StartSpan(item.ctx, spanNameHandle, map[string]string{
		labelListener:    listenerName(listener),
		logAttrEventType: eventTypeName(item.event),
	})
	start := time.Now()

	err := safeHandle(ctx, listener, item.event)

	labels := map[string]string{
		eventsourcing.LabelOperation: operationHandle,
		labelListener:                listenerName(listener),
	}

	if err == nil {
		labels[eventsourcing.LabelStatus] = eventsourcing.StatusSuccess
		b.observer.RecordDuration(ctx, metricHandlerDuration, time.Since(start), labels)
		b.observer.FinishSpan(span, eventsourcing.StatusSuccess, nil)

		return
	}

	errorType, msg := errorTypeHandler, logMsgHandlerFailed
	var panicErr *handlerPanicError
	if errors.As(err, &panicErr) {
		errorType, msg = errorTypePanic, logMsgHandlerPanicked
	}

	labels[eventsourcing.LabelStatus] = eventsourcing.StatusError
	labels[eventsourcing.LabelErrorType] = errorType

	b.observer.Error(ctx, msg, err,
		logAttrListener, listenerName(listener),
		logAttrEventType, eventTypeName(item.event),
		logAttrEventID, item.event.EventID().String(),
		logAttrAggregateID, item.event.AggregateID().String())
	b.observer.IncrementCounter(ctx, metricHandlerFailures, labels)
	b.observer.RecordDuration(ctx, metricHandlerDuration, time.Since(start), labels)
	b.observer.FinishSpan(span, eventsourcing.StatusError, map[string]string{eventsourcing.LabelErrorType: errorType})
}

func (b *AsyncEventBus) recordRejection(ctx context.Context, listener Listener, event eventsourcing.Event, err error) {
	b.observer.Warn(ctx, logMsgEventRejected,
		logAttrListener, listenerName(listener),
		logAttrEventID, event.EventID().String(),
		eventsourcing.LogAttrError, err.Error())
	b.observer.IncrementCounter(ctx, metricEventsRejected, map[string]string{
		eventsourcing.LabelOperation: operationPublish,
		eventsourcing.LabelStatus:    eventsourcing.StatusError,
		eventsourcing.LabelErrorType: errorTypeRejected,
		labelListener:                listenerName(listener),
	})
}

func (b *AsyncEventBus) recordYield(listener Listener, yield string, err error) {
	ctx := context.Background()

	if err != nil {
		b.observer.Debug(ctx, logMsgYieldRejected, logAttrListener, listenerName(listener), eventsourcing.LogAttrError, err.Error())
	}

	b.observer.IncrementCounter(ctx, metricSchedulerYields, map[string]string{
		labelListener: listenerName(listener),
		labelYield:    yield,
	})
}

func (b *AsyncEventBus) recordTaskPanic(recovered any) {
	b.observer.Error(context.Background(), logMsgTaskPanicked, fmt.Errorf("%v", recovered))
}

type handlerPanicError struct {
	recovered any
}

func (e *handlerPanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.recovered)
}

func safeHandle(ctx context.Context, listener Listener, event eventsourcing.Event) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &handlerPanicError{recovered: recovered}
		}
	}()

	return listener.Handle(ctx, event)
}

func listenerName(listener Listener) string {
	if named, ok := listener.(interface{ Name() string }); ok {
		return named.Name()
	}

	return reflect.TypeOf(listener).String()
}

func eventTypeName(event eventsourcing.Event) string {
	return reflect.TypeOf(event).String()
}
