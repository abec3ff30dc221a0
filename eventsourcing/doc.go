// Package eventsourcing provides the domain model of an event-sourced application:
// events with assign-once identity and position, the EventContainer that numbers an aggregate's new events,
// single-pass EventStreams, the AggregateRoot bookkeeping, and explicit HandlerTables for event dispatch.
//
// It also defines the contracts the other packages build on:
//   - EventStore, implemented by the engines under eventstore/
//   - EventBus, implemented by the buses in eventsourcing/eventhandling
//   - Logger, ContextualLogger, MetricsCollector and TracingCollector, implemented by the adapters
//
// Errors are package level sentinels, wrapped with errors.Join or typed errors that unwrap to them,
// so callers test them with errors.Is and errors.As.
package eventsourcing
