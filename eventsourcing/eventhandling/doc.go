// Package eventhandling delivers published events to listeners.
//
// The AsyncEventBus fans every event out to the subscribed listeners that can handle it.
// Each listener's SequencingPolicy decides which of its events must be handled in order:
// events with the same sequencing key go through one EventProcessingScheduler, which drains its queue
// on a shared WorkerPool and yields the worker after a bounded number of events, so that one busy key
// cannot starve the others. Events without a key are handled as independent pool tasks.
//
// The SimpleEventBus is the synchronous alternative, invoking all listeners in the publisher's goroutine.
//
// A TransactionalListener wraps a listener whose handlers should run in batches inside transactions,
// reporting the batch state to the handlers through a TransactionStatus in the context.
package eventhandling
