package eventhandling

import (
	"context"
	"errors"
	"sync"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

type schedulerState int

const (
	stateIdle schedulerState = iota
	stateScheduled
	stateDraining
)

type queuedEvent struct {
	ctx   context.Context
	event eventsourcing.Event
}

// listenerManager routes the events of one subscribed listener to its schedulers.
// Lock order: listenerManager.mu before eventProcessingScheduler.mu.
type listenerManager struct {
	listener   Listener
	bus        *AsyncEventBus
	mu         sync.Mutex
	schedulers map[any]*eventProcessingScheduler
}

func newListenerManager(listener Listener, bus *AsyncEventBus) *listenerManager {
	return &listenerManager{
		listener:   listener,
		bus:        bus,
		schedulers: make(map[any]*eventProcessingScheduler),
	}
}

// eventProcessingScheduler drains the FIFO queue of one sequencing key.
// At most one task drains a scheduler at any time, which keeps the events of the key in order.
type eventProcessingScheduler struct {
	key     any
	manager *listenerManager
	mu      sync.Mutex
	queue   []queuedEvent
	state   schedulerState
}

// schedule appends the event to the queue of the key and submits a drain task if the scheduler is idle.
func (m *listenerManager) schedule(key any, item queuedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedulers[key]
	if !ok {
		s = &eventProcessingScheduler{key: key, manager: m}
		m.schedulers[key] = s
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, item)
	if s.state != stateIdle {
		return nil
	}

	s.state = stateScheduled
	m.bus.inFlight.Add(1)

	if err := m.bus.executor.Submit(s.run); err != nil {
		m.bus.inFlight.Done()
		s.queue[len(s.queue)-1] = queuedEvent{}
		s.queue = s.queue[:len(s.queue)-1]
		s.state = stateIdle

		if len(s.queue) == 0 {
			delete(m.schedulers, key)
		}

		return errors.Join(ErrEventRejected, err)
	}

	return nil
}

// schedulerCount returns the number of keys with queued or running work.
func (m *listenerManager) schedulerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.schedulers)
}

// run is the drain task. It handles the events queued when it started and then yields.
func (s *eventProcessingScheduler) run() {
	defer s.manager.bus.inFlight.Done()

	s.mu.Lock()
	s.state = stateDraining
	n := len(s.queue)
	s.mu.Unlock()

	for {
		for i := 0; i < n; i++ {
			s.manager.bus.invoke(s.manager.listener, s.pop())
		}

		var continueInPlace bool
		if n, continueInPlace = s.yield(); !continueInPlace {
			return
		}
	}
}

func (s *eventProcessingScheduler) pop() queuedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.queue[0]
	s.queue[0] = queuedEvent{}
	s.queue = s.queue[1:]

	return item
}

// yield ends a drain round. An empty scheduler goes idle and is retired, otherwise a new drain task is submitted.
// If the executor rejects it, the current task continues with the events queued by now.
func (s *eventProcessingScheduler) yield() (int, bool) {
	m := s.manager

	m.mu.Lock()
	defer m.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		s.state = stateIdle
		delete(m.schedulers, s.key)

		return 0, false
	}

	s.state = stateScheduled
	m.bus.inFlight.Add(1)

	if err := m.bus.executor.Submit(s.run); err != nil {
		m.bus.inFlight.Done()
		s.state = stateDraining
		m.bus.recordYield(m.listener, yieldInPlace, err)

		return len(s.queue), true
	}

	m.bus.recordYield(m.listener, yieldResubmitted, nil)

	return 0, false
}
