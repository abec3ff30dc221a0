package eventhandling_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing/eventhandling"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/eventstore/estesthelpers"
)

var errExecutorFull = errors.New("executor is full")
var errHandlerFailed = errors.New("handler failed")
var errDeadlock = errors.New("deadlock detected")
var errConstraintViolated = errors.New("constraint violated")

type recordingListener struct {
	policy   eventhandling.SequencingPolicy
	mu       sync.Mutex
	handled  []eventsourcing.Event
	onHandle func(ctx context.Context, event eventsourcing.Event) error
}

func newRecordingListener(policy eventhandling.SequencingPolicy) *recordingListener {
	return &recordingListener{policy: policy}
}

func (l *recordingListener) CanHandle(_ reflect.Type) bool {
	return true
}

func (l *recordingListener) Handle(ctx context.Context, event eventsourcing.Event) error {
	l.mu.Lock()
	l.handled = append(l.handled, event)
	l.mu.Unlock()

	if l.onHandle != nil {
		return l.onHandle(ctx, event)
	}

	return nil
}

func (l *recordingListener) SequencingPolicy() eventhandling.SequencingPolicy {
	return l.policy
}

func (l *recordingListener) Handled() []eventsourcing.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]eventsourcing.Event(nil), l.handled...)
}

func (l *recordingListener) SequenceNumbersOf(aggregateID uuid.UUID) []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	sequenceNumbers := make([]int64, 0)
	for _, event := range l.handled {
		if event.AggregateID() != aggregateID {
			continue
		}

		sequenceNumber, _ := event.SequenceNumber()
		sequenceNumbers = append(sequenceNumbers, sequenceNumber)
	}

	return sequenceNumbers
}

// manualExecutor accepts a limited number of tasks, which the test runs explicitly.
type manualExecutor struct {
	mu       sync.Mutex
	accept   int
	tasks    []func()
	rejected int
}

func (e *manualExecutor) Submit(task func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.tasks) >= e.accept {
		e.rejected++
		return errExecutorFull
	}

	e.tasks = append(e.tasks, task)

	return nil
}

func (e *manualExecutor) RunTask(i int) {
	e.mu.Lock()
	task := e.tasks[i]
	e.mu.Unlock()

	task()
}

func (e *manualExecutor) Accept(accept int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.accept = accept
}

func (e *manualExecutor) Counts() (accepted, rejected int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.tasks), e.rejected
}

type txIDKey struct{}

// txManagerSpy numbers the transactions it runs and fails commits as configured.
type txManagerSpy struct {
	mu            sync.Mutex
	lastID        int
	committed     []int
	commitErrors  []error
	alwaysFailing error
}

func (m *txManagerSpy) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.lastID++
	txID := m.lastID
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, txIDKey{}, txID)); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.alwaysFailing != nil {
		return m.alwaysFailing
	}

	if len(m.commitErrors) > 0 {
		err := m.commitErrors[0]
		m.commitErrors = m.commitErrors[1:]

		return err
	}

	m.committed = append(m.committed, txID)

	return nil
}

func (m *txManagerSpy) Committed() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]int(nil), m.committed...)
}

func (m *txManagerSpy) TransactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastID
}

type handledInTransaction struct {
	txID  int
	event eventsourcing.Event
}

// transactionRecordingListener records in which transaction each event was handled.
type transactionRecordingListener struct {
	mu        sync.Mutex
	handled   []handledInTransaction
	threshold int
	onHandle  func(ctx context.Context, event eventsourcing.Event) error
}

func (l *transactionRecordingListener) CanHandle(_ reflect.Type) bool {
	return true
}

func (l *transactionRecordingListener) Handle(ctx context.Context, event eventsourcing.Event) error {
	txID, _ := ctx.Value(txIDKey{}).(int)

	l.mu.Lock()
	l.handled = append(l.handled, handledInTransaction{txID: txID, event: event})
	l.mu.Unlock()

	if l.onHandle != nil {
		return l.onHandle(ctx, event)
	}

	return nil
}

func (l *transactionRecordingListener) SequencingPolicy() eventhandling.SequencingPolicy {
	return eventhandling.SequentialPolicy{}
}

func (l *transactionRecordingListener) CommitThreshold(_ eventsourcing.Event) int {
	return l.threshold
}

// CommittedBatches returns the events of each committed transaction, in commit order.
func (l *transactionRecordingListener) CommittedBatches(manager *txManagerSpy) [][]eventsourcing.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	batches := make([][]eventsourcing.Event, 0)
	for _, txID := range manager.Committed() {
		var batch []eventsourcing.Event
		for _, handled := range l.handled {
			if handled.txID == txID {
				batch = append(batch, handled.event)
			}
		}

		batches = append(batches, batch)
	}

	return batches
}

func (l *transactionRecordingListener) HandledCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.handled)
}

func givenEvents(t *testing.T, aggregateID uuid.UUID, count int) []eventsourcing.Event {
	t.Helper()

	events, err := eventsourcing.ReadAll(estesthelpers.GivenBookCopyEvents(t, aggregateID, 0, count).EventStream())
	require.NoError(t, err, "error in arranging test data")

	return events
}

func batchSizes(batches [][]eventsourcing.Event) []int {
	sizes := make([]int, 0, len(batches))
	for _, batch := range batches {
		sizes = append(sizes, len(batch))
	}

	return sizes
}

func flatten(batches [][]eventsourcing.Event) []eventsourcing.Event {
	var events []eventsourcing.Event
	for _, batch := range batches {
		events = append(events, batch...)
	}

	return events
}
