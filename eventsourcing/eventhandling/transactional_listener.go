package eventhandling

import (
	"context"
	"errors"
	"reflect"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

const defaultCommitThreshold = 50

// TransactionalListener buffers the events for a listener and handles them in batches,
// each batch inside one transaction of the TransactionManager.
//
// Handle only enqueues, the events are handled by a poller goroutine in the order they were received.
// A batch grows until it reaches the smallest commit threshold of its events.
// A failed batch is retried with exponential backoff if the error matches one of the transient errors,
// otherwise it is logged, counted and dropped.
type TransactionalListener struct {
	listener      Listener
	thresholder   CommitThresholder
	txManager     TransactionManager
	cfg           transactionalConfig
	status        *TransactionStatus
	mu            sync.Mutex
	cond          *sync.Cond
	buffer        []queuedEvent
	running       bool
	started       bool
	poller        errgroup.Group
	droppedEvents atomic.Int64
}

// NewTransactionalListener wraps the listener. If it implements CommitThresholder, its thresholds bound the batches.
func NewTransactionalListener(
	listener Listener,
	txManager TransactionManager,
	options ...TransactionalOption,
) (*TransactionalListener, error) {

	if listener == nil {
		return nil, ErrNilListener
	}

	if txManager == nil {
		return nil, ErrNilTransactionManager
	}

	cfg := transactionalConfig{
		defaultCommitThreshold: defaultCommitThreshold,
		retry: retryConfig{
			maxAttempts:  defaultMaxAttempts,
			baseDelay:    defaultBaseDelay,
			jitterFactor: defaultJitterFactor,
		},
	}

	for _, option := range options {
		if err := option(&cfg); err != nil {
			return nil, err
		}
	}

	l := &TransactionalListener{
		listener:  listener,
		txManager: txManager,
		cfg:       cfg,
		status:    NewTransactionStatus(cfg.defaultCommitThreshold),
	}
	l.thresholder, _ = listener.(CommitThresholder)
	l.cond = sync.NewCond(&l.mu)

	return l, nil
}

// CanHandle delegates to the wrapped listener.
func (l *TransactionalListener) CanHandle(eventType reflect.Type) bool {
	return l.listener.CanHandle(eventType)
}

// SequencingPolicy is sequential, so that the buffer receives the events in publishing order.
func (l *TransactionalListener) SequencingPolicy() SequencingPolicy {
	return SequentialPolicy{}
}

// Name returns the name of the wrapped listener.
func (l *TransactionalListener) Name() string {
	return "transactional(" + listenerName(l.listener) + ")"
}

// Handle enqueues the event. Returns ErrListenerNotRunning before Start and after Stop.
func (l *TransactionalListener) Handle(ctx context.Context, event eventsourcing.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return ErrListenerNotRunning
	}

	l.buffer = append(l.buffer, queuedEvent{ctx: context.WithoutCancel(ctx), event: event})
	l.cond.Signal()

	return nil
}

// Start launches the poller.
func (l *TransactionalListener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return ErrListenerAlreadyStarted
	}

	l.started = true
	l.running = true
	l.poller.Go(l.poll)

	return nil
}

// Stop refuses new events and waits until the buffered ones are handled or ctx is done.
func (l *TransactionalListener) Stop(ctx context.Context) error {
	l.mu.Lock()
	l.running = false
	l.cond.Broadcast()
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = l.poller.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BufferedCount returns the number of events waiting for a batch.
func (l *TransactionalListener) BufferedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.buffer)
}

// DroppedCount returns the number of events of failed batches.
func (l *TransactionalListener) DroppedCount() int64 {
	return l.droppedEvents.Load()
}

func (l *TransactionalListener) poll() error {
	for {
		batch, threshold, ok := l.nextBatch()
		if !ok {
			return nil
		}

		l.processBatch(batch, threshold)
	}
}

// nextBatch blocks until events are buffered and takes the next batch from the buffer.
// It returns false once the listener is stopped and the buffer is empty.
func (l *TransactionalListener) nextBatch() ([]queuedEvent, int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(l.buffer) == 0 && l.running {
		l.cond.Wait()
	}

	if len(l.buffer) == 0 {
		return nil, 0, false
	}

	threshold := l.commitThresholdOf(l.buffer[0].event)
	size := 1

	for size < len(l.buffer) {
		limit := min(threshold, l.commitThresholdOf(l.buffer[size].event))
		if size >= limit {
			break
		}

		threshold = limit
		size++
	}

	batch := make([]queuedEvent, size)
	copy(batch, l.buffer[:size])
	clear(l.buffer[:size])
	l.buffer = l.buffer[size:]

	return batch, threshold, true
}

func (l *TransactionalListener) commitThresholdOf(event eventsourcing.Event) int {
	if l.thresholder != nil {
		if threshold := l.thresholder.CommitThreshold(event); threshold > 0 {
			return threshold
		}
	}

	return l.cfg.defaultCommitThreshold
}

// processBatch runs the batch in as many transactions as the handlers ask for.
func (l *TransactionalListener) processBatch(batch []queuedEvent, threshold int) {
	for len(batch) > 0 {
		processed, err := l.runWithRetries(batch, threshold)
		if err != nil {
			l.drop(batch, err)
			return
		}

		batch = batch[processed:]
	}
}

func (l *TransactionalListener) runWithRetries(batch []queuedEvent, threshold int) (int, error) {
	ctx := batch[0].ctx

	for attempt := 1; ; attempt++ {
		processed, err := l.runTransaction(ctx, batch, threshold)
		if err == nil {
			return processed, nil
		}

		if !l.cfg.retry.isTransient(err) {
			return 0, errors.Join(errPermanent, err)
		}

		if attempt >= l.cfg.retry.maxAttempts {
			return 0, errors.Join(errRetriesExhausted, err)
		}

		delay := l.cfg.retry.backoffDelay(attempt)
		l.cfg.observer.Warn(ctx, logMsgBatchRetry,
			logAttrListener, l.Name(),
			logAttrBatchSize, len(batch),
			logAttrAttempt, attempt,
			logAttrDelayMS, eventsourcing.ToMilliseconds(delay),
			eventsourcing.LogAttrError, err.Error())
		l.cfg.observer.IncrementCounter(ctx, metricBatchRetries, map[string]string{
			eventsourcing.LabelOperation: operationBatch,
			eventsourcing.LabelErrorType: errorTypeTransient,
			labelListener:                l.Name(),
		})

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return 0, errors.Join(sleepErr, err)
		}
	}
}

// runTransaction handles the batch, or its first part if a handler requested an early commit,
// and returns the number of handled events.
func (l *TransactionalListener) runTransaction(ctx context.Context, batch []queuedEvent, threshold int) (int, error) {
	ctx, span := l.cfg.observer.StartSpan(ctx, spanNameBatch, map[string]string{
		labelListener:    l.Name(),
		logAttrBatchSize: strconv.Itoa(len(batch)),
	})
	start := time.Now()

	status := l.status
	processed := 0

	err := l.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		processed = 0
		status.ResetTransactionStatus()
		status.SetMaxTransactionSize(threshold)
		status.SetYieldPolicy(l.cfg.yieldPolicy)

		handlerCtx := WithTransactionStatus(txCtx, status)

		for _, item := range batch {
			if err := safeHandle(handlerCtx, l.listener, item.event); err != nil {
				return err
			}

			status.RecordEventProcessed()
			processed++

			if status.IsTransactionSizeReached() {
				break
			}
		}

		return nil
	})

	labels := map[string]string{
		eventsourcing.LabelOperation: operationBatch,
		labelListener:                l.Name(),
	}

	if err != nil {
		labels[eventsourcing.LabelStatus] = eventsourcing.StatusError
		l.cfg.observer.RecordDuration(ctx, metricBatchDuration, time.Since(start), labels)
		l.cfg.observer.FinishSpan(span, eventsourcing.StatusError, nil)

		return 0, err
	}

	labels[eventsourcing.LabelStatus] = eventsourcing.StatusSuccess
	duration := time.Since(start)
	l.cfg.observer.Debug(ctx, logMsgBatchCommitted,
		logAttrListener, l.Name(),
		logAttrBatchSize, processed,
		logAttrDurationMS, eventsourcing.ToMilliseconds(duration))
	l.cfg.observer.RecordDuration(ctx, metricBatchDuration, duration, labels)
	l.cfg.observer.RecordValue(ctx, metricBatchSize, float64(processed), labels)
	l.cfg.observer.FinishSpan(span, eventsourcing.StatusSuccess, map[string]string{logAttrBatchSize: strconv.Itoa(processed)})

	if status.YieldPolicy() == YieldAfterTransaction {
		runtime.Gosched()
		status.recordYield()
	}

	return processed, nil
}

var errPermanent = errors.New("permanent batch failure")
var errRetriesExhausted = errors.New("batch retries exhausted")

func (l *TransactionalListener) drop(batch []queuedEvent, err error) {
	ctx := batch[0].ctx

	errorType := errorTypePermanent
	switch {
	case errors.Is(err, errRetriesExhausted):
		errorType = errorTypeRetriesExhausted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		errorType = errorTypeContextDone
	}

	l.droppedEvents.Add(int64(len(batch)))
	l.cfg.observer.Error(ctx, logMsgBatchFailed, err,
		logAttrListener, l.Name(),
		logAttrBatchSize, len(batch),
		logAttrEventID, batch[0].event.EventID().String())
	l.cfg.observer.IncrementCounter(ctx, metricBatchesDropped, map[string]string{
		eventsourcing.LabelOperation: operationBatch,
		eventsourcing.LabelStatus:    eventsourcing.StatusError,
		eventsourcing.LabelErrorType: errorType,
		labelListener:                l.Name(),
	})
}
