package eventhandling

import "errors"

var ErrBusShutdown = errors.New("event bus is shut down")
var ErrEventRejected = errors.New("event was rejected by the executor")
var ErrPoolSaturated = errors.New("worker pool queue is full")
var ErrPoolShutdown = errors.New("worker pool is shut down")
var ErrNilListener = errors.New("listener must not be nil")
var ErrNilExecutor = errors.New("executor must not be nil")
var ErrNilTransactionManager = errors.New("transaction manager must not be nil")
var ErrInvalidWorkerCount = errors.New("worker count must be positive")
var ErrInvalidQueueCapacity = errors.New("queue capacity must not be negative")
var ErrInvalidCommitThreshold = errors.New("commit threshold must be positive")
var ErrListenerNotRunning = errors.New("transactional listener is not running")
var ErrListenerAlreadyStarted = errors.New("transactional listener was already started")
