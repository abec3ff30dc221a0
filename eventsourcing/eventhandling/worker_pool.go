package eventhandling

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const defaultWorkerCount = 5

// Executor runs submitted tasks asynchronously.
// Submit must not run the task in the caller's goroutine and reports a rejected task with an error.
type Executor interface {
	Submit(task func()) error
}

// WorkerPool runs tasks on a fixed number of worker goroutines, fed by a FIFO queue.
type WorkerPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []func()
	capacity int
	closed   bool
	workers  errgroup.Group
	panics   atomic.Int64
	onPanic  func(recovered any)
}

// NewWorkerPool starts a pool with the given number of workers.
// A queueCapacity of 0 makes the queue unbounded, otherwise Submit fails with ErrPoolSaturated when it is full.
func NewWorkerPool(workerCount, queueCapacity int) (*WorkerPool, error) {
	if workerCount <= 0 {
		return nil, ErrInvalidWorkerCount
	}

	if queueCapacity < 0 {
		return nil, ErrInvalidQueueCapacity
	}

	p := &WorkerPool{capacity: queueCapacity}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < workerCount; i++ {
		p.workers.Go(p.work)
	}

	return p, nil
}

// Submit queues the task.
func (p *WorkerPool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolShutdown
	}

	if p.capacity > 0 && len(p.queue) >= p.capacity {
		return ErrPoolSaturated
	}

	p.queue = append(p.queue, task)
	p.cond.Signal()

	return nil
}

// Shutdown refuses new tasks and waits until the queued ones are done or ctx is done.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueLength returns the number of tasks waiting for a worker.
func (p *WorkerPool) QueueLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.queue)
}

// PanicCount returns the number of tasks that panicked.
func (p *WorkerPool) PanicCount() int64 {
	return p.panics.Load()
}

func (p *WorkerPool) work() error {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}

		if len(p.queue) == 0 {
			p.mu.Unlock()
			return nil
		}

		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(task)
	}
}

func (p *WorkerPool) run(task func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			p.panics.Add(1)
			if p.onPanic != nil {
				p.onPanic(recovered)
			}
		}
	}()

	task()
}
