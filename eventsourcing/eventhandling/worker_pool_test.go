package eventhandling_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing/eventhandling"
)

func Test_WorkerPool_Submit_When_TheQueueIsFull(t *testing.T) {
	// setup
	pool, err := eventhandling.NewWorkerPool(1, 1)
	require.NoError(t, err)

	// arrange
	started, release := make(chan struct{}), make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, pool.Submit(func() {}))

	// act
	err = pool.Submit(func() {})

	// assert
	assert.ErrorIs(t, err, eventhandling.ErrPoolSaturated)
	assert.Equal(t, 1, pool.QueueLength())

	close(release)
	assert.NoError(t, pool.Shutdown(context.Background()))
}

func Test_WorkerPool_Shutdown_RunsTheQueuedTasksAndRefusesNewOnes(t *testing.T) {
	// setup
	pool, err := eventhandling.NewWorkerPool(3, 0)
	require.NoError(t, err)

	// arrange
	var ran atomic.Int64
	for range 100 {
		require.NoError(t, pool.Submit(func() { ran.Add(1) }))
	}

	// act
	err = pool.Shutdown(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(100), ran.Load())
	assert.ErrorIs(t, pool.Submit(func() {}), eventhandling.ErrPoolShutdown)
}

func Test_WorkerPool_Shutdown_When_TheContextExpires(t *testing.T) {
	// setup
	pool, err := eventhandling.NewWorkerPool(1, 0)
	require.NoError(t, err)

	// arrange
	release := make(chan struct{})
	require.NoError(t, pool.Submit(func() { <-release }))

	// act
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = pool.Shutdown(ctx)

	// assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	assert.NoError(t, pool.Shutdown(context.Background()))
}

func Test_WorkerPool_When_ATaskPanics(t *testing.T) {
	// setup
	pool, err := eventhandling.NewWorkerPool(1, 0)
	require.NoError(t, err)

	// arrange
	var ranAfterPanic atomic.Bool
	require.NoError(t, pool.Submit(func() { panic("boom") }))
	require.NoError(t, pool.Submit(func() { ranAfterPanic.Store(true) }))

	// act
	require.NoError(t, pool.Shutdown(context.Background()))

	// assert
	assert.Equal(t, int64(1), pool.PanicCount())
	assert.True(t, ranAfterPanic.Load())
}

func Test_NewWorkerPool_When_ArgumentsAreInvalid(t *testing.T) {
	_, err := eventhandling.NewWorkerPool(0, 0)
	assert.ErrorIs(t, err, eventhandling.ErrInvalidWorkerCount)

	_, err = eventhandling.NewWorkerPool(1, -1)
	assert.ErrorIs(t, err, eventhandling.ErrInvalidQueueCapacity)
}
