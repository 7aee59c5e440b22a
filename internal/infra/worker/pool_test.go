package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(3, 16, newTestLogger())
	p.Start(ctx)
	defer p.Stop()

	var wg sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func(ctx context.Context) error {
			defer wg.Done()
			ran.Add(1)
			return nil
		}))
	}
	wg.Wait()
	assert.Equal(t, int32(10), ran.Load())
}

func TestPool_FailingTaskDoesNotStopWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(1, 4, newTestLogger())
	p.Start(ctx)
	defer p.Stop()

	done := make(chan struct{})
	require.NoError(t, p.Submit(func(ctx context.Context) error { return errors.New("store down") }))
	require.NoError(t, p.Submit(func(ctx context.Context) error { panic("boom") }))
	require.NoError(t, p.Submit(func(ctx context.Context) error { close(done); return nil }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive failing tasks")
	}
}

func TestPool_SubmitDropsWhenSaturated(t *testing.T) {
	// Not started: nothing drains the queue.
	p := NewPool(1, 1, newTestLogger())

	require.NoError(t, p.Submit(func(ctx context.Context) error { return nil }))
	err := p.Submit(func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1, newTestLogger())
	p.Start(context.Background())
	p.Stop()
	p.Stop()

	assert.ErrorIs(t, p.Submit(func(ctx context.Context) error { return nil }), ErrPoolClosed)
	assert.ErrorIs(t, p.Submit(nil), ErrNilTask)
}
