package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"telegram-start-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Task is a detached unit of work. Its error is logged and discarded.
type Task func(ctx context.Context) error

var (
	ErrNilTask    = errors.New("nil task")
	ErrQueueFull  = errors.New("worker queue full")
	ErrPoolClosed = errors.New("worker pool closed")
)

// Pool runs submitted tasks on a fixed set of goroutines with best-effort
// delivery: Submit never blocks, a saturated queue drops the task, a failed
// task is never retried, and tasks still queued at Stop are abandoned.
// There is no ordering guarantee between tasks.
type Pool struct {
	wg     sync.WaitGroup
	jobs   chan Task
	quit   chan struct{}
	n      int
	closed atomic.Bool
	log    *zerolog.Logger
}

func NewPool(workers, queue int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = workers * 4
	}
	return &Pool{
		jobs: make(chan Task, queue),
		quit: make(chan struct{}),
		n:    workers,
		log:  logger,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.IncBackgroundTask("failed")
			p.log.Error().Int("worker", id).Interface("panic", rec).Msg("background task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		metrics.IncBackgroundTask("failed")
		p.log.Warn().Int("worker", id).Err(err).Msg("background task failed")
		return
	}
	metrics.IncBackgroundTask("completed")
}

// Stop signals the workers and waits for in-flight tasks. It is idempotent.
func (p *Pool) Stop() {
	if p.closed.Swap(true) {
		return
	}
	close(p.quit)
	p.wg.Wait()
	if n := len(p.jobs); n > 0 {
		p.log.Warn().Int("abandoned", n).Msg("worker pool stopped with queued tasks")
	}
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if p.closed.Load() {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		// drop when saturated to avoid back-pressure on the update path
		metrics.IncBackgroundTask("dropped")
		return fmt.Errorf("%w (capacity %d)", ErrQueueFull, cap(p.jobs))
	}
}
