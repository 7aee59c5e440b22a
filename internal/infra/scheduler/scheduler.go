package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Job is the unit the scheduler runs on every tick.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler periodically runs a Job.
type Scheduler struct {
	interval time.Duration
	job      Job
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler constructs a scheduler that runs job every `interval`.
// If interval <= 0 it defaults to 1 minute.
func NewScheduler(interval time.Duration, job Job, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		interval: interval,
		job:      job,
		log:      logger,
		done:     make(chan struct{}),
	}
}

// Start begins the scheduler loop in a background goroutine. The job runs
// once immediately. Calling Start multiple times has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel

	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	l := s.log.With().Str("job", s.job.Name()).Logger()
	l.Debug().Dur("interval", s.interval).Msg("scheduler started")
	s.runOnce(&l)
	for {
		select {
		case <-s.ctx.Done():
			l.Debug().Msg("scheduler stopping")
			return
		case <-ticker.C:
			s.runOnce(&l)
		}
	}
}

// runOnce bounds a single run by the interval so runs never overlap.
func (s *Scheduler) runOnce(l *zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.interval)
	defer cancel()
	if err := s.job.Run(runCtx); err != nil {
		l.Warn().Err(err).Msg("scheduled job failed")
	}
}

// Stop cancels the scheduler and waits for the loop to finish. It is idempotent.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
}
