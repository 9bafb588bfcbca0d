package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const schedulerWorkers = 4

// job is one periodic maintenance task: first run after delay, then every
// period.
type job struct {
	name   string
	delay  time.Duration
	period time.Duration
	fn     func()
}

// SyncScheduler runs the periodic jobs on a fixed-size worker pool. Ticks
// that arrive while every worker is busy are dropped, not queued: a job
// overrunning its period skips runs instead of piling up.
type SyncScheduler struct {
	logger  *zap.Logger
	workers int
	jobs    []job

	workCh chan job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newSyncScheduler(logger *zap.Logger, workers int, jobs []job) *SyncScheduler {
	if workers <= 0 {
		workers = schedulerWorkers
	}
	return &SyncScheduler{
		logger:  logger,
		workers: workers,
		jobs:    jobs,
		workCh:  make(chan job),
	}
}

func (s *SyncScheduler) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.tickLoop(ctx, j)
	}
}

func (s *SyncScheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.workCh:
			s.runJob(j)
		}
	}
}

func (s *SyncScheduler) runJob(j job) {
	defer func() {
		if r := recover(); r != nil {
			// A failing job must not take its worker down; the next
			// scheduled run is unaffected.
			s.logger.Error("scheduled job panicked",
				zap.String("job", j.name),
				zap.Any("panic", r))
		}
	}()
	j.fn()
}

func (s *SyncScheduler) tickLoop(ctx context.Context, j job) {
	defer s.wg.Done()

	timer := time.NewTimer(j.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	s.submit(j)

	ticker := time.NewTicker(j.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.submit(j)
		}
	}
}

func (s *SyncScheduler) submit(j job) {
	select {
	case s.workCh <- j:
	default:
		s.logger.Debug("scheduler pool busy, tick dropped", zap.String("job", j.name))
	}
}

// stop cancels the tick loops and waits up to 10s for running jobs.
func (s *SyncScheduler) stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(drainTimeout):
		s.logger.Warn("scheduler drain timed out")
	}
}
