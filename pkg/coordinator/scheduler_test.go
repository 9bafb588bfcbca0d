package coordinator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSchedulerRunsJobsPeriodically(t *testing.T) {
	var runs atomic.Int32
	s := newSyncScheduler(zap.NewNop(), 2, []job{
		{name: "counter", delay: 10 * time.Millisecond, period: 20 * time.Millisecond, fn: func() {
			runs.Add(1)
		}},
	})

	s.start(context.Background())
	time.Sleep(120 * time.Millisecond)
	s.stop()

	// First run after the delay plus several periodic runs.
	assert.GreaterOrEqual(t, runs.Load(), int32(3))

	settled := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, runs.Load(), "jobs kept running after stop")
}

func TestSchedulerDropsTicksWhenBusy(t *testing.T) {
	s := newSyncScheduler(zap.NewNop(), 1, nil)

	// No workers started: an unbuffered work channel with nobody receiving
	// must drop the submission instead of blocking the tick loop.
	done := make(chan struct{})
	go func() {
		s.submit(job{name: "orphan", fn: func() {}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submit blocked with no free worker")
	}
}

func TestSchedulerSurvivesPanickingJob(t *testing.T) {
	var runs atomic.Int32
	s := newSyncScheduler(zap.NewNop(), 1, []job{
		{name: "faulty", delay: 5 * time.Millisecond, period: 20 * time.Millisecond, fn: func() {
			runs.Add(1)
			panic("boom")
		}},
	})

	s.start(context.Background())
	time.Sleep(100 * time.Millisecond)
	s.stop()

	// The single worker must outlive the panic and keep serving ticks.
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}
