package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler triggers periodic aggregation runs on a fixed interval.
// Overlap protection lives in SchedulePeriodicAggregation, not here.
type Scheduler struct {
	orch     *Orchestrator
	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
}

func NewScheduler(orch *Orchestrator, interval time.Duration) *Scheduler {
	return &Scheduler{
		orch:     orch,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start launches the ticker loop. The first run fires after one interval.
// Subsequent calls are no-ops.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				started, err := s.orch.SchedulePeriodicAggregation(ctx)
				if err != nil {
					slog.Error("scheduled aggregation failed", "error", err)
				} else if started {
					slog.Info("scheduled aggregation completed")
				}
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()

	slog.Info("aggregation scheduler started", "interval", s.interval)
}

// Stop halts the ticker loop; an in-flight run finishes on its own. Safe to
// call more than once and concurrently with the loop.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}
