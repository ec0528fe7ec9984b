// Package scheduler runs the periodic background activities of the
// execution core. Each loop owns one scheduler; cancellation goes through
// the context, and a panicking or failing cycle never kills the loop.
package scheduler

import (
	"context"
	"time"

	"tradecore/internal/logger"
)

// IntervalScheduler fires a task on a fixed interval. A task error is
// logged and the schedule continues; consecutive failures stretch the
// wait up to MaxBackoff so a dead dependency is not hammered.
type IntervalScheduler struct {
	Name           string
	Interval       time.Duration
	MaxBackoff     time.Duration
	RunImmediately bool

	nowFn func() time.Time
}

func NewIntervalScheduler(name string, interval time.Duration) *IntervalScheduler {
	return &IntervalScheduler{
		Name:       name,
		Interval:   interval,
		MaxBackoff: 4 * interval,
		nowFn:      time.Now,
	}
}

// Start blocks until ctx is done, invoking task once per cycle.
func (s *IntervalScheduler) Start(ctx context.Context, task func(context.Context) error) {
	if s == nil || task == nil {
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("scheduler[%s]: invalid interval=%s, exit", s.Name, s.Interval)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	if s.MaxBackoff < s.Interval {
		s.MaxBackoff = s.Interval
	}

	logger.Infof("scheduler[%s]: started interval=%s run_immediately=%v", s.Name, s.Interval, s.RunImmediately)

	failures := 0
	runOnce := func() {
		if err := task(ctx); err != nil {
			failures++
			logger.Warnf("scheduler[%s]: cycle failed (streak=%d): %v", s.Name, failures, err)
			return
		}
		failures = 0
	}

	if s.RunImmediately {
		runOnce()
	}

	for {
		wait := s.Interval
		if failures > 0 {
			wait = s.Interval * time.Duration(1<<min(failures, 8))
			if wait > s.MaxBackoff {
				wait = s.MaxBackoff
			}
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("scheduler[%s]: ctx done, exit", s.Name)
			return
		case <-timer.C:
		}
		runOnce()
	}
}
