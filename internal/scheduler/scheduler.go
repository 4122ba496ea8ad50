package scheduler

import (
	"context"
	"time"

	"hedger/internal/logger"
)

// TickScheduler runs a task on a fixed interval. One scheduler drives one
// monitoring class; tasks iterate their own batch instead of spawning a
// goroutine per position.
type TickScheduler struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool

	ctx context.Context
}

func NewTickScheduler(ctx context.Context, name string, interval time.Duration) *TickScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &TickScheduler{Name: name, Interval: interval, ctx: ctx}
}

// Start blocks until the context is cancelled.
func (s *TickScheduler) Start(task func()) {
	if s == nil || task == nil {
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("TickScheduler[%s]: invalid interval=%s, exit", s.Name, s.Interval)
		return
	}
	logger.Infof("TickScheduler[%s]: started interval=%s run_immediately=%v", s.Name, s.Interval, s.RunImmediately)
	if s.RunImmediately {
		task()
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			logger.Infof("TickScheduler[%s]: ctx done, exit", s.Name)
			return
		case <-ticker.C:
			task()
		}
	}
}

// AlignedScheduler fires once per alignment boundary (e.g. every completed
// hour), offset by a small delay so the upstream data source has finished
// writing the candle.
type AlignedScheduler struct {
	Name     string
	Interval time.Duration
	Offset   time.Duration

	ctx   context.Context
	nowFn func() time.Time
}

func NewAlignedScheduler(ctx context.Context, name string, interval, offset time.Duration) *AlignedScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &AlignedScheduler{
		Name:     name,
		Interval: interval,
		Offset:   offset,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks until the context is cancelled. The task receives the
// boundary it was triggered for.
func (s *AlignedScheduler) Start(task func(boundary time.Time)) {
	if s == nil || task == nil {
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("AlignedScheduler[%s]: invalid interval=%s, exit", s.Name, s.Interval)
		return
	}
	if s.Offset < 0 {
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	logger.Infof("AlignedScheduler[%s]: started interval=%s offset=%s", s.Name, s.Interval, s.Offset)

	for {
		now := s.nowFn().UTC()
		boundary := now.Truncate(s.Interval).Add(s.Interval)
		wakeAt := boundary.Add(s.Offset)
		wait := wakeAt.Sub(now)

		logger.Debugf("AlignedScheduler[%s]: next boundary=%s fire=%s (in %s)",
			s.Name, boundary.Format(time.RFC3339), wakeAt.Format(time.RFC3339), wait.Truncate(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			logger.Infof("AlignedScheduler[%s]: ctx done, exit", s.Name)
			return
		case <-timer.C:
		}
		task(boundary)
	}
}
