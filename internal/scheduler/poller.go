package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/pauljones0/slickdeals-discord-bot/internal/processor"
)

// Poller runs a processing cycle, then sleeps a fixed interval before the
// next one. A manual trigger cuts the sleep short.
type Poller struct {
	processor    processor.Processor
	startupDelay time.Duration
	interval     time.Duration
	trigger      chan struct{}
	log          *slog.Logger
}

func New(p processor.Processor, startupDelay, interval time.Duration, log *slog.Logger) *Poller {
	return &Poller{
		processor:    p,
		startupDelay: startupDelay,
		interval:     interval,
		trigger:      make(chan struct{}, 1),
		log:          log,
	}
}

// Trigger asks for an early cycle without blocking. It reports false when a
// trigger is already pending; both requests are served by one cycle.
func (s *Poller) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run blocks until ctx is done. It returns nil on cancellation.
func (s *Poller) Run(ctx context.Context) error {
	if !s.wait(ctx, s.startupDelay, false) {
		return nil
	}

	for cycle := 1; ; cycle++ {
		start := time.Now()
		s.log.Info("Starting poll cycle", "cycle", cycle)
		if err := s.processor.ProcessDeals(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("Poll cycle failed", "cycle", cycle, "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		s.log.Info("Finished poll cycle", "cycle", cycle, "duration", time.Since(start).Round(time.Millisecond), "next_in", s.interval)

		if !s.wait(ctx, s.interval, true) {
			return nil
		}
	}
}

// wait sleeps for d, or less if triggerable and a trigger arrives. It reports
// false when ctx ended.
func (s *Poller) wait(ctx context.Context, d time.Duration, triggerable bool) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var trigger <-chan struct{}
	if triggerable {
		trigger = s.trigger
	}

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-trigger:
		s.log.Info("Manual poll triggered")
		return true
	}
}
