// Package scheduler drives the reminder sweep on a fixed interval,
// independent of request traffic.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"closeout.app/engine/common/logger"
	"closeout.app/engine/internal/service"
)

// Scheduler ticks the reminder service. Sweeps never overlap: a tick
// that fires while the previous sweep is still running is skipped, not
// queued.
type Scheduler struct {
	reminders service.ReminderService
	interval  time.Duration

	running   sync.Mutex
	sweeps    sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(reminders service.ReminderService, interval time.Duration) *Scheduler {
	return &Scheduler{
		reminders: reminders,
		interval:  interval,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop is called or the context ends. In-flight sweeps
// are drained before it returns.
func (s *Scheduler) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "engine.scheduler",
	})

	defer close(s.stoppedCh)
	defer s.sweeps.Wait()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reminder scheduler started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "reminder scheduler stopping")
			return
		case <-ticker.C:
			s.sweeps.Add(1)
			go func() {
				defer s.sweeps.Done()
				s.sweep(ctx)
			}()
		}
	}
}

// Stop signals the scheduler and waits for the loop and any running
// sweep to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}

func (s *Scheduler) sweep(ctx context.Context) {
	if !s.running.TryLock() {
		slog.WarnContext(ctx, "previous sweep still running, tick skipped")
		return
	}
	defer s.running.Unlock()

	sc := logger.StartSpan(ctx, "scheduler.reminder_tick", trace.WithSpanKind(trace.SpanKindInternal))
	defer sc.End()
	ctx = sc.Context()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in reminder sweep", "panic", r)
		}
	}()

	start := time.Now()
	stats, err := s.reminders.Run(ctx)
	if err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "reminder sweep failed", "error", err)
		return
	}

	if stats.Notified > 0 || stats.Failed > 0 {
		slog.InfoContext(ctx, "reminder sweep finished",
			"scanned", stats.Scanned,
			"notified", stats.Notified,
			"failed", stats.Failed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
