package usecase

import (
	"context"
	"time"

	"flatwatch/internal/domain"
	"flatwatch/internal/ports"
)

// Scheduler wires the cron-like driver with the watcher. Ticks fire on
// schedule even if the previous cycle is still running.
type Scheduler struct {
	driver  ports.Scheduler
	watcher *Watcher
	watches []UserWatch
	alerter ports.AdminAlerter
	fatal   chan error
}

// NewScheduler returns a helper to start/stop recurring polling cycles.
func NewScheduler(driver ports.Scheduler, watcher *Watcher, watches []UserWatch, alerter ports.AdminAlerter) *Scheduler {
	return &Scheduler{
		driver:  driver,
		watcher: watcher,
		watches: watches,
		alerter: alerter,
		fatal:   make(chan error, 1),
	}
}

// Start registers the polling cycle with the provided scheduler driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.watcher == nil {
		return nil
	}

	job := func(time.Time) {
		if err := s.watcher.RunCycle(ctx, s.watches); err != nil {
			if s.alerter != nil {
				s.alerter.Critical(ctx, domain.ErrorDetails{
					Type:    domain.Classify(err),
					Message: err.Error(),
				})
			}
			select {
			case s.fatal <- err:
			default:
			}
		}
	}

	return s.driver.Start(ctx, job)
}

// Fatal exposes unrecoverable cycle errors (a broken repository) so the
// entrypoint can decide to terminate instead of silently continuing.
func (s *Scheduler) Fatal() <-chan error {
	return s.fatal
}

// Stop gracefully tears down the underlying scheduler; in-flight cycles are
// not aborted.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
