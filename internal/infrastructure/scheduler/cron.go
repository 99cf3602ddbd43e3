package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"flatwatch/internal/ports"
)

// CronScheduler drives polling cycles on a fixed-interval cron spec
// (typically "@every 5m"). Each tick runs in its own goroutine and there is
// no overlap guard: a slow cycle does not delay the next tick.
type CronScheduler struct {
	spec     string
	location *time.Location
	runner   *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler from a cron expression string.
func NewCronScheduler(spec string, location *time.Location) *CronScheduler {
	if location == nil {
		location = time.UTC
	}
	return &CronScheduler{spec: spec, location: location}
}

// Start registers the job and fires one immediate cycle so a fresh deployment
// does not wait a full interval before its first pass.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if c.runner != nil {
		return nil
	}

	runner := cron.New(cron.WithLocation(c.location))
	if _, err := runner.AddFunc(c.spec, func() { job(time.Now().In(c.location)) }); err != nil {
		return fmt.Errorf("schedule %q: %w", c.spec, err)
	}

	c.runner = runner
	runner.Start()

	go func() {
		select {
		case <-time.After(time.Second):
			job(time.Now().In(c.location))
		case <-ctx.Done():
		}
	}()

	return nil
}

// Stop prevents new ticks and waits, bounded by ctx, for running cycles to
// settle. In-flight scrapes are not aborted.
func (c *CronScheduler) Stop(ctx context.Context) error {
	if c.runner == nil {
		return nil
	}

	settled := c.runner.Stop()
	c.runner = nil

	select {
	case <-settled.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}
