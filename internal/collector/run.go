package collector

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/straja-ai/textpulse/internal/redact"
)

// Run executes one cycle immediately and then one per poll interval until ctx
// is cancelled. A tick that arrives while a cycle is still running is skipped.
func (c *Collector) Run(ctx context.Context) error {
	if c.interval <= 0 {
		return fmt.Errorf("collector: poll interval must be positive, got %s", c.interval)
	}
	log.Printf("collector: watching bucket=%s every %s", c.bucket, c.interval)

	c.cycle(ctx)

	logger := cron.PrintfLogger(log.Default())
	sched := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := sched.AddFunc(fmt.Sprintf("@every %s", c.interval), func() { c.cycle(ctx) }); err != nil {
		return fmt.Errorf("schedule collector: %w", err)
	}
	sched.Start()

	<-ctx.Done()
	<-sched.Stop().Done()
	log.Printf("collector: stopped")
	return nil
}

func (c *Collector) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := c.RunCycle(ctx)
	switch {
	case err == nil:
		if report.Discovered > 0 {
			log.Printf("collector: cycle done discovered=%d processed=%d failed=%d",
				report.Discovered, report.Processed, report.Failed)
		}
	case errors.Is(err, context.Canceled):
		log.Printf("collector: cycle interrupted processed=%d", report.Processed)
	default:
		redact.Logf("collector: cycle aborted kind=%s: %v", ErrorKind(err), err)
	}
}
