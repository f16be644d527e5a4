package tasks

import (
	"context"
	"log"
	"time"
)

// Task is one iteration of a background job
type Task func(ctx context.Context) error

// RunPeriodic runs task immediately and then every interval until ctx is
// cancelled. Errors are logged and do not stop the loop.
//
//	go tasks.RunPeriodic(ctx, 500*time.Millisecond, logger, "Energy", func(ctx context.Context) error {
//	    monitor.Tick(time.Now())
//	    return nil
//	})
func RunPeriodic(ctx context.Context, interval time.Duration, logger *log.Logger, name string, task Task) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run(ctx, logger, name, task)

	for {
		select {
		case <-ctx.Done():
			if logger != nil {
				logger.Printf("[%s] Background task stopped", name)
			}
			return
		case <-ticker.C:
			run(ctx, logger, name, task)
		}
	}
}

func run(ctx context.Context, logger *log.Logger, name string, task Task) {
	if ctx.Err() != nil {
		return
	}
	if err := task(ctx); err != nil && logger != nil {
		logger.Printf("[%s] Background task error: %v", name, err)
	}
}
