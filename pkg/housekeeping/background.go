// Package housekeeping runs a named maintenance task at a regular interval
// for the lifetime of a long-running process.
package housekeeping

import (
	"context"
	"time"

	"medialib/pkg/logging"
)

// Run invokes task immediately and then every interval, logging under name,
// until ctx is cancelled. It is designed to run as a background goroutine
// for the life of medialibd, driving periodic FileIndex maintenance (e.g. a
// full Refresh to catch changes a ChangeMonitor missed) without each call
// site reimplementing its own ticker loop.
func Run(ctx context.Context, name string, interval time.Duration, logger *logging.Logger, task func() error) {
	sublogger := logger.Sublogger(name)

	runOnce := func() {
		sublogger.Info("Running")
		if err := task(); err != nil {
			sublogger.Warn(err)
		}
	}

	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
