// Package scheduler triggers periodic sweeps of unsent events.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweep runs one pass. Its error is logged and the loop carries on.
type Sweep func(ctx context.Context) error

// Run calls sweep every interval until ctx is done. Sweeps never overlap:
// ticks that arrive while a sweep is running are dropped.
func Run(ctx context.Context, interval time.Duration, sweep Sweep, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("scheduler started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler exiting")
			return
		case <-ticker.C:
			start := time.Now()
			if err := sweep(ctx); err != nil {
				logger.Error("scheduled sweep failed", zap.Error(err), zap.Duration("took", time.Since(start)))
			}
			// drop a tick that queued up during a long sweep
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}
