package tasks

import (
	"context"
	"fmt"
	"time"
)

// newStatsCleanupTask removes statistics files that were never delivered
// and are older than the configured maximum age.
func newStatsCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "stats_cleanup")

	return func(ctx context.Context) error {
		maxAge := deps.Config.Stats.MaxAge
		startTime := time.Now()

		removed, err := deps.Exporter.Clean(ctx, maxAge)
		duration := time.Since(startTime)
		if err != nil {
			log.ErrorContext(ctx, "Stats cleanup task failed", "error", err, "removed", removed, "duration", duration)
			return fmt.Errorf("stats cleanup failed: %w", err)
		}

		log.InfoContext(ctx, "Stats cleanup task completed", "removed", removed, "max_age", maxAge, "duration", duration)
		return nil
	}
}
