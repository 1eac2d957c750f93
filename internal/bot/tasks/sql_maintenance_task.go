package tasks

import (
	"context"
	"fmt"
	"time"
)

const maintenanceTimeout = 2 * time.Minute

// newSQLMaintenanceTask runs VACUUM/ANALYZE on the record store and logs
// its size afterwards.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
		defer cancel()

		startTime := time.Now()
		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance task failed", "error", err, "duration", time.Since(startTime))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		total, invited, err := deps.Store.Count(ctx)
		if err != nil {
			log.WarnContext(ctx, "Failed to count users after maintenance", "error", err)
		}
		log.InfoContext(ctx, "SQL maintenance task completed",
			"duration", time.Since(startTime), "users", total, "invited", invited)
		return nil
	}
}
