package tasks

import (
	"context"
	"fmt"
	"time"
)

// maintenanceTimeout bounds one VACUUM run.
const maintenanceTimeout = 10 * time.Minute

// newSQLMaintenanceTask compacts the database and then refreshes the
// aggregate gauges.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
		defer cancel()

		started := time.Now()
		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance failed", "error", err, "duration", time.Since(started))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}
		log.InfoContext(ctx, "SQL maintenance done", "duration", time.Since(started))

		if stats, err := deps.Store.Stats(ctx); err != nil {
			log.WarnContext(ctx, "Failed to refresh stats after maintenance", "error", err)
		} else {
			deps.Metrics.ObserveStats(stats.ActiveGroups, stats.ModerationRecords, stats.Users)
		}
		return nil
	}
}
