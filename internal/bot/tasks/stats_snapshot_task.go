package tasks

import (
	"context"
	"fmt"
	"time"
)

const statsSnapshotTimeout = 30 * time.Second

// newStatsSnapshotTask refreshes the store aggregate gauges.
func newStatsSnapshotTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "stats_snapshot")

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, statsSnapshotTimeout)
		defer cancel()

		stats, err := deps.Store.Stats(ctx)
		if err != nil {
			log.ErrorContext(ctx, "Failed to read stats", "error", err)
			return fmt.Errorf("stats snapshot failed: %w", err)
		}

		deps.Metrics.ObserveStats(stats.ActiveGroups, stats.ModerationRecords, stats.Users)
		log.DebugContext(ctx, "Stats snapshot refreshed",
			"active_groups", stats.ActiveGroups,
			"moderation_records", stats.ModerationRecords,
			"users", stats.Users)
		return nil
	}
}
