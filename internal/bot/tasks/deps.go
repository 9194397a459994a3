// Package tasks implements the periodic maintenance tasks run by the scheduler.
package tasks

import (
	"log/slog"

	"github.com/edgard/gatekeeper/internal/config"
	"github.com/edgard/gatekeeper/internal/database"
	"github.com/edgard/gatekeeper/internal/metrics"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger  *slog.Logger
	Store   database.Store
	Metrics *metrics.Metrics
	Config  *config.Config
}
