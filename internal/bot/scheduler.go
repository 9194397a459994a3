package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/edgard/gatekeeper/internal/bot/tasks"
	"github.com/edgard/gatekeeper/internal/config"
	"github.com/edgard/gatekeeper/internal/metrics"
)

// deleteTimeout bounds a single deferred delete call.
const deleteTimeout = 30 * time.Second

// ErrUnknownJob is returned by Cancel for handles that are not pending.
var ErrUnknownJob = errors.New("scheduled deletion not found")

// MessageDeleter removes a chat message.
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Scheduler runs periodic maintenance tasks and one-shot deferred message
// deletions on a single gocron scheduler.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	deleter   MessageDeleter
	metrics   *metrics.Metrics
	mu        sync.Mutex // To protect access during start/stop
	running   bool

	pendingMu sync.Mutex
	pending   map[uuid.UUID]struct{}
}

// NewScheduler creates a new scheduler instance using gocron.
func NewScheduler(
	logger *slog.Logger,
	cfg *config.SchedulerConfig,
	taskMap map[string]tasks.ScheduledTaskFunc,
	deleter MessageDeleter,
	m *metrics.Metrics,
) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "scheduler")

	s, err := gocron.NewScheduler(gocron.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		cfg:       cfg,
		taskMap:   taskMap,
		deleter:   deleter,
		metrics:   m,
		pending:   make(map[uuid.UUID]struct{}),
	}, nil
}

// Start schedules and starts all enabled periodic tasks. Deferred deletions
// queued before Start fire once the scheduler is running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.logger.Debug("Configuring scheduler jobs...")

	scheduledCount := 0
	if s.cfg == nil || len(s.cfg.Tasks) == 0 {
		s.logger.Warn("No scheduler tasks configured.")
	}
	for taskName, taskConfig := range s.tasks() {
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.taskMap[taskName]
		if !exists {
			s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", taskName)
			continue
		}

		if taskConfig.Schedule == "" {
			s.logger.Warn("Scheduled task enabled but has empty schedule, skipping", "task_name", taskName)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, false),
			gocron.NewTask(
				func(ctx context.Context, name string) {
					s.logger.Info("Running scheduled task", "task_name", name)
					startTime := time.Now()
					if taskErr := taskFunc(ctx); taskErr != nil {
						s.logger.Error("Scheduled task failed", "task_name", name, "error", taskErr)
					}
					s.logger.Info("Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
				},
				context.Background(),
				taskName,
			),
			gocron.WithName(taskName),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", taskConfig.Schedule, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule)
		scheduledCount++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler initialized and started", "tasks_scheduled", scheduledCount)

	return nil
}

func (s *Scheduler) tasks() map[string]config.TaskConfig {
	if s.cfg == nil {
		return nil
	}
	return s.cfg.Tasks
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
// Pending deletions that have not fired are dropped.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	s.logger.Debug("Stopping scheduler gracefully (waiting for jobs)...", "pending_deletions", s.Pending())
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}

// ScheduleDelete arms a one-shot job that deletes messageID in chatID after
// delay. The returned handle can be passed to Cancel. A failed delete is
// logged and dropped, never retried.
func (s *Scheduler) ScheduleDelete(chatID int64, messageID int, delay time.Duration) (uuid.UUID, error) {
	if s.deleter == nil {
		return uuid.Nil, fmt.Errorf("scheduler has no message deleter")
	}

	id := uuid.New()
	s.track(id)

	_, err := s.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(delay))),
		gocron.NewTask(s.deleteMessage, chatID, messageID),
		gocron.WithIdentifier(id),
		gocron.WithName(fmt.Sprintf("delete:%d:%d", chatID, messageID)),
		gocron.WithLimitedRuns(1),
		gocron.WithEventListeners(gocron.AfterJobRuns(func(jobID uuid.UUID, _ string) {
			s.forget(jobID)
		})),
	)
	if err != nil {
		s.forget(id)
		s.logger.Error("Failed to schedule message deletion", "chat_id", chatID, "message_id", messageID, "error", err)
		return uuid.Nil, fmt.Errorf("failed to schedule deletion of message %d: %w", messageID, err)
	}

	s.logger.Debug("Scheduled message deletion", "chat_id", chatID, "message_id", messageID, "delay", delay, "job_id", id)
	return id, nil
}

// Cancel removes a pending deletion.
func (s *Scheduler) Cancel(id uuid.UUID) error {
	s.pendingMu.Lock()
	_, ok := s.pending[id]
	s.pendingMu.Unlock()
	if !ok {
		return ErrUnknownJob
	}

	if err := s.scheduler.RemoveJob(id); err != nil {
		if errors.Is(err, gocron.ErrJobNotFound) {
			s.forget(id)
			return ErrUnknownJob
		}
		return fmt.Errorf("failed to cancel deletion %s: %w", id, err)
	}
	s.forget(id)
	return nil
}

// Pending returns the number of armed deletions.
func (s *Scheduler) Pending() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) deleteMessage(chatID int64, messageID int) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()

	if err := s.deleter.DeleteMessage(ctx, chatID, messageID); err != nil {
		s.metrics.SideEffectFailed("delete_warning")
		s.logger.Warn("Deferred message deletion failed", "chat_id", chatID, "message_id", messageID, "error", err)
		return
	}
	s.logger.Debug("Deferred message deletion done", "chat_id", chatID, "message_id", messageID)
}

func (s *Scheduler) track(id uuid.UUID) {
	s.pendingMu.Lock()
	s.pending[id] = struct{}{}
	n := len(s.pending)
	s.pendingMu.Unlock()
	s.metrics.SetPendingDeletions(n)
}

func (s *Scheduler) forget(id uuid.UUID) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	n := len(s.pending)
	s.pendingMu.Unlock()
	s.metrics.SetPendingDeletions(n)
}
