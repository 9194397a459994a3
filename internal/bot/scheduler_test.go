package bot_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/gatekeeper/internal/bot"
	"github.com/edgard/gatekeeper/internal/bot/tasks"
	"github.com/edgard/gatekeeper/internal/config"
)

type deletedMessage struct {
	chatID    int64
	messageID int
}

type fakeDeleter struct {
	mu      sync.Mutex
	deleted []deletedMessage
	err     error
}

func (f *fakeDeleter) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, deletedMessage{chatID, messageID})
	return f.err
}

func (f *fakeDeleter) calls() []deletedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]deletedMessage(nil), f.deleted...)
}

func startScheduler(t *testing.T, deleter bot.MessageDeleter) *bot.Scheduler {
	t.Helper()
	s, err := bot.NewScheduler(nil, &config.SchedulerConfig{}, nil, deleter, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestScheduleDeleteFires(t *testing.T) {
	t.Parallel()
	deleter := &fakeDeleter{}
	s := startScheduler(t, deleter)

	_, err := s.ScheduleDelete(-100, 7, 50*time.Millisecond)
	require.NoError(t, err)
	_, err = s.ScheduleDelete(-200, 8, 80*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(deleter.calls()) == 2 }, 5*time.Second, 20*time.Millisecond)
	assert.ElementsMatch(t, []deletedMessage{{-100, 7}, {-200, 8}}, deleter.calls())
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestScheduleDeleteFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	deleter := &fakeDeleter{err: errors.New("message to delete not found")}
	s := startScheduler(t, deleter)

	_, err := s.ScheduleDelete(-100, 9, 20*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(deleter.calls()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, 5*time.Second, 20*time.Millisecond)

	// Never retried.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, deleter.calls(), 1)
}

func TestCancelPendingDeletion(t *testing.T) {
	t.Parallel()
	deleter := &fakeDeleter{}
	s := startScheduler(t, deleter)

	id, err := s.ScheduleDelete(-100, 10, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Pending())

	require.NoError(t, s.Cancel(id))
	assert.Equal(t, 0, s.Pending())
	assert.ErrorIs(t, s.Cancel(id), bot.ErrUnknownJob)
	assert.ErrorIs(t, s.Cancel(uuid.New()), bot.ErrUnknownJob)
	assert.Empty(t, deleter.calls())
}

func TestSchedulerStartStop(t *testing.T) {
	t.Parallel()
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"known":    {Enabled: true, Schedule: "0 4 * * *"},
		"disabled": {Enabled: false, Schedule: "0 4 * * *"},
		"unknown":  {Enabled: true, Schedule: "0 4 * * *"},
	}}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"known":    func(context.Context) error { return nil },
		"disabled": func(context.Context) error { return nil },
	}

	s, err := bot.NewScheduler(nil, cfg, taskMap, &fakeDeleter{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}
