package bot_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/gatekeeper/internal/bot"
	"github.com/edgard/gatekeeper/internal/config"
	"github.com/edgard/gatekeeper/internal/database"
)

type blockingListener struct {
	started chan struct{}
}

func (l *blockingListener) Start(ctx context.Context) {
	close(l.started)
	<-ctx.Done()
}

type returningListener struct{}

func (returningListener) Start(context.Context) {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) database.Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, nil)
}

func newScheduler(t *testing.T) *bot.Scheduler {
	t.Helper()
	s, err := bot.NewScheduler(nil, &config.SchedulerConfig{}, nil, &fakeDeleter{}, nil)
	require.NoError(t, err)
	return s
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Metrics: config.MetricsConfig{Enabled: true, Addr: "127.0.0.1:0"}}
	listener := &blockingListener{started: make(chan struct{})}
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	app := bot.NewBot(discardLogger(), cfg, newStore(t), listener, newScheduler(t), metricsHandler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case <-listener.started:
	case <-time.After(5 * time.Second):
		t.Fatal("listener was not started")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunFailsWhenListenerExits(t *testing.T) {
	t.Parallel()
	app := bot.NewBot(discardLogger(), &config.Config{}, newStore(t), returningListener{}, newScheduler(t), nil)

	err := app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listener stopped unexpectedly")
}

func TestRunFailsOnBadMetricsAddr(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Metrics: config.MetricsConfig{Enabled: true, Addr: "not-an-address"}}
	listener := &blockingListener{started: make(chan struct{})}
	app := bot.NewBot(discardLogger(), cfg, newStore(t), listener, newScheduler(t), http.NotFoundHandler())

	err := app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics address")
}
