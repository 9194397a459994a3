// Package bot implements the bot lifecycle and component orchestration:
// the Telegram listener, the scheduler, and the metrics endpoint.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/gatekeeper/internal/config"
	"github.com/edgard/gatekeeper/internal/database"
)

const shutdownTimeout = 10 * time.Second

// Listener receives Telegram updates until ctx is cancelled.
// *bot.Bot from go-telegram/bot satisfies it.
type Listener interface {
	Start(ctx context.Context)
}

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger         *slog.Logger
	cfg            *config.Config
	store          database.Store
	listener       Listener
	scheduler      *Scheduler
	metricsHandler http.Handler
}

// NewBot creates a new instance of the bot with all required dependencies.
// metricsHandler is served on cfg.Metrics.Addr when metrics are enabled.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	store database.Store,
	listener Listener,
	scheduler *Scheduler,
	metricsHandler http.Handler,
) *Bot {
	return &Bot{
		logger:         logger.With("component", "bot_orchestrator"),
		cfg:            cfg,
		store:          store,
		listener:       listener,
		scheduler:      scheduler,
		metricsHandler: metricsHandler,
	}
}

// Run starts the bot and all its components, handling graceful shutdown on context cancellation.
// It returns an error if any component fails during startup or execution.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	if err := b.store.Ping(ctx); err != nil {
		return fmt.Errorf("store is not reachable: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")

		b.listener.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")

			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}

		return nil
	})

	if b.cfg.Metrics.Enabled && b.metricsHandler != nil {
		g.Go(func() error {
			return b.serveMetrics(gCtx)
		})
	}

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

func (b *Bot) serveMetrics(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on metrics address %s: %w", b.cfg.Metrics.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", b.metricsHandler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			b.logger.Error("Error stopping metrics server", "error", err)
		}
	}()

	b.logger.Info("Metrics server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	b.logger.Info("Metrics server stopped.")
	return nil
}
