// Package main contains the entrypoint for the Telegram bot application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/edgard/gatekeeper/internal/bot"
	"github.com/edgard/gatekeeper/internal/bot/handlers"
	"github.com/edgard/gatekeeper/internal/bot/tasks"
	"github.com/edgard/gatekeeper/internal/config"
	"github.com/edgard/gatekeeper/internal/database"
	"github.com/edgard/gatekeeper/internal/i18n"
	"github.com/edgard/gatekeeper/internal/logger"
	"github.com/edgard/gatekeeper/internal/metrics"
	"github.com/edgard/gatekeeper/internal/moderation"
	"github.com/edgard/gatekeeper/internal/registration"
	"github.com/edgard/gatekeeper/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db, transport, bot, scheduler),
// handles graceful shutdown, and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	botID, err := telegram.BotIDFromToken(cfg.Telegram.Token)
	if err != nil {
		log.Error("Invalid Telegram token", "error", err)
		return 1
	}

	db, err := database.NewDB(cfg.Database.DSN)
	if err != nil {
		log.Error("Failed to connect to database", "dialect", database.DialectFromDSN(cfg.Database.DSN), "error", err)
		return 1
	}
	defer database.CloseDB(db) // Ensure DB is closed on function exit
	store := database.NewStore(db, log)

	catalog, err := i18n.NewCatalog(cfg.Moderation.DefaultLanguage)
	if err != nil {
		log.Error("Failed to load language bundles", "error", err)
		return 1
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	client := telegram.NewClient(cfg.Telegram.RateLimit, cfg.Telegram.RateBurst, cfg.Telegram.RequestTimeout, log)

	tDeps := tasks.TaskDeps{
		Logger:  log,
		Store:   store,
		Metrics: m,
		Config:  cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps), client, m)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	pipeline := moderation.NewPipeline(store, client, sched, catalog, m, moderation.Options{
		DefaultChannel: cfg.Telegram.DefaultChannel,
		WarningTTL:     cfg.Moderation.WarningTTL,
		CheckTimeout:   cfg.Moderation.CheckTimeout,
	}, log)

	machine := registration.NewMachine(store, client, m, registration.Options{
		BotID:          botID,
		DefaultChannel: cfg.Telegram.DefaultChannel,
		SessionTTL:     cfg.Registration.SessionTTL,
		MaxSessions:    cfg.Registration.MaxSessions,
	}, log)

	hDeps := handlers.HandlerDeps{
		Logger:    log,
		Config:    cfg,
		BotID:     botID,
		Store:     store,
		Catalog:   catalog,
		Gateway:   client,
		Moderator: pipeline,
		Machine:   machine,
		Metrics:   m,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewRouter(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}
	client.Attach(tg)

	// Retrieve bot info and store it in the config for runtime use
	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(ctx, tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, store, tg, sched, metrics.Handler(registry))

	log.Info("Starting bot...")
	runErr := app.Run(ctx) // Run blocks until context is cancelled or an error occurs
	log.Info("Bot run loop finished. Initiating shutdown...")

	// Check if the error is significant (not just context cancellation)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
