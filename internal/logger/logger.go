// Package logger provides structured logging for the bot.
// It uses Go's slog package with configurable levels and formats.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const previewLen = 50

// NewLogger creates a new slog Logger with the specified level and format
// writing to stdout, and installs it as the default logger.
// If jsonOutput is true, logs will be formatted as JSON, otherwise as text.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	logger := newLogger(os.Stdout, levelStr, jsonOutput)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, levelStr string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(levelStr),
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Middleware creates a logging middleware for the Telegram bot.
// It logs every incoming update with its chat, sender, a short text preview
// and how long handling took.
func Middleware(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			startTime := time.Now()

			logEntry := updateLogger(log, update)
			logEntry.DebugContext(ctx, "Processing update")

			next(ctx, b, update)

			logEntry.InfoContext(ctx, "Finished processing update", "duration", time.Since(startTime))
		}
	}
}

func updateLogger(log *slog.Logger, update *models.Update) *slog.Logger {
	logEntry := log.With("update_id", update.ID)

	switch {
	case update.Message != nil:
		msg := update.Message
		text := msg.Text
		if text == "" {
			text = msg.Caption
		}
		logEntry = logEntry.With(
			"update_type", "message",
			"message_id", msg.ID,
			"chat_id", msg.Chat.ID,
			"chat_type", msg.Chat.Type,
			"text_preview", truncateString(text, previewLen),
		)
		if msg.From != nil {
			logEntry = logEntry.With("user_id", msg.From.ID)
		}
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		logEntry = logEntry.With(
			"update_type", "callback_query",
			"callback_query_id", q.ID,
			"user_id", q.From.ID,
			"data", q.Data,
		)
		switch {
		case q.Message.Message != nil:
			logEntry = logEntry.With("chat_id", q.Message.Message.Chat.ID, "message_accessible", true)
		case q.Message.InaccessibleMessage != nil:
			logEntry = logEntry.With("chat_id", q.Message.InaccessibleMessage.Chat.ID, "message_accessible", false)
		}
	default:
		logEntry = logEntry.With("update_type", "other")
	}
	return logEntry
}

// truncateString shortens s to at most maxLen runes, marking the cut.
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}
