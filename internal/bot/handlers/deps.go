package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/gatekeeper/internal/config"
	"github.com/edgard/gatekeeper/internal/database"
	"github.com/edgard/gatekeeper/internal/i18n"
	"github.com/edgard/gatekeeper/internal/metrics"
	"github.com/edgard/gatekeeper/internal/moderation"
	"github.com/edgard/gatekeeper/internal/registration"
	"github.com/edgard/gatekeeper/internal/telegram"
)

// GroupModerator receives every human message posted in a group.
type GroupModerator interface {
	OnGroupMessage(ctx context.Context, msg moderation.GroupMessage)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	BotID     int64
	Store     database.Store
	Catalog   *i18n.Catalog
	Gateway   telegram.Gateway
	Moderator GroupModerator
	Machine   *registration.Machine
	Metrics   *metrics.Metrics
}

// defaultChannel is the channel groups without a binding are gated on.
func (d HandlerDeps) defaultChannel() string {
	return d.Config.Telegram.DefaultChannel
}
