package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewCancelHandler returns a handler for the /cancel command.
func NewCancelHandler(deps HandlerDeps) bot.HandlerFunc {
	h := cancelHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type cancelHandler struct {
	deps HandlerDeps
}

func (h cancelHandler) handle(ctx context.Context, m Messenger, update *models.Update) {
	log := h.deps.Logger.With("handler", "cancel")

	if update.Message == nil || update.Message.From == nil || update.Message.Chat.Type != models.ChatTypePrivate {
		return
	}

	user := *update.Message.From
	out := h.deps.Machine.Cancel(user.ID)
	log.InfoContext(ctx, "Registration cancelled by user", "user_id", user.ID)

	send(ctx, m, log, update.Message.Chat.ID, h.deps.outcomeReply(h.deps.userLanguage(ctx, user), out))
}
