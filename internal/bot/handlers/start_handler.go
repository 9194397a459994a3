package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/gatekeeper/internal/i18n"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	h := startHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

// startHandler processes the /start command using injected dependencies.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) handle(ctx context.Context, m Messenger, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	if update.Message.Chat.Type != models.ChatTypePrivate {
		log.DebugContext(ctx, "Ignoring /start outside private chat", "chat_id", update.Message.Chat.ID)
		return
	}

	user := *update.Message.From
	log.InfoContext(ctx, "Handling /start command", "chat_id", update.Message.Chat.ID, "user_id", user.ID)

	if err := h.deps.touchProfile(ctx, user); err != nil {
		log.ErrorContext(ctx, "Failed to save user profile", "error", err, "user_id", user.ID)
	}

	lang := h.deps.userLanguage(ctx, user)
	welcome := h.deps.Catalog.Render(lang, i18n.KeyWelcome, i18n.Params{"name": user.FirstName})
	send(ctx, m, log, update.Message.Chat.ID, reply{text: welcome})
	send(ctx, m, log, update.Message.Chat.ID, mainMenu(h.deps.Catalog, lang))
}
