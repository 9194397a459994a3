package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/gatekeeper/internal/moderation"
	"github.com/edgard/gatekeeper/internal/registration"
)

// NewRouter returns the default handler: it receives every update no
// command or callback handler matched. Group messages go to moderation,
// private text to the registration flow or the main menu.
func NewRouter(deps HandlerDeps) bot.HandlerFunc {
	h := router{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type router struct {
	deps HandlerDeps
}

func (h router) handle(ctx context.Context, m Messenger, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	switch {
	case isGroupChat(msg.Chat.Type):
		h.handleGroup(ctx, msg)
	case msg.Chat.Type == models.ChatTypePrivate:
		h.handlePrivate(ctx, m, msg)
	}
}

func (h router) handleGroup(ctx context.Context, msg *models.Message) {
	// Channel posts and anonymous admins have no user to check.
	if msg.From == nil || msg.From.IsBot || msg.SenderChat != nil {
		return
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" {
		return
	}

	h.deps.Moderator.OnGroupMessage(ctx, moderation.GroupMessage{
		ChatID:       msg.Chat.ID,
		ChatUsername: msg.Chat.Username,
		MessageID:    msg.ID,
		Text:         text,
		Sender: moderation.Sender{
			ID:        msg.From.ID,
			Username:  msg.From.Username,
			FirstName: msg.From.FirstName,
		},
	})
}

func (h router) handlePrivate(ctx context.Context, m Messenger, msg *models.Message) {
	if msg.From == nil || msg.Text == "" {
		return
	}
	log := h.deps.Logger.With("handler", "private_text")
	user := *msg.From
	lang := h.deps.userLanguage(ctx, user)

	if h.deps.Machine.State(user.ID) == registration.Idle {
		send(ctx, m, log, msg.Chat.ID, mainMenu(h.deps.Catalog, lang))
		return
	}

	out := h.deps.Machine.HandleText(ctx, user.ID, msg.Text)
	if out.Err != nil {
		log.InfoContext(ctx, "Registration input rejected", "user_id", user.ID, "state", out.State, "error", out.Err)
	}
	send(ctx, m, log, msg.Chat.ID, h.deps.outcomeReply(lang, out))
}
