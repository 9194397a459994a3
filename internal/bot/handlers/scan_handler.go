package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/gatekeeper/internal/database"
	"github.com/edgard/gatekeeper/internal/i18n"
	"github.com/edgard/gatekeeper/internal/telegram"
)

const scanTimeout = 15 * time.Second

// NewScanHandler returns a handler for the /scan group command. It reports
// how the group is configured and whether the bot can still enforce it.
func NewScanHandler(deps HandlerDeps) bot.HandlerFunc {
	h := scanHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type scanHandler struct {
	deps HandlerDeps
}

func (h scanHandler) handle(ctx context.Context, m Messenger, update *models.Update) {
	log := h.deps.Logger.With("handler", "scan")

	if update.Message == nil {
		return
	}
	chat := update.Message.Chat
	log.InfoContext(ctx, "Handling /scan command", "chat_id", chat.ID)

	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	cfg := h.lookupConfig(ctx, chat)
	if cfg == nil {
		lang := h.deps.Config.Moderation.DefaultLanguage
		h.reply(ctx, m, update.Message, h.deps.Catalog.Render(lang, i18n.KeyScanNotRegistered, nil))
		return
	}

	channel := h.deps.defaultChannel()
	binding, err := h.deps.Store.GetChannelBinding(ctx, cfg.GroupHandle)
	if err != nil {
		log.WarnContext(ctx, "Failed to read channel binding", "error", err, "group", cfg.GroupHandle)
	} else if binding != nil && binding.Active {
		channel = binding.ChannelHandle
	}

	canDelete := false
	membership, err := h.deps.Gateway.GetMembership(ctx, strconv.FormatInt(chat.ID, 10), h.deps.BotID)
	if err != nil {
		log.WarnContext(ctx, "Failed to check bot rights", "error", err, "chat_id", chat.ID)
	} else {
		canDelete = membership.CanModerate()
	}

	report := h.deps.Catalog.Render(cfg.Language, i18n.KeyScanReport, i18n.Params{
		"group":      cfg.GroupHandle,
		"keyword":    cfg.Keyword,
		"channel":    channel,
		"active":     h.yesNo(cfg.Language, cfg.Active),
		"can_delete": h.yesNo(cfg.Language, canDelete),
	})
	h.reply(ctx, m, update.Message, report)
}

func (h scanHandler) lookupConfig(ctx context.Context, chat models.Chat) *database.GroupConfig {
	log := h.deps.Logger.With("handler", "scan")

	cfg, err := h.deps.Store.GetGroupConfig(ctx, telegram.GroupKey(chat.Username, chat.ID))
	if err != nil {
		log.WarnContext(ctx, "Failed to read group config", "error", err, "chat_id", chat.ID)
	}
	if cfg == nil && chat.Username != "" {
		cfg, err = h.deps.Store.GetGroupConfigByChatID(ctx, chat.ID)
		if err != nil {
			log.WarnContext(ctx, "Failed to read group config by chat id", "error", err, "chat_id", chat.ID)
		}
	}
	return cfg
}

func (h scanHandler) yesNo(lang string, v bool) string {
	if v {
		return h.deps.Catalog.Render(lang, i18n.KeyAnswerYes, nil)
	}
	return h.deps.Catalog.Render(lang, i18n.KeyAnswerNo, nil)
}

func (h scanHandler) reply(ctx context.Context, m Messenger, msg *models.Message, text string) {
	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          msg.Chat.ID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID, AllowSendingWithoutReply: true},
	})
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send scan report", "error", err, "chat_id", msg.Chat.ID)
	}
}
