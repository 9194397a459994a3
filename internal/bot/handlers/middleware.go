// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"strconv"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/gatekeeper/internal/i18n"
)

// GroupAdminOnly creates a middleware that lets a command through only when
// it is sent in a group by one of the group's administrators. Anyone else
// gets a short refusal.
func GroupAdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}

			denyKey := groupAdminCheck(ctx, deps, update.Message)
			if denyKey == "" {
				next(ctx, bot, update)
				return
			}

			chatID := update.Message.Chat.ID
			lang := deps.Catalog.Match(update.Message.From.LanguageCode)
			log := deps.Logger.With("middleware", "GroupAdminOnly")
			send(ctx, bot, log, chatID, reply{text: deps.Catalog.Render(lang, denyKey, nil)})
		}
	}
}

// groupAdminCheck returns "" when msg comes from a group administrator, or
// the key of the refusal to show otherwise.
func groupAdminCheck(ctx context.Context, deps HandlerDeps, msg *models.Message) string {
	if !isGroupChat(msg.Chat.Type) {
		return i18n.KeyGroupOnly
	}

	log := deps.Logger.With("middleware", "GroupAdminOnly")
	userID := msg.From.ID
	if msg.SenderChat != nil && msg.SenderChat.ID == msg.Chat.ID {
		// Anonymous administrators post as the group itself.
		return ""
	}

	membership, err := deps.Gateway.GetMembership(ctx, strconv.FormatInt(msg.Chat.ID, 10), userID)
	if err != nil {
		log.WarnContext(ctx, "Failed to check sender rights", "error", err, "user_id", userID, "chat_id", msg.Chat.ID)
		return i18n.KeyAdminOnly
	}
	if !membership.IsAdmin() {
		log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID, "chat_id", msg.Chat.ID)
		return i18n.KeyAdminOnly
	}
	return ""
}

func isGroupChat(t models.ChatType) bool {
	return t == models.ChatTypeGroup || t == models.ChatTypeSupergroup
}
