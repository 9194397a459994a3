package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/gatekeeper/internal/i18n"
)

// Messenger is the part of *bot.Bot the handlers talk through.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// reply is a rendered message with an optional inline keyboard.
type reply struct {
	text   string
	markup *models.InlineKeyboardMarkup
}

func (r reply) sendParams(chatID int64) *bot.SendMessageParams {
	params := &bot.SendMessageParams{ChatID: chatID, Text: r.text}
	if r.markup != nil {
		params.ReplyMarkup = r.markup
	}
	return params
}

// send posts r as a new message in chatID.
func send(ctx context.Context, m Messenger, log *slog.Logger, chatID int64, r reply) {
	if _, err := m.SendMessage(ctx, r.sendParams(chatID)); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}

// respond replaces the menu message a callback came from, falling back to a
// new message when it cannot be edited.
func respond(ctx context.Context, m Messenger, log *slog.Logger, chatID int64, messageID int, r reply) {
	if messageID != 0 {
		params := &bot.EditMessageTextParams{ChatID: chatID, MessageID: messageID, Text: r.text}
		if r.markup != nil {
			params.ReplyMarkup = r.markup
		}
		_, err := m.EditMessageText(ctx, params)
		if err == nil {
			return
		}
		log.DebugContext(ctx, "Menu edit failed, sending a new message", "error", err, "chat_id", chatID)
	}
	send(ctx, m, log, chatID, r)
}

func button(c *i18n.Catalog, lang, key string, cmd Command) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: c.Render(lang, key, nil), CallbackData: cmd.Data("")}
}

func mainMenuKeyboard(c *i18n.Catalog, lang string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button(c, lang, i18n.KeyBtnAddGroup, CmdAddGroup)},
		{button(c, lang, i18n.KeyBtnActiveGroups, CmdActiveGroups), button(c, lang, i18n.KeyBtnStats, CmdStats)},
		{button(c, lang, i18n.KeyBtnCheckSubscription, CmdCheckSubscription)},
		{button(c, lang, i18n.KeyBtnLanguage, CmdLanguageMenu), button(c, lang, i18n.KeyBtnSettings, CmdSettings)},
	}}
}

func backKeyboard(c *i18n.Catalog, lang string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button(c, lang, i18n.KeyBtnBack, CmdBack)},
	}}
}

func channelChoiceKeyboard(c *i18n.Catalog, lang string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button(c, lang, i18n.KeyBtnYes, CmdChannelYes), button(c, lang, i18n.KeyBtnNo, CmdChannelNo)},
	}}
}

func languageKeyboard(c *i18n.Catalog, lang string) *models.InlineKeyboardMarkup {
	var row []models.InlineKeyboardButton
	for _, code := range c.Languages() {
		row = append(row, models.InlineKeyboardButton{Text: i18n.LanguageName(code), CallbackData: CmdSetLanguage.Data(code)})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		row,
		{button(c, lang, i18n.KeyBtnBack, CmdBack)},
	}}
}

func mainMenu(c *i18n.Catalog, lang string) reply {
	return reply{text: c.Render(lang, i18n.KeyMainMenu, nil), markup: mainMenuKeyboard(c, lang)}
}
