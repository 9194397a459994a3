package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/gatekeeper/internal/i18n"
	"github.com/edgard/gatekeeper/internal/registration"
)

const callbackTimeout = 15 * time.Second

// callbackRequest is one pressed menu button.
type callbackRequest struct {
	User models.User
	Lang string
	Arg  string
}

type callbackFunc func(ctx context.Context, req callbackRequest) reply

// NewCallbackHandler returns the handler for every inline keyboard button.
func NewCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	h := newCallbackHandler(deps)
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type callbackHandler struct {
	deps   HandlerDeps
	log    *slog.Logger
	routes map[Command]callbackFunc
}

func newCallbackHandler(deps HandlerDeps) *callbackHandler {
	h := &callbackHandler{deps: deps, log: deps.Logger.With("handler", "callback")}
	h.routes = map[Command]callbackFunc{
		CmdAddGroup:          h.addGroup,
		CmdActiveGroups:      h.activeGroups,
		CmdStats:             h.stats,
		CmdCheckSubscription: h.checkSubscription,
		CmdLanguageMenu:      h.languageMenu,
		CmdSetLanguage:       h.setLanguage,
		CmdSettings:          h.settings,
		CmdBack:              h.back,
		CmdChannelYes:        h.channelChoice(true),
		CmdChannelNo:         h.channelChoice(false),
	}
	return h
}

func (h *callbackHandler) handle(ctx context.Context, m Messenger, update *models.Update) {
	q := update.CallbackQuery
	if q == nil {
		return
	}

	if _, err := m.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: q.ID}); err != nil {
		h.log.WarnContext(ctx, "Failed to answer callback query", "error", err, "callback_query_id", q.ID)
	}

	chatID, messageID := callbackTarget(q)
	if chatID != q.From.ID {
		h.log.DebugContext(ctx, "Ignoring menu callback outside private chat", "chat_id", chatID)
		return
	}

	cmd, arg, err := ParseCallback(q.Data)
	if err != nil {
		h.log.WarnContext(ctx, "Unknown callback data", "data", q.Data, "user_id", q.From.ID)
		return
	}
	route, ok := h.routes[cmd]
	if !ok {
		h.log.ErrorContext(ctx, "No route for command", "command", cmd)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, callbackTimeout)
	defer cancel()

	req := callbackRequest{User: q.From, Lang: h.deps.userLanguage(ctx, q.From), Arg: arg}
	respond(ctx, m, h.log, chatID, messageID, route(ctx, req))
}

// callbackTarget locates the menu message a callback was pressed on.
func callbackTarget(q *models.CallbackQuery) (int64, int) {
	switch {
	case q.Message.Message != nil:
		return q.Message.Message.Chat.ID, q.Message.Message.ID
	case q.Message.InaccessibleMessage != nil:
		return q.Message.InaccessibleMessage.Chat.ID, 0
	default:
		return q.From.ID, 0
	}
}

func (h *callbackHandler) render(lang, key string, params i18n.Params) string {
	return h.deps.Catalog.Render(lang, key, params)
}

func (h *callbackHandler) failure(lang string) reply {
	return reply{text: h.render(lang, i18n.KeyErrorOccurred, nil), markup: backKeyboard(h.deps.Catalog, lang)}
}

func (h *callbackHandler) addGroup(_ context.Context, req callbackRequest) reply {
	out := h.deps.Machine.Start(req.User.ID, req.Lang)
	return h.deps.outcomeReply(req.Lang, out)
}

func (h *callbackHandler) activeGroups(ctx context.Context, req callbackRequest) reply {
	groups, err := h.deps.Store.ListActiveGroups(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to list active groups", "error", err)
		return h.failure(req.Lang)
	}
	if len(groups) == 0 {
		return reply{text: h.render(req.Lang, i18n.KeyNoActiveGroups, nil), markup: backKeyboard(h.deps.Catalog, req.Lang)}
	}

	lines := []string{h.render(req.Lang, i18n.KeyActiveGroups, nil)}
	for _, g := range groups {
		lines = append(lines, h.render(req.Lang, i18n.KeyGroupItem, i18n.Params{"group": g.GroupHandle, "keyword": g.Keyword}))
	}
	return reply{text: strings.Join(lines, "\n"), markup: backKeyboard(h.deps.Catalog, req.Lang)}
}

func (h *callbackHandler) stats(ctx context.Context, req callbackRequest) reply {
	stats, err := h.deps.Store.Stats(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to compute stats", "error", err)
		return h.failure(req.Lang)
	}
	h.deps.Metrics.ObserveStats(stats.ActiveGroups, stats.ModerationRecords, stats.Users)

	text := h.render(req.Lang, i18n.KeyStats, i18n.Params{
		"groups":  strconv.FormatInt(stats.ActiveGroups, 10),
		"records": strconv.FormatInt(stats.ModerationRecords, 10),
		"users":   strconv.FormatInt(stats.Users, 10),
	})
	return reply{text: text, markup: backKeyboard(h.deps.Catalog, req.Lang)}
}

// checkSubscription reports the user's own membership in the default
// channel. A failed lookup reads as not subscribed.
func (h *callbackHandler) checkSubscription(ctx context.Context, req callbackRequest) reply {
	channel := h.deps.defaultChannel()
	membership, err := h.deps.Gateway.GetMembership(ctx, channel, req.User.ID)
	if err != nil {
		h.log.WarnContext(ctx, "Subscription lookup failed", "error", err, "user_id", req.User.ID, "channel", channel)
	}
	subscribed := err == nil && membership.IsSubscribed()

	if err := h.deps.touchProfile(ctx, req.User); err != nil {
		h.log.WarnContext(ctx, "Failed to save user profile", "error", err, "user_id", req.User.ID)
	} else if err := h.deps.Store.SetUserSubscribed(ctx, req.User.ID, subscribed); err != nil {
		h.log.WarnContext(ctx, "Failed to save subscription flag", "error", err, "user_id", req.User.ID)
	}

	key := i18n.KeyNotSubscribed
	if subscribed {
		key = i18n.KeySubscribed
	}
	return reply{text: h.render(req.Lang, key, i18n.Params{"channel": channel}), markup: backKeyboard(h.deps.Catalog, req.Lang)}
}

func (h *callbackHandler) languageMenu(_ context.Context, req callbackRequest) reply {
	return reply{text: h.render(req.Lang, i18n.KeyChangeLanguage, nil), markup: languageKeyboard(h.deps.Catalog, req.Lang)}
}

func (h *callbackHandler) setLanguage(ctx context.Context, req callbackRequest) reply {
	lang := req.Arg
	if !h.deps.Catalog.Supports(lang) {
		h.log.WarnContext(ctx, "Unsupported language requested", "language", lang, "user_id", req.User.ID)
		return h.failure(req.Lang)
	}

	if err := h.deps.touchProfile(ctx, req.User); err != nil {
		h.log.ErrorContext(ctx, "Failed to save user profile", "error", err, "user_id", req.User.ID)
		return h.failure(req.Lang)
	}
	if err := h.deps.Store.UpdateUserLanguage(ctx, req.User.ID, lang); err != nil {
		h.log.ErrorContext(ctx, "Failed to update language", "error", err, "user_id", req.User.ID)
		return h.failure(req.Lang)
	}

	h.log.InfoContext(ctx, "User language changed", "user_id", req.User.ID, "language", lang)
	text := h.render(lang, i18n.KeyLanguageChanged, nil) + "\n\n" + h.render(lang, i18n.KeyMainMenu, nil)
	return reply{text: text, markup: mainMenuKeyboard(h.deps.Catalog, lang)}
}

func (h *callbackHandler) settings(ctx context.Context, req callbackRequest) reply {
	profile, err := h.deps.Store.GetUserProfile(ctx, req.User.ID)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to read user profile", "error", err, "user_id", req.User.ID)
		return h.failure(req.Lang)
	}

	subscribed := i18n.KeyAnswerNo
	if profile != nil && profile.Subscribed {
		subscribed = i18n.KeyAnswerYes
	}
	text := h.render(req.Lang, i18n.KeySettings, i18n.Params{
		"language":   i18n.LanguageName(req.Lang),
		"subscribed": h.render(req.Lang, subscribed, nil),
	})
	return reply{text: text, markup: backKeyboard(h.deps.Catalog, req.Lang)}
}

func (h *callbackHandler) back(_ context.Context, req callbackRequest) reply {
	return mainMenu(h.deps.Catalog, req.Lang)
}

func (h *callbackHandler) channelChoice(bind bool) callbackFunc {
	return func(_ context.Context, req callbackRequest) reply {
		out := h.deps.Machine.ChooseChannel(req.User.ID, bind)
		if errors.Is(out.Err, registration.ErrNoChoicePending) {
			return mainMenu(h.deps.Catalog, req.Lang)
		}
		return h.deps.outcomeReply(req.Lang, out)
	}
}
