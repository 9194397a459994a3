// Package moderation evaluates every inbound group message against the
// group's gate and carries out the resulting warning and deletions.
package moderation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/gatekeeper/internal/database"
	"github.com/edgard/gatekeeper/internal/gate"
	"github.com/edgard/gatekeeper/internal/i18n"
	"github.com/edgard/gatekeeper/internal/metrics"
	"github.com/edgard/gatekeeper/internal/telegram"
)

// Store is the part of the persistence port the pipeline reads and writes.
type Store interface {
	GetGroupConfig(ctx context.Context, groupHandle string) (*database.GroupConfig, error)
	GetGroupConfigByChatID(ctx context.Context, chatID int64) (*database.GroupConfig, error)
	GetChannelBinding(ctx context.Context, groupHandle string) (*database.ChannelBinding, error)
	AppendModerationRecord(ctx context.Context, record *database.ModerationRecord) error
}

// DeletionScheduler arms a deferred message deletion.
type DeletionScheduler interface {
	ScheduleDelete(chatID int64, messageID int, delay time.Duration) (uuid.UUID, error)
}

// Renderer produces localized text.
type Renderer interface {
	Render(lang, key string, params i18n.Params) string
}

// Sender identifies the author of a group message.
type Sender struct {
	ID        int64
	Username  string
	FirstName string
}

// DisplayName is the name used to address the sender in a warning.
func (s Sender) DisplayName() string {
	if s.Username != "" {
		return "@" + s.Username
	}
	if s.FirstName != "" {
		return s.FirstName
	}
	return "user"
}

// GroupMessage is an inbound message posted in a group or supergroup.
type GroupMessage struct {
	ChatID       int64
	ChatUsername string
	MessageID    int
	Text         string
	Sender       Sender
}

// Options configure a Pipeline.
type Options struct {
	DefaultChannel string
	WarningTTL     time.Duration
	CheckTimeout   time.Duration
}

// Pipeline moderates group messages.
type Pipeline struct {
	store     Store
	gateway   telegram.Gateway
	scheduler DeletionScheduler
	renderer  Renderer
	metrics   *metrics.Metrics
	opts      Options
	log       *slog.Logger
}

// NewPipeline creates a Pipeline. m may be nil.
func NewPipeline(
	store Store,
	gateway telegram.Gateway,
	scheduler DeletionScheduler,
	renderer Renderer,
	m *metrics.Metrics,
	opts Options,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		store:     store,
		gateway:   gateway,
		scheduler: scheduler,
		renderer:  renderer,
		metrics:   m,
		opts:      opts,
		log:       logger.With("component", "moderation"),
	}
}

// OnGroupMessage moderates one message. Messages from unregistered or
// inactive groups are ignored; every other message is checked against the
// gate. Side effects of a warning are attempted independently and never
// roll back each other.
func (p *Pipeline) OnGroupMessage(ctx context.Context, msg GroupMessage) {
	cfg := p.resolveConfig(ctx, msg)
	if cfg == nil || !cfg.Active {
		return
	}

	channel := p.resolveChannel(ctx, cfg.GroupHandle)
	subscribed := p.isSubscribed(ctx, channel, msg.Sender.ID)

	verdict := gate.Evaluate(subscribed, msg.Sender.Username != "", msg.Text, cfg.Keyword)
	if verdict.Pass() {
		return
	}

	p.log.InfoContext(ctx, "Enforcing gate",
		"group", cfg.GroupHandle,
		"chat_id", msg.ChatID,
		"user_id", msg.Sender.ID,
		"reason", verdict.Reason)
	p.metrics.ModerationAction(string(verdict.Reason))
	p.enforce(ctx, msg, cfg, channel, verdict.Reason)
}

// resolveConfig looks the group up by handle, then by chat id. Read
// failures are logged and treated as an unregistered group.
func (p *Pipeline) resolveConfig(ctx context.Context, msg GroupMessage) *database.GroupConfig {
	key := telegram.GroupKey(msg.ChatUsername, msg.ChatID)
	cfg, err := p.store.GetGroupConfig(ctx, key)
	if err != nil {
		p.log.WarnContext(ctx, "Failed to load group config", "group", key, "error", err)
	}
	if cfg != nil {
		return cfg
	}

	cfg, err = p.store.GetGroupConfigByChatID(ctx, msg.ChatID)
	if err != nil {
		p.log.WarnContext(ctx, "Failed to load group config by chat id", "chat_id", msg.ChatID, "error", err)
		return nil
	}
	return cfg
}

func (p *Pipeline) resolveChannel(ctx context.Context, groupHandle string) string {
	binding, err := p.store.GetChannelBinding(ctx, groupHandle)
	if err != nil {
		p.log.WarnContext(ctx, "Failed to load channel binding, using default channel", "group", groupHandle, "error", err)
		return p.opts.DefaultChannel
	}
	if binding == nil || !binding.Active || strings.TrimSpace(binding.ChannelHandle) == "" {
		return p.opts.DefaultChannel
	}
	return binding.ChannelHandle
}

// isSubscribed queries the gating channel. A failed query counts as not
// subscribed.
func (p *Pipeline) isSubscribed(ctx context.Context, channel string, userID int64) bool {
	checkCtx := ctx
	if p.opts.CheckTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, p.opts.CheckTimeout)
		defer cancel()
	}

	membership, err := p.gateway.GetMembership(checkCtx, channel, userID)
	if err != nil {
		p.metrics.SubscriptionCheckFailed()
		p.log.WarnContext(ctx, "Subscription check failed, treating as not subscribed",
			"channel", channel, "user_id", userID, "error", err)
		return false
	}
	return membership.IsSubscribed()
}

func (p *Pipeline) enforce(ctx context.Context, msg GroupMessage, cfg *database.GroupConfig, channel string, reason gate.Reason) {
	key := i18n.KeySubscriptionWarning
	if reason == gate.ReasonNoPublicHandle {
		key = i18n.KeyNoUsernameWarning
	}
	text := p.renderer.Render(cfg.Language, key, i18n.Params{
		"user_name": msg.Sender.DisplayName(),
		"channel":   channel,
	})

	warningID, err := p.gateway.SendReply(ctx, msg.ChatID, msg.MessageID, text)
	if err != nil {
		p.sideEffectFailed(ctx, "reply", msg, err)
	}

	if err := p.gateway.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
		p.sideEffectFailed(ctx, "delete_original", msg, err)
	}

	if warningID != 0 {
		if _, err := p.scheduler.ScheduleDelete(msg.ChatID, warningID, p.opts.WarningTTL); err != nil {
			p.sideEffectFailed(ctx, "schedule_delete", msg, err)
		}
	}

	record := &database.ModerationRecord{
		GroupHandle: cfg.GroupHandle,
		UserID:      msg.Sender.ID,
		UserName:    msg.Sender.DisplayName(),
		MessageText: msg.Text,
		Language:    cfg.Language,
		ReasonCode:  string(reason),
	}
	if err := p.store.AppendModerationRecord(ctx, record); err != nil {
		p.sideEffectFailed(ctx, "record", msg, err)
	}
}

func (p *Pipeline) sideEffectFailed(ctx context.Context, action string, msg GroupMessage, err error) {
	p.metrics.SideEffectFailed(action)
	level := slog.LevelWarn
	if !errors.Is(err, telegram.ErrTransport) {
		level = slog.LevelError
	}
	p.log.Log(ctx, level, "Moderation side effect failed",
		"action", action,
		"chat_id", msg.ChatID,
		"message_id", msg.MessageID,
		"user_id", msg.Sender.ID,
		"error", err)
}
