// Package registration runs the private-chat conversation that puts a group
// under moderation.
package registration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/edgard/gatekeeper/internal/database"
	"github.com/edgard/gatekeeper/internal/i18n"
	"github.com/edgard/gatekeeper/internal/metrics"
	"github.com/edgard/gatekeeper/internal/telegram"
)

// State is a step of the registration conversation.
type State int

const (
	Idle State = iota
	AwaitingGroup
	AwaitingKeyword
	AwaitingChannelChoice
	AwaitingChannelHandle
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingGroup:
		return "awaiting_group"
	case AwaitingKeyword:
		return "awaiting_keyword"
	case AwaitingChannelChoice:
		return "awaiting_channel_choice"
	case AwaitingChannelHandle:
		return "awaiting_channel_handle"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrInvalidHandle      = errors.New("no valid handle in input")
	ErrEmptyKeyword       = errors.New("keyword is empty")
	ErrGroupUnreachable   = errors.New("group could not be queried")
	ErrInsufficientRights = errors.New("bot cannot delete messages in group")
	ErrPersistence        = errors.New("registration could not be saved")
	ErrNoChoicePending    = errors.New("no channel choice pending")
)

// Session is the transient per-user conversation state.
type Session struct {
	State              State
	PendingGroupHandle string
	PendingChatID      int64
	Language           string
}

// Outcome is the result of one step. Key and Params describe the message to
// show the user; Err is set when the input was rejected or the flow failed.
type Outcome struct {
	State  State
	Key    string
	Params i18n.Params
	Err    error
}

// Store is the part of the persistence port the flow writes to.
type Store interface {
	UpsertGroupConfig(ctx context.Context, cfg *database.GroupConfig) error
	UpsertChannelBinding(ctx context.Context, binding *database.ChannelBinding) error
}

// Options configure a Machine.
type Options struct {
	BotID          int64
	DefaultChannel string
	SessionTTL     time.Duration
	MaxSessions    int
}

// Machine owns every registration session. Sessions expire after
// Options.SessionTTL of inactivity, which is equivalent to a cancel.
type Machine struct {
	sessions *expirable.LRU[int64, Session]
	store    Store
	gateway  telegram.Gateway
	metrics  *metrics.Metrics
	opts     Options
	log      *slog.Logger
}

// NewMachine creates a Machine. m may be nil.
func NewMachine(store Store, gateway telegram.Gateway, m *metrics.Metrics, opts Options, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 10000
	}
	log := logger.With("component", "registration")

	onEvict := func(userID int64, s Session) {
		log.Debug("Registration session closed", "user_id", userID, "state", s.State)
	}
	return &Machine{
		sessions: expirable.NewLRU[int64, Session](opts.MaxSessions, onEvict, opts.SessionTTL),
		store:    store,
		gateway:  gateway,
		metrics:  m,
		opts:     opts,
		log:      log,
	}
}

// State returns the current state of userID's session.
func (m *Machine) State(userID int64) State {
	if s, ok := m.sessions.Get(userID); ok {
		return s.State
	}
	return Idle
}

// Start begins or restarts registration for userID.
func (m *Machine) Start(userID int64, language string) Outcome {
	m.sessions.Add(userID, Session{State: AwaitingGroup, Language: language})
	m.log.Debug("Registration started", "user_id", userID)
	return Outcome{State: AwaitingGroup, Key: i18n.KeyEnterGroupUsername}
}

// Cancel discards userID's session without persisting anything.
func (m *Machine) Cancel(userID int64) Outcome {
	if _, ok := m.sessions.Peek(userID); ok {
		m.sessions.Remove(userID)
		m.metrics.Registration("cancelled")
	}
	return Outcome{State: Idle, Key: i18n.KeyRegistrationCancelled}
}

// HandleText feeds a free-text message to userID's session. An Idle user
// gets an Idle outcome with no message key.
func (m *Machine) HandleText(ctx context.Context, userID int64, text string) Outcome {
	s, ok := m.sessions.Get(userID)
	if !ok {
		return Outcome{State: Idle}
	}

	switch s.State {
	case AwaitingGroup:
		return m.handleGroup(ctx, userID, s, text)
	case AwaitingKeyword:
		return m.handleKeyword(ctx, userID, s, text)
	case AwaitingChannelChoice:
		return Outcome{State: AwaitingChannelChoice, Key: i18n.KeyAddChannelQuestion}
	case AwaitingChannelHandle:
		return m.handleChannel(ctx, userID, s, text)
	default:
		m.sessions.Remove(userID)
		return Outcome{State: Idle}
	}
}

// ChooseChannel answers the dedicated-channel question.
func (m *Machine) ChooseChannel(userID int64, bind bool) Outcome {
	s, ok := m.sessions.Get(userID)
	if !ok || s.State != AwaitingChannelChoice {
		return Outcome{State: m.State(userID), Err: ErrNoChoicePending}
	}

	if bind {
		s.State = AwaitingChannelHandle
		m.sessions.Add(userID, s)
		return Outcome{State: AwaitingChannelHandle, Key: i18n.KeyEnterChannelUsername}
	}

	m.sessions.Remove(userID)
	m.metrics.Registration("completed")
	m.log.Info("Registration completed without channel binding", "user_id", userID, "group", s.PendingGroupHandle)
	return Outcome{
		State:  Idle,
		Key:    i18n.KeySkipChannel,
		Params: i18n.Params{"channel": m.opts.DefaultChannel, "group": s.PendingGroupHandle},
	}
}

func (m *Machine) handleGroup(ctx context.Context, userID int64, s Session, text string) Outcome {
	handle, ok := telegram.ParseHandle(text)
	if !ok {
		return Outcome{State: AwaitingGroup, Key: i18n.KeyInvalidGroup, Err: ErrInvalidHandle}
	}

	chatID, err := m.gateway.ResolveChat(ctx, handle)
	if err != nil {
		m.log.InfoContext(ctx, "Group lookup failed", "user_id", userID, "group", handle, "error", err)
		return Outcome{State: AwaitingGroup, Key: i18n.KeyInvalidGroup, Err: fmt.Errorf("%w: %v", ErrGroupUnreachable, err)}
	}

	membership, err := m.gateway.GetMembership(ctx, handle, m.opts.BotID)
	if err != nil {
		m.log.InfoContext(ctx, "Bot membership lookup failed", "user_id", userID, "group", handle, "error", err)
		return Outcome{State: AwaitingGroup, Key: i18n.KeyInvalidGroup, Err: fmt.Errorf("%w: %v", ErrGroupUnreachable, err)}
	}
	if !membership.CanModerate() {
		return Outcome{State: AwaitingGroup, Key: i18n.KeyBotNotAdmin, Err: ErrInsufficientRights}
	}

	s.State = AwaitingKeyword
	s.PendingGroupHandle = handle
	s.PendingChatID = chatID
	m.sessions.Add(userID, s)
	return Outcome{State: AwaitingKeyword, Key: i18n.KeyEnterKeyword, Params: i18n.Params{"group": handle}}
}

func (m *Machine) handleKeyword(ctx context.Context, userID int64, s Session, text string) Outcome {
	if strings.TrimSpace(text) == "" {
		return Outcome{State: AwaitingKeyword, Key: i18n.KeyEmptyKeyword, Err: ErrEmptyKeyword}
	}

	cfg := &database.GroupConfig{
		GroupHandle: s.PendingGroupHandle,
		ChatID:      s.PendingChatID,
		Keyword:     text,
		Language:    s.Language,
		Active:      true,
	}
	if err := m.store.UpsertGroupConfig(ctx, cfg); err != nil {
		return m.abandon(ctx, userID, s, err)
	}

	s.State = AwaitingChannelChoice
	m.sessions.Add(userID, s)
	m.log.InfoContext(ctx, "Group registered", "user_id", userID, "group", cfg.GroupHandle, "chat_id", cfg.ChatID)
	return Outcome{State: AwaitingChannelChoice, Key: i18n.KeyAddChannelQuestion}
}

func (m *Machine) handleChannel(ctx context.Context, userID int64, s Session, text string) Outcome {
	channel, ok := telegram.ParseHandle(text)
	if !ok {
		return Outcome{State: AwaitingChannelHandle, Key: i18n.KeyInvalidChannel, Err: ErrInvalidHandle}
	}

	binding := &database.ChannelBinding{GroupHandle: s.PendingGroupHandle, ChannelHandle: channel, Active: true}
	if err := m.store.UpsertChannelBinding(ctx, binding); err != nil {
		return m.abandon(ctx, userID, s, err)
	}

	m.sessions.Remove(userID)
	m.metrics.Registration("completed")
	m.log.InfoContext(ctx, "Registration completed with channel binding",
		"user_id", userID, "group", s.PendingGroupHandle, "channel", channel)
	return Outcome{
		State:  Idle,
		Key:    i18n.KeyChannelAddedSuccess,
		Params: i18n.Params{"channel": channel, "group": s.PendingGroupHandle},
	}
}

// abandon ends the flow after a store failure; staged data is discarded.
func (m *Machine) abandon(ctx context.Context, userID int64, s Session, err error) Outcome {
	m.sessions.Remove(userID)
	m.metrics.Registration("failed")
	m.log.ErrorContext(ctx, "Registration abandoned after store failure",
		"user_id", userID, "group", s.PendingGroupHandle, "state", s.State, "error", err)
	return Outcome{State: Idle, Key: i18n.KeyErrorOccurred, Err: fmt.Errorf("%w: %v", ErrPersistence, err)}
}
