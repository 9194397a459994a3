package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

// ErrTransport matches every error returned by a Gateway call.
var ErrTransport = errors.New("telegram transport error")

// ErrNotAttached is returned when the Client is used before Attach.
var ErrNotAttached = errors.New("telegram client not attached to a bot")

// TransportError records a failed Bot API operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("telegram %s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransport) true for any TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// MemberStatus is the membership status reported by getChatMember.
type MemberStatus string

const (
	StatusCreator       MemberStatus = MemberStatus(models.ChatMemberTypeOwner)
	StatusAdministrator MemberStatus = MemberStatus(models.ChatMemberTypeAdministrator)
	StatusMember        MemberStatus = MemberStatus(models.ChatMemberTypeMember)
	StatusRestricted    MemberStatus = MemberStatus(models.ChatMemberTypeRestricted)
	StatusLeft          MemberStatus = MemberStatus(models.ChatMemberTypeLeft)
	StatusBanned        MemberStatus = MemberStatus(models.ChatMemberTypeBanned)
)

// Membership is a user's role in a chat.
type Membership struct {
	Status            MemberStatus
	CanDeleteMessages bool
}

// IsSubscribed reports whether the user counts as subscribed to a channel.
func (m Membership) IsSubscribed() bool {
	switch m.Status {
	case StatusCreator, StatusAdministrator, StatusMember:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the member administers the chat.
func (m Membership) IsAdmin() bool {
	return m.Status == StatusCreator || m.Status == StatusAdministrator
}

// CanModerate reports whether the member may delete other users' messages.
func (m Membership) CanModerate() bool {
	switch m.Status {
	case StatusCreator:
		return true
	case StatusAdministrator:
		return m.CanDeleteMessages
	default:
		return false
	}
}

// Gateway is the subset of the Bot API used by moderation and registration.
// Chat references are either a "@handle" or a decimal chat id.
type Gateway interface {
	GetMembership(ctx context.Context, chat string, userID int64) (Membership, error)
	ResolveChat(ctx context.Context, chat string) (int64, error)
	SendReply(ctx context.Context, chatID int64, replyTo int, text string) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Client implements Gateway over go-telegram/bot with a shared rate limit
// and a per-request timeout.
type Client struct {
	mu      sync.RWMutex
	api     *bot.Bot
	limiter *rate.Limiter
	timeout time.Duration
	log     *slog.Logger
}

// NewClient creates a Client. Attach must be called before any request.
func NewClient(ratePerSecond float64, burst int, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if burst < 1 {
		burst = 1
	}
	return &Client{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		timeout: timeout,
		log:     logger.With("component", "telegram_gateway"),
	}
}

// Attach binds the Client to a constructed bot.
func (c *Client) Attach(b *bot.Bot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.api = b
}

// begin waits for the rate limiter and returns the bot with a request context.
func (c *Client) begin(ctx context.Context, op string) (*bot.Bot, context.Context, context.CancelFunc, error) {
	c.mu.RLock()
	api := c.api
	c.mu.RUnlock()
	if api == nil {
		return nil, nil, nil, &TransportError{Op: op, Err: ErrNotAttached}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, nil, &TransportError{Op: op, Err: err}
	}
	reqCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	return api, reqCtx, cancel, nil
}

// GetMembership returns the role of userID in chat.
func (c *Client) GetMembership(ctx context.Context, chat string, userID int64) (Membership, error) {
	const op = "getChatMember"
	api, reqCtx, cancel, err := c.begin(ctx, op)
	if err != nil {
		return Membership{}, err
	}
	defer cancel()

	member, err := api.GetChatMember(reqCtx, &bot.GetChatMemberParams{ChatID: chatRef(chat), UserID: userID})
	if err != nil {
		c.log.DebugContext(ctx, "getChatMember failed", "chat", chat, "user_id", userID, "error", err)
		return Membership{}, &TransportError{Op: op, Err: err}
	}
	return membershipFromChatMember(member), nil
}

// ResolveChat returns the numeric id of chat.
func (c *Client) ResolveChat(ctx context.Context, chat string) (int64, error) {
	const op = "getChat"
	api, reqCtx, cancel, err := c.begin(ctx, op)
	if err != nil {
		return 0, err
	}
	defer cancel()

	info, err := api.GetChat(reqCtx, &bot.GetChatParams{ChatID: chatRef(chat)})
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	return info.ID, nil
}

// SendReply posts text as a reply to replyTo and returns the new message id.
func (c *Client) SendReply(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	const op = "sendMessage"
	api, reqCtx, cancel, err := c.begin(ctx, op)
	if err != nil {
		return 0, err
	}
	defer cancel()

	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if replyTo != 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo, AllowSendingWithoutReply: true}
	}
	sent, err := api.SendMessage(reqCtx, params)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	return sent.ID, nil
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	const op = "deleteMessage"
	api, reqCtx, cancel, err := c.begin(ctx, op)
	if err != nil {
		return err
	}
	defer cancel()

	if _, err := api.DeleteMessage(reqCtx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
		return &TransportError{Op: op, Err: err}
	}
	return nil
}

func membershipFromChatMember(member *models.ChatMember) Membership {
	if member == nil {
		return Membership{Status: StatusLeft}
	}
	m := Membership{Status: MemberStatus(member.Type)}
	if member.Type == models.ChatMemberTypeAdministrator && member.Administrator != nil {
		m.CanDeleteMessages = member.Administrator.CanDeleteMessages
	}
	return m
}
