package moderation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/gatekeeper/internal/database"
	"github.com/edgard/gatekeeper/internal/gate"
	"github.com/edgard/gatekeeper/internal/i18n"
	"github.com/edgard/gatekeeper/internal/moderation"
	"github.com/edgard/gatekeeper/internal/telegram"
)

const (
	shopChatID     = int64(-100500)
	defaultChannel = "@gatekeepernews"
)

type fakeStore struct {
	mu        sync.Mutex
	configs   map[string]*database.GroupConfig
	bindings  map[string]*database.ChannelBinding
	records   []database.ModerationRecord
	readErr   error
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		configs:  map[string]*database.GroupConfig{},
		bindings: map[string]*database.ChannelBinding{},
	}
}

func (f *fakeStore) GetGroupConfig(_ context.Context, handle string) (*database.GroupConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.configs[handle], nil
}

func (f *fakeStore) GetGroupConfigByChatID(_ context.Context, chatID int64) (*database.GroupConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	for _, cfg := range f.configs {
		if cfg.ChatID == chatID {
			return cfg, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetChannelBinding(_ context.Context, handle string) (*database.ChannelBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bindings[handle], nil
}

func (f *fakeStore) AppendModerationRecord(_ context.Context, record *database.ModerationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, *record)
	return nil
}

type reply struct {
	chatID  int64
	replyTo int
	text    string
}

type fakeGateway struct {
	mu          sync.Mutex
	members     map[string]map[int64]telegram.Membership
	memberErr   error
	sendErr     error
	deleteErr   error
	nextID      int
	replies     []reply
	deleted     []int
	checkedChan []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{members: map[string]map[int64]telegram.Membership{}, nextID: 9000}
}

func (f *fakeGateway) subscribe(channel string, userID int64) {
	if f.members[channel] == nil {
		f.members[channel] = map[int64]telegram.Membership{}
	}
	f.members[channel][userID] = telegram.Membership{Status: telegram.StatusMember}
}

func (f *fakeGateway) GetMembership(_ context.Context, chat string, userID int64) (telegram.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkedChan = append(f.checkedChan, chat)
	if f.memberErr != nil {
		return telegram.Membership{}, f.memberErr
	}
	if m, ok := f.members[chat][userID]; ok {
		return m, nil
	}
	return telegram.Membership{Status: telegram.StatusLeft}, nil
}

func (f *fakeGateway) ResolveChat(context.Context, string) (int64, error) { return shopChatID, nil }

func (f *fakeGateway) SendReply(_ context.Context, chatID int64, replyTo int, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.replies = append(f.replies, reply{chatID, replyTo, text})
	return f.nextID, nil
}

func (f *fakeGateway) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

type scheduled struct {
	chatID    int64
	messageID int
	delay     time.Duration
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []scheduled
	err  error
}

func (f *fakeScheduler) ScheduleDelete(chatID int64, messageID int, delay time.Duration) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.jobs = append(f.jobs, scheduled{chatID, messageID, delay})
	return uuid.New(), nil
}

type harness struct {
	store     *fakeStore
	gateway   *fakeGateway
	scheduler *fakeScheduler
	pipeline  *moderation.Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	catalog, err := i18n.NewCatalog("en")
	require.NoError(t, err)

	h := &harness{store: newFakeStore(), gateway: newFakeGateway(), scheduler: &fakeScheduler{}}
	h.store.configs["@shop"] = &database.GroupConfig{
		GroupHandle: "@shop", ChatID: shopChatID, Keyword: "احجز", Language: "ar", Active: true,
	}
	h.pipeline = moderation.NewPipeline(h.store, h.gateway, h.scheduler, catalog, nil, moderation.Options{
		DefaultChannel: defaultChannel,
		WarningTTL:     180 * time.Second,
		CheckTimeout:   time.Second,
	}, nil)
	return h
}

func shopMessage(text string, sender moderation.Sender) moderation.GroupMessage {
	return moderation.GroupMessage{
		ChatID: shopChatID, ChatUsername: "Shop", MessageID: 77, Text: text, Sender: sender,
	}
}

func TestSubscribedUserWithHandlePasses(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.gateway.subscribe(defaultChannel, 1)

	h.pipeline.OnGroupMessage(context.Background(), shopMessage("احجز", moderation.Sender{ID: 1, Username: "alice"}))

	assert.Empty(t, h.gateway.deleted)
	assert.Empty(t, h.gateway.replies)
	assert.Empty(t, h.store.records)
	assert.Empty(t, h.scheduler.jobs)
}

func TestUnsubscribedUserIsWarned(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.pipeline.OnGroupMessage(context.Background(), shopMessage("hello", moderation.Sender{ID: 2, Username: "bob"}))

	assert.Equal(t, []int{77}, h.gateway.deleted)
	require.Len(t, h.gateway.replies, 1)
	assert.Equal(t, 77, h.gateway.replies[0].replyTo)
	assert.Contains(t, h.gateway.replies[0].text, defaultChannel)
	require.Len(t, h.store.records, 1)
	assert.Equal(t, string(gate.ReasonNotSubscribed), h.store.records[0].ReasonCode)
	assert.Equal(t, "@shop", h.store.records[0].GroupHandle)
	require.Len(t, h.scheduler.jobs, 1)
	assert.Equal(t, scheduled{shopChatID, 9001, 180 * time.Second}, h.scheduler.jobs[0])
}

func TestSubscribedUserWithoutHandleUsingKeyword(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.gateway.subscribe(defaultChannel, 3)

	h.pipeline.OnGroupMessage(context.Background(), shopMessage("احجز الآن", moderation.Sender{ID: 3, FirstName: "Carol"}))

	assert.Equal(t, []int{77}, h.gateway.deleted)
	require.Len(t, h.store.records, 1)
	assert.Equal(t, string(gate.ReasonNoPublicHandle), h.store.records[0].ReasonCode)
	assert.Equal(t, "Carol", h.store.records[0].UserName)
	assert.Len(t, h.scheduler.jobs, 1)
}

func TestSubscribedUserWithoutHandleOtherText(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.gateway.subscribe(defaultChannel, 3)

	h.pipeline.OnGroupMessage(context.Background(), shopMessage("good morning", moderation.Sender{ID: 3, FirstName: "Carol"}))

	assert.Empty(t, h.gateway.deleted)
	assert.Empty(t, h.store.records)
}

func TestSubscriptionCheckFailureFailsClosed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.gateway.subscribe(defaultChannel, 4)
	h.gateway.memberErr = &telegram.TransportError{Op: "getChatMember", Err: errors.New("timeout")}

	h.pipeline.OnGroupMessage(context.Background(), shopMessage("hello", moderation.Sender{ID: 4, Username: "dave"}))

	assert.Equal(t, []int{77}, h.gateway.deleted)
	require.Len(t, h.store.records, 1)
	assert.Equal(t, string(gate.ReasonNotSubscribed), h.store.records[0].ReasonCode)
	assert.Len(t, h.scheduler.jobs, 1)
}

func TestSideEffectsAreIndependent(t *testing.T) {
	t.Parallel()

	t.Run("delete fails", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.gateway.deleteErr = &telegram.TransportError{Op: "deleteMessage", Err: errors.New("not enough rights")}

		h.pipeline.OnGroupMessage(context.Background(), shopMessage("hi", moderation.Sender{ID: 5}))

		assert.Len(t, h.gateway.replies, 1)
		assert.Len(t, h.scheduler.jobs, 1)
		assert.Len(t, h.store.records, 1)
	})

	t.Run("reply fails", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.gateway.sendErr = &telegram.TransportError{Op: "sendMessage", Err: errors.New("flood")}

		h.pipeline.OnGroupMessage(context.Background(), shopMessage("hi", moderation.Sender{ID: 5}))

		assert.Equal(t, []int{77}, h.gateway.deleted)
		assert.Empty(t, h.scheduler.jobs, "nothing to schedule without a warning id")
		assert.Len(t, h.store.records, 1)
	})

	t.Run("schedule and record fail", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.scheduler.err = errors.New("scheduler shut down")
		h.store.appendErr = errors.New("disk full")

		h.pipeline.OnGroupMessage(context.Background(), shopMessage("hi", moderation.Sender{ID: 5}))

		assert.Len(t, h.gateway.replies, 1)
		assert.Equal(t, []int{77}, h.gateway.deleted)
	})
}

func TestUnregisteredOrInactiveGroupIsIgnored(t *testing.T) {
	t.Parallel()

	t.Run("unregistered", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		msg := moderation.GroupMessage{ChatID: -1, ChatUsername: "other", MessageID: 1, Text: "hi", Sender: moderation.Sender{ID: 9}}

		h.pipeline.OnGroupMessage(context.Background(), msg)

		assert.Empty(t, h.gateway.checkedChan)
		assert.Empty(t, h.gateway.deleted)
	})

	t.Run("inactive", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.store.configs["@shop"].Active = false

		h.pipeline.OnGroupMessage(context.Background(), shopMessage("hi", moderation.Sender{ID: 9}))

		assert.Empty(t, h.gateway.checkedChan)
		assert.Empty(t, h.store.records)
	})

	t.Run("store read failure", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.store.readErr = errors.New("database is locked")

		h.pipeline.OnGroupMessage(context.Background(), shopMessage("hi", moderation.Sender{ID: 9}))

		assert.Empty(t, h.gateway.checkedChan)
		assert.Empty(t, h.gateway.deleted)
	})
}

func TestLookupFallsBackToChatID(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	msg := shopMessage("hi", moderation.Sender{ID: 10, Username: "erin"})
	msg.ChatUsername = "" // handle removed after registration

	h.pipeline.OnGroupMessage(context.Background(), msg)

	assert.Equal(t, []int{77}, h.gateway.deleted)
	require.Len(t, h.store.records, 1)
	assert.Equal(t, "@shop", h.store.records[0].GroupHandle)
}

func TestChannelBindingOverridesDefault(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.store.bindings["@shop"] = &database.ChannelBinding{GroupHandle: "@shop", ChannelHandle: "@shopnews", Active: true}
	h.gateway.subscribe("@shopnews", 11)

	h.pipeline.OnGroupMessage(context.Background(), shopMessage("hi", moderation.Sender{ID: 11, Username: "frank"}))

	assert.Equal(t, []string{"@shopnews"}, h.gateway.checkedChan)
	assert.Empty(t, h.gateway.deleted)

	h.store.bindings["@shop"].Active = false
	h.pipeline.OnGroupMessage(context.Background(), shopMessage("hi", moderation.Sender{ID: 11, Username: "frank"}))

	assert.Equal(t, []string{"@shopnews", defaultChannel}, h.gateway.checkedChan)
	assert.Equal(t, []int{77}, h.gateway.deleted)
}

func TestSenderDisplayName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "@alice", moderation.Sender{Username: "alice", FirstName: "Alice"}.DisplayName())
	assert.Equal(t, "Alice", moderation.Sender{FirstName: "Alice"}.DisplayName())
	assert.Equal(t, "user", moderation.Sender{}.DisplayName())
}
