package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/gatekeeper/internal/database"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, nil)
}

func TestGroupConfigReRegistrationOverwrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.UpsertGroupConfig(ctx, &database.GroupConfig{
		GroupHandle: "@sample", ChatID: -100111, Keyword: "first", Language: "en", Active: true,
	}))
	require.NoError(t, store.UpsertGroupConfig(ctx, &database.GroupConfig{
		GroupHandle: "@sample", ChatID: -100111, Keyword: "second", Language: "en", Active: true,
	}))

	got, err := store.GetGroupConfig(ctx, "@sample")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Keyword)
	assert.True(t, got.Active)

	groups, err := store.ListActiveGroups(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestGroupConfigLookups(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	missing, err := store.GetGroupConfig(ctx, "@nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.UpsertGroupConfig(ctx, &database.GroupConfig{
		GroupHandle: "-100222", ChatID: -100222, Keyword: "book", Language: "ar", Active: true,
	}))

	byChat, err := store.GetGroupConfigByChatID(ctx, -100222)
	require.NoError(t, err)
	require.NotNil(t, byChat)
	assert.Equal(t, "-100222", byChat.GroupHandle)
	assert.Equal(t, "ar", byChat.Language)

	none, err := store.GetGroupConfigByChatID(ctx, -1)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGroupConfigRejectsEmptyKeyword(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	err := store.UpsertGroupConfig(context.Background(), &database.GroupConfig{
		GroupHandle: "@sample", Keyword: "   ", Active: true,
	})
	require.Error(t, err)

	got, err := store.GetGroupConfig(context.Background(), "@sample")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChannelBinding(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	none, err := store.GetChannelBinding(ctx, "@shop")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, store.UpsertChannelBinding(ctx, &database.ChannelBinding{
		GroupHandle: "@shop", ChannelHandle: "@shopnews", Active: true,
	}))
	require.NoError(t, store.UpsertChannelBinding(ctx, &database.ChannelBinding{
		GroupHandle: "@shop", ChannelHandle: "@shopdeals", Active: true,
	}))

	got, err := store.GetChannelBinding(ctx, "@shop")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "@shopdeals", got.ChannelHandle)
	assert.True(t, got.Active)
}

func TestUserProfileKeepsLanguage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.UpsertUserProfile(ctx, &database.UserProfile{
		UserID: 42, Username: "alice", FirstName: "Alice", Language: "en",
	}))
	require.NoError(t, store.UpdateUserLanguage(ctx, 42, "fr"))
	require.NoError(t, store.SetUserSubscribed(ctx, 42, true))
	require.NoError(t, store.UpsertUserProfile(ctx, &database.UserProfile{
		UserID: 42, Username: "alice2", FirstName: "Alice", Language: "en",
	}))

	got, err := store.GetUserProfile(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice2", got.Username)
	assert.Equal(t, "fr", got.Language)
	assert.True(t, got.Subscribed)

	missing, err := store.GetUserProfile(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.UpsertGroupConfig(ctx, &database.GroupConfig{
		GroupHandle: "@a", Keyword: "x", Language: "en", Active: true,
	}))
	require.NoError(t, store.UpsertGroupConfig(ctx, &database.GroupConfig{
		GroupHandle: "@b", Keyword: "y", Language: "en", Active: false,
	}))
	for i := range 3 {
		rec := &database.ModerationRecord{
			GroupHandle: "@a", UserID: int64(i + 1), ReasonCode: "NotSubscribed", Language: "en",
		}
		require.NoError(t, store.AppendModerationRecord(ctx, rec))
		assert.NotZero(t, rec.ID)
	}
	require.NoError(t, store.UpsertUserProfile(ctx, &database.UserProfile{UserID: 1, Language: "en"}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ActiveGroups)
	assert.Equal(t, int64(3), stats.ModerationRecords)
	assert.Equal(t, int64(1), stats.Users)
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.RunSQLMaintenance(context.Background()))
}

func TestDialectAndDBName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		dsn     string
		dialect database.Dialect
		name    string
	}{
		{"gatekeeper.db", database.DialectSQLite, "gatekeeper.db"},
		{"file:data/bot.db?_pragma=busy_timeout(5000)", database.DialectSQLite, "data/bot.db"},
		{"postgres://u:p@localhost:5432/gatekeeper?sslmode=disable", database.DialectPostgres, "gatekeeper"},
		{"POSTGRESQL://localhost", database.DialectPostgres, "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.dialect, database.DialectFromDSN(tt.dsn))
			assert.Equal(t, tt.name, database.ExtractDBNameFromPath(tt.dsn))
		})
	}
}
