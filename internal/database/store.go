package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Read methods return nil, nil when the row does not exist.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// UpsertGroupConfig inserts or fully overwrites the config for cfg.GroupHandle.
	UpsertGroupConfig(ctx context.Context, cfg *GroupConfig) error

	// GetGroupConfig retrieves a group config by its normalized handle.
	GetGroupConfig(ctx context.Context, groupHandle string) (*GroupConfig, error)

	// GetGroupConfigByChatID retrieves the most recently updated config bound to chatID.
	GetGroupConfigByChatID(ctx context.Context, chatID int64) (*GroupConfig, error)

	// ListActiveGroups lists active group configs ordered by handle.
	ListActiveGroups(ctx context.Context) ([]GroupConfig, error)

	// UpsertChannelBinding sets the gating channel of a group.
	UpsertChannelBinding(ctx context.Context, binding *ChannelBinding) error

	// GetChannelBinding retrieves the gating channel binding of a group.
	GetChannelBinding(ctx context.Context, groupHandle string) (*ChannelBinding, error)

	// AppendModerationRecord inserts an audit record.
	AppendModerationRecord(ctx context.Context, record *ModerationRecord) error

	// UpsertUserProfile inserts a profile or refreshes its names. The stored
	// language and subscription flag are left untouched on update.
	UpsertUserProfile(ctx context.Context, profile *UserProfile) error

	// GetUserProfile retrieves a user profile by user ID.
	GetUserProfile(ctx context.Context, userID int64) (*UserProfile, error)

	// UpdateUserLanguage stores the preferred interface language of a user.
	UpdateUserLanguage(ctx context.Context, userID int64, language string) error

	// SetUserSubscribed caches the result of the last subscription check.
	SetUserSubscribed(ctx context.Context, userID int64, subscribed bool) error

	// Stats returns aggregate counts for reporting.
	Stats(ctx context.Context) (*Stats, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
// Queries are written with ? placeholders and rebound for the driver.
type sqlxStore struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	dialect := DialectSQLite
	if db.DriverName() == "pgx" {
		dialect = DialectPostgres
	}
	return &sqlxStore{
		db:      db,
		dialect: dialect,
		logger:  logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// UpsertGroupConfig writes the whole row in one statement, so a config is
// either absent or complete. Re-registration overwrites and re-activates.
func (s *sqlxStore) UpsertGroupConfig(ctx context.Context, cfg *GroupConfig) error {
	if cfg == nil {
		return fmt.Errorf("cannot save nil group config")
	}
	if cfg.GroupHandle == "" {
		return fmt.Errorf("group config must have a group handle")
	}
	if strings.TrimSpace(cfg.Keyword) == "" {
		return fmt.Errorf("group config must have a non-empty keyword")
	}

	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	query := `
        INSERT INTO group_configs (group_handle, chat_id, keyword, language, active, created_at, updated_at)
        VALUES (:group_handle, :chat_id, :keyword, :language, :active, :created_at, :updated_at)
        ON CONFLICT (group_handle) DO UPDATE SET
            chat_id = excluded.chat_id,
            keyword = excluded.keyword,
            language = excluded.language,
            active = excluded.active,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.NamedExecContext(ctx, query, cfg); err != nil {
		s.logger.ErrorContext(ctx, "Error saving group config", "group", cfg.GroupHandle, "error", err)
		return fmt.Errorf("failed to save group config %s: %w", cfg.GroupHandle, err)
	}

	s.logger.DebugContext(ctx, "Group config saved", "group", cfg.GroupHandle, "chat_id", cfg.ChatID)
	return nil
}

// GetGroupConfig retrieves a group config by its normalized handle.
func (s *sqlxStore) GetGroupConfig(ctx context.Context, groupHandle string) (*GroupConfig, error) {
	if groupHandle == "" {
		return nil, fmt.Errorf("group handle cannot be empty")
	}

	var cfg GroupConfig
	query := s.db.Rebind(`
        SELECT group_handle, chat_id, keyword, language, active, created_at, updated_at
        FROM group_configs WHERE group_handle = ?`)

	err := s.db.GetContext(ctx, &cfg, query, groupHandle)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case isContextErr(err):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching group config",
			"group", groupHandle, "error", err)
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting group config", "group", groupHandle, "error", err)
		return nil, fmt.Errorf("failed to get group config %s: %w", groupHandle, err)
	}
	return &cfg, nil
}

// GetGroupConfigByChatID retrieves the most recently updated config bound to chatID.
func (s *sqlxStore) GetGroupConfigByChatID(ctx context.Context, chatID int64) (*GroupConfig, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("chat_id cannot be zero")
	}

	var cfg GroupConfig
	query := s.db.Rebind(`
        SELECT group_handle, chat_id, keyword, language, active, created_at, updated_at
        FROM group_configs WHERE chat_id = ?
        ORDER BY updated_at DESC
        LIMIT 1`)

	err := s.db.GetContext(ctx, &cfg, query, chatID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case isContextErr(err):
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting group config by chat", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get group config for chat %d: %w", chatID, err)
	}
	return &cfg, nil
}

// ListActiveGroups lists active group configs ordered by handle.
func (s *sqlxStore) ListActiveGroups(ctx context.Context) ([]GroupConfig, error) {
	var groups []GroupConfig
	query := s.db.Rebind(`
        SELECT group_handle, chat_id, keyword, language, active, created_at, updated_at
        FROM group_configs WHERE active = ?
        ORDER BY group_handle`)

	if err := s.db.SelectContext(ctx, &groups, query, true); err != nil {
		s.logger.ErrorContext(ctx, "Error listing active groups", "error", err)
		return nil, fmt.Errorf("failed to list active groups: %w", err)
	}
	return groups, nil
}

// UpsertChannelBinding sets the gating channel of a group.
func (s *sqlxStore) UpsertChannelBinding(ctx context.Context, binding *ChannelBinding) error {
	if binding == nil {
		return fmt.Errorf("cannot save nil channel binding")
	}
	if binding.GroupHandle == "" || binding.ChannelHandle == "" {
		return fmt.Errorf("channel binding needs both group and channel handles")
	}
	binding.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO channel_bindings (group_handle, channel_handle, active, created_at)
        VALUES (:group_handle, :channel_handle, :active, :created_at)
        ON CONFLICT (group_handle) DO UPDATE SET
            channel_handle = excluded.channel_handle,
            active = excluded.active;
    `

	if _, err := s.db.NamedExecContext(ctx, query, binding); err != nil {
		s.logger.ErrorContext(ctx, "Error saving channel binding",
			"group", binding.GroupHandle, "channel", binding.ChannelHandle, "error", err)
		return fmt.Errorf("failed to save channel binding for %s: %w", binding.GroupHandle, err)
	}

	s.logger.DebugContext(ctx, "Channel binding saved", "group", binding.GroupHandle, "channel", binding.ChannelHandle)
	return nil
}

// GetChannelBinding retrieves the gating channel binding of a group.
func (s *sqlxStore) GetChannelBinding(ctx context.Context, groupHandle string) (*ChannelBinding, error) {
	if groupHandle == "" {
		return nil, fmt.Errorf("group handle cannot be empty")
	}

	var binding ChannelBinding
	query := s.db.Rebind(`
        SELECT group_handle, channel_handle, active, created_at
        FROM channel_bindings WHERE group_handle = ?`)

	err := s.db.GetContext(ctx, &binding, query, groupHandle)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case isContextErr(err):
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting channel binding", "group", groupHandle, "error", err)
		return nil, fmt.Errorf("failed to get channel binding for %s: %w", groupHandle, err)
	}
	return &binding, nil
}

// AppendModerationRecord inserts an audit record.
func (s *sqlxStore) AppendModerationRecord(ctx context.Context, record *ModerationRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil moderation record")
	}
	if record.GroupHandle == "" || record.ReasonCode == "" {
		return fmt.Errorf("moderation record needs a group handle and a reason code")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO moderation_records (group_handle, user_id, user_name, message_text, language, reason_code, created_at)
        VALUES (:group_handle, :user_id, :user_name, :message_text, :language, :reason_code, :created_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, record)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving moderation record",
			"group", record.GroupHandle, "user_id", record.UserID, "error", err)
		return fmt.Errorf("failed to save moderation record (group %s, user %d): %w",
			record.GroupHandle, record.UserID, err)
	}

	// pgx does not support LastInsertId.
	if s.dialect == DialectSQLite {
		if id, err := result.LastInsertId(); err == nil {
			record.ID = id
		}
	}
	return nil
}

// UpsertUserProfile inserts a profile or refreshes its names.
func (s *sqlxStore) UpsertUserProfile(ctx context.Context, profile *UserProfile) error {
	if profile == nil {
		return fmt.Errorf("cannot save nil user profile")
	}
	if profile.UserID == 0 {
		return fmt.Errorf("user profile must have a non-zero user_id")
	}

	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	query := `
        INSERT INTO user_profiles (user_id, username, first_name, language, subscribed, created_at, updated_at)
        VALUES (:user_id, :username, :first_name, :language, :subscribed, :created_at, :updated_at)
        ON CONFLICT (user_id) DO UPDATE SET
            username = excluded.username,
            first_name = excluded.first_name,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.NamedExecContext(ctx, query, profile); err != nil {
		s.logger.ErrorContext(ctx, "Error saving user profile", "user_id", profile.UserID, "error", err)
		return fmt.Errorf("failed to save user profile for user ID %d: %w", profile.UserID, err)
	}
	return nil
}

// GetUserProfile retrieves a user profile by user ID.
func (s *sqlxStore) GetUserProfile(ctx context.Context, userID int64) (*UserProfile, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	var profile UserProfile
	query := s.db.Rebind(`
        SELECT user_id, username, first_name, language, subscribed, created_at, updated_at
        FROM user_profiles WHERE user_id = ?`)

	err := s.db.GetContext(ctx, &profile, query, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No user profile found", "user_id", userID)
		return nil, nil
	case isContextErr(err):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching user profile",
			"user_id", userID, "error", err)
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user profile by ID", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get user profile for user ID %d: %w", userID, err)
	}
	return &profile, nil
}

// UpdateUserLanguage stores the preferred interface language of a user.
func (s *sqlxStore) UpdateUserLanguage(ctx context.Context, userID int64, language string) error {
	query := s.db.Rebind(`UPDATE user_profiles SET language = ?, updated_at = ? WHERE user_id = ?`)
	if _, err := s.db.ExecContext(ctx, query, language, time.Now().UTC(), userID); err != nil {
		s.logger.ErrorContext(ctx, "Error updating user language", "user_id", userID, "error", err)
		return fmt.Errorf("failed to update language for user ID %d: %w", userID, err)
	}
	return nil
}

// SetUserSubscribed caches the result of the last subscription check.
func (s *sqlxStore) SetUserSubscribed(ctx context.Context, userID int64, subscribed bool) error {
	query := s.db.Rebind(`UPDATE user_profiles SET subscribed = ?, updated_at = ? WHERE user_id = ?`)
	if _, err := s.db.ExecContext(ctx, query, subscribed, time.Now().UTC(), userID); err != nil {
		s.logger.ErrorContext(ctx, "Error updating subscription flag", "user_id", userID, "error", err)
		return fmt.Errorf("failed to update subscription flag for user ID %d: %w", userID, err)
	}
	return nil
}

// Stats returns aggregate counts for reporting.
func (s *sqlxStore) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	query := s.db.Rebind(`
        SELECT
            (SELECT COUNT(*) FROM group_configs WHERE active = ?) AS active_groups,
            (SELECT COUNT(*) FROM moderation_records) AS moderation_records,
            (SELECT COUNT(*) FROM user_profiles) AS users`)

	if err := s.db.GetContext(ctx, &stats, query, true); err != nil {
		s.logger.ErrorContext(ctx, "Error computing stats", "error", err)
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	return &stats, nil
}

// RunSQLMaintenance performs database maintenance tasks like VACUUM.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...", "dialect", s.dialect)

	statement := "VACUUM;"
	if s.dialect == DialectPostgres {
		statement = "VACUUM ANALYZE;"
	} else if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		s.logger.WarnContext(ctx, "Failed to set busy timeout", "error", err)
	}

	// VACUUM must run outside a transaction on both backends.
	_, err := s.db.ExecContext(ctx, statement)
	switch {
	case isContextErr(err):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
