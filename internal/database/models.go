package database

import "time"

// GroupConfig is the moderation setup of one group, keyed by its normalized
// handle. Rows are written whole by a single upsert.
type GroupConfig struct {
	GroupHandle string    `db:"group_handle"`
	ChatID      int64     `db:"chat_id"`
	Keyword     string    `db:"keyword"`
	Language    string    `db:"language"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// ChannelBinding points a group at the channel its members must join.
type ChannelBinding struct {
	GroupHandle   string    `db:"group_handle"`
	ChannelHandle string    `db:"channel_handle"`
	Active        bool      `db:"active"`
	CreatedAt     time.Time `db:"created_at"`
}

// ModerationRecord is one enforcement action. Records are append-only.
type ModerationRecord struct {
	ID          int64     `db:"id"`
	GroupHandle string    `db:"group_handle"`
	UserID      int64     `db:"user_id"`
	UserName    string    `db:"user_name"`
	MessageText string    `db:"message_text"`
	Language    string    `db:"language"`
	ReasonCode  string    `db:"reason_code"`
	CreatedAt   time.Time `db:"created_at"`
}

// UserProfile caches what the bot knows about a private-chat user.
// Subscribed is informational; membership is always checked live.
type UserProfile struct {
	UserID     int64     `db:"user_id"`
	Username   string    `db:"username"`
	FirstName  string    `db:"first_name"`
	Language   string    `db:"language"`
	Subscribed bool      `db:"subscribed"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Stats holds aggregate counts for reporting.
type Stats struct {
	ActiveGroups      int64 `db:"active_groups"`
	ModerationRecords int64 `db:"moderation_records"`
	Users             int64 `db:"users"`
}
