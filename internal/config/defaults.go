package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	// Logger defaults
	DefaultLogLevel = "info"

	// Telegram defaults
	DefaultRateLimit      = 25.0 // requests per second, below the Bot API global limit
	DefaultRateBurst      = 5
	DefaultRequestTimeout = 30 * time.Second

	// Database defaults
	DefaultDSN = "gatekeeper.db"

	// Moderation defaults
	DefaultWarningTTL   = 180 * time.Second
	DefaultCheckTimeout = 10 * time.Second
	DefaultLanguage     = "en"

	// Registration defaults
	DefaultSessionTTL  = 30 * time.Minute
	DefaultMaxSessions = 10000

	// Metrics defaults
	DefaultMetricsAddr = ":9090"
)

// Periodic task names known to the scheduler.
const (
	TaskSQLMaintenance = "sql_maintenance"
	TaskStatsSnapshot  = "stats_snapshot"
)

// setDefaults sets default values for optional configuration parameters.
// Every key is registered so BOT_* environment variables reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.default_channel", "")
	v.SetDefault("telegram.rate_limit", DefaultRateLimit)
	v.SetDefault("telegram.rate_burst", DefaultRateBurst)
	v.SetDefault("telegram.request_timeout", DefaultRequestTimeout)

	v.SetDefault("database.dsn", DefaultDSN)

	v.SetDefault("moderation.warning_ttl", DefaultWarningTTL)
	v.SetDefault("moderation.check_timeout", DefaultCheckTimeout)
	v.SetDefault("moderation.default_language", DefaultLanguage)

	v.SetDefault("registration.session_ttl", DefaultSessionTTL)
	v.SetDefault("registration.max_sessions", DefaultMaxSessions)

	v.SetDefault("scheduler.tasks", map[string]any{
		TaskSQLMaintenance: map[string]any{"enabled": true, "schedule": "0 4 * * *"},
		TaskStatsSnapshot:  map[string]any{"enabled": true, "schedule": "*/5 * * * *"},
	})

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", DefaultMetricsAddr)
}
