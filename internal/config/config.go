// Package config provides configuration loading, validation, and management
// for the gatekeeper bot. It reads a YAML file, applies BOT_* environment
// overrides and default values, and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every error returned by LoadConfig.
var ErrConfiguration = errors.New("configuration error")

// Config defines the application configuration for all components.
type Config struct {
	Logger       LoggerConfig       `mapstructure:"logger"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Moderation   ModerationConfig   `mapstructure:"moderation"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot credentials and transport limits.
type TelegramConfig struct {
	Token          string        `mapstructure:"token"           validate:"required"`
	DefaultChannel string        `mapstructure:"default_channel" validate:"required,startswith=@"`
	RateLimit      float64       `mapstructure:"rate_limit"      validate:"gt=0"`
	RateBurst      int           `mapstructure:"rate_burst"      validate:"gte=1"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s,max=2m"`

	// BotInfo is filled at runtime from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// DatabaseConfig selects the store backend. A DSN starting with postgres://
// or postgresql:// selects PostgreSQL, anything else is a SQLite file path.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" validate:"required"`
}

// ModerationConfig tunes the message pipeline.
type ModerationConfig struct {
	WarningTTL      time.Duration `mapstructure:"warning_ttl"      validate:"min=1s"`
	CheckTimeout    time.Duration `mapstructure:"check_timeout"    validate:"min=1s,max=1m"`
	DefaultLanguage string        `mapstructure:"default_language" validate:"required,oneof=ar en ru fr"`
}

// RegistrationConfig tunes the onboarding conversation.
type RegistrationConfig struct {
	SessionTTL  time.Duration `mapstructure:"session_ttl"  validate:"min=1m"`
	MaxSessions int           `mapstructure:"max_sessions" validate:"gte=1"`
}

// TaskConfig enables a periodic task on a cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig lists periodic tasks keyed by task name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// LoadConfig reads configuration from path, applies BOT_* environment
// variables over it and validates the result. A missing file is not an error
// as long as the required values arrive through the environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, path, err)
		}
		slog.Info("Configuration file not found, using defaults and environment", "path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}
	cfg.Telegram.DefaultChannel = strings.ToLower(strings.TrimSpace(cfg.Telegram.DefaultChannel))

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	slog.Debug("Configuration loaded",
		"path", path,
		"log_level", cfg.Logger.Level,
		"default_channel", cfg.Telegram.DefaultChannel,
		"warning_ttl", cfg.Moderation.WarningTTL,
		"tasks", len(cfg.Scheduler.Tasks))
	return cfg, nil
}
