// Package config manages application configuration from environment variables,
// an optional config file, and default values.
package config

import (
	"errors"
	"time"
)

// ErrConfiguration marks every failure to load or validate the configuration.
var ErrConfiguration = errors.New("configuration error")

// Config defines the application configuration. Secrets and identities come
// from SCOUT_* environment variables; everything else can also be set
// through config.yaml.
type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Limiter   LimiterConfig   `mapstructure:"limiter"`
	Logger    LoggerConfig    `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// TelegramConfig holds the chat-bot identity and the operator allow-list.
type TelegramConfig struct {
	Token  string `mapstructure:"token"  validate:"required"`
	Admins string `mapstructure:"admins" validate:"required"`

	// AdminIDs is parsed from Admins during Load.
	AdminIDs []int64 `mapstructure:"-" validate:"min=1,dive,gt=0"`
}

// DirectoryConfig holds the scout client (MTProto user session) settings.
type DirectoryConfig struct {
	APIID       int    `mapstructure:"api_id"       validate:"required,gt=0"`
	APIHash     string `mapstructure:"api_hash"     validate:"required"`
	Phone       string `mapstructure:"phone"        validate:"required,startswith=+"`
	SessionPath string `mapstructure:"session_path" validate:"required"`
	// CallTimeout bounds each directory call, and each dialog or member
	// listing as a whole.
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"min=1s"`
}

// DatabaseConfig holds the record store location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// StatsConfig holds where exported statistics files are written.
type StatsConfig struct {
	Dir    string        `mapstructure:"dir"     validate:"required"`
	MaxAge time.Duration `mapstructure:"max_age" validate:"min=1m"`
}

// LimitsConfig holds the invitation quotas.
type LimitsConfig struct {
	DailyCap int           `mapstructure:"daily_cap" validate:"gt=0"`
	BatchCap int           `mapstructure:"batch_cap" validate:"gt=0"`
	Window   time.Duration `mapstructure:"window"    validate:"min=1m"`
	Cooldown time.Duration `mapstructure:"cooldown"  validate:"min=0s"`
}

// LimiterConfig selects where the rolling window counters are kept.
// An empty RedisAddr keeps them in process memory.
type LimiterConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"min=0"`
	RedisKey      string `mapstructure:"redis_key"`
}

// LoggerConfig configures the slog logger.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig configures one scheduled task. Schedule is a cron expression
// with a seconds field.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// MessagesConfig holds the fixed operator-facing replies.
type MessagesConfig struct {
	NotAuthorized string `mapstructure:"not_authorized" validate:"required"`
	NoPending     string `mapstructure:"no_pending"     validate:"required"`
	EmptyText     string `mapstructure:"empty_text"     validate:"required"`
	GeneralError  string `mapstructure:"general_error"  validate:"required"`
	Busy          string `mapstructure:"busy"           validate:"required"`
}
