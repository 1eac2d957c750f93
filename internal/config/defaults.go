package config

import "time"

// Default values for configuration
const (
	// Log defaults
	DefaultLogLevel = "info"
	DefaultLogJSON  = true

	// Storage defaults
	DefaultDBPath      = "scout.db"
	DefaultSessionPath = "scout.session.json"
	DefaultStatsDir    = "stats"
	DefaultStatsMaxAge = time.Hour

	DefaultCallTimeout = 2 * time.Minute

	// Invitation quotas
	DefaultDailyCap = 200
	DefaultBatchCap = 200
	DefaultWindow   = 24 * time.Hour
	DefaultCooldown = 48 * time.Hour

	DefaultRedisKey = "scout:invite_window"
)

// envBindings maps configuration keys to the environment variables they are
// read from.
var envBindings = map[string]string{
	"telegram.token":         "SCOUT_BOT_TOKEN",
	"telegram.admins":        "SCOUT_ADMINS",
	"directory.api_id":       "SCOUT_API_ID",
	"directory.api_hash":     "SCOUT_API_HASH",
	"directory.phone":        "SCOUT_PHONE",
	"directory.session_path": "SCOUT_SESSION_PATH",
	"database.path":          "SCOUT_DB_PATH",
	"stats.dir":              "SCOUT_STATS_DIR",
	"log.level":              "SCOUT_LOG_LEVEL",
	"log.json":               "SCOUT_LOG_JSON",
	"limits.daily_cap":       "SCOUT_DAILY_CAP",
	"limits.batch_cap":       "SCOUT_BATCH_CAP",
	"limits.cooldown":        "SCOUT_COOLDOWN",
	"limiter.redis_addr":     "SCOUT_REDIS_ADDR",
	"limiter.redis_password": "SCOUT_REDIS_PASSWORD",
	"metrics.addr":           "SCOUT_METRICS_ADDR",
}

var defaults = map[string]any{
	"log.level": DefaultLogLevel,
	"log.json":  DefaultLogJSON,

	"directory.session_path": DefaultSessionPath,
	"directory.call_timeout": DefaultCallTimeout,
	"database.path":          DefaultDBPath,
	"stats.dir":              DefaultStatsDir,
	"stats.max_age":          DefaultStatsMaxAge,

	"limits.daily_cap": DefaultDailyCap,
	"limits.batch_cap": DefaultBatchCap,
	"limits.window":    DefaultWindow,
	"limits.cooldown":  DefaultCooldown,

	"limiter.redis_db":  0,
	"limiter.redis_key": DefaultRedisKey,

	"scheduler.tasks.sql_maintenance.enabled":  true,
	"scheduler.tasks.sql_maintenance.schedule": "0 0 4 * * *",
	"scheduler.tasks.stats_cleanup.enabled":    true,
	"scheduler.tasks.stats_cleanup.schedule":   "0 */30 * * * *",

	"messages.not_authorized": "Sorry, you're not enabled for this service.",
	"messages.no_pending":     "Cannot accept text messages without a previous command. Use /help to see the commands.",
	"messages.empty_text":     "Message text empty.",
	"messages.general_error":  "An error occurred. Please try again later.",
	"messages.busy":           "Still working on the previous request, please wait.",
}
