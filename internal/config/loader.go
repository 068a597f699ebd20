package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MATCHCAST_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MATCHCAST_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "MATCHCAST_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "MATCHCAST_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MATCHCAST_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MATCHCAST_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MATCHCAST_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MATCHCAST_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MATCHCAST_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MATCHCAST_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MATCHCAST_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MATCHCAST_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MATCHCAST_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MATCHCAST_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MATCHCAST_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MATCHCAST_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MATCHCAST_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MATCHCAST_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.FeatureTTLHours, "MATCHCAST_REDIS_FEATURE_TTL_HOURS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MATCHCAST_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MATCHCAST_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MATCHCAST_S3_REGION")
	setStr(&cfg.S3.Bucket, "MATCHCAST_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MATCHCAST_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MATCHCAST_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MATCHCAST_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MATCHCAST_S3_FORCE_PATH_STYLE")

	// ── Kafka ──
	setStringSlice(&cfg.Kafka.Brokers, "MATCHCAST_KAFKA_BROKERS")
	setStr(&cfg.Kafka.Topic, "MATCHCAST_KAFKA_TOPIC")

	// ── Engine ──
	setFloat64(&cfg.Engine.KFactor, "MATCHCAST_ENGINE_K_FACTOR")
	setFloat64(&cfg.Engine.InitialRating, "MATCHCAST_ENGINE_INITIAL_RATING")
	setIntSlice(&cfg.Engine.Windows, "MATCHCAST_ENGINE_WINDOWS")

	// ── Live ──
	setInt(&cfg.Live.MailboxSize, "MATCHCAST_LIVE_MAILBOX_SIZE")
	setInt(&cfg.Live.OutboxSize, "MATCHCAST_LIVE_OUTBOX_SIZE")
	setDuration(&cfg.Live.StateTTL, "MATCHCAST_LIVE_STATE_TTL")
	setInt64(&cfg.Live.SimulateSeed, "MATCHCAST_LIVE_SIMULATE_SEED")

	// ── Classifier ──
	setStr(&cfg.Classifier.Kind, "MATCHCAST_CLASSIFIER_KIND")
	setStr(&cfg.Classifier.RemoteURL, "MATCHCAST_CLASSIFIER_REMOTE_URL")
	setDuration(&cfg.Classifier.Timeout, "MATCHCAST_CLASSIFIER_TIMEOUT")
	setBool(&cfg.Classifier.FallbackBaseline, "MATCHCAST_CLASSIFIER_FALLBACK_BASELINE")

	// ── Pipeline ──
	setBool(&cfg.Pipeline.Enabled, "MATCHCAST_PIPELINE_ENABLED")
	setStr(&cfg.Pipeline.RebuildCron, "MATCHCAST_PIPELINE_REBUILD_CRON")
	setStr(&cfg.Pipeline.ArchiveCron, "MATCHCAST_PIPELINE_ARCHIVE_CRON")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "MATCHCAST_PIPELINE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Pipeline.SourceKey, "MATCHCAST_PIPELINE_SOURCE_KEY")
	setStr(&cfg.Pipeline.SourceFile, "MATCHCAST_PIPELINE_SOURCE_FILE")
	setBool(&cfg.Pipeline.RebuildOnStart, "MATCHCAST_PIPELINE_REBUILD_ON_START")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MATCHCAST_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MATCHCAST_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MATCHCAST_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MATCHCAST_SERVER_API_KEY")
	setInt(&cfg.Server.PredictPerMinute, "MATCHCAST_SERVER_PREDICT_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MATCHCAST_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MATCHCAST_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MATCHCAST_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MATCHCAST_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MATCHCAST_MODE")
	setStr(&cfg.LogLevel, "MATCHCAST_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

func setIntSlice(dst *[]int, key string) {
	if v := os.Getenv(key); v != "" {
		var out []int
		for _, p := range strings.Split(v, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return
			}
			out = append(out, n)
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}
