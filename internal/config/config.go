// Package config defines the top-level configuration for matchcast and
// provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MATCHCAST_* environment variables.
type Config struct {
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Kafka      KafkaConfig      `toml:"kafka"`
	Engine     EngineConfig     `toml:"engine"`
	Live       LiveConfig       `toml:"live"`
	Classifier ClassifierConfig `toml:"classifier"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	FeatureTTLHours int    `toml:"feature_ttl_hours"`
	StreamMaxLen    int    `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// KafkaConfig enables mirroring live match events to a Kafka topic.
type KafkaConfig struct {
	Brokers      []string `toml:"brokers"`
	Topic        string   `toml:"topic"`
	BatchTimeout duration `toml:"batch_timeout"`
}

// EngineConfig parameterises the rating and form engines.
type EngineConfig struct {
	KFactor       float64 `toml:"k_factor"`
	InitialRating float64 `toml:"initial_rating"`
	Windows       []int   `toml:"windows"`
}

// LiveConfig tunes live match tracking.
type LiveConfig struct {
	MailboxSize    int      `toml:"mailbox_size"`
	OutboxSize     int      `toml:"outbox_size"`
	StateTTL       duration `toml:"state_ttl"`
	SimulateEvery  duration `toml:"simulate_every"`
	SimulateSeed   int64    `toml:"simulate_seed"`
	SimulateHome   string   `toml:"simulate_home"`
	SimulateAway   string   `toml:"simulate_away"`
	SimulateHomeXG float64  `toml:"simulate_home_xg"`
	SimulateAwayXG float64  `toml:"simulate_away_xg"`
}

// ClassifierConfig selects and tunes the outcome classifier.
type ClassifierConfig struct {
	Kind             string   `toml:"kind"` // "baseline" or "remote"
	RemoteURL        string   `toml:"remote_url"`
	Timeout          duration `toml:"timeout"`
	BreakerFailures  uint32   `toml:"breaker_failures"`
	BreakerOpenFor   duration `toml:"breaker_open_for"`
	FallbackBaseline bool     `toml:"fallback_baseline"`
	HomeAdvantage    float64  `toml:"home_advantage"`
}

// PipelineConfig controls scheduled rebuilds, ingestion and archival.
type PipelineConfig struct {
	Enabled              bool   `toml:"enabled"`
	RebuildCron          string `toml:"rebuild_cron"`
	ArchiveCron          string `toml:"archive_cron"`
	ArchiveRetentionDays int    `toml:"archive_retention_days"`
	SourceKey            string `toml:"source_key"`
	SourceFile           string `toml:"source_file"`
	RebuildOnStart       bool   `toml:"rebuild_on_start"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled          bool     `toml:"enabled"`
	Port             int      `toml:"port"`
	CORSOrigins      []string `toml:"cors_origins"`
	APIKey           string   `toml:"api_key"`
	PredictPerMinute int      `toml:"predict_per_minute"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "matchcast",
			User:          "matchcast",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			PoolSize:        10,
			MaxRetries:      3,
			FeatureTTLHours: 24,
			StreamMaxLen:    10000,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "matchcast",
			ForcePathStyle: true,
		},
		Kafka: KafkaConfig{
			Topic:        "matchcast.live",
			BatchTimeout: duration{50 * time.Millisecond},
		},
		Engine: EngineConfig{
			KFactor:       32,
			InitialRating: 1500,
			Windows:       []int{3, 5, 10},
		},
		Live: LiveConfig{
			MailboxSize:    16,
			OutboxSize:     256,
			StateTTL:       duration{time.Hour},
			SimulateEvery:  duration{2 * time.Second},
			SimulateSeed:   1,
			SimulateHome:   "Arsenal",
			SimulateAway:   "Chelsea",
			SimulateHomeXG: 1.5,
			SimulateAwayXG: 1.1,
		},
		Classifier: ClassifierConfig{
			Kind:             "baseline",
			Timeout:          duration{3 * time.Second},
			BreakerFailures:  5,
			BreakerOpenFor:   duration{30 * time.Second},
			FallbackBaseline: true,
			HomeAdvantage:    60,
		},
		Pipeline: PipelineConfig{
			Enabled:              true,
			RebuildCron:          "0 */6 * * *",
			ArchiveCron:          "0 3 1 * *",
			ArchiveRetentionDays: 90,
			RebuildOnStart:       true,
		},
		Server: ServerConfig{
			Enabled:          true,
			Port:             8000,
			CORSOrigins:      []string{"http://localhost:3000", "http://localhost:5173"},
			PredictPerMinute: 120,
		},
		Notify: NotifyConfig{
			Events: []string{"match_finished", "rebuild_failed", "job_failed"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":    true,
	"rebuild":  true,
	"ingest":   true,
	"simulate": true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validClassifiers = map[string]bool{
	"baseline": true,
	"remote":   true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, rebuild, ingest, simulate, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Kafka
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, "kafka: topic must not be empty when brokers are set")
	}

	// Engine
	if c.Engine.KFactor <= 0 {
		errs = append(errs, "engine: k_factor must be > 0")
	}
	if c.Engine.InitialRating <= 0 {
		errs = append(errs, "engine: initial_rating must be > 0")
	}
	if len(c.Engine.Windows) == 0 {
		errs = append(errs, "engine: windows must not be empty")
	}
	seen := make(map[int]bool, len(c.Engine.Windows))
	for _, w := range c.Engine.Windows {
		if w <= 0 || seen[w] {
			errs = append(errs, fmt.Sprintf("engine: window %d must be positive and unique", w))
		}
		seen[w] = true
	}

	// Classifier
	if !validClassifiers[c.Classifier.Kind] {
		errs = append(errs, fmt.Sprintf("classifier: unknown kind %q (valid: baseline, remote)", c.Classifier.Kind))
	}
	if c.Classifier.Kind == "remote" {
		if u, err := url.Parse(c.Classifier.RemoteURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "classifier: remote_url must be an absolute URL when kind is remote")
		}
	}

	// Pipeline
	if mode == "ingest" && c.Pipeline.SourceKey == "" && c.Pipeline.SourceFile == "" {
		errs = append(errs, "pipeline: source_key or source_file is required for ingest mode")
	}
	if c.Pipeline.SourceKey != "" && !c.S3.Enabled {
		errs = append(errs, "pipeline: source_key requires s3.enabled")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
