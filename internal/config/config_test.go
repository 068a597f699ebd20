package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []int{3, 5, 10}, cfg.Engine.Windows)
	assert.Equal(t, 32.0, cfg.Engine.KFactor)
	assert.Equal(t, 1500.0, cfg.Engine.InitialRating)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Engine.KFactor = 0
	cfg.Engine.Windows = []int{3, 3}
	cfg.Classifier.Kind = "remote"
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, "engine: k_factor")
	assert.Contains(t, msg, "engine: window 3")
	assert.Contains(t, msg, "classifier: remote_url")
	assert.Contains(t, msg, "redis: addr")
}

func TestValidate_IngestNeedsSource(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "ingest"
	assert.ErrorContains(t, cfg.Validate(), "source_key or source_file")

	cfg.Pipeline.SourceFile = "matches.csv"
	assert.NoError(t, cfg.Validate())

	cfg.Pipeline.SourceKey = "raw/matches.csv"
	assert.ErrorContains(t, cfg.Validate(), "requires s3.enabled")
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "full"
log_level = "debug"

[engine]
k_factor = 20.0
windows = [4, 8]

[live]
state_ttl = "90m"

[classifier]
kind = "baseline"
timeout = "1500ms"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("MATCHCAST_REDIS_ADDR", "redis:6380")
	t.Setenv("MATCHCAST_ENGINE_WINDOWS", "2, 6")
	t.Setenv("MATCHCAST_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 20.0, cfg.Engine.KFactor)
	assert.Equal(t, []int{2, 6}, cfg.Engine.Windows)
	assert.Equal(t, 90*time.Minute, cfg.Live.StateTTL.Duration)
	assert.Equal(t, 1500*time.Millisecond, cfg.Classifier.Timeout.Duration)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	// untouched defaults survive
	assert.Equal(t, 5432, cfg.Postgres.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Server.APIKey = "key"
	cfg.Notify.DiscordWebhookURL = ""

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "", out.Notify.DiscordWebhookURL)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)

	out.Engine.Windows[0] = 99
	assert.Equal(t, 3, cfg.Engine.Windows[0])
}
