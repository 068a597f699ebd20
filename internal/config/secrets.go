package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging the active configuration.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the copy.
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	out.Kafka.Brokers = append([]string(nil), cfg.Kafka.Brokers...)
	out.Engine.Windows = append([]int(nil), cfg.Engine.Windows...)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
