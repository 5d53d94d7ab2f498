package config

const redacted = "***"

// Redacted returns a copy of the configuration safe for logging:
// passwords, keys and tokens are replaced, slices are deep-copied so
// the caller cannot mutate the original through the copy.
func (c Config) Redacted() Config {
	out := c

	out.Database.Password = redact(c.Database.Password)
	out.Redis.Password = redact(c.Redis.Password)
	out.Vault.SecretsPassword = redact(c.Vault.SecretsPassword)
	out.Server.APIKey = redact(c.Server.APIKey)
	out.Notify.TelegramToken = redact(c.Notify.TelegramToken)
	out.Notify.DiscordWebhookURL = redact(c.Notify.DiscordWebhookURL)
	out.S3.AccessKey = redact(c.S3.AccessKey)
	out.S3.SecretKey = redact(c.S3.SecretKey)

	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	out.Notify.Events = append([]string(nil), c.Notify.Events...)

	return out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}
