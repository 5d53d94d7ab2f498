package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the configuration in three layers: Defaults, then the
// TOML file at path (skipped when path is empty or missing), then
// SPREADBOT_* environment variables. A .env file in the working
// directory is read into the environment first.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	// Missing .env is fine, real deployments set the environment directly.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr("SPREADBOT_LOG_LEVEL", &cfg.LogLevel)

	setStr("SPREADBOT_DB_HOST", &cfg.Database.Host)
	setInt("SPREADBOT_DB_PORT", &cfg.Database.Port)
	setStr("SPREADBOT_DB_USER", &cfg.Database.User)
	setStr("SPREADBOT_DB_PASSWORD", &cfg.Database.Password)
	setStr("SPREADBOT_DB_NAME", &cfg.Database.Name)
	setStr("SPREADBOT_DB_SSL_MODE", &cfg.Database.SSLMode)
	setInt32("SPREADBOT_DB_MAX_CONNS", &cfg.Database.MaxConns)
	setInt32("SPREADBOT_DB_MIN_CONNS", &cfg.Database.MinConns)

	setStr("SPREADBOT_REDIS_ADDR", &cfg.Redis.Addr)
	setStr("SPREADBOT_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("SPREADBOT_REDIS_DB", &cfg.Redis.DB)

	setStr("SPREADBOT_FEED_SOURCE", &cfg.Feed.Source)
	setStr("SPREADBOT_FEED_REDIS_KEY", &cfg.Feed.RedisKey)
	setDuration("SPREADBOT_FEED_MAX_AGE", &cfg.Feed.MaxAge)
	setStr("SPREADBOT_FEED_WS_URL", &cfg.Feed.WsURL)
	setBool("SPREADBOT_FEED_MIRROR", &cfg.Feed.Mirror)

	setDuration("SPREADBOT_SCAN_INTERVAL", &cfg.Engine.ScanInterval)
	setDuration("SPREADBOT_FEED_TIMEOUT", &cfg.Engine.FeedTimeout)
	setDuration("SPREADBOT_TRADE_TIMEOUT", &cfg.Engine.TradeTimeout)
	setInt("SPREADBOT_MAX_CONCURRENT_USERS", &cfg.Engine.MaxConcurrentUsers)
	setDuration("SPREADBOT_TRADE_COOLDOWN", &cfg.Engine.TradeCooldown)
	setInt("SPREADBOT_SELL_RETRIES", &cfg.Engine.SellRetries)
	setDuration("SPREADBOT_SELL_RETRY_BACKOFF", &cfg.Engine.SellRetryBackoff)

	setStr("SPREADBOT_SECRETS_PASSWORD", &cfg.Vault.SecretsPassword)

	setBool("SPREADBOT_SERVER_ENABLED", &cfg.Server.Enabled)
	setInt("SPREADBOT_SERVER_PORT", &cfg.Server.Port)
	setStringSlice("SPREADBOT_CORS_ORIGINS", &cfg.Server.CORSOrigins)
	setStr("SPREADBOT_API_KEY", &cfg.Server.APIKey)
	setInt("SPREADBOT_RATE_LIMIT", &cfg.Server.RateLimit)
	setDuration("SPREADBOT_RATE_WINDOW", &cfg.Server.RateWindow)

	setStr("SPREADBOT_TELEGRAM_TOKEN", &cfg.Notify.TelegramToken)
	setStr("SPREADBOT_TELEGRAM_CHAT_ID", &cfg.Notify.TelegramChatID)
	setStr("SPREADBOT_DISCORD_WEBHOOK_URL", &cfg.Notify.DiscordWebhookURL)
	setStringSlice("SPREADBOT_NOTIFY_EVENTS", &cfg.Notify.Events)

	setBool("SPREADBOT_ARCHIVE_ENABLED", &cfg.Archive.Enabled)
	setDuration("SPREADBOT_ARCHIVE_RETENTION", &cfg.Archive.Retention)
	setDuration("SPREADBOT_ARCHIVE_INTERVAL", &cfg.Archive.Interval)

	setStr("SPREADBOT_S3_ENDPOINT", &cfg.S3.Endpoint)
	setStr("SPREADBOT_S3_REGION", &cfg.S3.Region)
	setStr("SPREADBOT_S3_BUCKET", &cfg.S3.Bucket)
	setStr("SPREADBOT_S3_ACCESS_KEY", &cfg.S3.AccessKey)
	setStr("SPREADBOT_S3_SECRET_KEY", &cfg.S3.SecretKey)
	setBool("SPREADBOT_S3_PATH_STYLE", &cfg.S3.PathStyle)

	setStr("SPREADBOT_BINANCE_URL", &cfg.Exchanges.BinanceURL)
	setStr("SPREADBOT_KRAKEN_URL", &cfg.Exchanges.KrakenURL)
	setStr("SPREADBOT_OKX_URL", &cfg.Exchanges.OkxURL)
}

func setStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(key string, dst *int32) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(key string, dst *duration) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(key string, dst *[]string) {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}
