// Package config defines the runtime configuration for spreadbot and
// loads it from a TOML file with environment variable overrides.
package config

import (
	"fmt"
	"time"
)

// duration wraps time.Duration so values can be written as strings
// ("5s", "1m30s") in the TOML file.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the root configuration. See config.example.toml for the
// file layout and Defaults for the baseline values.
type Config struct {
	LogLevel string `toml:"log_level"`

	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	Feed      FeedConfig      `toml:"feed"`
	Engine    EngineConfig    `toml:"engine"`
	Vault     VaultConfig     `toml:"vault"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Archive   ArchiveConfig   `toml:"archive"`
	S3        S3Config        `toml:"s3"`
	Exchanges ExchangesConfig `toml:"exchanges"`
}

type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"ssl_mode"`
	MaxConns int32  `toml:"max_conns"`
	MinConns int32  `toml:"min_conns"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// FeedConfig selects where opportunities come from. Source "redis"
// polls the snapshot key written by the scanner; "ws" subscribes to a
// websocket push feed and optionally mirrors snapshots back to Redis.
type FeedConfig struct {
	Source   string   `toml:"source"`
	RedisKey string   `toml:"redis_key"`
	MaxAge   duration `toml:"max_age"`
	WsURL    string   `toml:"ws_url"`
	Mirror   bool     `toml:"mirror"`
}

type EngineConfig struct {
	ScanInterval       duration `toml:"scan_interval"`
	FeedTimeout        duration `toml:"feed_timeout"`
	TradeTimeout       duration `toml:"trade_timeout"`
	MaxConcurrentUsers int      `toml:"max_concurrent_users"`
	TradeCooldown      duration `toml:"trade_cooldown"`
	SellRetries        int      `toml:"sell_retries"`
	SellRetryBackoff   duration `toml:"sell_retry_backoff"`
}

// VaultConfig holds the password used to derive the key that encrypts
// exchange API secrets at rest.
type VaultConfig struct {
	SecretsPassword string `toml:"secrets_password"`
}

type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey protects all API routes when set; empty disables auth.
	APIKey string `toml:"api_key"`
	// RateLimit caps requests per client IP per RateWindow; 0 disables it.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

type ArchiveConfig struct {
	Enabled   bool     `toml:"enabled"`
	Retention duration `toml:"retention"`
	Interval  duration `toml:"interval"`
}

type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	PathStyle bool   `toml:"path_style"`
}

// ExchangesConfig overrides the REST base URL per exchange, mainly for
// pointing a venue at a sandbox or a local stub in tests.
type ExchangesConfig struct {
	BinanceURL string `toml:"binance_url"`
	KrakenURL  string `toml:"kraken_url"`
	OkxURL     string `toml:"okx_url"`
}

// BaseURLs returns the non-empty overrides keyed by exchange name.
func (e ExchangesConfig) BaseURLs() map[string]string {
	urls := make(map[string]string)
	if e.BinanceURL != "" {
		urls["binance"] = e.BinanceURL
	}
	if e.KrakenURL != "" {
		urls["kraken"] = e.KrakenURL
	}
	if e.OkxURL != "" {
		urls["okx"] = e.OkxURL
	}
	return urls
}

var validFeedSources = map[string]bool{
	"redis": true,
	"ws":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns the baseline configuration. Load starts from this
// and applies the TOML file and environment on top.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "spreadbot",
			Name:     "spreadbot",
			SSLMode:  "disable",
			MaxConns: 8,
			MinConns: 2,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Feed: FeedConfig{
			Source:   "redis",
			RedisKey: "arbitrage:opportunities",
			MaxAge:   duration{30 * time.Second},
		},
		Engine: EngineConfig{
			ScanInterval:       duration{5 * time.Second},
			FeedTimeout:        duration{3 * time.Second},
			TradeTimeout:       duration{30 * time.Second},
			MaxConcurrentUsers: 8,
			TradeCooldown:      duration{time.Minute},
			SellRetries:        2,
			SellRetryBackoff:   duration{500 * time.Millisecond},
		},
		Server: ServerConfig{
			Enabled:    true,
			Port:       8080,
			RateLimit:  120,
			RateWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_completed", "partial_execution"},
		},
		Archive: ArchiveConfig{
			Retention: duration{90 * 24 * time.Hour},
			Interval:  duration{24 * time.Hour},
		},
		S3: S3Config{
			Region: "us-east-1",
		},
	}
}

// Validate reports every problem at once instead of failing on the
// first one.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("log_level: unknown level %q", c.LogLevel))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host: must not be empty")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port: %d out of range", c.Database.Port))
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, "database.max_conns: must be >= min_conns")
	}
	if c.Redis.Addr == "" {
		errs = append(errs, "redis.addr: must not be empty")
	}
	if !validFeedSources[c.Feed.Source] {
		errs = append(errs, fmt.Sprintf("feed.source: unknown source %q", c.Feed.Source))
	}
	if c.Feed.Source == "redis" && c.Feed.RedisKey == "" {
		errs = append(errs, "feed.redis_key: required when feed.source is redis")
	}
	if c.Feed.Source == "ws" && c.Feed.WsURL == "" {
		errs = append(errs, "feed.ws_url: required when feed.source is ws")
	}
	if c.Feed.MaxAge.Duration < 0 {
		errs = append(errs, "feed.max_age: must not be negative")
	}
	if c.Engine.ScanInterval.Duration <= 0 {
		errs = append(errs, "engine.scan_interval: must be positive")
	}
	if c.Engine.FeedTimeout.Duration <= 0 {
		errs = append(errs, "engine.feed_timeout: must be positive")
	}
	if c.Engine.TradeTimeout.Duration <= 0 {
		errs = append(errs, "engine.trade_timeout: must be positive")
	}
	if c.Engine.MaxConcurrentUsers <= 0 {
		errs = append(errs, "engine.max_concurrent_users: must be positive")
	}
	if c.Engine.SellRetries < 0 {
		errs = append(errs, "engine.sell_retries: must not be negative")
	}
	if c.Vault.SecretsPassword == "" {
		errs = append(errs, "vault.secrets_password: must not be empty")
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port: %d out of range", c.Server.Port))
	}
	if c.Archive.Enabled {
		if c.Archive.Retention.Duration <= 0 {
			errs = append(errs, "archive.retention: must be positive when archiving is enabled")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive.interval: must be positive when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3.bucket: required when archiving is enabled")
		}
	}

	if len(errs) > 0 {
		msg := "invalid configuration:"
		for _, e := range errs {
			msg += "\n  - " + e
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}
