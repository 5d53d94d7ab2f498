package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/spreadbot/internal/blob/s3"
	"github.com/alanyoungcy/spreadbot/internal/cache/redis"
	"github.com/alanyoungcy/spreadbot/internal/config"
	"github.com/alanyoungcy/spreadbot/internal/crypto"
	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/alanyoungcy/spreadbot/internal/engine"
	"github.com/alanyoungcy/spreadbot/internal/exchange"
	"github.com/alanyoungcy/spreadbot/internal/feed"
	"github.com/alanyoungcy/spreadbot/internal/notify"
	"github.com/alanyoungcy/spreadbot/internal/server/ws"
	"github.com/alanyoungcy/spreadbot/internal/store/postgres"
)

// Dependencies bundles everything the application lifecycle needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	TradeStore      domain.TradeStore
	StrategyStore   domain.StrategyStore
	CredentialStore domain.CredentialStore

	// Cache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// Opportunity feed. WSFeed is non-nil only when the websocket source is
	// configured; its Run loop is owned by the application.
	Feed   domain.OpportunityFeed
	WSFeed *feed.WSFeed

	// Engine
	Sessions  *engine.SessionRegistry
	Exchanges *exchange.Registry
	Executor  *engine.Executor
	Scheduler *engine.Scheduler

	// Archiving. Nil unless enabled in the configuration.
	Archiver *s3blob.Archiver

	// Notifications and event streaming. WSHub is non-nil only when the
	// HTTP server is enabled; its Run loop is owned by the application.
	Notifier *notify.Notifier
	WSHub    *ws.Hub
	Alerter  engine.Alerter
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Name,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: int(cfg.Database.MaxConns),
		MinConns: int(cfg.Database.MinConns),
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if err := pgClient.RunMigrations(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
	}

	pool := pgClient.Pool()
	vault := crypto.NewVault(cfg.Vault.SecretsPassword)
	deps.TradeStore = postgres.NewTradeStore(pool)
	deps.StrategyStore = postgres.NewStrategyStore(pool)
	deps.CredentialStore = postgres.NewCredentialStore(pool, vault)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)

	oppCache := redis.NewOpportunityCache(redisClient, cfg.Feed.RedisKey)

	// --- Opportunity feed ---
	switch cfg.Feed.Source {
	case "ws":
		wsFeed := feed.NewWSFeed(cfg.Feed.WsURL, cfg.Feed.MaxAge.Duration, logger)
		if cfg.Feed.Mirror {
			wsFeed.SetMirror(oppCache)
		}
		deps.WSFeed = wsFeed
		deps.Feed = wsFeed
	default:
		deps.Feed = feed.NewRedisFeed(oppCache, cfg.Feed.MaxAge.Duration, logger)
	}

	// --- S3 trade archiving ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         true,
			ForcePathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.TradeStore,
			deps.LockManager,
			cfg.Archive.Retention.Duration,
			cfg.Archive.Interval.Duration,
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	deps.Alerter = notify.NewEngineAlerter(deps.Notifier)

	// With the HTTP server enabled, trade events also stream to connected
	// WebSocket clients.
	if cfg.Server.Enabled {
		deps.WSHub = ws.NewHub(logger)
		deps.Alerter = engine.CombineAlerters(deps.Alerter, deps.WSHub)
	}

	// --- Engine ---
	deps.Sessions = engine.NewSessionRegistry()
	deps.Exchanges = exchange.DefaultRegistry(cfg.Exchanges.BaseURLs())
	deps.Executor = engine.NewExecutor(
		deps.Exchanges,
		engine.NewSizer(),
		deps.TradeStore,
		deps.Alerter,
		cfg.Engine.SellRetries,
		cfg.Engine.SellRetryBackoff.Duration,
		logger,
	)
	deps.Scheduler = engine.NewScheduler(
		engine.SchedulerConfig{
			ScanInterval:       cfg.Engine.ScanInterval.Duration,
			FeedTimeout:        cfg.Engine.FeedTimeout.Duration,
			TradeTimeout:       cfg.Engine.TradeTimeout.Duration,
			MaxConcurrentUsers: cfg.Engine.MaxConcurrentUsers,
			TradeCooldown:      cfg.Engine.TradeCooldown.Duration,
		},
		deps.Sessions,
		deps.Feed,
		deps.Executor,
		logger,
	)

	return deps, cleanup, nil
}
