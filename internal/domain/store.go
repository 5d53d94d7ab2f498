package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// TradeStore persists execution attempts. Persistence failures must never
// undo already-executed exchange orders; callers log and continue.
type TradeStore interface {
	Create(ctx context.Context, trade Trade) error
	ListByUser(ctx context.Context, userID int64, opts ListOpts) ([]Trade, error)
	Stats(ctx context.Context, userID int64) (TradeStats, error)
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// StrategyStore supplies a user's trading strategies. The engine receives
// fully validated records and performs no validation beyond presence checks.
type StrategyStore interface {
	ListActiveByUser(ctx context.Context, userID int64) ([]Strategy, error)
}

// CredentialStore supplies a user's exchange credential sets, keyed by
// exchange name, with secrets already decrypted.
type CredentialStore interface {
	GetByUser(ctx context.Context, userID int64) (map[string]Credentials, error)
}

// OpportunityFeed supplies the candidate arbitrage opportunities detected by
// the external discovery service. It may return an empty slice; callers are
// responsible for bounding the call with a timeout.
type OpportunityFeed interface {
	Opportunities(ctx context.Context) ([]Opportunity, error)
}

// RateLimiter provides distributed rate limiting, shared across instances.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed mutual exclusion for singleton jobs, so
// that a multi-instance deployment runs trade archiving exactly once per
// interval. Acquire returns ErrLockHeld when another holder owns the key; on
// success the returned func releases the lock and is safe to call twice.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
