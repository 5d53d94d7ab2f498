// Package feed provides the engine's view of the external opportunity
// discovery service: a polling Redis snapshot reader and a push WebSocket
// subscriber, both implementing domain.OpportunityFeed.
package feed

import (
	"context"
	"log/slog"
	"time"

	cacheredis "github.com/alanyoungcy/spreadbot/internal/cache/redis"
	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// RedisFeed reads the opportunity snapshot the discovery service publishes
// to Redis. Entries older than MaxAge are dropped; a spread observed a
// minute ago has almost certainly closed.
type RedisFeed struct {
	cache  *cacheredis.OpportunityCache
	maxAge time.Duration
	logger *slog.Logger
}

// NewRedisFeed creates a feed over the given opportunity cache. maxAge <= 0
// disables the staleness filter.
func NewRedisFeed(cache *cacheredis.OpportunityCache, maxAge time.Duration, logger *slog.Logger) *RedisFeed {
	return &RedisFeed{
		cache:  cache,
		maxAge: maxAge,
		logger: logger.With(slog.String("component", "redis_feed")),
	}
}

// Opportunities returns the current snapshot with stale entries filtered out.
func (f *RedisFeed) Opportunities(ctx context.Context) ([]domain.Opportunity, error) {
	opps, err := f.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	fresh := filterStale(opps, f.maxAge, time.Now().UTC())
	if dropped := len(opps) - len(fresh); dropped > 0 {
		f.logger.Debug("stale opportunities dropped", slog.Int("dropped", dropped))
	}
	return fresh, nil
}

// filterStale keeps opportunities detected within maxAge of now. Entries
// without a detection timestamp are kept; the publisher does not always
// stamp them.
func filterStale(opps []domain.Opportunity, maxAge time.Duration, now time.Time) []domain.Opportunity {
	if maxAge <= 0 {
		return opps
	}
	fresh := opps[:0:0]
	for _, opp := range opps {
		if opp.DetectedAt.IsZero() || now.Sub(opp.DetectedAt) <= maxAge {
			fresh = append(fresh, opp)
		}
	}
	return fresh
}

var _ domain.OpportunityFeed = (*RedisFeed)(nil)
