package engine

import (
	"fmt"
	"sync"
	"time"
)

// Dedup suppresses repeat executions of the same opportunity within a
// cooldown window. The discovery feed keeps reporting a discrepancy until it
// closes, so without this guard every cycle would re-trade the same spread.
// Safe for concurrent use.
type Dedup struct {
	seen map[string]time.Time
	ttl  time.Duration
	mu   sync.Mutex
}

// NewDedup creates a Dedup with the given cooldown window.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// tradeKey identifies one tradeable discrepancy for one user's strategy.
func tradeKey(userID int64, match Match) string {
	opp := match.Opportunity
	return fmt.Sprintf("%d:%d:%s:%s:%s", userID, match.Strategy.ID, opp.Symbol, opp.BuyExchange, opp.SellExchange)
}

// IsDuplicate reports whether the key was seen within the cooldown window.
// A fresh (or expired) key is recorded and reported as not duplicate.
func (d *Dedup) IsDuplicate(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if lastSeen, ok := d.seen[key]; ok && now.Sub(lastSeen) < d.ttl {
		return true
	}
	d.seen[key] = now
	return false
}

// Cleanup drops expired entries. Called periodically by the scheduler so the
// map does not grow without bound.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for key, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, key)
		}
	}
}
