// Package exchange defines the capability-abstracted gateway through which
// the engine talks to one exchange account, and the registry that maps
// exchange names to gateway constructors.
package exchange

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/alanyoungcy/spreadbot/internal/exchange/binance"
	"github.com/alanyoungcy/spreadbot/internal/exchange/kraken"
	"github.com/alanyoungcy/spreadbot/internal/exchange/okx"
)

// Gateway is a live connection to one exchange account. All calls may fail
// (network, auth, exchange-side rejection); failures are returned as errors,
// never panics. A Gateway is owned exclusively by one execution for its
// lifetime and must be closed on every exit path.
type Gateway interface {
	Name() string
	MarketBuy(ctx context.Context, symbol string, amount float64) (domain.Fill, error)
	MarketSell(ctx context.Context, symbol string, amount float64) (domain.Fill, error)
	Balance(ctx context.Context, asset string) (float64, error)
	Close() error
}

// Constructor builds a Gateway for one exchange account.
type Constructor func(creds domain.Credentials) Gateway

// Registry maps exchange names to gateway constructors. The set of supported
// venues is closed and checked at dial time: unknown names yield a typed
// error rather than a reflective lookup. It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a constructor under the given exchange name, replacing any
// existing entry.
func (r *Registry) Register(name string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = c
}

// Dial constructs a Gateway for the named exchange with the given
// credentials. It returns domain.ErrUnknownExchange for unrecognised names.
func (r *Registry) Dial(name string, creds domain.Credentials) (Gateway, error) {
	r.mu.RLock()
	c, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("exchange %q: %w", name, domain.ErrUnknownExchange)
	}
	return c(creds), nil
}

// Names returns the registered exchange names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for n := range r.constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a Registry with all supported venues registered
// against their production endpoints. baseURLs optionally overrides the REST
// endpoint per exchange name (used for tests and sandbox environments).
func DefaultRegistry(baseURLs map[string]string) *Registry {
	r := NewRegistry()

	r.Register("binance", func(creds domain.Credentials) Gateway {
		c := binance.NewClient(creds)
		if u := baseURLs["binance"]; u != "" {
			c.SetBaseURL(u)
		}
		return c
	})
	r.Register("kraken", func(creds domain.Credentials) Gateway {
		c := kraken.NewClient(creds)
		if u := baseURLs["kraken"]; u != "" {
			c.SetBaseURL(u)
		}
		return c
	})
	r.Register("okx", func(creds domain.Credentials) Gateway {
		c := okx.NewClient(creds)
		if u := baseURLs["okx"]; u != "" {
			c.SetBaseURL(u)
		}
		return c
	})

	return r
}
