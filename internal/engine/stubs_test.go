package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/alanyoungcy/spreadbot/internal/exchange"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.DiscardHandler)
}

// fakeGateway is a scriptable exchange connection shared across engine tests.
type fakeGateway struct {
	name string

	balances map[string]float64
	buyErr   error
	sellErr  error
	// sellFailures fails the first N sell calls, then succeeds.
	sellFailures int

	mu        sync.Mutex
	buyCalls  int
	sellCalls int
	closed    bool
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) MarketBuy(ctx context.Context, symbol string, amount float64) (domain.Fill, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buyCalls++
	if g.buyErr != nil {
		return domain.Fill{}, g.buyErr
	}
	return domain.Fill{OrderID: "buy-1", Price: 100, Amount: amount}, nil
}

func (g *fakeGateway) MarketSell(ctx context.Context, symbol string, amount float64) (domain.Fill, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sellCalls++
	if g.sellErr != nil {
		return domain.Fill{}, g.sellErr
	}
	if g.sellCalls <= g.sellFailures {
		return domain.Fill{}, domain.ErrOrderRejected
	}
	return domain.Fill{OrderID: "sell-1", Price: 101, Amount: amount}, nil
}

func (g *fakeGateway) Balance(ctx context.Context, asset string) (float64, error) {
	if g.balances == nil {
		return 1_000_000, nil
	}
	bal, ok := g.balances[asset]
	if !ok {
		return 0, nil
	}
	return bal, nil
}

func (g *fakeGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

// fakeRegistry builds an exchange.Registry whose Dial hands out the given
// gateways by name.
func fakeRegistry(gateways ...*fakeGateway) *exchange.Registry {
	r := exchange.NewRegistry()
	for _, gw := range gateways {
		r.Register(gw.name, func(domain.Credentials) exchange.Gateway { return gw })
	}
	return r
}

// memTradeStore records created trades in memory.
type memTradeStore struct {
	mu        sync.Mutex
	trades    []domain.Trade
	createErr error
}

func (s *memTradeStore) Create(ctx context.Context, t domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.trades = append(s.trades, t)
	return nil
}

func (s *memTradeStore) all() []domain.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Trade, len(s.trades))
	copy(out, s.trades)
	return out
}

func (s *memTradeStore) ListByUser(ctx context.Context, userID int64, opts domain.ListOpts) ([]domain.Trade, error) {
	return s.all(), nil
}

func (s *memTradeStore) Stats(ctx context.Context, userID int64) (domain.TradeStats, error) {
	return domain.TradeStats{}, nil
}

func (s *memTradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	return nil, nil
}

func (s *memTradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// recordingAlerter captures alert callbacks.
type recordingAlerter struct {
	mu        sync.Mutex
	completed []domain.Trade
	partial   []domain.Trade
}

func (a *recordingAlerter) TradeCompleted(ctx context.Context, t domain.Trade) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.completed = append(a.completed, t)
}

func (a *recordingAlerter) PartialExecution(ctx context.Context, t domain.Trade, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.partial = append(a.partial, t)
}

// staticFeed returns the same opportunity slice every call.
type staticFeed struct {
	opps  []domain.Opportunity
	err   error
	calls atomic.Int64
}

func (f *staticFeed) Opportunities(ctx context.Context) ([]domain.Opportunity, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.opps, nil
}
