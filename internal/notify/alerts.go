package notify

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// Event types emitted by the trading engine.
const (
	EventTradeCompleted   = "trade_completed"
	EventPartialExecution = "partial_execution"
)

// EngineAlerter adapts the Notifier to the engine's alert callbacks. Partial
// executions bypass the event filter: an open un-hedged position must always
// reach an operator.
type EngineAlerter struct {
	notifier *Notifier
}

// NewEngineAlerter wraps the given notifier.
func NewEngineAlerter(n *Notifier) *EngineAlerter {
	return &EngineAlerter{notifier: n}
}

// TradeCompleted reports a fully executed two-leg trade.
func (a *EngineAlerter) TradeCompleted(ctx context.Context, t domain.Trade) {
	msg := fmt.Sprintf(
		"%s: bought %.8g on %s at %.8g, sold on %s at %.8g\nprofit %.4f (%.2f%%) for user %d",
		t.Symbol, t.Amount, t.BuyExchange, t.BuyPrice, t.SellExchange, t.SellPrice,
		t.Profit, t.ProfitPct, t.UserID,
	)
	_ = a.notifier.Notify(ctx, EventTradeCompleted, "Trade completed", msg)
}

// PartialExecution reports a buy leg left un-hedged after the sell leg
// failed. Sent through NotifyAll so no filter configuration can silence it.
func (a *EngineAlerter) PartialExecution(ctx context.Context, t domain.Trade, sellErr error) {
	msg := fmt.Sprintf(
		"OPEN POSITION: bought %.8g %s on %s at %.8g but the sell on %s failed: %v\ntrade %s, user %d - manual unwind required",
		t.Amount, t.Symbol, t.BuyExchange, t.BuyPrice, t.SellExchange, sellErr,
		t.ID, t.UserID,
	)
	_ = a.notifier.NotifyAll(ctx, "Partial execution", msg)
}
