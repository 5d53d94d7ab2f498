package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/alanyoungcy/spreadbot/internal/exchange"
)

// Alerter receives events the engine considers worth surfacing to a human,
// most importantly partial executions that leave an open position.
type Alerter interface {
	TradeCompleted(ctx context.Context, t domain.Trade)
	PartialExecution(ctx context.Context, t domain.Trade, sellErr error)
}

// NopAlerter discards all events.
type NopAlerter struct{}

func (NopAlerter) TradeCompleted(context.Context, domain.Trade)          {}
func (NopAlerter) PartialExecution(context.Context, domain.Trade, error) {}

// CombineAlerters fans each event out to every given alerter, so the same
// trade can reach both the notifier and a live event stream.
func CombineAlerters(alerters ...Alerter) Alerter {
	return multiAlerter(alerters)
}

type multiAlerter []Alerter

func (m multiAlerter) TradeCompleted(ctx context.Context, trade domain.Trade) {
	for _, a := range m {
		a.TradeCompleted(ctx, trade)
	}
}

func (m multiAlerter) PartialExecution(ctx context.Context, trade domain.Trade, execErr error) {
	for _, a := range m {
		a.PartialExecution(ctx, trade, execErr)
	}
}

// Executor drives the two-leg trade protocol for one opportunity at a time:
// resolve credentials, dial both gateways, size, buy on the cheap venue, sell
// on the expensive one, and persist the outcome.
type Executor struct {
	registry *exchange.Registry
	sizer    *Sizer
	trades   domain.TradeStore
	alerter  Alerter
	logger   *slog.Logger

	sellRetries      int
	sellRetryBackoff time.Duration
}

// NewExecutor wires an Executor. sellRetries bounds how many extra sell
// attempts are made after the buy leg has filled before the position is
// recorded as partial.
func NewExecutor(
	registry *exchange.Registry,
	sizer *Sizer,
	trades domain.TradeStore,
	alerter Alerter,
	sellRetries int,
	sellRetryBackoff time.Duration,
	logger *slog.Logger,
) *Executor {
	if alerter == nil {
		alerter = NopAlerter{}
	}
	return &Executor{
		registry:         registry,
		sizer:            sizer,
		trades:           trades,
		alerter:          alerter,
		sellRetries:      sellRetries,
		sellRetryBackoff: sellRetryBackoff,
		logger:           logger.With(slog.String("component", "executor")),
	}
}

// Execute runs one opportunity for one user. The zero Trade is returned when
// the attempt was abandoned before any order was placed; in that case the
// error explains why and nothing was persisted.
func (e *Executor) Execute(ctx context.Context, session *Session, match Match) (domain.Trade, error) {
	opp := match.Opportunity
	log := e.logger.With(
		slog.Int64("user_id", session.UserID),
		slog.String("symbol", opp.Symbol),
		slog.String("buy_exchange", opp.BuyExchange),
		slog.String("sell_exchange", opp.SellExchange),
	)

	buyCreds, ok := session.Creds[opp.BuyExchange]
	if !ok || buyCreds.Empty() {
		log.Warn("missing credentials for buy exchange, skipping opportunity")
		return domain.Trade{}, fmt.Errorf("credentials for %s: %w", opp.BuyExchange, domain.ErrMissingCredentials)
	}
	sellCreds, ok := session.Creds[opp.SellExchange]
	if !ok || sellCreds.Empty() {
		log.Warn("missing credentials for sell exchange, skipping opportunity")
		return domain.Trade{}, fmt.Errorf("credentials for %s: %w", opp.SellExchange, domain.ErrMissingCredentials)
	}

	buyGw, err := e.registry.Dial(opp.BuyExchange, buyCreds)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("dial %s: %w", opp.BuyExchange, err)
	}
	defer buyGw.Close()

	sellGw, err := e.registry.Dial(opp.SellExchange, sellCreds)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("dial %s: %w", opp.SellExchange, err)
	}
	defer sellGw.Close()

	amount, err := e.sizer.Size(ctx, match, buyGw, sellGw)
	if err != nil {
		log.Warn("trade sizing failed, skipping opportunity", slog.String("error", err.Error()))
		return domain.Trade{}, err
	}

	buyFill, err := buyGw.MarketBuy(ctx, opp.Symbol, amount)
	if err != nil {
		// Buy leg failed: no position is open, nothing to record.
		log.Error("buy leg failed", slog.String("error", err.Error()))
		return domain.Trade{}, fmt.Errorf("buy %s on %s: %w", opp.Symbol, opp.BuyExchange, err)
	}
	log.Info("buy leg filled",
		slog.String("order_id", buyFill.OrderID),
		slog.Float64("price", buyFill.Price),
		slog.Float64("amount", buyFill.Amount),
	)

	sellFill, sellErr := e.sellWithRetry(ctx, log, sellGw, opp.Symbol, buyFill.Amount)

	trade := e.buildTrade(session.UserID, match, buyFill, sellFill, sellErr)
	e.record(ctx, log, session, trade)

	if sellErr != nil {
		log.Error("sell leg failed, position open",
			slog.String("trade_id", trade.ID),
			slog.String("error", sellErr.Error()),
		)
		e.alerter.PartialExecution(ctx, trade, sellErr)
		return trade, fmt.Errorf("sell %s on %s: %w", opp.Symbol, opp.SellExchange, errors.Join(domain.ErrPartialExecution, sellErr))
	}

	log.Info("trade completed",
		slog.String("trade_id", trade.ID),
		slog.Float64("profit", trade.Profit),
	)
	e.alerter.TradeCompleted(ctx, trade)
	return trade, nil
}

// sellWithRetry attempts the sell leg, retrying a bounded number of times.
// Once the buy has filled the position must be closed if at all possible, so
// retries continue through transient errors but respect context cancellation.
func (e *Executor) sellWithRetry(ctx context.Context, log *slog.Logger, gw exchange.Gateway, symbol string, amount float64) (domain.Fill, error) {
	var lastErr error
	for attempt := 0; attempt <= e.sellRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.Fill{}, errors.Join(lastErr, ctx.Err())
			case <-time.After(e.sellRetryBackoff):
			}
			log.Warn("retrying sell leg", slog.Int("attempt", attempt))
		}
		fill, err := gw.MarketSell(ctx, symbol, amount)
		if err == nil {
			return fill, nil
		}
		lastErr = err
	}
	return domain.Fill{}, lastErr
}

func (e *Executor) buildTrade(userID int64, match Match, buyFill, sellFill domain.Fill, sellErr error) domain.Trade {
	opp := match.Opportunity
	now := time.Now().UTC()
	t := domain.Trade{
		ID:           uuid.New().String(),
		UserID:       userID,
		Symbol:       opp.Symbol,
		BuyExchange:  opp.BuyExchange,
		SellExchange: opp.SellExchange,
		BuyPrice:     buyFill.Price,
		Amount:       buyFill.Amount,
		ProfitPct:    opp.ProfitPct,
		CreatedAt:    now,
	}
	if sellErr != nil {
		t.Status = domain.TradeStatusPartial
		return t
	}
	t.Status = domain.TradeStatusCompleted
	t.SellPrice = sellFill.Price
	t.Profit = (sellFill.Price - buyFill.Price) * buyFill.Amount
	t.CompletedAt = &now
	return t
}

// record persists the trade and mirrors it into the session's recent history.
// Persistence failure is logged only; the exchange orders are already done
// and must not be lost from the in-memory view.
func (e *Executor) record(ctx context.Context, log *slog.Logger, session *Session, t domain.Trade) {
	session.RecordTrade(t)
	if err := e.trades.Create(ctx, t); err != nil {
		log.Error("trade persistence failed",
			slog.String("trade_id", t.ID),
			slog.String("status", string(t.Status)),
			slog.String("error", err.Error()),
		)
	}
}
