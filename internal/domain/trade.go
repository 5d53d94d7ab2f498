package domain

import "time"

// TradeStatus tracks the outcome of one two-leg execution attempt.
type TradeStatus string

const (
	// TradeStatusCompleted means both legs filled.
	TradeStatusCompleted TradeStatus = "completed"
	// TradeStatusPartial means the buy leg filled but the sell leg did not,
	// leaving an un-hedged position that requires attention.
	TradeStatusPartial TradeStatus = "partial"
	// TradeStatusFailed means no position was opened.
	TradeStatusFailed TradeStatus = "failed"
)

// Trade records one arbitrage execution attempt: a market buy on the cheaper
// venue followed by a market sell on the pricier one.
type Trade struct {
	ID           string      `json:"id"`
	UserID       int64       `json:"user_id"`
	Symbol       string      `json:"symbol"`
	BuyExchange  string      `json:"buy_exchange"`
	SellExchange string      `json:"sell_exchange"`
	BuyPrice     float64     `json:"buy_price"`
	SellPrice    float64     `json:"sell_price"`
	Amount       float64     `json:"amount"`
	Profit       float64     `json:"profit"`
	ProfitPct    float64     `json:"profit_percentage"`
	Status       TradeStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// TradeStats summarises a user's execution history for status reporting.
type TradeStats struct {
	TotalTrades  int64   `json:"total_trades"`
	Completed    int64   `json:"completed"`
	Partial      int64   `json:"partial"`
	Failed       int64   `json:"failed"`
	TotalProfit  float64 `json:"total_profit"`
	AvgProfitPct float64 `json:"avg_profit_percentage"`
}

// Fill is the confirmed result of one market-order leg on an exchange.
type Fill struct {
	OrderID string
	Price   float64
	Amount  float64
}
