// Package domain defines the core types and collaborator interfaces shared
// across the arbitrage engine: opportunities, strategies, trades, credentials,
// and the store/feed contracts implemented by the infrastructure packages.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Opportunity is a detected cross-exchange price discrepancy for one symbol,
// produced by the external discovery feed. Opportunities are ephemeral: an
// opportunity lives for at most one scan cycle and is never retained.
type Opportunity struct {
	Symbol       string    `json:"symbol"`
	BuyExchange  string    `json:"buy_exchange"`
	SellExchange string    `json:"sell_exchange"`
	BuyPrice     float64   `json:"buy_price"`
	SellPrice    float64   `json:"sell_price"`
	ProfitPct    float64   `json:"profit_percentage"`
	Volume       float64   `json:"volume"`
	DetectedAt   time.Time `json:"detected_at"`
}

// SplitSymbol splits a "BASE/QUOTE" symbol (e.g. "BTC/USDT") into its base
// and quote assets.
func SplitSymbol(symbol string) (base, quote string, err error) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed symbol %q: %w", symbol, ErrInvalidSymbol)
	}
	return parts[0], parts[1], nil
}
