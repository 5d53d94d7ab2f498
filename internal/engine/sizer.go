package engine

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/alanyoungcy/spreadbot/internal/exchange"
)

// Sizer computes the quantity to trade for an accepted opportunity. The
// returned amount never exceeds the accepting strategy's per-trade cap, the
// opportunity's reported volume, the quote balance available on the buy venue
// (converted at the buy price), or the base balance on the sell venue.
type Sizer struct{}

// NewSizer returns a Sizer.
func NewSizer() *Sizer {
	return &Sizer{}
}

// Size returns the base-asset quantity to trade for match, bounded by the
// live balances on both gateways. Balance lookups are fallible; an error
// means the trade should be skipped, not that the engine is broken.
func (s *Sizer) Size(ctx context.Context, match Match, buy, sell exchange.Gateway) (float64, error) {
	base, quote, err := domain.SplitSymbol(match.Opportunity.Symbol)
	if err != nil {
		return 0, err
	}

	amount := match.Strategy.MaxAmount
	if v := match.Opportunity.Volume; v > 0 && v < amount {
		amount = v
	}

	quoteBal, err := buy.Balance(ctx, quote)
	if err != nil {
		return 0, fmt.Errorf("%s balance on %s: %w", quote, buy.Name(), err)
	}
	if match.Opportunity.BuyPrice > 0 {
		if affordable := quoteBal / match.Opportunity.BuyPrice; affordable < amount {
			amount = affordable
		}
	}

	baseBal, err := sell.Balance(ctx, base)
	if err != nil {
		return 0, fmt.Errorf("%s balance on %s: %w", base, sell.Name(), err)
	}
	if baseBal < amount {
		amount = baseBal
	}

	if amount <= 0 {
		return 0, fmt.Errorf("sizing %s: %w", match.Opportunity.Symbol, domain.ErrInsufficientBalance)
	}
	return amount, nil
}
