package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

func sizerMatch(maxAmount, volume float64) Match {
	opp := btcOpportunity()
	opp.Volume = volume
	return Match{
		Opportunity: opp,
		Strategy: domain.Strategy{
			Active:       true,
			MinProfitPct: 1.0,
			Exchanges:    []string{"binance", "kraken"},
			MaxAmount:    maxAmount,
		},
	}
}

func TestSizeCappedByStrategy(t *testing.T) {
	buy := &fakeGateway{name: "binance", balances: map[string]float64{"USDT": 1_000_000}}
	sell := &fakeGateway{name: "kraken", balances: map[string]float64{"BTC": 10}}

	amount, err := NewSizer().Size(context.Background(), sizerMatch(0.01, 0.5), buy, sell)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, amount, 1e-12)
}

func TestSizeCappedByVolume(t *testing.T) {
	buy := &fakeGateway{name: "binance", balances: map[string]float64{"USDT": 1_000_000}}
	sell := &fakeGateway{name: "kraken", balances: map[string]float64{"BTC": 10}}

	amount, err := NewSizer().Size(context.Background(), sizerMatch(2.0, 0.25), buy, sell)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, amount, 1e-12)
}

func TestSizeCappedByQuoteBalance(t *testing.T) {
	// 650 USDT at a buy price of 65000 affords 0.01 BTC.
	buy := &fakeGateway{name: "binance", balances: map[string]float64{"USDT": 650}}
	sell := &fakeGateway{name: "kraken", balances: map[string]float64{"BTC": 10}}

	amount, err := NewSizer().Size(context.Background(), sizerMatch(2.0, 0.5), buy, sell)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, amount, 1e-12)
}

func TestSizeCappedByBaseBalance(t *testing.T) {
	buy := &fakeGateway{name: "binance", balances: map[string]float64{"USDT": 1_000_000}}
	sell := &fakeGateway{name: "kraken", balances: map[string]float64{"BTC": 0.005}}

	amount, err := NewSizer().Size(context.Background(), sizerMatch(2.0, 0.5), buy, sell)
	require.NoError(t, err)
	assert.InDelta(t, 0.005, amount, 1e-12)
}

func TestSizeInsufficientBalance(t *testing.T) {
	buy := &fakeGateway{name: "binance", balances: map[string]float64{"USDT": 0}}
	sell := &fakeGateway{name: "kraken", balances: map[string]float64{"BTC": 10}}

	_, err := NewSizer().Size(context.Background(), sizerMatch(0.01, 0.5), buy, sell)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestSizeBalanceLookupFailure(t *testing.T) {
	buy := &balanceErrGateway{fakeGateway{name: "binance"}}
	sell := &fakeGateway{name: "kraken", balances: map[string]float64{"BTC": 10}}

	_, err := NewSizer().Size(context.Background(), sizerMatch(0.01, 0.5), buy, sell)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestSizeInvalidSymbol(t *testing.T) {
	match := sizerMatch(0.01, 0.5)
	match.Opportunity.Symbol = "BTCUSDT"

	_, err := NewSizer().Size(context.Background(), match, &fakeGateway{name: "binance"}, &fakeGateway{name: "kraken"})
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)
}

type balanceErrGateway struct {
	fakeGateway
}

func (g *balanceErrGateway) Balance(ctx context.Context, asset string) (float64, error) {
	return 0, errors.New("account endpoint unavailable")
}
