package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

type fakeSender struct {
	name   string
	err    error
	titles []string
	bodies []string
}

func (s *fakeSender) Send(ctx context.Context, title, message string) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	s.bodies = append(s.bodies, message)
	return nil
}

func (s *fakeSender) Name() string { return s.name }

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestNotifyFiltersEvents(t *testing.T) {
	sender := &fakeSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{EventPartialExecution}, discard())

	require.NoError(t, n.Notify(context.Background(), EventTradeCompleted, "completed", "x"))
	assert.Empty(t, sender.titles)

	require.NoError(t, n.Notify(context.Background(), EventPartialExecution, "partial", "y"))
	assert.Equal(t, []string{"partial"}, sender.titles)
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	sender := &fakeSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, discard())

	require.NoError(t, n.Notify(context.Background(), "anything", "t", "m"))
	assert.Len(t, sender.titles, 1)
}

func TestNotifyContinuesPastFailedSender(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("webhook down")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.NotifyAll(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.titles, 1, "remaining senders still deliver")
}

func TestPartialExecutionBypassesFilter(t *testing.T) {
	sender := &fakeSender{name: "test"}
	// Filter configured so that only completed-trade events pass Notify.
	n := NewNotifier([]Sender{sender}, []string{EventTradeCompleted}, discard())
	alerter := NewEngineAlerter(n)

	alerter.PartialExecution(context.Background(), domain.Trade{
		ID:          "t-1",
		UserID:      42,
		Symbol:      "BTC/USDT",
		BuyExchange: "binance",
		Amount:      0.01,
	}, errors.New("sell rejected"))

	require.Len(t, sender.bodies, 1)
	assert.Contains(t, sender.bodies[0], "OPEN POSITION")
	assert.Contains(t, sender.bodies[0], "t-1")
}

func TestTradeCompletedMessage(t *testing.T) {
	sender := &fakeSender{name: "test"}
	alerter := NewEngineAlerter(NewNotifier([]Sender{sender}, nil, discard()))

	alerter.TradeCompleted(context.Background(), domain.Trade{
		UserID:       42,
		Symbol:       "BTC/USDT",
		BuyExchange:  "binance",
		SellExchange: "kraken",
		BuyPrice:     65000,
		SellPrice:    65780,
		Amount:       0.01,
		Profit:       7.8,
		ProfitPct:    1.2,
	})

	require.Len(t, sender.bodies, 1)
	assert.Contains(t, sender.bodies[0], "binance")
	assert.Contains(t, sender.bodies[0], "kraken")
}
