package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

func testCreds() map[string]domain.Credentials {
	return map[string]domain.Credentials{
		"binance": {APIKey: "bk", APISecret: "bs"},
		"kraken":  {APIKey: "kk", APISecret: "ks"},
	}
}

func testMatch() Match {
	return Match{
		Opportunity: btcOpportunity(),
		Strategy: domain.Strategy{
			Active:       true,
			MinProfitPct: 1.0,
			Exchanges:    []string{"binance", "kraken"},
			MaxAmount:    0.01,
		},
	}
}

func newTestExecutor(t *testing.T, buy, sell *fakeGateway, store *memTradeStore, alerter Alerter) *Executor {
	t.Helper()
	return NewExecutor(fakeRegistry(buy, sell), NewSizer(), store, alerter, 2, time.Millisecond, testLogger(t))
}

func TestExecuteCompletedTrade(t *testing.T) {
	buy := &fakeGateway{name: "binance"}
	sell := &fakeGateway{name: "kraken"}
	store := &memTradeStore{}
	alerter := &recordingAlerter{}
	exec := newTestExecutor(t, buy, sell, store, alerter)
	sess := NewSession(42, nil, testCreds())

	trade, err := exec.Execute(context.Background(), sess, testMatch())
	require.NoError(t, err)

	assert.Equal(t, domain.TradeStatusCompleted, trade.Status)
	assert.Equal(t, int64(42), trade.UserID)
	assert.NotEmpty(t, trade.ID)
	assert.NotNil(t, trade.CompletedAt)
	assert.InDelta(t, (101.0-100.0)*0.01, trade.Profit, 1e-9)

	require.Len(t, store.all(), 1)
	assert.Len(t, alerter.completed, 1)
	assert.Empty(t, alerter.partial)
	assert.True(t, buy.closed)
	assert.True(t, sell.closed)
	require.Len(t, sess.RecentTrades(), 1)
}

func TestExecuteBuyFailureLeavesNoRecord(t *testing.T) {
	buy := &fakeGateway{name: "binance", buyErr: errors.New("connection reset")}
	sell := &fakeGateway{name: "kraken"}
	store := &memTradeStore{}
	exec := newTestExecutor(t, buy, sell, store, nil)
	sess := NewSession(42, nil, testCreds())

	_, err := exec.Execute(context.Background(), sess, testMatch())
	require.Error(t, err)

	assert.Zero(t, sell.sellCalls, "sell must not be attempted after a failed buy")
	assert.Empty(t, store.all())
	assert.Empty(t, sess.RecentTrades())
	assert.True(t, buy.closed)
	assert.True(t, sell.closed)
}

func TestExecuteSellFailureRecordsPartial(t *testing.T) {
	buy := &fakeGateway{name: "binance"}
	sell := &fakeGateway{name: "kraken", sellErr: errors.New("venue rejected order")}
	store := &memTradeStore{}
	alerter := &recordingAlerter{}
	exec := newTestExecutor(t, buy, sell, store, alerter)
	sess := NewSession(42, nil, testCreds())

	trade, err := exec.Execute(context.Background(), sess, testMatch())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartialExecution)

	assert.Equal(t, domain.TradeStatusPartial, trade.Status)
	assert.Nil(t, trade.CompletedAt)
	assert.Zero(t, trade.SellPrice)

	recorded := store.all()
	require.Len(t, recorded, 1, "exactly one partial trade must be recorded")
	assert.Equal(t, domain.TradeStatusPartial, recorded[0].Status)
	require.Len(t, alerter.partial, 1)
	assert.Empty(t, alerter.completed)

	// Retries: initial attempt plus the configured two retries.
	assert.Equal(t, 3, sell.sellCalls)
	assert.True(t, buy.closed)
	assert.True(t, sell.closed)
}

func TestExecuteSellSucceedsAfterRetry(t *testing.T) {
	buy := &fakeGateway{name: "binance"}
	sell := &fakeGateway{name: "kraken", sellFailures: 1}
	store := &memTradeStore{}
	exec := newTestExecutor(t, buy, sell, store, nil)
	sess := NewSession(42, nil, testCreds())

	trade, err := exec.Execute(context.Background(), sess, testMatch())
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusCompleted, trade.Status)
	assert.Equal(t, 2, sell.sellCalls)
}

func TestExecuteMissingCredentialsAbortsEarly(t *testing.T) {
	buy := &fakeGateway{name: "binance"}
	sell := &fakeGateway{name: "kraken"}
	store := &memTradeStore{}
	exec := newTestExecutor(t, buy, sell, store, nil)

	creds := testCreds()
	delete(creds, "kraken")
	sess := NewSession(42, nil, creds)

	_, err := exec.Execute(context.Background(), sess, testMatch())
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
	assert.Zero(t, buy.buyCalls)
	assert.Zero(t, sell.sellCalls)
	assert.Empty(t, store.all())
	// Gateways were never dialed, so nothing was closed.
	assert.False(t, buy.closed)
	assert.False(t, sell.closed)
}

func TestExecuteUnknownExchange(t *testing.T) {
	buy := &fakeGateway{name: "binance"}
	store := &memTradeStore{}
	exec := NewExecutor(fakeRegistry(buy), NewSizer(), store, nil, 0, 0, testLogger(t))
	sess := NewSession(42, nil, testCreds())

	_, err := exec.Execute(context.Background(), sess, testMatch())
	assert.ErrorIs(t, err, domain.ErrUnknownExchange)
	assert.Zero(t, buy.buyCalls)
	assert.Empty(t, store.all())
}

func TestExecutePersistenceFailureDoesNotFailTrade(t *testing.T) {
	buy := &fakeGateway{name: "binance"}
	sell := &fakeGateway{name: "kraken"}
	store := &memTradeStore{createErr: errors.New("database down")}
	exec := newTestExecutor(t, buy, sell, store, nil)
	sess := NewSession(42, nil, testCreds())

	trade, err := exec.Execute(context.Background(), sess, testMatch())
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusCompleted, trade.Status)
	// The session still keeps the trade even when the store rejected it.
	require.Len(t, sess.RecentTrades(), 1)
}
