package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(domain.Credentials{APIKey: "test-key", APISecret: "test-secret"})
	c.SetBaseURL(srv.URL)
	return c, srv
}

func TestMarketBuyFilled(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))

		q := r.URL.Query()
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, "BUY", q.Get("side"))
		assert.Equal(t, "MARKET", q.Get("type"))
		assert.Equal(t, "0.01", q.Get("quantity"))
		assert.NotEmpty(t, q.Get("timestamp"))
		assert.NotEmpty(t, q.Get("signature"))

		w.Write([]byte(`{
			"orderId": 12345,
			"status": "FILLED",
			"executedQty": "0.01",
			"cummulativeQuoteQty": "650.00",
			"fills": [{"price": "65000.00", "qty": "0.01"}]
		}`))
	})
	defer srv.Close()

	fill, err := c.MarketBuy(context.Background(), "BTC/USDT", 0.01)
	require.NoError(t, err)
	assert.Equal(t, "12345", fill.OrderID)
	assert.InDelta(t, 65000.0, fill.Price, 1e-9)
	assert.InDelta(t, 0.01, fill.Amount, 1e-12)
}

func TestMarketSellRejected(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orderId": 7, "status": "EXPIRED", "executedQty": "0", "cummulativeQuoteQty": "0"}`))
	})
	defer srv.Close()

	_, err := c.MarketSell(context.Background(), "BTC/USDT", 0.01)
	assert.ErrorIs(t, err, domain.ErrOrderRejected)
}

func TestPlaceOrderAPIError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": -2010, "msg": "Account has insufficient balance for requested action."}`))
	})
	defer srv.Close()

	_, err := c.MarketBuy(context.Background(), "BTC/USDT", 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-2010")
}

func TestBalance(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/account", r.URL.Path)
		w.Write([]byte(`{"balances": [
			{"asset": "BTC", "free": "0.5", "locked": "0.1"},
			{"asset": "USDT", "free": "1200.50", "locked": "0"}
		]}`))
	})
	defer srv.Close()

	bal, err := c.Balance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.InDelta(t, 1200.50, bal, 1e-9)

	bal, err = c.Balance(context.Background(), "DOGE")
	require.NoError(t, err)
	assert.Zero(t, bal)
}
