// Package binance implements the exchange gateway for Binance spot accounts
// using the signed REST API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/crypto"
	"github.com/alanyoungcy/spreadbot/internal/domain"
)

const defaultBaseURL = "https://api.binance.com"

// Client is a REST client for one Binance spot account.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewClient creates a Client for the given credentials.
func NewClient(creds domain.Credentials) *Client {
	return &Client{
		baseURL:   defaultBaseURL,
		apiKey:    creds.APIKey,
		apiSecret: creds.APISecret,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SetBaseURL overrides the REST endpoint (testnet, mocks).
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// Name returns the exchange identifier.
func (c *Client) Name() string {
	return "binance"
}

// orderResponse is the FULL response type of POST /api/v3/order.
type orderResponse struct {
	OrderID          int64  `json:"orderId"`
	Status           string `json:"status"`
	ExecutedQty      string `json:"executedQty"`
	CummulativeQuote string `json:"cummulativeQuoteQty"`
	Fills            []struct {
		Price string `json:"price"`
		Qty   string `json:"qty"`
	} `json:"fills"`
}

// MarketBuy places a market buy order for amount units of the base asset.
func (c *Client) MarketBuy(ctx context.Context, symbol string, amount float64) (domain.Fill, error) {
	return c.placeOrder(ctx, symbol, "BUY", amount)
}

// MarketSell places a market sell order for amount units of the base asset.
func (c *Client) MarketSell(ctx context.Context, symbol string, amount float64) (domain.Fill, error) {
	return c.placeOrder(ctx, symbol, "SELL", amount)
}

func (c *Client) placeOrder(ctx context.Context, symbol, side string, amount float64) (domain.Fill, error) {
	params := url.Values{}
	params.Set("symbol", restSymbol(symbol))
	params.Set("side", side)
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(amount, 'f', -1, 64))
	params.Set("newOrderRespType", "FULL")

	body, err := c.doSigned(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("binance: place %s %s: %w", side, symbol, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Fill{}, fmt.Errorf("binance: decode order response: %w", err)
	}

	switch resp.Status {
	case "FILLED", "PARTIALLY_FILLED":
	default:
		return domain.Fill{}, fmt.Errorf("binance: order %d status %s: %w",
			resp.OrderID, resp.Status, domain.ErrOrderRejected)
	}

	executed, _ := strconv.ParseFloat(resp.ExecutedQty, 64)
	quote, _ := strconv.ParseFloat(resp.CummulativeQuote, 64)

	fill := domain.Fill{
		OrderID: strconv.FormatInt(resp.OrderID, 10),
		Amount:  executed,
	}
	if executed > 0 {
		fill.Price = quote / executed
	} else if len(resp.Fills) > 0 {
		fill.Price, _ = strconv.ParseFloat(resp.Fills[0].Price, 64)
	}
	return fill, nil
}

// Balance returns the free balance for the given asset.
func (c *Client) Balance(ctx context.Context, asset string) (float64, error) {
	body, err := c.doSigned(ctx, http.MethodGet, "/api/v3/account", url.Values{})
	if err != nil {
		return 0, fmt.Errorf("binance: get account: %w", err)
	}

	var resp struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("binance: decode account response: %w", err)
	}

	for _, b := range resp.Balances {
		if b.Asset == asset {
			free, err := strconv.ParseFloat(b.Free, 64)
			if err != nil {
				return 0, fmt.Errorf("binance: parse balance %q: %w", b.Free, err)
			}
			return free, nil
		}
	}
	return 0, nil
}

// Close releases idle connections. The client holds no other resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// doSigned appends the timestamp, signs the query string with HMAC-SHA256,
// and performs the request with the API key header set.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query := params.Encode()
	query += "&signature=" + crypto.SignSHA256Hex(c.apiSecret, query)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			return nil, fmt.Errorf("status %d, code %d: %s", resp.StatusCode, apiErr.Code, apiErr.Msg)
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

// restSymbol converts "BTC/USDT" to the Binance form "BTCUSDT".
func restSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}
