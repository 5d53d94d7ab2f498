// Package kraken implements the exchange gateway for Kraken spot accounts.
package kraken

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
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

const defaultBaseURL = "https://api.kraken.com"

// Client is a REST client for one Kraken spot account.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string // base64-encoded, as issued by Kraken
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

// SetBaseURL overrides the REST endpoint.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// Name returns the exchange identifier.
func (c *Client) Name() string {
	return "kraken"
}

// MarketBuy places a market buy order for amount units of the base asset.
func (c *Client) MarketBuy(ctx context.Context, symbol string, amount float64) (domain.Fill, error) {
	return c.addOrder(ctx, symbol, "buy", amount)
}

// MarketSell places a market sell order for amount units of the base asset.
func (c *Client) MarketSell(ctx context.Context, symbol string, amount float64) (domain.Fill, error) {
	return c.addOrder(ctx, symbol, "sell", amount)
}

func (c *Client) addOrder(ctx context.Context, symbol, side string, amount float64) (domain.Fill, error) {
	params := url.Values{}
	params.Set("pair", restSymbol(symbol))
	params.Set("type", side)
	params.Set("ordertype", "market")
	params.Set("volume", strconv.FormatFloat(amount, 'f', -1, 64))

	var result struct {
		TxID []string `json:"txid"`
	}
	if err := c.doPrivate(ctx, "/0/private/AddOrder", params, &result); err != nil {
		return domain.Fill{}, fmt.Errorf("kraken: place %s %s: %w", side, symbol, err)
	}
	if len(result.TxID) == 0 {
		return domain.Fill{}, fmt.Errorf("kraken: place %s %s: no txid returned: %w",
			side, symbol, domain.ErrOrderRejected)
	}

	return c.queryFill(ctx, result.TxID[0], amount)
}

// queryFill resolves the average fill price and executed volume for a placed
// order. Market orders fill immediately in the common case; if the order is
// still settling the requested amount is reported with the order's average
// price so far.
func (c *Client) queryFill(ctx context.Context, txid string, requested float64) (domain.Fill, error) {
	params := url.Values{}
	params.Set("txid", txid)

	var result map[string]struct {
		Price   string `json:"price"`
		VolExec string `json:"vol_exec"`
	}
	if err := c.doPrivate(ctx, "/0/private/QueryOrders", params, &result); err != nil {
		return domain.Fill{}, fmt.Errorf("kraken: query order %s: %w", txid, err)
	}

	fill := domain.Fill{OrderID: txid, Amount: requested}
	if o, ok := result[txid]; ok {
		fill.Price, _ = strconv.ParseFloat(o.Price, 64)
		if v, err := strconv.ParseFloat(o.VolExec, 64); err == nil && v > 0 {
			fill.Amount = v
		}
	}
	return fill, nil
}

// Balance returns the balance for the given asset.
func (c *Client) Balance(ctx context.Context, asset string) (float64, error) {
	var result map[string]string
	if err := c.doPrivate(ctx, "/0/private/Balance", url.Values{}, &result); err != nil {
		return 0, fmt.Errorf("kraken: get balance: %w", err)
	}

	v, ok := result[asset]
	if !ok {
		return 0, nil
	}
	bal, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("kraken: parse balance %q: %w", v, err)
	}
	return bal, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// doPrivate performs a signed private API call. Kraken signs
// path + SHA256(nonce + postdata) with HMAC-SHA512 keyed by the
// base64-decoded API secret.
func (c *Client) doPrivate(ctx context.Context, path string, params url.Values, result any) error {
	nonce := strconv.FormatInt(time.Now().UnixMilli(), 10)
	params.Set("nonce", nonce)
	postData := params.Encode()

	secret, err := base64.StdEncoding.DecodeString(c.apiSecret)
	if err != nil {
		return fmt.Errorf("decode api secret: %w", err)
	}

	digest := sha256.Sum256([]byte(nonce + postData))
	sign := crypto.SignSHA512Base64(secret, append([]byte(path), digest[:]...))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, strings.NewReader(postData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("API-Key", c.apiKey)
	req.Header.Set("API-Sign", sign)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Error  []string        `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Error) > 0 {
		return fmt.Errorf("api error: %s", strings.Join(envelope.Error, "; "))
	}
	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// restSymbol converts "BTC/USDT" to the Kraken pair form "BTCUSDT".
func restSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}
