// Package okx implements the exchange gateway for OKX spot accounts. OKX
// requires a passphrase in addition to the API key and secret.
package okx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/crypto"
	"github.com/alanyoungcy/spreadbot/internal/domain"
)

const defaultBaseURL = "https://www.okx.com"

// Client is a REST client for one OKX spot account.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	passphrase string
	httpClient *http.Client
}

// NewClient creates a Client for the given credentials.
func NewClient(creds domain.Credentials) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     creds.APIKey,
		apiSecret:  creds.APISecret,
		passphrase: creds.Passphrase,
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
	return "okx"
}

// MarketBuy places a market buy order for amount units of the base asset.
func (c *Client) MarketBuy(ctx context.Context, symbol string, amount float64) (domain.Fill, error) {
	return c.placeOrder(ctx, symbol, "buy", amount)
}

// MarketSell places a market sell order for amount units of the base asset.
func (c *Client) MarketSell(ctx context.Context, symbol string, amount float64) (domain.Fill, error) {
	return c.placeOrder(ctx, symbol, "sell", amount)
}

func (c *Client) placeOrder(ctx context.Context, symbol, side string, amount float64) (domain.Fill, error) {
	instID := restSymbol(symbol)
	payload := map[string]string{
		"instId":  instID,
		"tdMode":  "cash",
		"side":    side,
		"ordType": "market",
		"sz":      strconv.FormatFloat(amount, 'f', -1, 64),
		// Market buys size in base units, matching the other venues.
		"tgtCcy": "base_ccy",
	}

	var data []struct {
		OrdID string `json:"ordId"`
		SCode string `json:"sCode"`
		SMsg  string `json:"sMsg"`
	}
	if err := c.doSigned(ctx, http.MethodPost, "/api/v5/trade/order", payload, &data); err != nil {
		return domain.Fill{}, fmt.Errorf("okx: place %s %s: %w", side, symbol, err)
	}
	if len(data) == 0 {
		return domain.Fill{}, fmt.Errorf("okx: place %s %s: empty response", side, symbol)
	}
	if data[0].SCode != "0" {
		return domain.Fill{}, fmt.Errorf("okx: place %s %s: %s (code %s): %w",
			side, symbol, data[0].SMsg, data[0].SCode, domain.ErrOrderRejected)
	}

	return c.queryFill(ctx, instID, data[0].OrdID, amount)
}

func (c *Client) queryFill(ctx context.Context, instID, ordID string, requested float64) (domain.Fill, error) {
	path := "/api/v5/trade/order?instId=" + instID + "&ordId=" + ordID

	var data []struct {
		AvgPx     string `json:"avgPx"`
		AccFillSz string `json:"accFillSz"`
	}
	if err := c.doSigned(ctx, http.MethodGet, path, nil, &data); err != nil {
		return domain.Fill{}, fmt.Errorf("okx: query order %s: %w", ordID, err)
	}

	fill := domain.Fill{OrderID: ordID, Amount: requested}
	if len(data) > 0 {
		fill.Price, _ = strconv.ParseFloat(data[0].AvgPx, 64)
		if v, err := strconv.ParseFloat(data[0].AccFillSz, 64); err == nil && v > 0 {
			fill.Amount = v
		}
	}
	return fill, nil
}

// Balance returns the available balance for the given currency.
func (c *Client) Balance(ctx context.Context, asset string) (float64, error) {
	var data []struct {
		Details []struct {
			Ccy      string `json:"ccy"`
			AvailBal string `json:"availBal"`
		} `json:"details"`
	}
	if err := c.doSigned(ctx, http.MethodGet, "/api/v5/account/balance?ccy="+asset, nil, &data); err != nil {
		return 0, fmt.Errorf("okx: get balance: %w", err)
	}

	for _, acct := range data {
		for _, d := range acct.Details {
			if d.Ccy == asset {
				bal, err := strconv.ParseFloat(d.AvailBal, 64)
				if err != nil {
					return 0, fmt.Errorf("okx: parse balance %q: %w", d.AvailBal, err)
				}
				return bal, nil
			}
		}
	}
	return 0, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// doSigned performs an authenticated API call. OKX signs
// timestamp + method + path + body with HMAC-SHA256, base64 encoded.
func (c *Client) doSigned(ctx context.Context, method, path string, payload any, result any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}

	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	sign := crypto.SignSHA256Base64(c.apiSecret, ts+method+path+string(body))

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OK-ACCESS-KEY", c.apiKey)
	req.Header.Set("OK-ACCESS-SIGN", sign)
	req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.passphrase)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Code string          `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Code != "0" {
		return fmt.Errorf("api error %s: %s", envelope.Code, envelope.Msg)
	}
	if result != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// restSymbol converts "BTC/USDT" to the OKX instrument form "BTC-USDT".
func restSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "-")
}
