package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/alanyoungcy/spreadbot/internal/engine"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeEngine struct {
	active  map[int64]bool
	stats   engine.Stats
	recent  []domain.Trade
	enables int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{active: make(map[int64]bool)}
}

func (f *fakeEngine) EnableUser(userID int64, strategies []domain.Strategy, creds map[string]domain.Credentials) {
	f.active[userID] = true
	f.enables++
}

func (f *fakeEngine) DisableUser(userID int64) bool {
	was := f.active[userID]
	delete(f.active, userID)
	return was
}

func (f *fakeEngine) UserActive(userID int64) bool { return f.active[userID] }

func (f *fakeEngine) RecentTrades(userID int64) []domain.Trade {
	if !f.active[userID] {
		return nil
	}
	return f.recent
}

func (f *fakeEngine) Stats() engine.Stats { return f.stats }

type fakeStrategyStore struct {
	strategies []domain.Strategy
	err        error
}

func (f *fakeStrategyStore) ListActiveByUser(ctx context.Context, userID int64) ([]domain.Strategy, error) {
	return f.strategies, f.err
}

type fakeCredStore struct {
	creds map[string]domain.Credentials
	err   error
}

func (f *fakeCredStore) GetByUser(ctx context.Context, userID int64) (map[string]domain.Credentials, error) {
	return f.creds, f.err
}

func testStrategies() []domain.Strategy {
	return []domain.Strategy{{
		ID:           1,
		UserID:       42,
		Active:       true,
		MinProfitPct: 1.0,
		Exchanges:    []string{"binance", "kraken"},
		MaxAmount:    0.01,
	}}
}

func testCreds() map[string]domain.Credentials {
	return map[string]domain.Credentials{
		"binance": {APIKey: "k", APISecret: "s"},
		"kraken":  {APIKey: "k2", APISecret: "s2"},
	}
}

func toggleRequestFor(t *testing.T, userID, body string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/users/"+userID+"/autotrade", strings.NewReader(body))
	r.SetPathValue("id", userID)
	return r
}

func TestToggleEnable(t *testing.T) {
	eng := newFakeEngine()
	h := NewAutotradeHandler(eng, &fakeStrategyStore{strategies: testStrategies()}, &fakeCredStore{creds: testCreds()}, testLogger())

	w := httptest.NewRecorder()
	h.Toggle(w, toggleRequestFor(t, "42", `{"enabled":true}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, eng.active[42])

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["enabled"])
	assert.Equal(t, float64(1), resp["strategies"])
}

func TestToggleDisable(t *testing.T) {
	eng := newFakeEngine()
	eng.active[42] = true
	h := NewAutotradeHandler(eng, &fakeStrategyStore{}, &fakeCredStore{}, testLogger())

	w := httptest.NewRecorder()
	h.Toggle(w, toggleRequestFor(t, "42", `{"enabled":false}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, eng.active[42])
}

func TestToggleNoStrategies(t *testing.T) {
	eng := newFakeEngine()
	h := NewAutotradeHandler(eng, &fakeStrategyStore{}, &fakeCredStore{creds: testCreds()}, testLogger())

	w := httptest.NewRecorder()
	h.Toggle(w, toggleRequestFor(t, "42", `{"enabled":true}`))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no active strategies")
	assert.Zero(t, eng.enables)
}

func TestToggleNoCredentials(t *testing.T) {
	eng := newFakeEngine()
	h := NewAutotradeHandler(eng, &fakeStrategyStore{strategies: testStrategies()}, &fakeCredStore{}, testLogger())

	w := httptest.NewRecorder()
	h.Toggle(w, toggleRequestFor(t, "42", `{"enabled":true}`))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no exchange credentials")
	assert.Zero(t, eng.enables)
}

func TestToggleStoreFailure(t *testing.T) {
	eng := newFakeEngine()
	h := NewAutotradeHandler(eng, &fakeStrategyStore{err: errors.New("db down")}, &fakeCredStore{}, testLogger())

	w := httptest.NewRecorder()
	h.Toggle(w, toggleRequestFor(t, "42", `{"enabled":true}`))

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestToggleBadUserID(t *testing.T) {
	h := NewAutotradeHandler(newFakeEngine(), &fakeStrategyStore{}, &fakeCredStore{}, testLogger())

	w := httptest.NewRecorder()
	h.Toggle(w, toggleRequestFor(t, "abc", `{"enabled":true}`))

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToggleBadBody(t *testing.T) {
	h := NewAutotradeHandler(newFakeEngine(), &fakeStrategyStore{}, &fakeCredStore{}, testLogger())

	w := httptest.NewRecorder()
	h.Toggle(w, toggleRequestFor(t, "42", `not json`))

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatus(t *testing.T) {
	eng := newFakeEngine()
	eng.active[42] = true
	h := NewAutotradeHandler(eng, &fakeStrategyStore{}, &fakeCredStore{}, testLogger())

	r := httptest.NewRequest(http.MethodGet, "/api/users/42/autotrade/status", nil)
	r.SetPathValue("id", "42")
	w := httptest.NewRecorder()
	h.Status(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["active"])

	r = httptest.NewRequest(http.MethodGet, "/api/users/7/autotrade/status", nil)
	r.SetPathValue("id", "7")
	w = httptest.NewRecorder()
	h.Status(w, r)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["active"])
}

func TestStatsIncludesRecentTrades(t *testing.T) {
	eng := newFakeEngine()
	eng.active[42] = true
	eng.stats = engine.Stats{Running: true, ActiveUsers: 1, TradesExecuted: 3}
	eng.recent = []domain.Trade{{
		ID:        "t-1",
		UserID:    42,
		Symbol:    "BTC/USDT",
		Status:    domain.TradeStatusCompleted,
		CreatedAt: time.Now().UTC(),
	}}
	h := NewAutotradeHandler(eng, &fakeStrategyStore{}, &fakeCredStore{}, testLogger())

	r := httptest.NewRequest(http.MethodGet, "/api/users/42/autotrade/stats", nil)
	r.SetPathValue("id", "42")
	w := httptest.NewRecorder()
	h.Stats(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp statsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Engine.Running)
	assert.Equal(t, int64(3), resp.Engine.TradesExecuted)
	require.Len(t, resp.RecentTrades, 1)
	assert.Equal(t, "t-1", resp.RecentTrades[0].ID)
}

func TestStatsUnknownUserEmptyTrades(t *testing.T) {
	h := NewAutotradeHandler(newFakeEngine(), &fakeStrategyStore{}, &fakeCredStore{}, testLogger())

	r := httptest.NewRequest(http.MethodGet, "/api/users/99/autotrade/stats", nil)
	r.SetPathValue("id", "99")
	w := httptest.NewRecorder()
	h.Stats(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"recent_trades":[]`)
}
