package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/alanyoungcy/spreadbot/internal/engine"
)

// AutotradeEngine is the scheduler surface the handler drives.
type AutotradeEngine interface {
	EnableUser(userID int64, strategies []domain.Strategy, creds map[string]domain.Credentials)
	DisableUser(userID int64) bool
	UserActive(userID int64) bool
	RecentTrades(userID int64) []domain.Trade
	Stats() engine.Stats
}

// AutotradeHandler serves the per-user auto-trade lifecycle endpoints.
type AutotradeHandler struct {
	engine     AutotradeEngine
	strategies domain.StrategyStore
	creds      domain.CredentialStore
	logger     *slog.Logger
}

// NewAutotradeHandler creates an AutotradeHandler over the given engine and
// stores.
func NewAutotradeHandler(eng AutotradeEngine, strategies domain.StrategyStore, creds domain.CredentialStore, logger *slog.Logger) *AutotradeHandler {
	return &AutotradeHandler{
		engine:     eng,
		strategies: strategies,
		creds:      creds,
		logger:     logger,
	}
}

// toggleRequest is the body for POST /api/users/{id}/autotrade.
type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

// Toggle enables or disables auto-trading for a user. Enabling loads the
// user's active strategies and decrypted exchange credentials from the stores
// and installs the session; a user with no active strategies or no
// credentials cannot be enrolled.
// POST /api/users/{id}/autotrade
func (h *AutotradeHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !req.Enabled {
		h.engine.DisableUser(userID)
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id": userID,
			"enabled": false,
		})
		return
	}

	strategies, err := h.strategies.ListActiveByUser(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: load strategies failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load strategies")
		return
	}
	if len(strategies) == 0 {
		writeError(w, http.StatusBadRequest, "user has no active strategies")
		return
	}

	creds, err := h.creds.GetByUser(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: load credentials failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load credentials")
		return
	}
	if len(creds) == 0 {
		writeError(w, http.StatusBadRequest, "user has no exchange credentials")
		return
	}

	h.engine.EnableUser(userID, strategies, creds)
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    userID,
		"enabled":    true,
		"strategies": len(strategies),
		"exchanges":  len(creds),
	})
}

// Status reports whether auto-trading is active for a user.
// GET /api/users/{id}/autotrade/status
func (h *AutotradeHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"active":  h.engine.UserActive(userID),
	})
}

// statsResponse combines the engine-wide counters with the user's bounded
// in-memory trade history from the current enrollment.
type statsResponse struct {
	Engine       engine.Stats   `json:"engine"`
	RecentTrades []domain.Trade `json:"recent_trades"`
}

// Stats returns the scan loop counters and the user's recent trades.
// GET /api/users/{id}/autotrade/stats
func (h *AutotradeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	recent := h.engine.RecentTrades(userID)
	if recent == nil {
		recent = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Engine:       h.engine.Stats(),
		RecentTrades: recent,
	})
}
