package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/service"
)

// MarketHandler serves market discovery and the market lifecycle.
type MarketHandler struct {
	svc    ShadowMarket
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(svc ShadowMarket, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{svc: svc, logger: logHandler(logger, "market")}
}

// State returns the full service view.
// GET /api/state
func (h *MarketHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.State())
}

// Refresh re-reads markets, factory and vault state.
// POST /api/refresh
func (h *MarketHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Refresh(r.Context()); err != nil {
		writeServiceError(w, r, h.logger, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.State())
}

// ListMarkets returns the discovered markets, newest first.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	st := h.svc.State()
	markets := st.Markets
	if markets == nil {
		markets = []domain.MarketSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"markets":  markets,
		"selected": st.SelectedMarket,
		"factory":  st.Factory,
	})
}

// GetMarket returns one market by id.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, m := range h.svc.State().Markets {
		if m.ID == id {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("market %s not found", id))
}

// SelectMarket makes a market the target of position, resolve and claim.
// POST /api/markets/{id}/select
func (h *MarketHandler) SelectMarket(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SelectMarket(r.PathValue("id")); err != nil {
		writeServiceError(w, r, h.logger, "select market", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.State().SelectedMarket)
}

// CreateMarket submits create_market to the factory.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.CreateMarket(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "create market", err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// AddCommitment inserts a caller-proved commitment.
// POST /api/commitments
func (h *MarketHandler) AddCommitment(w http.ResponseWriter, r *http.Request) {
	var req domain.AddCommitmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.svc.AddCommitment(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "add commitment", err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

type positionBody struct {
	Side   domain.PositionSide `json:"side"`
	Amount string              `json:"amount"`
}

// PlacePosition proves and submits a private position on the selected market.
// POST /api/positions
func (h *MarketHandler) PlacePosition(w http.ResponseWriter, r *http.Request) {
	var body positionBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.svc.PlacePosition(r.Context(), body.Side, body.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "place position", err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

type resolveBody struct {
	Outcome domain.PositionSide `json:"outcome"`
}

// ResolveMarket settles the selected market.
// POST /api/resolve
func (h *MarketHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	var body resolveBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.svc.ResolveMarket(r.Context(), body.Outcome)
	if err != nil {
		writeServiceError(w, r, h.logger, "resolve market", err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

// ClaimReward claims a payout on the selected market.
// POST /api/claims
func (h *MarketHandler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	var p service.ClaimParams
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.svc.ClaimReward(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, "claim reward", err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}
