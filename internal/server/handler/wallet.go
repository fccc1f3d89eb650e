package handler

import (
	"log/slog"
	"net/http"
)

// WalletHandler serves wallet session endpoints.
type WalletHandler struct {
	svc    ShadowMarket
	logger *slog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(svc ShadowMarket, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{svc: svc, logger: logHandler(logger, "wallet")}
}

// Session returns the current session or 404 when disconnected.
// GET /api/wallet
func (h *WalletHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess := h.svc.State().Wallet
	if sess == nil {
		writeError(w, http.StatusNotFound, "no wallet session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Connect runs the injected wallet's connect flow.
// POST /api/wallet/connect
func (h *WalletHandler) Connect(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.ConnectWallet(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "connect wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Disconnect clears the session.
// POST /api/wallet/disconnect
func (h *WalletHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DisconnectWallet(r.Context()); err != nil {
		writeServiceError(w, r, h.logger, "disconnect wallet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
