package handler

import (
	"log/slog"
	"net/http"
)

// VaultHandler serves ShieldVault deposits and withdrawals.
type VaultHandler struct {
	svc    ShadowMarket
	logger *slog.Logger
}

// NewVaultHandler creates a VaultHandler.
func NewVaultHandler(svc ShadowMarket, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{svc: svc, logger: logHandler(logger, "vault")}
}

type amountBody struct {
	Amount string `json:"amount"`
}

// Vault returns the last vault snapshot.
// GET /api/vault
func (h *VaultHandler) Vault(w http.ResponseWriter, r *http.Request) {
	v := h.svc.State().Vault
	if v == nil {
		writeError(w, http.StatusNotFound, "vault not loaded; connect a wallet")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Deposit shields collateral.
// POST /api/vault/deposit
func (h *VaultHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var body amountBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.svc.Deposit(r.Context(), body.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "deposit", err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

// Withdraw unlocks collateral to the session address.
// POST /api/vault/withdraw
func (h *VaultHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var body amountBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.svc.Withdraw(r.Context(), body.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "withdraw", err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}
