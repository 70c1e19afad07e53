package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// WalletHandler manages the watch list over HTTP. Changes take effect on
// the next poll cycle.
type WalletHandler struct {
	store  domain.WalletStore
	logger *slog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(store domain.WalletStore, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{store: store, logger: logger}
}

// ListWallets returns the watched wallets.
// GET /api/wallets
func (h *WalletHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	ws, err := h.store.ListWallets(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list wallets failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list wallets")
		return
	}
	if ws == nil {
		ws = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallets": ws})
}

type addWalletRequest struct {
	Address string `json:"address"`
}

// AddWallet starts watching a wallet. Adding a watched wallet is a no-op.
// POST /api/wallets {"address":"0x..."}
func (h *WalletHandler) AddWallet(w http.ResponseWriter, r *http.Request) {
	var req addWalletRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.edit(w, r, req.Address, h.store.AddWallet, http.StatusCreated)
}

// RemoveWallet stops watching a wallet. Its cursor and trades are kept.
// DELETE /api/wallets/{address}
func (h *WalletHandler) RemoveWallet(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, r.PathValue("address"), h.store.RemoveWallet, http.StatusOK)
}

func (h *WalletHandler) edit(w http.ResponseWriter, r *http.Request, addr string,
	op func(context.Context, string) error, okStatus int) {
	if !common.IsHexAddress(addr) {
		writeError(w, http.StatusBadRequest, "address must be a 0x-prefixed 20-byte hex address")
		return
	}
	wallet := domain.NormalizeWallet(addr)
	if err := op(r.Context(), wallet); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: wallet update failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update wallet")
		return
	}
	h.logger.InfoContext(r.Context(), "handler: watch list updated",
		slog.String("wallet", wallet),
		slog.String("method", r.Method),
	)
	writeJSON(w, okStatus, map[string]string{"wallet": wallet})
}
