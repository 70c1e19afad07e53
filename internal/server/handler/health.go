package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// LedgerProbe is any cheap read that proves the ledger is reachable.
type LedgerProbe interface {
	ListWallets(ctx context.Context) ([]string, error)
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	probe  LedgerProbe
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(probe LedgerProbe, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{probe: probe, logger: logger}
}

// HealthCheck reports ok when the ledger answers within two seconds.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := h.probe.ListWallets(ctx); err != nil {
		h.logger.WarnContext(ctx, "health: ledger probe failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "degraded",
			"ledger":    err.Error(),
			"timestamp": now,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": now,
	})
}
