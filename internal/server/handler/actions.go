package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// ActionLister reads the operator action log.
type ActionLister interface {
	ListActionsSince(ctx context.Context, since time.Time, limit int) ([]domain.MirrorAction, error)
}

// ActionHandler exposes the audit log of Follow and Ignore decisions.
type ActionHandler struct {
	actions ActionLister
	logger  *slog.Logger
}

// NewActionHandler creates an ActionHandler.
func NewActionHandler(actions ActionLister, logger *slog.Logger) *ActionHandler {
	return &ActionHandler{actions: actions, logger: logger}
}

type actionView struct {
	ID        string          `json:"id"`
	TxHash    string          `json:"tx_hash"`
	Action    string          `json:"action"`
	CreatedAt string          `json:"created_at"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// ListActions returns actions recorded after ?since= (unix milliseconds,
// default 0), oldest first.
// GET /api/actions?since=0&limit=50
func (h *ActionHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms < 0 {
			writeError(w, http.StatusBadRequest, "since must be unix milliseconds")
			return
		}
		since = time.UnixMilli(ms)
	}
	limit := parseLimit(r)

	actions, err := h.actions.ListActionsSince(r.Context(), since, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list actions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list actions")
		return
	}

	out := make([]actionView, 0, len(actions))
	for _, a := range actions {
		out = append(out, actionView{
			ID:        a.ID,
			TxHash:    a.TxHash,
			Action:    string(a.Kind),
			CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339Nano),
			Result:    a.Result,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"actions": out,
		"limit":   limit,
	})
}
