package handler

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// StatusHandler reports what the watcher is configured to do.
type StatusHandler struct {
	wallets  LedgerProbe
	criteria domain.FilterCriteria
	trading  bool
	chatID   func() int64 // nil when Telegram is not configured
	logger   *slog.Logger
}

// NewStatusHandler creates a StatusHandler. chatID may be nil.
func NewStatusHandler(wallets LedgerProbe, criteria domain.FilterCriteria, trading bool, chatID func() int64, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		wallets:  wallets,
		criteria: criteria,
		trading:  trading,
		chatID:   chatID,
		logger:   logger,
	}
}

type criteriaView struct {
	MinUSDC    float64  `json:"min_usdc"`
	Categories []string `json:"categories"`
	Keywords   []string `json:"keywords"`
	CopySides  []string `json:"copy_sides"`
}

type statusResponse struct {
	Wallets        int          `json:"wallets"`
	Criteria       criteriaView `json:"criteria"`
	TradingEnabled bool         `json:"trading_enabled"`
	Telegram       string       `json:"telegram"`
}

func viewCriteria(c domain.FilterCriteria) criteriaView {
	v := criteriaView{
		MinUSDC:    c.MinUSDC,
		Categories: []string{},
		Keywords:   append([]string{}, c.Keywords...),
		CopySides:  []string{},
	}
	for cat := range c.Categories {
		v.Categories = append(v.Categories, cat)
	}
	for side := range c.CopySides {
		v.CopySides = append(v.CopySides, string(side))
	}
	slices.Sort(v.Categories)
	slices.Sort(v.CopySides)
	return v
}

// GetStatus responds with the filter criteria and runtime state.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ws, err := h.wallets.ListWallets(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list wallets failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list wallets")
		return
	}

	tg := "disabled"
	if h.chatID != nil {
		tg = "awaiting /start"
		if h.chatID() != 0 {
			tg = "authorized"
		}
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Wallets:        len(ws),
		Criteria:       viewCriteria(h.criteria),
		TradingEnabled: h.trading,
		Telegram:       tg,
	})
}
