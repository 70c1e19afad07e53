package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// PollTrigger starts a poll cycle ahead of schedule. It reports false when a
// trigger is already pending.
type PollTrigger interface {
	Trigger() bool
}

// PipelineHandler serves pipeline trigger endpoints.
type PipelineHandler struct {
	poller PollTrigger
	logger *slog.Logger
}

// NewPipelineHandler creates a PipelineHandler.
func NewPipelineHandler(poller PollTrigger, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{poller: poller, logger: logger}
}

// TriggerPoll asks the wallet poller to run its next cycle now.
// POST /api/poll
func (h *PipelineHandler) TriggerPoll(w http.ResponseWriter, r *http.Request) {
	queued := h.poller.Trigger()
	h.logger.InfoContext(r.Context(), "handler: poll trigger requested", slog.Bool("queued", queued))

	msg := "poll cycle enqueued"
	if !queued {
		msg = "poll cycle already pending"
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"message":      msg,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
