package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

// ActivityTail returns the newest n mirrored items, newest first.
type ActivityTail interface {
	Recent(ctx context.Context, n int) ([]domain.ActivityItem, error)
}

// ActivityHandler serves the activity trail. The ring is always available;
// history reads the durable store, or the stream tail when only that exists.
type ActivityHandler struct {
	svc     ShadowMarket
	history domain.ActivityStore
	tail    ActivityTail
	logger  *slog.Logger
}

// NewActivityHandler creates an ActivityHandler. history and tail may be nil.
func NewActivityHandler(svc ShadowMarket, history domain.ActivityStore, tail ActivityTail, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{svc: svc, history: history, tail: tail, logger: logHandler(logger, "activity")}
}

// Recent returns the in-memory ring, newest first.
// GET /api/activity
func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	items := h.svc.State().Operations.Activity
	if items == nil {
		items = []domain.ActivityItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// History pages through the durable mirror.
// GET /api/activity/history
func (h *ActivityHandler) History(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var (
		items []domain.ActivityItem
		err   error
	)
	switch {
	case h.history != nil:
		items, err = h.history.List(r.Context(), opts)
	case h.tail != nil:
		items, err = h.tail.Recent(r.Context(), opts.Limit)
	default:
		writeError(w, http.StatusNotImplemented, "activity history is not enabled")
		return
	}
	if err != nil {
		writeServiceError(w, r, h.logger, "activity history", err)
		return
	}
	if items == nil {
		items = []domain.ActivityItem{}
	}
	writeJSON(w, http.StatusOK, items)
}
