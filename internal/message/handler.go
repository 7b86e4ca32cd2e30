package message

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rx3lixir/bookclub/pkg/httputil"
)

type Handler struct {
	pipeline  *Pipeline
	log       *slog.Logger
	dbTimeout time.Duration
}

func NewHandler(pipeline *Pipeline, log *slog.Logger, dbTimeout time.Duration) *Handler {
	if dbTimeout == 0 {
		dbTimeout = time.Second * 5
	}
	return &Handler{pipeline, log, dbTimeout}
}

// RegisterRoutes mounts under /rooms/{roomID}/messages
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", httputil.Handler(h.HandleListMessages, h.log))
}

// HandleListMessages pages through history with ?after=<id>&limit=
func (h *Handler) HandleListMessages(w http.ResponseWriter, r *http.Request) error {
	roomID, err := httputil.ParseUUID(r, "roomID")
	if err != nil {
		return err
	}

	after, err := httputil.QueryInt64(r, "after", 0)
	if err != nil {
		return err
	}

	limit, err := httputil.QueryInt(r, "limit", DefaultListLimit)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.dbTimeout)
	defer cancel()

	messages, err := h.pipeline.List(ctx, roomID, after, limit)
	if err != nil {
		return err
	}

	next := after
	if len(messages) > 0 {
		next = messages[len(messages)-1].ID
	}

	h.log.Debug("messages retrieved",
		"room_id", roomID,
		"after", after,
		"count", len(messages))

	return httputil.RespondJSON(w, http.StatusOK, ListResponse{
		Messages:  messages,
		Count:     len(messages),
		NextAfter: next,
	})
}
