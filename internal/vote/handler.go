package vote

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/internal/auth"
	"github.com/rx3lixir/bookclub/pkg/httputil"
)

type Handler struct {
	engine    *Engine
	log       *slog.Logger
	dbTimeout time.Duration
}

func NewHandler(engine *Engine, log *slog.Logger, dbTimeout time.Duration) *Handler {
	if dbTimeout == 0 {
		dbTimeout = time.Second * 5
	}
	return &Handler{engine, log, dbTimeout}
}

// RegisterRoutes mounts under /rooms/{roomID}/vote
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", httputil.Handler(h.HandleCast, h.log))
	r.Get("/", httputil.Handler(h.HandleResult, h.log))
}

func (h *Handler) HandleCast(w http.ResponseWriter, r *http.Request) error {
	userID := auth.GetUserID(r.Context())
	if userID == uuid.Nil {
		return httputil.Unauthorized("Unauthorized")
	}

	roomID, err := httputil.ParseUUID(r, "roomID")
	if err != nil {
		return err
	}

	req := new(CastRequest)
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.dbTimeout)
	defer cancel()

	if err := h.engine.Cast(ctx, roomID, userID, req.Choice); err != nil {
		return err
	}

	res, err := h.engine.Result(ctx, roomID, userID)
	if err != nil {
		return err
	}

	return httputil.RespondJSON(w, http.StatusCreated, res)
}

func (h *Handler) HandleResult(w http.ResponseWriter, r *http.Request) error {
	userID := auth.GetUserID(r.Context())
	if userID == uuid.Nil {
		return httputil.Unauthorized("Unauthorized")
	}

	roomID, err := httputil.ParseUUID(r, "roomID")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.dbTimeout)
	defer cancel()

	res, err := h.engine.Result(ctx, roomID, userID)
	if err != nil {
		return err
	}

	return httputil.RespondJSON(w, http.StatusOK, res)
}
