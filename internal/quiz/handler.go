package quiz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rx3lixir/bookclub/pkg/httputil"
)

type Handler struct {
	gate      *Gate
	log       *slog.Logger
	dbTimeout time.Duration
}

func NewHandler(gate *Gate, log *slog.Logger, dbTimeout time.Duration) *Handler {
	if dbTimeout == 0 {
		dbTimeout = time.Second * 5
	}
	return &Handler{gate, log, dbTimeout}
}

// RegisterRoutes mounts under /rooms/{roomID}/quiz
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", httputil.Handler(h.HandleGetQuiz, h.log))
	r.Post("/answer", httputil.Handler(h.HandleAnswer, h.log))
}

func (h *Handler) dbCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.dbTimeout)
}

func (h *Handler) HandleGetQuiz(w http.ResponseWriter, r *http.Request) error {
	roomID, err := httputil.ParseUUID(r, "roomID")
	if err != nil {
		return err
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	q, err := h.gate.Question(ctx, roomID)
	if err != nil {
		return err
	}

	return httputil.RespondJSON(w, http.StatusOK, q)
}

// HandleAnswer lets a candidate check an answer before joining
func (h *Handler) HandleAnswer(w http.ResponseWriter, r *http.Request) error {
	roomID, err := httputil.ParseUUID(r, "roomID")
	if err != nil {
		return err
	}

	req := new(AnswerRequest)
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	err = h.gate.ValidateAnswer(ctx, roomID, req.Choice)
	switch {
	case err == nil:
		return httputil.RespondJSON(w, http.StatusOK, AnswerResponse{Correct: true})
	case errors.Is(err, ErrWrongAnswer):
		h.log.Debug("wrong quiz answer", "room_id", roomID, "choice", req.Choice)
		return httputil.RespondJSON(w, http.StatusOK, AnswerResponse{Correct: false})
	default:
		return err
	}
}
