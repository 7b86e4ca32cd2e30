package attachment

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

// RoomGate admits members allowed to post in a room
type RoomGate interface {
	AdmitSender(ctx context.Context, roomID, userID uuid.UUID) (uuid.UUID, error)
}

type Handler struct {
	service *Service
	gate    RoomGate
	log     *slog.Logger
	timeout time.Duration
}

func NewHandler(service *Service, gate RoomGate, log *slog.Logger, timeout time.Duration) *Handler {
	if timeout == 0 {
		timeout = time.Second * 5
	}
	return &Handler{service, gate, log, timeout}
}

type PresignRequest struct {
	Filename string `json:"filename"`
}

// RegisterRoutes mounts under /rooms/{roomID}/attachments
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", httputil.Handler(h.HandlePresignUpload, h.log))
}

// HandlePresignUpload issues an upload url to a member of a chatting room
func (h *Handler) HandlePresignUpload(w http.ResponseWriter, r *http.Request) error {
	userID := auth.GetUserID(r.Context())
	if userID == uuid.Nil {
		return httputil.Unauthorized("Unauthorized")
	}

	roomID, err := httputil.ParseUUID(r, "roomID")
	if err != nil {
		return err
	}

	req := new(PresignRequest)
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if _, err := h.gate.AdmitSender(ctx, roomID, userID); err != nil {
		return err
	}

	upload, err := h.service.PresignUpload(ctx, roomID, req.Filename)
	if err != nil {
		return err
	}

	h.log.Debug("attachment upload presigned",
		"room_id", roomID,
		"user_id", userID,
		"key", upload.Key)

	return httputil.RespondJSON(w, http.StatusCreated, upload)
}
