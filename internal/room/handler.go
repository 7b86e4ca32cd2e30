package room

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
	service   *Service
	log       *slog.Logger
	dbTimeout time.Duration
}

func NewHandler(service *Service, log *slog.Logger, dbTimeout time.Duration) *Handler {
	if dbTimeout == 0 {
		dbTimeout = time.Second * 5
	}
	return &Handler{service, log, dbTimeout}
}

// RegisterRoutes mounts under /rooms
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", httputil.Handler(h.HandleCreateRoom, h.log))
	r.Get("/", httputil.Handler(h.HandleListRooms, h.log))
}

// RegisterRoomRoutes mounts under /rooms/{roomID}
func (h *Handler) RegisterRoomRoutes(r chi.Router) {
	r.Get("/", httputil.Handler(h.HandleGetRoom, h.log))
	r.Post("/join", httputil.Handler(h.HandleJoin, h.log))
	r.Post("/leave", httputil.Handler(h.HandleLeave, h.log))
	r.Post("/start", httputil.Handler(h.HandleStart, h.log))
	r.Post("/rounds/next", httputil.Handler(h.HandleNextRound, h.log))
	r.Post("/end", httputil.Handler(h.HandleEnd, h.log))
	r.Post("/cancel", httputil.Handler(h.HandleCancel, h.log))
}

func (h *Handler) dbCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.dbTimeout)
}

// caller returns the authenticated user and the room from the URL
func (h *Handler) caller(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	userID := auth.GetUserID(r.Context())
	if userID == uuid.Nil {
		return uuid.Nil, uuid.Nil, httputil.Unauthorized("Unauthorized")
	}

	roomID, err := httputil.ParseUUID(r, "roomID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	return userID, roomID, nil
}

// HandleCreateRoom creates a WAITING room together with its quiz
func (h *Handler) HandleCreateRoom(w http.ResponseWriter, r *http.Request) error {
	hostID := auth.GetUserID(r.Context())
	if hostID == uuid.Nil {
		h.log.Debug("room creation attempt without authentication")
		return httputil.Unauthorized("Unauthorized")
	}

	req := new(CreateRoomRequest)
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}

	h.log.Debug("room creation request received",
		"host_id", hostID,
		"capacity", req.Capacity)

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	details, err := h.service.Create(ctx, hostID, auth.GetUsername(r.Context()), *req)
	if err != nil {
		return err
	}

	return httputil.RespondJSON(w, http.StatusCreated, details)
}

// HandleListRooms lists rooms, optionally filtered by ?status=
func (h *Handler) HandleListRooms(w http.ResponseWriter, r *http.Request) error {
	status := Status(r.URL.Query().Get("status"))
	switch status {
	case "", StatusWaiting, StatusChatting, StatusEnded, StatusCancelled:
	default:
		return httputil.BadRequest("Invalid status")
	}

	limit, err := httputil.QueryInt(r, "limit", 50)
	if err != nil {
		return err
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	rooms, err := h.service.List(ctx, status, limit)
	if err != nil {
		return err
	}

	return httputil.RespondJSON(w, http.StatusOK, ListRoomsResponse{
		Rooms: rooms,
		Count: len(rooms),
	})
}

// HandleGetRoom returns the room with its members and rounds
func (h *Handler) HandleGetRoom(w http.ResponseWriter, r *http.Request) error {
	roomID, err := httputil.ParseUUID(r, "roomID")
	if err != nil {
		return err
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	details, err := h.service.Get(ctx, roomID)
	if err != nil {
		return err
	}

	h.log.Debug("room retrieved",
		"room_id", roomID,
		"member_count", len(details.Members),
		"round_count", len(details.Rounds))

	return httputil.RespondJSON(w, http.StatusOK, details)
}

// HandleJoin answers the quiz and takes a seat
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) error {
	userID, roomID, err := h.caller(r)
	if err != nil {
		return err
	}

	req := new(JoinRoomRequest)
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	member, err := h.service.Join(ctx, roomID, userID, auth.GetUsername(r.Context()), *req)
	if err != nil {
		return err
	}

	return httputil.RespondJSON(w, http.StatusOK, member)
}

func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) error {
	userID, roomID, err := h.caller(r)
	if err != nil {
		return err
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	if err := h.service.Leave(ctx, roomID, userID); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) error {
	userID, roomID, err := h.caller(r)
	if err != nil {
		return err
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	round, err := h.service.Start(ctx, roomID, userID)
	if err != nil {
		return err
	}

	return httputil.RespondJSON(w, http.StatusOK, round)
}

func (h *Handler) HandleNextRound(w http.ResponseWriter, r *http.Request) error {
	userID, roomID, err := h.caller(r)
	if err != nil {
		return err
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	round, err := h.service.AdvanceRound(ctx, roomID, userID)
	if err != nil {
		return err
	}

	return httputil.RespondJSON(w, http.StatusOK, round)
}

func (h *Handler) HandleEnd(w http.ResponseWriter, r *http.Request) error {
	userID, roomID, err := h.caller(r)
	if err != nil {
		return err
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	room, err := h.service.End(ctx, roomID, userID)
	if err != nil {
		return err
	}

	return httputil.RespondJSON(w, http.StatusOK, room)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) error {
	userID, roomID, err := h.caller(r)
	if err != nil {
		return err
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	if err := h.service.Cancel(ctx, roomID, userID); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
