package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/internal/auth"
	"github.com/rx3lixir/bookclub/internal/message"
	"github.com/rx3lixir/bookclub/internal/session"
	"github.com/rx3lixir/bookclub/pkg/apperr"
	"github.com/rx3lixir/bookclub/pkg/httputil"
)

// MessageSender persists and broadcasts chat messages
type MessageSender interface {
	Send(ctx context.Context, cmd message.SendCommand) (*message.Message, bool, error)
}

// Presence flips member status as sessions come and go
type Presence interface {
	MarkConnected(ctx context.Context, roomID, userID uuid.UUID) error
	MarkDisconnected(ctx context.Context, roomID, userID uuid.UUID) error
}

type Config struct {
	AllowedOrigins  []string
	SendBuffer      int
	MinSendInterval time.Duration
	MaxFrameBytes   int64
	RequestTimeout  time.Duration
}

type Handler struct {
	manager     *Manager
	registry    *session.Registry
	authService *auth.Service
	sender      MessageSender
	presence    Presence
	cfg         Config
	origins     []string
	log         *slog.Logger

	presenceLocks [64]sync.Mutex
}

func NewHandler(
	manager *Manager,
	registry *session.Registry,
	authService *auth.Service,
	sender MessageSender,
	presence Presence,
	cfg Config,
	log *slog.Logger,
) *Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = 16 << 10
	}
	return &Handler{
		manager:     manager,
		registry:    registry,
		authService: authService,
		sender:      sender,
		presence:    presence,
		cfg:         cfg,
		origins:     originPatterns(cfg.AllowedOrigins),
		log:         log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleConnection)
}

// HandleConnection authenticates the bearer credential and only then
// upgrades. The request goroutine runs the read loop until the socket closes.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	principal, err := h.authService.AuthenticateRequest(r)
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, auth.ErrMissingCredential) || errors.Is(err, auth.ErrMalformedCredential) {
			msg = err.Error()
		}
		httputil.RespondError(w, r, httputil.Unauthorized(msg), h.log)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.log.Warn("websocket upgrade failed", "user_id", principal.UserID, "error", err)
		return
	}
	conn.SetReadLimit(h.cfg.MaxFrameBytes)

	client := NewClient(uuid.New(), principal.UserID, conn, h.cfg.SendBuffer, h.cfg.MinSendInterval, h.log)

	h.log.Info("websocket connection established",
		"session_id", client.sessionID,
		"user_id", principal.UserID,
		"username", principal.DisplayName,
	)

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	go client.writePump(ctx)

	client.enqueue(newFrame(TypeConnectionAck, AckData{
		SessionID: client.sessionID,
		UserID:    client.userID,
	}))

	h.readPump(ctx, client)
	h.disconnect(client)
}

func (h *Handler) readPump(ctx context.Context, c *Client) {
	for {
		var frame ClientFrame
		if err := wsjson.Read(ctx, c.conn, &frame); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				h.log.Debug("client disconnected normally",
					"session_id", c.sessionID,
					"user_id", c.userID,
				)
			} else {
				h.log.Debug("websocket read ended",
					"session_id", c.sessionID,
					"user_id", c.userID,
					"error", err,
				)
			}
			return
		}

		switch frame.Type {
		case TypeSubscribe:
			h.handleSubscribe(ctx, c, frame)
		case TypeSend:
			h.handleSend(ctx, c, frame)
		default:
			c.enqueue(errorFrame("UNKNOWN_FRAME", "unknown frame type", ""))
		}
	}
}

func (h *Handler) handleSubscribe(ctx context.Context, c *Client, frame ClientFrame) {
	if c.hub != nil {
		if c.roomID != frame.RoomID {
			c.enqueue(errorFrame("SESSION_BOUND", session.ErrSessionBound.Error(), ""))
		}
		return
	}

	hub := h.manager.GetOrCreateHub(frame.RoomID)
	if hub == nil {
		c.enqueue(errorFrame("ROOM_CLOSED", "room is already closed", ""))
		return
	}

	if err := h.connect(ctx, c, frame.RoomID); err != nil {
		h.sendError(c, err, "")
		return
	}

	if !hub.Register(c) {
		h.release(c.sessionID, frame.RoomID, c.userID)
		c.enqueue(errorFrame("ROOM_CLOSED", "room is already closed", ""))
		return
	}

	c.hub = hub
	c.roomID = frame.RoomID
}

// connect registers the session and only then marks the member connected,
// so a closing sibling session sees this one and leaves presence alone
func (h *Handler) connect(ctx context.Context, c *Client, roomID uuid.UUID) error {
	mu := h.presenceLock(roomID, c.userID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := h.registry.Register(c.sessionID, c.userID, roomID); err != nil {
		return apperr.Conflict("SESSION_BOUND", err.Error())
	}

	opCtx, cancel := context.WithTimeout(ctx, h.cfg.RequestTimeout)
	defer cancel()

	if err := h.presence.MarkConnected(opCtx, roomID, c.userID); err != nil {
		h.registry.Unregister(c.sessionID)
		return err
	}
	return nil
}

func (h *Handler) handleSend(ctx context.Context, c *Client, frame ClientFrame) {
	if c.hub == nil || c.roomID != frame.RoomID {
		c.enqueue(errorFrame("NOT_SUBSCRIBED", "subscribe to the room first", frame.ClientMessageID))
		return
	}

	if !c.allowSend(time.Now()) {
		c.enqueue(errorFrame("RATE_LIMITED", "sending too fast", frame.ClientMessageID))
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, h.cfg.RequestTimeout)
	defer cancel()

	_, _, err := h.sender.Send(opCtx, message.SendCommand{
		RoomID:          frame.RoomID,
		SenderID:        c.userID,
		ClientMessageID: frame.ClientMessageID,
		Type:            message.Type(frame.MessageType),
		Content:         frame.Content,
	})
	if err != nil {
		h.sendError(c, err, frame.ClientMessageID)
	}
}

// disconnect leaves the hub and releases the session
func (h *Handler) disconnect(c *Client) {
	if c.hub != nil {
		c.hub.Unregister(c)
	}
	c.closeSend()

	if c.hub != nil {
		h.release(c.sessionID, c.roomID, c.userID)
	}
}

// release drops a session and reports the member gone when it was their
// last session in the room
func (h *Handler) release(sessionID, roomID, userID uuid.UUID) {
	mu := h.presenceLock(roomID, userID)
	mu.Lock()
	defer mu.Unlock()

	_, vacated, ok := h.registry.Unregister(sessionID)
	if !ok || !vacated {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.RequestTimeout)
	defer cancel()

	if err := h.presence.MarkDisconnected(ctx, roomID, userID); err != nil {
		h.log.Error("failed to mark member disconnected",
			"room_id", roomID,
			"user_id", userID,
			"error", err)
	}
}

// presenceLock serializes registry changes and presence updates of one
// member in one room
func (h *Handler) presenceLock(roomID, userID uuid.UUID) *sync.Mutex {
	return &h.presenceLocks[int(roomID[15]^userID[15])%len(h.presenceLocks)]
}

func (h *Handler) sendError(c *Client, err error, clientMessageID string) {
	if appErr, ok := apperr.As(err); ok {
		c.enqueue(errorFrame(appErr.Code, appErr.Message, clientMessageID))
		return
	}

	h.log.Error("websocket operation failed",
		"session_id", c.sessionID,
		"user_id", c.userID,
		"error", err)
	c.enqueue(errorFrame("INTERNAL_ERROR", "internal server error", clientMessageID))
}

// originPatterns turns CORS origins into host patterns for the upgrade
// check. "*" allows any origin.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}
