package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type Hub struct {
	// Room identifier
	roomID uuid.UUID

	// Registered clients (only accessed by hub goroutine)
	clients map[*Client]bool

	// Outbound frames for every client of the room
	broadcast chan ServerFrame

	register   chan *Client
	unregister chan *Client

	shutdown chan struct{}
	stopOnce sync.Once
	// done is closed once Run has returned
	done chan struct{}

	metrics *HubMetrics

	log *slog.Logger
}

type HubMetrics struct {
	ConnectedClients atomic.Int64
	FramesSent       atomic.Int64
	FramesDropped    atomic.Int64
}

func NewHub(roomID uuid.UUID, log *slog.Logger) *Hub {
	return &Hub{
		roomID:     roomID,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan ServerFrame, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		metrics:    &HubMetrics{},
		log:        log,
	}
}

// Run is the main event loop - handles ALL state changes sequentially
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case frame := <-h.broadcast:
			h.handleBroadcast(frame)

		case <-h.shutdown:
			h.handleShutdown()
			return
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.clients[client] = true
	h.metrics.ConnectedClients.Store(int64(len(h.clients)))

	h.log.Info("client registered",
		"room_id", h.roomID,
		"user_id", client.userID,
		"session_id", client.sessionID,
		"total_clients", len(h.clients),
	)

	client.enqueue(newFrame(TypeSubscribed, PresenceData{
		RoomID: h.roomID,
		UserID: client.userID,
	}))

	h.handleBroadcast(newFrame(TypeUserJoined, PresenceData{
		RoomID: h.roomID,
		UserID: client.userID,
	}))
}

func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	client.closeSend()
	h.metrics.ConnectedClients.Store(int64(len(h.clients)))

	h.log.Info("client unregistered",
		"room_id", h.roomID,
		"user_id", client.userID,
		"session_id", client.sessionID,
		"remaining_clients", len(h.clients),
	)

	h.handleBroadcast(newFrame(TypeUserLeft, PresenceData{
		RoomID: h.roomID,
		UserID: client.userID,
	}))
}

func (h *Hub) handleBroadcast(frame ServerFrame) {
	if frame.Timestamp == 0 {
		frame.Timestamp = time.Now().Unix()
	}

	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error("failed to marshal frame", "type", frame.Type, "error", err)
		return
	}

	var slow []*Client
	for client := range h.clients {
		if client.trySend(data) {
			h.metrics.FramesSent.Add(1)
			continue
		}
		h.metrics.FramesDropped.Add(1)
		slow = append(slow, client)
	}

	// Client is too slow, disconnect it
	for _, client := range slow {
		h.log.Warn("client buffer full, disconnecting",
			"user_id", client.userID,
			"room_id", h.roomID,
		)
		h.handleUnregister(client)
	}
}

// handleShutdown flushes frames queued before the shutdown, then closes
// every client. Clients drain their buffers before closing the socket.
func (h *Hub) handleShutdown() {
	h.log.Info("shutting down hub", "room_id", h.roomID, "clients", len(h.clients))

drain:
	for {
		select {
		case frame := <-h.broadcast:
			h.handleBroadcast(frame)
		default:
			break drain
		}
	}

	for client := range h.clients {
		client.closeSend()
	}
	h.clients = nil
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Send queues a frame without blocking
func (h *Hub) Send(frame ServerFrame) {
	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- frame:
	default:
		h.log.Error("hub broadcast channel full", "room_id", h.roomID, "type", frame.Type)
		h.metrics.FramesDropped.Add(1)
	}
}

func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.shutdown)
	})
}

// Done is closed after the hub stopped
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
