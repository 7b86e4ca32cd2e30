package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Send pings to peer with this period
	pingPeriod = 30 * time.Second
)

// Client is a single websocket connection. It is bound to at most one room.
type Client struct {
	sessionID uuid.UUID
	userID    uuid.UUID
	conn      *websocket.Conn

	// hub and roomID are set on subscribe and only touched by the read loop
	hub    *Hub
	roomID uuid.UUID

	mu     sync.Mutex
	send   chan []byte
	closed bool

	minSendInterval time.Duration
	lastSend        time.Time

	log *slog.Logger
}

func NewClient(
	sessionID uuid.UUID,
	userID uuid.UUID,
	conn *websocket.Conn,
	sendBuffer int,
	minSendInterval time.Duration,
	log *slog.Logger,
) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Client{
		sessionID:       sessionID,
		userID:          userID,
		conn:            conn,
		send:            make(chan []byte, sendBuffer),
		minSendInterval: minSendInterval,
		log:             log,
	}
}

// trySend queues an encoded frame. It reports false when the buffer is
// full or the client is closed.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// enqueue sends a frame to this client only
func (c *Client) enqueue(frame ServerFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.log.Error("failed to marshal frame", "type", frame.Type, "error", err)
		return
	}
	if !c.trySend(data) {
		c.log.Warn("dropping frame for slow client",
			"session_id", c.sessionID,
			"type", frame.Type)
	}
}

// closeSend stops the write pump once queued frames are flushed
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// allowSend enforces the minimum interval between chat sends
func (c *Client) allowSend(now time.Time) bool {
	if c.minSendInterval <= 0 {
		return true
	}
	if !c.lastSend.IsZero() && now.Sub(c.lastSend) < c.minSendInterval {
		return false
	}
	c.lastSend = now
	return true
}

// writePump pumps frames to the websocket connection. It runs in its own
// goroutine and closes the connection when the send channel is closed.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "room closed")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()

			if err != nil {
				c.log.Debug("failed to write frame",
					"session_id", c.sessionID,
					"user_id", c.userID,
					"error", err,
				)
				return
			}

		case <-ticker.C:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(writeCtx)
			cancel()

			if err != nil {
				c.log.Debug("failed to send ping",
					"session_id", c.sessionID,
					"user_id", c.userID,
					"error", err,
				)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
