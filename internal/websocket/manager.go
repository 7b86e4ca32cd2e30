package websocket

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/internal/session"
)

// Manager owns one hub per live room and the session registry
type Manager struct {
	hubs     sync.Map // map[uuid.UUID]*Hub
	closed   sync.Map // map[uuid.UUID]struct{}
	registry *session.Registry
	log      *slog.Logger
}

func NewManager(registry *session.Registry, log *slog.Logger) *Manager {
	return &Manager{registry: registry, log: log}
}

// GetOrCreateHub returns the hub of a room, or nil once the room was closed
func (m *Manager) GetOrCreateHub(roomID uuid.UUID) *Hub {
	if _, gone := m.closed.Load(roomID); gone {
		return nil
	}

	if hub, ok := m.hubs.Load(roomID); ok {
		return hub.(*Hub)
	}

	hub := NewHub(roomID, m.log)
	actual, loaded := m.hubs.LoadOrStore(roomID, hub)

	if !loaded {
		go hub.Run()

		// CloseRoom may have run between the closed check and the store
		if _, gone := m.closed.Load(roomID); gone {
			m.hubs.CompareAndDelete(roomID, hub)
			hub.Shutdown()
			return nil
		}
		m.log.Debug("created new hub", "room_id", roomID)
	}

	return actual.(*Hub)
}

// BroadcastToRoom sends an event to all clients in a room
func (m *Manager) BroadcastToRoom(roomID uuid.UUID, event string, data any) {
	if hub, ok := m.hubs.Load(roomID); ok {
		hub.(*Hub).Send(newFrame(FrameType(event), data))
	}
}

// CloseRoom flushes pending events, disconnects every client of the room
// and forgets their sessions. Later subscribes to the room are refused.
func (m *Manager) CloseRoom(roomID uuid.UUID) {
	m.closed.Store(roomID, struct{}{})

	if hub, ok := m.hubs.LoadAndDelete(roomID); ok {
		hub.(*Hub).Shutdown()
	}

	removed := m.registry.RemoveRoom(roomID)
	m.log.Info("room connections closed", "room_id", roomID, "sessions", len(removed))
}

// Shutdown stops all hubs
func (m *Manager) Shutdown() {
	m.hubs.Range(func(key, value any) bool {
		value.(*Hub).Shutdown()
		m.hubs.Delete(key)
		return true
	})
}

// HubCount returns the number of live rooms
func (m *Manager) HubCount() int {
	n := 0
	m.hubs.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
