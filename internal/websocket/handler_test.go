package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/internal/auth"
	"github.com/rx3lixir/bookclub/internal/message"
	"github.com/rx3lixir/bookclub/internal/session"
	"github.com/rx3lixir/bookclub/pkg/apperr"
	"github.com/rx3lixir/bookclub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errClosedRoom = apperr.Conflict("ROOM_CLOSED", "room is already closed")

type fakePresence struct {
	mu           sync.Mutex
	closedRooms  map[uuid.UUID]bool
	connected    []uuid.UUID
	disconnected []uuid.UUID
	// online mirrors the JOINED/DISCONNECTED flag of each member
	online map[uuid.UUID]bool

	// beforeDisconnect runs once, outside the lock, ahead of the next
	// MarkDisconnected write
	beforeDisconnect func()
}

func (p *fakePresence) MarkConnected(_ context.Context, roomID, userID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closedRooms[roomID] {
		return errClosedRoom
	}
	p.connected = append(p.connected, userID)
	p.online[userID] = true
	return nil
}

func (p *fakePresence) MarkDisconnected(_ context.Context, _, userID uuid.UUID) error {
	p.mu.Lock()
	hook := p.beforeDisconnect
	p.beforeDisconnect = nil
	p.mu.Unlock()

	if hook != nil {
		hook()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnected = append(p.disconnected, userID)
	p.online[userID] = false
	return nil
}

func (p *fakePresence) isOnline(userID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

func (p *fakePresence) disconnects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.disconnected)
}

// fakeSender broadcasts every accepted message like the real pipeline
type fakeSender struct {
	manager *Manager

	mu   sync.Mutex
	cmds []message.SendCommand
}

func (s *fakeSender) Send(_ context.Context, cmd message.SendCommand) (*message.Message, bool, error) {
	s.mu.Lock()
	s.cmds = append(s.cmds, cmd)
	id := int64(len(s.cmds))
	s.mu.Unlock()

	if cmd.Content == "" {
		return nil, false, apperr.Invalid("INVALID_CONTENT", "text must be 1 to 1000 characters")
	}

	m := &message.Message{
		ID:              id,
		RoomID:          cmd.RoomID,
		SenderID:        cmd.SenderID,
		ClientMessageID: cmd.ClientMessageID,
		Type:            cmd.Type,
		Content:         cmd.Content,
	}
	s.manager.BroadcastToRoom(cmd.RoomID, message.EventChatMessage, m)
	return m, true, nil
}

type testEnv struct {
	server   *httptest.Server
	auth     *auth.Service
	manager  *Manager
	registry *session.Registry
	presence *fakePresence
	sender   *fakeSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	registry := session.NewRegistry()
	manager := NewManager(registry, logger.Discard())
	authService := auth.NewService("test-secret", time.Hour)
	presence := &fakePresence{closedRooms: make(map[uuid.UUID]bool), online: make(map[uuid.UUID]bool)}
	sender := &fakeSender{manager: manager}

	h := NewHandler(manager, registry, authService, sender, presence, Config{
		AllowedOrigins: []string{"*"},
		SendBuffer:     32,
	}, logger.Discard())

	srv := httptest.NewServer(http.HandlerFunc(h.HandleConnection))
	t.Cleanup(func() {
		manager.Shutdown()
		srv.Close()
	})

	return &testEnv{
		server:   srv,
		auth:     authService,
		manager:  manager,
		registry: registry,
		presence: presence,
		sender:   sender,
	}
}

func (e *testEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http")
}

func (e *testEnv) dial(t *testing.T, userID uuid.UUID) *websocket.Conn {
	t.Helper()

	token, err := e.auth.GenerateAccessToken(userID, "reader")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, e.wsURL(), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	ack := expectFrame(t, conn, TypeConnectionAck)
	assert.Contains(t, string(ack.Data), userID.String())

	return conn
}

type rawFrame struct {
	Type FrameType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// expectFrame reads until a frame of type want arrives
func expectFrame(t *testing.T, conn *websocket.Conn, want FrameType) rawFrame {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		var f rawFrame
		require.NoError(t, wsjson.Read(ctx, conn, &f), "waiting for %s", want)
		if f.Type == want {
			return f
		}
	}
}

func writeFrame(t *testing.T, conn *websocket.Conn, f ClientFrame) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, f))
}

func TestHandshakeRequiresBearer(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Token abc"},
		{"invalid token", "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			header := http.Header{}
			if tt.header != "" {
				header.Set("Authorization", tt.header)
			}

			_, resp, err := websocket.Dial(ctx, env.wsURL(), &websocket.DialOptions{HTTPHeader: header})
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}

	assert.Equal(t, 0, env.registry.Count())
}

func TestSubscribeAndSend(t *testing.T) {
	env := newTestEnv(t)
	roomID, userID := uuid.New(), uuid.New()
	conn := env.dial(t, userID)

	writeFrame(t, conn, ClientFrame{Type: TypeSend, RoomID: roomID, ClientMessageID: "c-0", MessageType: "TEXT", Content: "early"})
	errFrame := expectFrame(t, conn, TypeError)
	assert.Contains(t, string(errFrame.Data), "NOT_SUBSCRIBED")

	writeFrame(t, conn, ClientFrame{Type: TypeSubscribe, RoomID: roomID})
	expectFrame(t, conn, TypeSubscribed)
	expectFrame(t, conn, TypeUserJoined)
	assert.Equal(t, 1, env.registry.Count())

	writeFrame(t, conn, ClientFrame{Type: TypeSend, RoomID: roomID, ClientMessageID: "c-1", MessageType: "TEXT", Content: "hello"})
	chat := expectFrame(t, conn, message.EventChatMessage)
	assert.Contains(t, string(chat.Data), `"content":"hello"`)

	writeFrame(t, conn, ClientFrame{Type: TypeSend, RoomID: roomID, ClientMessageID: "c-2", MessageType: "TEXT"})
	errFrame = expectFrame(t, conn, TypeError)
	assert.Contains(t, string(errFrame.Data), "INVALID_CONTENT")
	assert.Contains(t, string(errFrame.Data), "c-2")

	env.sender.mu.Lock()
	require.Len(t, env.sender.cmds, 2)
	assert.Equal(t, userID, env.sender.cmds[0].SenderID)
	assert.Equal(t, message.TypeText, env.sender.cmds[0].Type)
	env.sender.mu.Unlock()

	writeFrame(t, conn, ClientFrame{Type: TypeSubscribe, RoomID: uuid.New()})
	errFrame = expectFrame(t, conn, TypeError)
	assert.Contains(t, string(errFrame.Data), "SESSION_BOUND")
}

func TestSubscribeRejectedRoom(t *testing.T) {
	env := newTestEnv(t)
	roomID := uuid.New()
	env.presence.closedRooms[roomID] = true

	conn := env.dial(t, uuid.New())
	writeFrame(t, conn, ClientFrame{Type: TypeSubscribe, RoomID: roomID})

	errFrame := expectFrame(t, conn, TypeError)
	assert.Contains(t, string(errFrame.Data), "ROOM_CLOSED")
	assert.Equal(t, 0, env.registry.Count())
}

func TestLastSessionMarksDisconnected(t *testing.T) {
	env := newTestEnv(t)
	roomID, userID := uuid.New(), uuid.New()

	first := env.dial(t, userID)
	writeFrame(t, first, ClientFrame{Type: TypeSubscribe, RoomID: roomID})
	expectFrame(t, first, TypeSubscribed)

	second := env.dial(t, userID)
	writeFrame(t, second, ClientFrame{Type: TypeSubscribe, RoomID: roomID})
	expectFrame(t, second, TypeSubscribed)

	require.NoError(t, first.Close(websocket.StatusNormalClosure, ""))
	expectFrame(t, second, TypeUserLeft)
	assert.Equal(t, 0, env.presence.disconnects())

	require.NoError(t, second.Close(websocket.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool {
		return env.presence.disconnects() == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return env.registry.Count() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReconnectWhileOldSessionCloses(t *testing.T) {
	env := newTestEnv(t)
	roomID, userID := uuid.New(), uuid.New()

	old := env.dial(t, userID)
	writeFrame(t, old, ClientFrame{Type: TypeSubscribe, RoomID: roomID})
	expectFrame(t, old, TypeSubscribed)

	// hold the old session inside its disconnect write
	entered := make(chan struct{})
	resume := make(chan struct{})
	env.presence.mu.Lock()
	env.presence.beforeDisconnect = func() {
		close(entered)
		<-resume
	}
	env.presence.mu.Unlock()

	require.NoError(t, old.Close(websocket.StatusNormalClosure, ""))
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("old session never reached disconnect")
	}

	fresh := env.dial(t, userID)
	writeFrame(t, fresh, ClientFrame{Type: TypeSubscribe, RoomID: roomID})

	// give the subscribe time to run ahead of the stalled disconnect
	time.Sleep(100 * time.Millisecond)
	close(resume)

	expectFrame(t, fresh, TypeSubscribed)
	assert.True(t, env.presence.isOnline(userID), "fresh session must leave the member connected")

	writeFrame(t, fresh, ClientFrame{Type: TypeSend, RoomID: roomID, ClientMessageID: "c-1", MessageType: "TEXT", Content: "back"})
	expectFrame(t, fresh, message.EventChatMessage)
}

func TestSubscribeRollsBackWhenHubStops(t *testing.T) {
	env := newTestEnv(t)
	roomID, userID := uuid.New(), uuid.New()

	hub := env.manager.GetOrCreateHub(roomID)
	require.NotNil(t, hub)
	hub.Shutdown()
	<-hub.Done()

	conn := env.dial(t, userID)
	writeFrame(t, conn, ClientFrame{Type: TypeSubscribe, RoomID: roomID})

	errFrame := expectFrame(t, conn, TypeError)
	assert.Contains(t, string(errFrame.Data), "ROOM_CLOSED")
	assert.Equal(t, 0, env.registry.Count())
	assert.Equal(t, 1, env.presence.disconnects())
	assert.False(t, env.presence.isOnline(userID))
}

func TestCloseRoomFlushesAndDisconnects(t *testing.T) {
	env := newTestEnv(t)
	roomID := uuid.New()

	conn := env.dial(t, uuid.New())
	writeFrame(t, conn, ClientFrame{Type: TypeSubscribe, RoomID: roomID})
	expectFrame(t, conn, TypeUserJoined)

	env.manager.BroadcastToRoom(roomID, "room_ended", map[string]any{"room_id": roomID})
	env.manager.CloseRoom(roomID)

	expectFrame(t, conn, "room_ended")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))

	assert.Equal(t, 0, env.registry.Count())
	assert.Nil(t, env.manager.GetOrCreateHub(roomID))

	// sessions removed with the room do not flip presence
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, env.presence.disconnects())
}
