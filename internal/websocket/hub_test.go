package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/internal/session"
	"github.com/rx3lixir/bookclub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(uuid.New(), logger.Discard())
	go hub.Run()
	t.Cleanup(hub.Shutdown)
	return hub
}

func testClient(buffer int) *Client {
	return NewClient(uuid.New(), uuid.New(), nil, buffer, 0, logger.Discard())
}

func nextFrame(t *testing.T, c *Client) (ServerFrame, bool) {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			return ServerFrame{}, false
		}
		var f ServerFrame
		require.NoError(t, json.Unmarshal(data, &f))
		return f, true
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return ServerFrame{}, false
	}
}

func TestHubRegisterAnnounces(t *testing.T) {
	hub := startHub(t)
	a, b := testClient(8), testClient(8)

	require.True(t, hub.Register(a))
	f, _ := nextFrame(t, a)
	assert.Equal(t, TypeSubscribed, f.Type)
	f, _ = nextFrame(t, a)
	assert.Equal(t, TypeUserJoined, f.Type)

	require.True(t, hub.Register(b))
	f, _ = nextFrame(t, a)
	assert.Equal(t, TypeUserJoined, f.Type)

	hub.Unregister(b)
	f, _ = nextFrame(t, a)
	assert.Equal(t, TypeUserLeft, f.Type)

	// b's channel is closed after its own frames
	for {
		if _, ok := nextFrame(t, b); !ok {
			break
		}
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := startHub(t)
	a := testClient(8)
	require.True(t, hub.Register(a))
	nextFrame(t, a)
	nextFrame(t, a)

	hub.Send(newFrame("round_started", map[string]int{"round_number": 2}))

	f, ok := nextFrame(t, a)
	require.True(t, ok)
	assert.Equal(t, FrameType("round_started"), f.Type)
	assert.NotZero(t, f.Timestamp)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := testClient(2)
	require.True(t, hub.Register(slow))

	// subscribed and user_joined fill the buffer
	hub.Send(newFrame("chat_message", "x"))

	assert.Eventually(t, func() bool {
		slow.mu.Lock()
		defer slow.mu.Unlock()
		return slow.closed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(0), hub.metrics.ConnectedClients.Load())
}

func TestHubShutdownFlushesQueuedFrames(t *testing.T) {
	hub := NewHub(uuid.New(), logger.Discard())
	go hub.Run()

	a := testClient(8)
	require.True(t, hub.Register(a))
	nextFrame(t, a)
	nextFrame(t, a)

	hub.Send(newFrame("room_ended", nil))
	hub.Shutdown()

	f, ok := nextFrame(t, a)
	require.True(t, ok)
	assert.Equal(t, FrameType("room_ended"), f.Type)

	_, ok = nextFrame(t, a)
	assert.False(t, ok)

	<-hub.Done()
	assert.False(t, hub.Register(testClient(1)))
	hub.Send(newFrame("late", nil))
	hub.Unregister(a)
	hub.Shutdown()
}

func TestAllowSend(t *testing.T) {
	c := NewClient(uuid.New(), uuid.New(), nil, 1, time.Second, logger.Discard())
	now := time.Now()

	assert.True(t, c.allowSend(now))
	assert.False(t, c.allowSend(now.Add(500*time.Millisecond)))
	assert.True(t, c.allowSend(now.Add(time.Second)))
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t, []string{"localhost:3000", "books.example.com"},
		originPatterns([]string{"http://localhost:3000", "https://books.example.com"}))
	assert.Equal(t, []string{"*"}, originPatterns([]string{"http://a.com", "*"}))
}

func TestManagerNoHubOutlivesClosedRoom(t *testing.T) {
	manager := NewManager(session.NewRegistry(), logger.Discard())

	for range 200 {
		roomID := uuid.New()

		var wg sync.WaitGroup
		var hub *Hub
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub = manager.GetOrCreateHub(roomID)
		}()
		go func() {
			defer wg.Done()
			manager.CloseRoom(roomID)
		}()
		wg.Wait()

		if hub != nil {
			select {
			case <-hub.Done():
			case <-time.After(2 * time.Second):
				t.Fatal("hub of a closed room is still running")
			}
		}
		assert.Nil(t, manager.GetOrCreateHub(roomID))
	}

	assert.Equal(t, 0, manager.HubCount())
}
