package websocket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/roadtiles/game/engine"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(log.New(io.Discard))
}

func runHub(t *testing.T, hub *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
}

func testState(t *testing.T) *engine.GameState {
	t.Helper()
	p, ok := engine.BuiltinPreset("snake")
	require.True(t, ok)
	state, err := engine.InitGameStateFromPreset(p)
	require.NoError(t, err)
	return state
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels are not initialized")
	}
	if hub.logger == nil {
		t.Error("Hub should fall back to the default logger")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := newTestHub(t)
	client := &Client{hub: hub, sessionID: "Test-Session", send: make(chan []byte, 1)}

	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered under the lowercased session ID")
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := newTestHub(t)
	client := &Client{hub: hub, sessionID: "test-session", send: make(chan []byte, 1)}

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("Send channel should be closed")
	}

	// a second unregister is a no-op
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := newTestHub(t)
	client1 := &Client{hub: hub, sessionID: "multi", send: make(chan []byte, 1)}
	client2 := &Client{hub: hub, sessionID: "multi", send: make(chan []byte, 1)}

	hub.registerClient(client1)
	hub.registerClient(client2)
	assert.Len(t, hub.sessions["multi"], 2)

	hub.unregisterClient(client1)
	assert.Len(t, hub.sessions["multi"], 1)
	assert.True(t, hub.sessions["multi"][client2])
}

func TestHubBroadcastMessage(t *testing.T) {
	hub := newTestHub(t)
	watcher := &Client{hub: hub, sessionID: "abcd", send: make(chan []byte, 1)}
	other := &Client{hub: hub, sessionID: "efgh", send: make(chan []byte, 1)}
	hub.registerClient(watcher)
	hub.registerClient(other)

	hub.broadcastMessage(&Message{SessionID: "ABCD", GameState: testState(t), Event: "state_update"})

	select {
	case data := <-watcher.send:
		var message Message
		require.NoError(t, json.Unmarshal(data, &message))
		assert.Equal(t, "state_update", message.Event)
		assert.Equal(t, engine.StatusRunning, message.GameState.Status)
		assert.Equal(t, engine.Top, message.GameState.Car.Entering)
	default:
		t.Fatal("watcher received nothing")
	}
	assert.Empty(t, other.send, "other sessions must not receive the update")
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := newTestHub(t)
	slow := &Client{hub: hub, sessionID: "slow", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{SessionID: "slow", Event: "tick"})

	if _, exists := hub.sessions["slow"]; exists {
		t.Error("A client that cannot keep up should be unregistered")
	}
}

func TestHubBroadcastEventQueues(t *testing.T) {
	hub := newTestHub(t)

	hub.BroadcastEvent("event-test", "custom-event", "test-data")

	select {
	case message := <-hub.broadcast:
		assert.Equal(t, "event-test", message.SessionID)
		assert.Equal(t, "custom-event", message.Event)
		assert.Equal(t, "test-data", message.Data)
	default:
		t.Fatal("No broadcast message queued")
	}
}

func dialHub(t *testing.T, hub *Hub, sessionID string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketLifecycle(t *testing.T) {
	hub := newTestHub(t)
	runHub(t, hub)

	conn := dialHub(t, hub, "ws01")
	assert.Eventually(t, func() bool { return hub.ClientCount("ws01") == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount("ws01") == 0 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketMessageReceive(t *testing.T) {
	hub := newTestHub(t)
	runHub(t, hub)

	conn := dialHub(t, hub, "msg1")
	require.Eventually(t, func() bool { return hub.ClientCount("msg1") == 1 }, time.Second, 10*time.Millisecond)

	state := testState(t)
	hub.BroadcastToSession("msg1", state)
	hub.BroadcastEvent("msg1", "victory", map[string]int{"tiles": 15})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var message Message
	require.NoError(t, json.Unmarshal(data, &message))
	assert.Equal(t, "msg1", message.SessionID)
	assert.Equal(t, state.Car, message.GameState.Car)
	assert.Equal(t, state.Board.Grid(), message.GameState.Board.Grid())

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &message))
	assert.Equal(t, "victory", message.Event)
}

func TestHubStopsWithContext(t *testing.T) {
	hub := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Equal(t, 0, hub.ClientCount("any"))
}
