package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/roadtiles/game/engine"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message represents a WebSocket message
type Message struct {
	SessionID string            `json:"session_id"`
	GameState *engine.GameState `json:"game_state,omitempty"`
	Event     string            `json:"event,omitempty"`
	Data      interface{}       `json:"data,omitempty"`
}

// Client represents a WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

type countRequest struct {
	sessionID string
	reply     chan int
}

// Hub maintains the set of active clients and broadcasts messages. All
// access to the client map happens on the Run goroutine.
type Hub struct {
	// Registered clients by lowercased session ID
	sessions map[string]map[*Client]bool

	// Outbound messages for one session
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	counts chan countRequest
	done   chan struct{}
	logger *log.Logger
}

// NewHub creates a new WebSocket hub. A nil logger uses the default one.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, engine.WebSocketBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		counts:     make(chan countRequest),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's event loop and returns when ctx is done, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.sessions {
				for client := range clients {
					h.unregisterClient(client)
				}
			}
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case req := <-h.counts:
			req.reply <- len(h.sessions[sessionKey(req.sessionID)])
		}
	}
}

// ServeWS upgrades the request and attaches the connection to sessionID
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "session", sessionID, "error", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, engine.WebSocketBufferSize),
		sessionID: sessionID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// BroadcastToSession sends a game state update to all clients in a session
func (h *Hub) BroadcastToSession(sessionID string, state *engine.GameState) {
	h.enqueue(&Message{
		SessionID: sessionID,
		GameState: state,
		Event:     "state_update",
	})
}

// BroadcastEvent sends a custom event to all clients in a session
func (h *Hub) BroadcastEvent(sessionID string, event string, data interface{}) {
	h.enqueue(&Message{
		SessionID: sessionID,
		Event:     event,
		Data:      data,
	})
}

// ClientCount returns the number of clients watching a session
func (h *Hub) ClientCount(sessionID string) int {
	req := countRequest{sessionID: sessionID, reply: make(chan int, 1)}
	select {
	case h.counts <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping message", "session", message.SessionID, "event", message.Event)
	}
}

func sessionKey(id string) string {
	return strings.ToLower(id)
}

// registerClient adds a client to a session
func (h *Hub) registerClient(client *Client) {
	key := sessionKey(client.sessionID)
	if h.sessions[key] == nil {
		h.sessions[key] = make(map[*Client]bool)
	}
	h.sessions[key][client] = true

	h.logger.Debug("websocket client registered", "session", client.sessionID, "clients", len(h.sessions[key]))
}

// unregisterClient removes a client from a session
func (h *Hub) unregisterClient(client *Client) {
	key := sessionKey(client.sessionID)
	clients, ok := h.sessions[key]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.send)

	// Clean up empty sessions
	if len(clients) == 0 {
		delete(h.sessions, key)
	}

	h.logger.Debug("websocket client unregistered", "session", client.sessionID, "clients", len(clients))
}

// broadcastMessage sends a message to all clients in a session
func (h *Hub) broadcastMessage(message *Message) {
	clients, ok := h.sessions[sessionKey(message.SessionID)]
	if !ok {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal websocket message", "session", message.SessionID, "error", err)
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Client's send channel is full, drop it
			h.unregisterClient(client)
		}
	}
}

// readPump drains the connection so pongs and close frames are processed
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", "session", c.sessionID, "error", err)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per message keeps every frame valid JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
