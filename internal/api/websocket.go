package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/EvanderIV/theology/internal/logging"
	"github.com/EvanderIV/theology/internal/lookup"
	"github.com/EvanderIV/theology/internal/server"
	"github.com/EvanderIV/theology/internal/translations"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64

	// Per-connection lookup budget: messagesPerSecond sustained, twice that in a burst.
	messagesPerSecond = 10
	lookupTimeout     = 10 * time.Second
)

// Message types sent to WebSocket clients.
const (
	MessageResult             = "result"
	MessageError              = "error"
	MessageTranslationChanged = "translation_changed"
)

// WSRequest is a lookup sent by a client. ID is echoed in the reply.
type WSRequest struct {
	ID        string `json:"id,omitempty"`
	Reference string `json:"reference"`
	Version   string `json:"version,omitempty"`
	Context   bool   `json:"context,omitempty"`
}

// WSMessage is anything the server sends over the socket.
type WSMessage struct {
	Type      string               `json:"type"`
	ID        string               `json:"id,omitempty"`
	Result    any                  `json:"result,omitempty"`
	ErrorKind string               `json:"error_kind,omitempty"`
	Message   string               `json:"message,omitempty"`
	Change    *translations.Change `json:"change,omitempty"`
	Timestamp string               `json:"timestamp"`
}

// Client is one WebSocket connection.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *tokenBucket
	ctx     context.Context

	done      chan struct{}
	closeOnce sync.Once
}

// close tells writePump to finish. send itself is never closed, so replies
// racing a disconnect are simply dropped.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub tracks connected clients and fans out broadcasts.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a hub; start it with Run.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run handles registration and broadcasting until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			logging.WebSocketEvent("client_connected", n, "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			logging.WebSocketEvent("client_disconnected", n, "client_id", client.id)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client.
					client.close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every client. It never blocks.
func (h *Hub) Broadcast(msg WSMessage) {
	data, err := encodeMessage(msg)
	if err != nil {
		logging.Error("failed to marshal websocket message", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logging.Warn("broadcast channel full, dropping message", "type", msg.Type)
	}
}

// TranslationChanged tells clients to drop cached text for a translation.
func (h *Hub) TranslationChanged(c translations.Change) {
	h.Broadcast(WSMessage{Type: MessageTranslationChanged, Change: &c})
}

func encodeMessage(msg WSMessage) ([]byte, error) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(msg)
}

// join registers c unless the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// readPump serves lookups until the connection fails. All writes go
// through send so that writePump stays the only writer.
func (c *Client) readPump(svc *lookup.Service) {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("websocket unexpected close", "client_id", c.id, "error", err)
			}
			return
		}

		var req WSRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(WSMessage{Type: MessageError, ErrorKind: "BadRequest", Message: "Invalid JSON message"})
			continue
		}
		if !c.limiter.allow() {
			logging.SecurityEvent("websocket_rate_limited", "api", "client_id", c.id)
			c.reply(WSMessage{Type: MessageError, ID: req.ID, ErrorKind: "RateLimitExceeded", Message: "Too many messages"})
			continue
		}
		c.reply(c.lookup(svc, req))
	}
}

func (c *Client) lookup(svc *lookup.Service, req WSRequest) WSMessage {
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return WSMessage{Type: MessageError, ID: req.ID, ErrorKind: "InvalidFormat", Message: noReference}
	}
	version := strings.TrimSpace(req.Version)
	if err := checkLookupInput(reference, version); err != nil {
		_, body := lookupStatus(err)
		return WSMessage{Type: MessageError, ID: req.ID, ErrorKind: body.ErrorKind, Message: body.Message}
	}

	ctx, cancel := context.WithTimeout(c.ctx, lookupTimeout)
	defer cancel()

	var (
		result any
		err    error
	)
	if req.Context {
		result, err = svc.Context(ctx, reference, version)
	} else {
		result, err = svc.Verse(ctx, reference, version)
	}
	if err != nil {
		_, body := lookupStatus(err)
		return WSMessage{Type: MessageError, ID: req.ID, ErrorKind: body.ErrorKind, Message: body.Message}
	}
	return WSMessage{Type: MessageResult, ID: req.ID, Result: result}
}

func (c *Client) reply(msg WSMessage) {
	data, err := encodeMessage(msg)
	if err != nil {
		logging.Error("failed to marshal websocket reply", "error", err)
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		logging.Warn("websocket send buffer full, dropping reply", "client_id", c.id)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
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

// newUpgrader restricts browser origins to allowed. An empty list, or a
// request without an Origin header, is accepted.
func newUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if len(allowed) == 0 || origin == "" {
				return true
			}
			if server.OriginAllowed(origin, allowed) {
				return true
			}
			logging.SecurityEvent("websocket_origin_rejected", "api", "origin", origin)
			return false
		},
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logging.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:      uuid.NewString(),
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: newTokenBucket(2*messagesPerSecond, messagesPerSecond),
		ctx:     context.WithoutCancel(r.Context()),
		done:    make(chan struct{}),
	}
	if !s.hub.join(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(s.svc)
}
