package handler

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSEvent is the envelope for all WebSocket messages. Type names match the
// bus topics for wire compatibility with dashboard clients.
type WSEvent struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Topics []string `json:"topics"`
}

// WSConn wraps a WebSocket connection with its topic filter and send queue.
type WSConn struct {
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]bool // nil = all topics; guarded by hub mu
}

// Hub manages dashboard WebSocket connections and their topic filters.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{connections: make(map[*WSConn]bool)}
}

// Register adds a connection to the hub. New connections receive all
// topics until they narrow their filter.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection from the hub.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connections[c] {
		delete(h.connections, c)
		close(c.send)
	}
}

// Subscribe narrows a connection's filter to the given topics.
func (h *Hub) Subscribe(c *WSConn, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.topics == nil {
		c.topics = make(map[string]bool)
	}
	for _, t := range topics {
		c.topics[t] = true
	}
}

// Unsubscribe removes topics from a connection's filter. Removing the last
// topic leaves an empty filter, which matches nothing.
func (h *Hub) Unsubscribe(c *WSConn, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.topics == nil {
		return
	}
	for _, t := range topics {
		delete(c.topics, t)
	}
}

// Broadcast sends an event to every connection whose filter matches. Slow
// consumers drop messages rather than blocking the hub.
func (h *Hub) Broadcast(event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.connections {
		if c.topics != nil && !c.topics[event.Type] {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Warn().Str("type", event.Type).Msg("Dropping WebSocket message, buffer full")
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
