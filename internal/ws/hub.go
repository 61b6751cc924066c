// Package ws broadcasts activation lifecycle events to connected dashboard
// clients over WebSocket.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Envelope is the wire format for every broadcast event.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub maintains the set of active clients and fans events out to them.
// Publish never blocks the caller: a client that cannot keep up is dropped.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}

	mu      sync.Mutex
	running bool

	logger *slog.Logger
}

// NewHub creates a hub; call Start before publishing.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "ws_hub")),
	}
}

// Start launches the hub loop. Safe to call once.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop shuts the hub down and closes every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.quit)
}

// Publish broadcasts an event to all connected clients. Implements the
// activation state machine's publisher contract; delivery is best-effort.
func (h *Hub) Publish(eventType string, payload interface{}) {
	msg, err := json.Marshal(Envelope{
		Type:      eventType,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("event encode failed",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("event dropped, broadcast buffer full",
			slog.String("event_type", eventType))
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.logger.Info("hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("client connected",
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.logger.Info("client disconnected",
					slog.String("remote_addr", client.remoteAddr),
					slog.Int("total_clients", len(h.clients)))
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow consumer, drop it.
					delete(h.clients, client)
					client.close()
				}
			}
		}
	}
}
