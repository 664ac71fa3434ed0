// Package events pushes synchronization outcomes to connected WebSocket
// clients. Every message is scoped to one owner and is delivered only to
// that owner's connections.
package events

import (
	"context"
	"log/slog"
	"sync"
)

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a Hub. A nil logger uses slog.Default().
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "events"),
	}
}

// Run serves register, unregister and broadcast requests until ctx is
// done. Remaining clients are closed on return.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", "owner", c.ownerID, "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "owner", c.ownerID, "clients", n)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		h.logger.Error("encoding event", "type", msg.Type, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.ownerID != msg.OwnerID {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Slow consumer; drop it.
			close(c.send)
			delete(h.clients, c)
		}
	}
}

// Publish queues a message for the owner's clients. It never blocks; when
// the queue is full the message is dropped.
func (h *Hub) Publish(ownerID string, typ Type, payload any) {
	select {
	case h.broadcast <- NewMessage(ownerID, typ, payload):
	default:
		h.logger.Warn("event queue full, dropping", "type", typ, "owner", ownerID)
	}
}

// Register adds a client to the hub. After the hub stopped the client is
// closed immediately.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one WebSocket connection of an owner.
type Client struct {
	ownerID string
	send    chan []byte
}

// NewClient creates a client for ownerID.
func NewClient(ownerID string) *Client {
	return &Client{ownerID: ownerID, send: make(chan []byte, 64)}
}

// Send returns the client's outbound queue. It is closed when the hub drops
// the client.
func (c *Client) Send() <-chan []byte {
	return c.send
}
