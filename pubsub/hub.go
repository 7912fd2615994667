// Package pubsub is the per-app websocket broadcast hub httpapi's
// subscription endpoint uses to push commit changes to connected clients,
// in the register/unregister-channel idiom gorilla/websocket's own chat
// example uses.
package pubsub

import (
	"context"
	"sync"
)

// Hub fans one app's broadcast messages out to every registered Client.
// The zero value is not usable; construct with NewHub.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu      sync.Mutex
	onEmpty func()
}

// NewHub builds an unstarted Hub. Call Run to start fanning out messages.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
	}
}

// SetOnEmpty registers fn to be called (from the Hub's own goroutine)
// whenever the last client disconnects, so a caller can tear down the
// upstream subscription feeding Broadcast.
func (h *Hub) SetOnEmpty(fn func()) {
	h.mu.Lock()
	h.onEmpty = fn
	h.mu.Unlock()
}

// Broadcast enqueues data to be sent to every currently registered client.
// It never blocks: up to 16 messages queue in the broadcast buffer (also
// before Run starts or after ctx is cancelled), and a send that finds the
// buffer full is dropped.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
	}
}

// Run drives the hub's event loop until ctx is cancelled. Must be started
// in its own goroutine before any Client is registered.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*Client]struct{})
	for {
		select {
		case <-ctx.Done():
			for c := range clients {
				close(c.send)
			}
			return
		case c := <-h.register:
			clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
				if len(clients) == 0 {
					h.mu.Lock()
					fn := h.onEmpty
					h.mu.Unlock()
					if fn != nil {
						fn()
					}
				}
			}
		case msg := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- msg:
				default:
					delete(clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Register admits conn to the hub and returns the Client handle; the
// caller is responsible for starting its read/write pumps and eventually
// calling Unregister.
func (h *Hub) Register(conn wsConn) *Client {
	c := &Client{conn: conn, send: make(chan []byte, 8)}
	h.register <- c
	return c
}

// Unregister removes c from the hub, closing its send channel.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}
