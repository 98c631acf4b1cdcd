package notify

import (
	"context"
	"sync"

	"github.com/eagleeye/backend/internal/metrics"
)

// Hub maintains the set of active clients and fans events out to them.
// Events carrying a user ID go only to that user's connections; events with
// an empty user ID go to every connection.
type Hub struct {
	// Registered clients by user ID. Anonymous connections live under "".
	clients map[string]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Broadcast channel for lifecycle events
	broadcast chan *Event

	done chan struct{}
	once sync.Once

	mu sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Event),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns when Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			metrics.Default().SetWSConnections(h.totalLocked())
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.userID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.userID)
					}
				}
			}
			metrics.Default().SetWSConnections(h.totalLocked())
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.mu.Lock()
			if ev.UserID == "" {
				for _, clients := range h.clients {
					h.deliverLocked(clients, ev)
				}
			} else if clients, ok := h.clients[ev.UserID]; ok {
				h.deliverLocked(clients, ev)
			}
			metrics.Default().SetWSConnections(h.totalLocked())
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for _, clients := range h.clients {
				for client := range clients {
					close(client.send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			metrics.Default().SetWSConnections(0)
			h.mu.Unlock()
			return
		}
	}
}

// totalLocked counts connected clients. Callers must hold mu.
func (h *Hub) totalLocked() int64 {
	count := int64(0)
	for _, clients := range h.clients {
		count += int64(len(clients))
	}
	return count
}

func (h *Hub) deliverLocked(clients map[*Client]bool, ev *Event) {
	for client := range clients {
		select {
		case client.send <- ev:
		default:
			// Client's buffer is full, close the connection
			close(client.send)
			delete(clients, client)
		}
	}
}

// Stop shuts down the hub loop and disconnects all clients.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Publish implements Notifier. Events published after Stop are dropped.
func (h *Hub) Publish(ctx context.Context, ev *Event) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	case <-ctx.Done():
	}
}

// ClientCount returns the number of connected clients for a user.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.clients[userID]; ok {
		return len(clients)
	}
	return 0
}

// TotalClients returns the total number of connected clients.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}
