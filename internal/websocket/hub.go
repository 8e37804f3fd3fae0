package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event is pushed to every dashboard subscribed to the tenant
type Event struct {
	Type      string      `json:"type"`
	TenantID  string      `json:"tenantId"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts tenant events
type Hub struct {
	// Registered clients map: client ID -> Client
	clients map[string]*Client

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	done chan struct{}

	// Mutex for thread-safe access to clients map and subscriptions
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string]*Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok && old != client {
				close(old.send)
			}
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Printf("🔌 Dashboard connected: %s", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.ID]; ok && current == client {
				delete(h.clients, client.ID)
				close(client.send)
				log.Printf("📴 Dashboard disconnected: %s", client.ID)
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop disconnects every client and ends Run
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Subscribe scopes a client to one tenant's events
func (h *Hub) Subscribe(c *Client, tenantID string) {
	h.mu.Lock()
	c.tenantID = tenantID
	h.mu.Unlock()
}

// Broadcast sends the event to every client subscribed to the tenant and
// returns how many clients received it
func (h *Hub) Broadcast(tenantID string, event Event) int {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.TenantID = tenantID

	msg, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event %s: %v", event.Type, err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.clients {
		if client.tenantID != tenantID {
			continue
		}
		select {
		case client.send <- msg:
			sent++
		default:
			// Buffer full or client dead
		}
	}
	return sent
}

// Publish broadcasts a domain event; it satisfies the services' EventPublisher
func (h *Hub) Publish(tenantID, eventType string, payload interface{}) {
	h.Broadcast(tenantID, Event{Type: eventType, Payload: payload})
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
