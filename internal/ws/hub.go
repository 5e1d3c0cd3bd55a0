package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"couplespace/internal/observability"
)

// ChangeEvent notifies connected clients that a collection mutated.
// Clients treat it as a hint to refresh; polling remains the source of
// truth.
type ChangeEvent struct {
	Collection string `json:"collection"`
	Event      string `json:"event"`
	DocumentID string `json:"id"`
}

// Hub maintains the active change-feed connections.
type Hub struct {
	clients map[*websocket.Conn]ConnInfo
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]ConnInfo)}
}

// AddClient registers a change-feed connection.
func (h *Hub) AddClient(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	h.clients[conn] = info
	h.mu.Unlock()
	observability.IncWSConnection(1)
}

// RemoveClient removes a change-feed connection.
func (h *Hub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	_, known := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if known {
		observability.IncWSConnection(-1)
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastChange sends a mutation hint to every connected client.
func (h *Hub) BroadcastChange(collection, event, documentID string) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(ChangeEvent{Collection: collection, Event: event, DocumentID: documentID})
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveClient(conn)
		}
	}
}
