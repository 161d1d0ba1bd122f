// Package realtime relays server-side events (new messages, acks,
// attendance changes) to connected console clients over websockets, one
// room per credential.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// Event is the wire envelope pushed to clients.
type Event struct {
	Event     string `json:"event"`
	Payload   any    `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// Hub maintains the active websocket connections grouped by credential.
type Hub struct {
	rooms  map[string]map[*websocket.Conn]struct{}
	mu     sync.RWMutex
	logger *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*websocket.Conn]struct{}),
		logger: logger,
	}
}

// Handle upgrades the request and keeps the connection registered until
// the client disconnects. The connection is read-drained; clients only
// receive.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request, credentialID string) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to accept websocket connection")
		return
	}

	h.add(credentialID, conn)
	defer h.remove(credentialID, conn)

	// CloseRead returns a context that ends when the peer closes or a
	// read error occurs; writes happen from Broadcast.
	ctx := conn.CloseRead(r.Context())
	<-ctx.Done()
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) add(credentialID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[credentialID]; !ok {
		h.rooms[credentialID] = make(map[*websocket.Conn]struct{})
	}
	h.rooms[credentialID][conn] = struct{}{}
}

func (h *Hub) remove(credentialID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[credentialID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, credentialID)
		}
	}
}

// Broadcast pushes one event to every client of the credential's room.
// Connections that fail to write are dropped.
func (h *Hub) Broadcast(credentialID, event string, payload any) {
	data, err := json.Marshal(Event{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal realtime event")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[credentialID]))
	for conn := range h.rooms[credentialID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.logger.WithError(err).Debug("Dropping unresponsive websocket client")
			conn.Close(websocket.StatusAbnormalClosure, "write failed")
			h.remove(credentialID, conn)
		}
	}
}

// ClientCount reports the number of connected clients for a credential.
func (h *Hub) ClientCount(credentialID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[credentialID])
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for credentialID, conns := range h.rooms {
		for conn := range conns {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(h.rooms, credentialID)
	}
}
