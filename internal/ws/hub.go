// Package ws implements the WebSocket Command Handler (C8) and the
// Broadcast Dispatcher (C9) on top of gorilla/websocket. The connection
// hub is a mutex-guarded map rather than a dedicated actor goroutine,
// since every mutation already runs on the single command-processing
// goroutine that triggers the broadcast.
package ws

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub owns the connection table and fans events out to every connected
// client.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*websocket.Conn)}
}

// Register adds a connection to the table and returns its generated ID.
func (h *Hub) Register(conn *websocket.Conn) string {
	id := uuid.New().String()
	h.mu.Lock()
	h.conns[id] = conn
	h.mu.Unlock()
	return id
}

// Unregister removes a connection from the table. Safe to call more
// than once for the same ID.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
}

// Send writes an event to a single connection, used for the immediate
// on-connect head + chats_update pair and for replies to the originating
// connection only (e.g. the error event for an invalid command).
func (h *Hub) Send(connID string, event Event) error {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return conn.WriteJSON(event)
}

// Broadcast fans an event out to every connected client, logging (not
// aborting on) per-connection write failures so one disconnected client
// doesn't stop delivery to the rest. Writes happen one connection at a
// time, so a slow write delays the ones after it.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	snapshot := make(map[string]*websocket.Conn, len(h.conns))
	for id, conn := range h.conns {
		snapshot[id] = conn
	}
	h.mu.RUnlock()

	for id, conn := range snapshot {
		if err := conn.WriteJSON(event); err != nil {
			slog.Warn("broadcast write failed", "connection_id", id, "error", err)
		}
	}
}
