// Package server implements the reference delivery server: conversation
// rooms over websocket plus the HTTP message API.
package server

import (
	"sync"

	"github.com/linkup-chat/linkup/pkg/protocol"
)

// member is one connected session on this server instance.
type member struct {
	identity protocol.Identity
	outgoing chan []byte
}

func newMember() *member {
	return &member{outgoing: make(chan []byte, 64)}
}

// trySend queues a frame without blocking. Reports whether the frame
// was accepted; a member whose write pump stopped draining drops it.
func (m *member) trySend(data []byte) bool {
	select {
	case m.outgoing <- data:
		return true
	default:
		return false
	}
}

// Hub tracks which members are subscribed to which conversation and
// fans events out to them. Subscriptions live only as long as the
// connection; a reconnecting client must re-join.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*member]bool
	convs map[*member]map[string]bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*member]bool),
		convs: make(map[*member]map[string]bool),
	}
}

// Join subscribes a member to a conversation.
func (h *Hub) Join(m *member, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[*member]bool)
	}
	h.rooms[conversationID][m] = true

	if h.convs[m] == nil {
		h.convs[m] = make(map[string]bool)
	}
	h.convs[m][conversationID] = true
}

// Leave unsubscribes a member from a conversation.
func (h *Hub) Leave(m *member, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(m, conversationID)
}

// Remove unsubscribes a member from every conversation. Called on
// disconnect.
func (h *Hub) Remove(m *member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conversationID := range h.convs[m] {
		h.drop(m, conversationID)
	}
	delete(h.convs, m)
}

func (h *Hub) drop(m *member, conversationID string) {
	if room := h.rooms[conversationID]; room != nil {
		delete(room, m)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	if convs := h.convs[m]; convs != nil {
		delete(convs, conversationID)
	}
}

// Broadcast sends a frame to every subscriber of the conversation,
// skipping except if non-nil. Slow members drop frames rather than
// block the hub. Returns the number of members reached.
func (h *Hub) Broadcast(conversationID string, data []byte, except *member) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for m := range h.rooms[conversationID] {
		if m == except {
			continue
		}
		if m.trySend(data) {
			n++
		}
	}
	return n
}

// RoomSize returns the number of subscribers of a conversation.
func (h *Hub) RoomSize(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}
