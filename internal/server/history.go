package server

import (
	"sync"

	"github.com/linkup-chat/linkup/pkg/protocol"
)

// HistoryStore keeps each conversation's confirmed messages in arrival
// order, oldest first. In-memory only; durability is out of scope for
// the reference server.
type HistoryStore struct {
	mu     sync.RWMutex
	byConv map[string][]protocol.Message
}

// NewHistoryStore creates an empty HistoryStore.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{byConv: make(map[string][]protocol.Message)}
}

// Append stores a confirmed message.
func (s *HistoryStore) Append(msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byConv[msg.ConversationID] = append(s.byConv[msg.ConversationID], msg)
}

// List returns the conversation's messages, oldest first.
func (s *HistoryStore) List(conversationID string) []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.byConv[conversationID]
	out := make([]protocol.Message, len(msgs))
	copy(out, msgs)
	return out
}
