package chat

import (
	"sync"

	"github.com/linkup-chat/linkup/pkg/protocol"
)

// conversationLog holds one conversation's ordered messages. Insertion
// order is arrival order; it is never re-sorted by timestamp.
type conversationLog struct {
	mu       sync.Mutex
	messages []Message
	byID     map[string]int // confirmed message id -> index
	byToken  map[string]int // pending correlation token -> index
}

func newConversationLog() *conversationLog {
	return &conversationLog{
		byID:    make(map[string]int),
		byToken: make(map[string]int),
	}
}

// Store is the client-side message store. Writes to one conversation are
// serialized; different conversations are independent of each other.
type Store struct {
	mu    sync.RWMutex
	convs map[string]*conversationLog
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{convs: make(map[string]*conversationLog)}
}

func (s *Store) log(conversationID string) *conversationLog {
	s.mu.RLock()
	l, ok := s.convs[conversationID]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.convs[conversationID]; ok {
		return l
	}
	l = newConversationLog()
	s.convs[conversationID] = l
	return l
}

// AppendPending inserts an optimistic pending message. The message must
// carry a correlation token; its wire ID is still empty.
func (s *Store) AppendPending(conversationID string, msg Message) {
	l := s.log(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()

	msg.Delivery = DeliveryPending
	l.byToken[msg.CorrelationToken] = len(l.messages)
	l.messages = append(l.messages, msg)
}

// Append inserts a confirmed message unless one with the same ID already
// exists. Reports whether the message was inserted.
func (s *Store) Append(conversationID string, msg protocol.Message) bool {
	l := s.log(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.byID[msg.ID]; dup {
		return false
	}
	l.byID[msg.ID] = len(l.messages)
	l.messages = append(l.messages, Message{Message: msg, Delivery: DeliveryConfirmed})
	return true
}

// Confirm replaces the pending entry matched by token with the
// server-confirmed message, in place. Reports whether a matching
// pending entry existed.
func (s *Store) Confirm(conversationID, token string, confirmed protocol.Message) bool {
	l := s.log(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.byToken[token]
	if !ok {
		return false
	}
	delete(l.byToken, token)
	l.messages[i] = Message{Message: confirmed, Delivery: DeliveryConfirmed}
	l.byID[confirmed.ID] = i
	return true
}

// Fail marks the pending entry matched by token as failed. The entry is
// kept, and its token stays registered so a retry reconciles in place.
func (s *Store) Fail(conversationID, token string) bool {
	l := s.log(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.byToken[token]
	if !ok {
		return false
	}
	l.messages[i].Delivery = DeliveryFailed
	return true
}

// Retrying flips a failed entry back to pending before a resubmission.
func (s *Store) Retrying(conversationID, token string) bool {
	l := s.log(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.byToken[token]
	if !ok {
		return false
	}
	l.messages[i].Delivery = DeliveryPending
	return true
}

// Load replaces the conversation's contents with fetched history,
// oldest first. Duplicate IDs within the batch are dropped.
func (s *Store) Load(conversationID string, history []protocol.Message) {
	l := s.log(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = nil
	l.byID = make(map[string]int)
	l.byToken = make(map[string]int)
	for _, m := range history {
		if _, dup := l.byID[m.ID]; dup {
			continue
		}
		l.byID[m.ID] = len(l.messages)
		l.messages = append(l.messages, Message{Message: m, Delivery: DeliveryConfirmed})
	}
}

// Reset discards the conversation's messages. Called when a conversation
// stops being active; reselecting it reloads fresh history.
func (s *Store) Reset(conversationID string) {
	l := s.log(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = nil
	l.byID = make(map[string]int)
	l.byToken = make(map[string]int)
}

// Messages returns a snapshot of the conversation's messages in arrival
// order.
func (s *Store) Messages(conversationID string) []Message {
	l := s.log(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages held for the conversation.
func (s *Store) Len(conversationID string) int {
	l := s.log(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Contains reports whether a confirmed message with the given ID exists.
func (s *Store) Contains(conversationID, messageID string) bool {
	l := s.log(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.byID[messageID]
	return ok
}
