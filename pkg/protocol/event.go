// Package protocol defines the wire events exchanged over the push channel.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of push-channel event.
type EventType string

const (
	// EventRegister is the one-time session handshake sent after dialing.
	EventRegister EventType = "register"
	// EventRegistered acknowledges a register handshake.
	EventRegistered EventType = "registered"
	// EventJoin subscribes the session to a conversation.
	EventJoin EventType = "join"
	// EventLeave unsubscribes the session from a conversation.
	EventLeave EventType = "leave"
	// EventMessage delivers a message to a subscriber.
	EventMessage EventType = "message"
	// EventAnnounce publishes a freshly confirmed message so the server
	// can rebroadcast it to the other subscribers as EventMessage.
	EventAnnounce EventType = "announce"
)

// MessageKind is the payload kind of a chat message.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
)

// Identity carries the session identity for the register handshake.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

// Message is the wire representation of a chat message. The ID and
// CreatedAt fields are server-assigned; CorrelationToken links a
// delivery back to the sender's optimistic pending entry.
type Message struct {
	ID               string      `json:"messageId"`
	ConversationID   string      `json:"conversationId"`
	SenderID         string      `json:"senderId"`
	SenderName       string      `json:"senderName"`
	Body             string      `json:"body"`
	Kind             MessageKind `json:"kind"`
	AttachmentRef    string      `json:"attachmentRef,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	CorrelationToken string      `json:"correlationToken,omitempty"`
}

// Event is the envelope for every frame on the push channel.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversationId,omitempty"`
	Identity       *Identity `json:"identity,omitempty"`
	Message        *Message  `json:"message,omitempty"`
}

// Encode encodes the event into bytes.
func (e *Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return data, nil
}

// Decode decodes bytes into the event.
func (e *Event) Decode(data []byte) error {
	if err := json.Unmarshal(data, e); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	return nil
}

// Validate checks that the event carries the payload its type requires.
func (e *Event) Validate() error {
	switch e.Type {
	case EventRegister:
		if e.Identity == nil || e.Identity.UserID == "" {
			return fmt.Errorf("register event requires an identity")
		}
	case EventJoin, EventLeave:
		if e.ConversationID == "" {
			return fmt.Errorf("%s event requires a conversation id", e.Type)
		}
	case EventMessage, EventAnnounce:
		if e.Message == nil {
			return fmt.Errorf("%s event requires a message", e.Type)
		}
		if e.ConversationID == "" {
			return fmt.Errorf("%s event requires a conversation id", e.Type)
		}
	case EventRegistered:
		// ack carries no payload
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}
