// Package chat provides the conversation synchronization core shared by
// the client and the reference server.
package chat

import "github.com/linkup-chat/linkup/pkg/protocol"

// DeliveryState tracks a message through the optimistic send cycle.
type DeliveryState int

const (
	DeliveryPending DeliveryState = iota
	DeliveryConfirmed
	DeliveryFailed
)

// String returns the string representation of DeliveryState.
func (d DeliveryState) String() string {
	switch d {
	case DeliveryPending:
		return "PENDING"
	case DeliveryConfirmed:
		return "CONFIRMED"
	case DeliveryFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Session is the authenticated identity this core acts for. It is owned
// by the authentication collaborator and read-only here.
type Session struct {
	UserID      string
	DisplayName string
	AvatarRef   string
}

// Conversation is the listing collaborator's summary of a conversation.
// The core only ever treats ID as an opaque key.
type Conversation struct {
	ID                  string
	ParticipantsSummary string
	LastMessageRef      string
	Online              bool
}

// Message is a wire message plus its client-local delivery state.
// Pending messages have an empty wire ID and carry a correlation token
// until the server confirmation arrives.
type Message struct {
	protocol.Message
	Delivery DeliveryState
}
