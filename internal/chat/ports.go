package chat

import (
	"context"

	"github.com/linkup-chat/linkup/pkg/protocol"
)

// OutgoingMessage is the input to the message-submission collaborator.
type OutgoingMessage struct {
	ConversationID   string
	SenderID         string
	SenderName       string
	Body             string
	Kind             protocol.MessageKind
	AttachmentRef    string
	CorrelationToken string
}

// Submitter is the request/response message-submission collaborator.
// On success it returns the server-confirmed message with authoritative
// ID, CreatedAt and sender identity.
type Submitter interface {
	SubmitMessage(ctx context.Context, out OutgoingMessage) (protocol.Message, error)
}

// HistoryFetcher loads prior messages of a conversation, oldest first.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, conversationID string) ([]protocol.Message, error)
}

// Notifier receives messages for conversations that are not currently
// active, so the rest of the application can indicate unread activity.
// Fire-and-forget; the core neither persists nor counts them.
type Notifier interface {
	Notify(conversationID string, msg protocol.Message)
}

// PushLink is the outbound side of the push channel, implemented by the
// connection manager. Join, Leave and Announce fail fast with
// ErrNotConnected until the register handshake has completed.
type PushLink interface {
	Connected() bool
	Join(ctx context.Context, conversationID string) error
	Leave(ctx context.Context, conversationID string) error
	Announce(ctx context.Context, conversationID string, msg protocol.Message) error
}
