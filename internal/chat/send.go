package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkup-chat/linkup/pkg/protocol"
)

// Sender turns a composition action into a durable submission with an
// optimistic local insert. Messages appear in the store in submission
// order regardless of network completion order, because the pending
// entry is inserted at call time.
type Sender struct {
	session   Session
	store     *Store
	submitter Submitter
	link      PushLink
	timeout   time.Duration
	log       *zap.Logger

	mu     sync.Mutex
	outbox map[string]OutgoingMessage // correlation token -> request, kept for retry
}

// NewSender creates a Sender. timeout bounds each submission request.
func NewSender(session Session, store *Store, submitter Submitter, link PushLink, timeout time.Duration, log *zap.Logger) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sender{
		session:   session,
		store:     store,
		submitter: submitter,
		link:      link,
		timeout:   timeout,
		log:       log,
		outbox:    make(map[string]OutgoingMessage),
	}
}

// Submit sends a message to a conversation. It returns the correlation
// token of the pending entry; on failure the entry is kept in the store
// with a failed delivery state and Retry can resubmit it under the same
// token, so a retry never produces a duplicate on the server.
func (s *Sender) Submit(ctx context.Context, conversationID, body string, kind protocol.MessageKind, attachmentRef string) (string, error) {
	if kind == protocol.KindText && strings.TrimSpace(body) == "" {
		return "", ErrEmptyMessage
	}

	token := uuid.NewString()
	pending := Message{
		Message: protocol.Message{
			ConversationID:   conversationID,
			SenderID:         s.session.UserID,
			SenderName:       s.session.DisplayName,
			Body:             body,
			Kind:             kind,
			AttachmentRef:    attachmentRef,
			CreatedAt:        time.Now(),
			CorrelationToken: token,
		},
	}
	s.store.AppendPending(conversationID, pending)

	out := OutgoingMessage{
		ConversationID:   conversationID,
		SenderID:         s.session.UserID,
		SenderName:       s.session.DisplayName,
		Body:             body,
		Kind:             kind,
		AttachmentRef:    attachmentRef,
		CorrelationToken: token,
	}
	s.mu.Lock()
	s.outbox[token] = out
	s.mu.Unlock()

	if !s.link.Connected() {
		s.store.Fail(conversationID, token)
		return token, fmt.Errorf("submit to %s: %w", conversationID, ErrNotConnected)
	}

	return token, s.deliver(ctx, token, out)
}

// Retry resubmits a previously failed message, reusing its correlation
// token.
func (s *Sender) Retry(ctx context.Context, token string) error {
	s.mu.Lock()
	out, ok := s.outbox[token]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending submission for token %q", token)
	}

	if !s.link.Connected() {
		return fmt.Errorf("retry %q: %w", token, ErrNotConnected)
	}

	s.store.Retrying(out.ConversationID, token)
	return s.deliver(ctx, token, out)
}

func (s *Sender) deliver(ctx context.Context, token string, out OutgoingMessage) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	confirmed, err := s.submitter.SubmitMessage(ctx, out)
	if err != nil {
		s.store.Fail(out.ConversationID, token)
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	confirmed.CorrelationToken = token
	s.store.Confirm(out.ConversationID, token, confirmed)
	s.mu.Lock()
	delete(s.outbox, token)
	s.mu.Unlock()

	// The submission response reaches only this sender; announcing over
	// the push channel is how the other subscribers learn of the message.
	if err := s.link.Announce(ctx, out.ConversationID, confirmed); err != nil {
		s.log.Warn("failed to announce message",
			zap.String("conversation", out.ConversationID),
			zap.String("message", confirmed.ID),
			zap.Error(err))
	}
	return nil
}
