package chat

import (
	"go.uber.org/zap"

	"github.com/linkup-chat/linkup/pkg/protocol"
)

// ActiveSource reports the currently active conversation. Satisfied by
// *Tracker; injected rather than captured so the router never compares
// against stale shared state.
type ActiveSource interface {
	Active() string
}

// Router classifies inbound push events. Message deliveries for the
// active conversation are appended to the store; deliveries for any
// other conversation are forwarded to the notifier and never touch the
// store. Replaying an event is a no-op after the first application.
type Router struct {
	store    *Store
	active   ActiveSource
	notifier Notifier
	log      *zap.Logger
}

// NewRouter creates a Router. notifier may be nil; a nil logger is
// replaced with a no-op.
func NewRouter(store *Store, active ActiveSource, notifier Notifier, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		store:    store,
		active:   active,
		notifier: notifier,
		log:      log,
	}
}

// HandleEvent routes one inbound push event. Non-delivery events are
// ignored here; the connection manager consumes control traffic.
func (r *Router) HandleEvent(ev protocol.Event) {
	if ev.Type != protocol.EventMessage || ev.Message == nil {
		return
	}

	msg := *ev.Message
	conversationID := ev.ConversationID
	if conversationID == "" {
		conversationID = msg.ConversationID
	}

	active := r.active.Active()
	if active == "" || conversationID != active {
		// Stale relative to the current selection, not an error: the
		// notification sink surfaces it as unread activity.
		if r.notifier != nil {
			r.notifier.Notify(conversationID, msg)
		}
		return
	}

	// Echo of this session's own send: reconcile the pending entry
	// instead of appending a second copy.
	if msg.CorrelationToken != "" && r.store.Confirm(conversationID, msg.CorrelationToken, msg) {
		return
	}

	if !r.store.Append(conversationID, msg) {
		r.log.Debug("dropped duplicate delivery",
			zap.String("conversation", conversationID),
			zap.String("message", msg.ID))
	}
}
