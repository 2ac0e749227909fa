package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Tracker owns the ActiveConversationState and issues join/leave control
// events when it changes. Switching away from a conversation discards
// its store contents and cancels its in-flight history fetch; a late
// response for an abandoned conversation is never applied.
type Tracker struct {
	link    PushLink
	history HistoryFetcher
	store   *Store
	log     *zap.Logger

	mu        sync.Mutex
	active    string
	gen       uint64
	cancel    context.CancelFunc
	joined    bool
	fetched   bool
	fetchDone chan struct{}
}

// NewTracker creates a Tracker. A nil logger is replaced with a no-op.
func NewTracker(link PushLink, history HistoryFetcher, store *Store, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		link:    link,
		history: history,
		store:   store,
		log:     log,
	}
}

// Active returns the currently active conversation id, or "".
func (t *Tracker) Active() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// SetActive switches the active conversation. If the id differs from the
// previous one it emits a leave for the old id followed by a join for
// the new id, then starts the history fetch. Rapid successive calls
// coalesce: each call bumps a generation counter, and only work for the
// newest generation is allowed to touch the store, so the final state
// always matches the last call.
func (t *Tracker) SetActive(ctx context.Context, conversationID string) error {
	t.mu.Lock()
	if t.active == conversationID {
		t.mu.Unlock()
		return nil
	}
	prev := t.active
	t.active = conversationID
	t.gen++
	gen := t.gen
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.joined = false
	t.fetched = false
	t.fetchDone = nil

	var fetchCtx context.Context
	var done chan struct{}
	if conversationID != "" {
		fetchCtx, t.cancel = context.WithCancel(context.Background())
		done = make(chan struct{})
		t.fetchDone = done
	}
	t.mu.Unlock()

	if prev != "" {
		t.store.Reset(prev)
		if err := t.link.Leave(ctx, prev); err != nil {
			t.log.Warn("failed to leave conversation",
				zap.String("conversation", prev), zap.Error(err))
		}
	}
	if conversationID == "" {
		return nil
	}

	t.mu.Lock()
	if t.gen != gen {
		// A newer selection superseded this call before the join went
		// out; emit nothing for the abandoned target.
		t.mu.Unlock()
		close(done)
		return nil
	}
	t.mu.Unlock()

	joinErr := t.link.Join(ctx, conversationID)
	if joinErr != nil {
		t.log.Warn("failed to join conversation",
			zap.String("conversation", conversationID), zap.Error(joinErr))
	} else {
		t.mu.Lock()
		current := t.gen == gen
		if current {
			t.joined = true
		}
		t.mu.Unlock()
		if !current {
			// The selection moved on while this join was in flight, so
			// the server now holds a subscription nothing wants. Undo it.
			close(done)
			if err := t.link.Leave(ctx, conversationID); err != nil {
				t.log.Warn("failed to leave superseded conversation",
					zap.String("conversation", conversationID), zap.Error(err))
			}
			return nil
		}
	}

	go t.fetch(fetchCtx, gen, conversationID, done)
	return joinErr
}

// Clear deactivates the current conversation, leaving it if any.
func (t *Tracker) Clear(ctx context.Context) error {
	return t.SetActive(ctx, "")
}

// Rejoin re-issues the join for the current active conversation. The
// connection manager calls this after a reconnect, since the server is
// not assumed to remember subscriptions across connections.
func (t *Tracker) Rejoin(ctx context.Context) error {
	t.mu.Lock()
	active := t.active
	gen := t.gen
	t.mu.Unlock()

	if active == "" {
		return nil
	}
	if err := t.link.Join(ctx, active); err != nil {
		return err
	}
	t.mu.Lock()
	if t.gen == gen {
		t.joined = true
	}
	t.mu.Unlock()
	return nil
}

// Ready reports whether the active conversation has both joined the
// push channel and loaded its history.
func (t *Tracker) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active != "" && t.joined && t.fetched
}

// WaitHistory blocks until the active conversation's history fetch has
// finished (successfully or not), or ctx is done. Mostly for tests and
// the terminal client.
func (t *Tracker) WaitHistory(ctx context.Context) error {
	t.mu.Lock()
	done := t.fetchDone
	t.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) fetch(ctx context.Context, gen uint64, conversationID string, done chan struct{}) {
	defer close(done)

	msgs, err := t.history.FetchHistory(ctx, conversationID)

	t.mu.Lock()
	stale := t.gen != gen
	t.mu.Unlock()
	if stale {
		// Abandoned conversation; discard the late response.
		return
	}
	if err != nil {
		if ctx.Err() == nil {
			t.log.Warn("history fetch failed",
				zap.String("conversation", conversationID), zap.Error(err))
		}
		return
	}

	t.store.Load(conversationID, msgs)
	t.mu.Lock()
	if t.gen == gen {
		t.fetched = true
	}
	t.mu.Unlock()
}
