package chat_test

import (
	"context"
	"sync"
	"time"

	"github.com/linkup-chat/linkup/internal/chat"
	"github.com/linkup-chat/linkup/pkg/protocol"
)

// fakeLink records control traffic and can simulate a disconnected
// push channel or a join held in flight.
type fakeLink struct {
	mu        sync.Mutex
	connected bool
	joins     []string
	leaves    []string
	ops       []string // joins and leaves in arrival order
	announces []protocol.Message
	joinErr   error
	joinGates map[string]*joinGate
}

type joinGate struct {
	entered chan struct{}
	release chan struct{}
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		connected: true,
		joinGates: make(map[string]*joinGate),
	}
}

// holdJoin makes the next Join for the conversation block until the
// returned release function is called. The entered channel closes once
// that Join is in flight.
func (f *fakeLink) holdJoin(conversationID string) (entered <-chan struct{}, release func()) {
	g := &joinGate{entered: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.joinGates[conversationID] = g
	f.mu.Unlock()
	var once sync.Once
	return g.entered, func() { once.Do(func() { close(g.release) }) }
}

func (f *fakeLink) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeLink) setConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

func (f *fakeLink) Join(_ context.Context, conversationID string) error {
	f.mu.Lock()
	gate := f.joinGates[conversationID]
	delete(f.joinGates, conversationID)
	f.mu.Unlock()
	if gate != nil {
		close(gate.entered)
		<-gate.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joins = append(f.joins, conversationID)
	f.ops = append(f.ops, "join "+conversationID)
	return nil
}

func (f *fakeLink) Leave(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, conversationID)
	f.ops = append(f.ops, "leave "+conversationID)
	return nil
}

func (f *fakeLink) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ops))
	copy(out, f.ops)
	return out
}

func (f *fakeLink) Announce(_ context.Context, _ string, msg protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announces = append(f.announces, msg)
	return nil
}

func (f *fakeLink) joined() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.joins))
	copy(out, f.joins)
	return out
}

func (f *fakeLink) announced() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Message, len(f.announces))
	copy(out, f.announces)
	return out
}

// fakeHistory serves canned history and can block until released to
// simulate a slow fetch.
type fakeHistory struct {
	mu     sync.Mutex
	byConv map[string][]protocol.Message
	err    error
	block  map[string]chan struct{}
	calls  int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		byConv: make(map[string][]protocol.Message),
		block:  make(map[string]chan struct{}),
	}
}

func (f *fakeHistory) set(conversationID string, msgs ...protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byConv[conversationID] = msgs
}

// hold makes fetches for the conversation block until the returned
// function is called.
func (f *fakeHistory) hold(conversationID string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.block[conversationID] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeHistory) FetchHistory(ctx context.Context, conversationID string) ([]protocol.Message, error) {
	f.mu.Lock()
	f.calls++
	ch := f.block[conversationID]
	msgs := f.byConv[conversationID]
	err := f.err
	f.mu.Unlock()

	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	out := make([]protocol.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// fakeSubmitter confirms submissions with server-assigned IDs, or fails
// every call with err.
type fakeSubmitter struct {
	mu    sync.Mutex
	err   error
	calls int
	next  int
}

func (f *fakeSubmitter) SubmitMessage(_ context.Context, out chat.OutgoingMessage) (protocol.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return protocol.Message{}, f.err
	}
	f.next++
	return protocol.Message{
		ID:               "srv-" + out.CorrelationToken[:8],
		ConversationID:   out.ConversationID,
		SenderID:         out.SenderID,
		SenderName:       "Alice",
		Body:             out.Body,
		Kind:             out.Kind,
		AttachmentRef:    out.AttachmentRef,
		CreatedAt:        time.Date(2024, 5, 1, 12, 0, 0, f.next, time.UTC),
		CorrelationToken: out.CorrelationToken,
	}, nil
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeNotifier records unread-activity notifications.
type fakeNotifier struct {
	mu  sync.Mutex
	got []string // conversation ids
}

func (f *fakeNotifier) Notify(conversationID string, _ protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, conversationID)
}

func (f *fakeNotifier) notified() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.got))
	copy(out, f.got)
	return out
}

// fixedActive satisfies chat.ActiveSource with a constant id.
type fixedActive string

func (f fixedActive) Active() string { return string(f) }

func wireMessage(id, conversationID, body string) protocol.Message {
	return protocol.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       "u2",
		SenderName:     "Bob",
		Body:           body,
		Kind:           protocol.KindText,
		CreatedAt:      time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}
}
