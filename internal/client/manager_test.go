package client_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/linkup-chat/linkup/internal/chat"
	"github.com/linkup-chat/linkup/internal/client"
	"github.com/linkup-chat/linkup/pkg/protocol"
)

// fakeConn is a scripted in-memory connection. It acknowledges the
// register handshake automatically so the manager can complete its
// handshake without a real server.
type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	writes []protocol.Event
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	select {
	case <-c.closed:
		return io.EOF
	default:
	}

	var ev protocol.Event
	if err := ev.Decode(data); err != nil {
		return err
	}

	c.mu.Lock()
	c.writes = append(c.writes, ev)
	c.mu.Unlock()

	if ev.Type == protocol.EventRegister {
		ack := protocol.Event{Type: protocol.EventRegistered}
		data, _ := ack.Encode()
		c.in <- data
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "fake" }

// deliver pushes an event to the manager's read pump.
func (c *fakeConn) deliver(t *testing.T, ev protocol.Event) {
	t.Helper()
	data, err := ev.Encode()
	if err != nil {
		t.Fatalf("failed to encode event: %v", err)
	}
	select {
	case c.in <- data:
	case <-time.After(time.Second):
		t.Fatal("timeout delivering event to fake conn")
	}
}

func (c *fakeConn) written() []protocol.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Event, len(c.writes))
	copy(out, c.writes)
	return out
}

// fakeDialer hands out a fresh fakeConn per dial attempt.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (d *fakeDialer) dial(_ context.Context) (client.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

var testSession = chat.Session{UserID: "u1", DisplayName: "Alice", AvatarRef: "a.png"}

func fastOpts() *client.Options {
	return &client.Options{
		BackoffBase: 5 * time.Millisecond,
		BackoffMax:  20 * time.Millisecond,
		MaxAttempts: 3,
	}
}

func TestManager_ConnectPerformsRegisterHandshake(t *testing.T) {
	d := &fakeDialer{}
	m := client.NewManager(testSession, d.dial, fastOpts(), nil)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	if !m.Connected() {
		t.Error("manager should report connected after handshake")
	}

	writes := d.conn(0).written()
	if len(writes) == 0 || writes[0].Type != protocol.EventRegister {
		t.Fatal("first frame must be the register handshake")
	}
	if writes[0].Identity == nil || writes[0].Identity.UserID != "u1" {
		t.Error("register event must carry the session identity")
	}
}

func TestManager_ConnectDialFailure(t *testing.T) {
	d := &fakeDialer{err: errors.New("refused")}
	m := client.NewManager(testSession, d.dial, fastOpts(), nil)

	if err := m.Connect(context.Background()); err == nil {
		t.Fatal("Connect() should fail when dial fails")
	}
	if m.Connected() {
		t.Error("manager must not report connected")
	}
}

func TestManager_SendBeforeConnectFailsFast(t *testing.T) {
	d := &fakeDialer{}
	m := client.NewManager(testSession, d.dial, fastOpts(), nil)

	err := m.Join(context.Background(), "c1")
	if !errors.Is(err, chat.ErrNotConnected) {
		t.Errorf("Join before Connect = %v, want ErrNotConnected", err)
	}
}

func TestManager_JoinLeaveAnnounce(t *testing.T) {
	d := &fakeDialer{}
	m := client.NewManager(testSession, d.dial, fastOpts(), nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	ctx := context.Background()
	if err := m.Join(ctx, "c1"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if err := m.Leave(ctx, "c1"); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	msg := protocol.Message{ID: "m1", ConversationID: "c1", Body: "hi", Kind: protocol.KindText}
	if err := m.Announce(ctx, "c1", msg); err != nil {
		t.Fatalf("Announce() error = %v", err)
	}

	writes := d.conn(0).written()
	types := make([]protocol.EventType, 0, len(writes))
	for _, ev := range writes {
		types = append(types, ev.Type)
	}
	want := []protocol.EventType{protocol.EventRegister, protocol.EventJoin, protocol.EventLeave, protocol.EventAnnounce}
	if len(types) != len(want) {
		t.Fatalf("wrote %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("frame %d = %v, want %v", i, types[i], want[i])
		}
	}
}

func TestManager_DeliversInboundEvents(t *testing.T) {
	d := &fakeDialer{}
	m := client.NewManager(testSession, d.dial, fastOpts(), nil)

	received := make(chan protocol.Event, 1)
	m.SetHandler(func(ev protocol.Event) { received <- ev })

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	msg := protocol.Message{ID: "m1", ConversationID: "c1", Body: "hey"}
	d.conn(0).deliver(t, protocol.Event{
		Type:           protocol.EventMessage,
		ConversationID: "c1",
		Message:        &msg,
	})

	select {
	case ev := <-received:
		if ev.Type != protocol.EventMessage || ev.Message.ID != "m1" {
			t.Errorf("handler got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for inbound event")
	}
}

func TestManager_DisconnectIsIdempotent(t *testing.T) {
	d := &fakeDialer{}
	m := client.NewManager(testSession, d.dial, fastOpts(), nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	m.Disconnect()
	m.Disconnect() // must be a no-op, not a panic or error

	if m.Connected() {
		t.Error("manager should be disconnected")
	}
	if err := m.Join(context.Background(), "c1"); !errors.Is(err, chat.ErrNotConnected) {
		t.Errorf("Join after Disconnect = %v, want ErrNotConnected", err)
	}
}

func TestManager_ConnectAfterDisconnectRejected(t *testing.T) {
	d := &fakeDialer{}
	m := client.NewManager(testSession, d.dial, fastOpts(), nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.Disconnect()

	if err := m.Connect(context.Background()); err == nil {
		t.Fatal("Connect on a shut-down manager should fail, not silently succeed")
	}
	if m.Connected() {
		t.Error("manager must not report connected after a rejected Connect")
	}
	if d.dials() != 1 {
		t.Errorf("dials = %d, want 1; no new connection may be opened", d.dials())
	}
}

func TestManager_ReconnectReregistersAndRejoins(t *testing.T) {
	d := &fakeDialer{}
	m := client.NewManager(testSession, d.dial, fastOpts(), nil)

	rejoined := make(chan struct{}, 1)
	m.SetOnReconnect(func(ctx context.Context) {
		select {
		case rejoined <- struct{}{}:
		default:
		}
	})

	received := make(chan protocol.Event, 1)
	m.SetHandler(func(ev protocol.Event) { received <- ev })

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	// Simulate transport loss.
	d.conn(0).Close()

	select {
	case <-rejoined:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reconnect hook")
	}

	if d.dials() != 2 {
		t.Fatalf("dials = %d, want 2", d.dials())
	}
	second := d.conn(1)
	writes := second.written()
	if len(writes) == 0 || writes[0].Type != protocol.EventRegister {
		t.Error("reconnect must re-issue the register handshake")
	}

	// The new connection feeds the same handler.
	msg := protocol.Message{ID: "m2", ConversationID: "c1", Body: "back"}
	second.deliver(t, protocol.Event{Type: protocol.EventMessage, ConversationID: "c1", Message: &msg})
	select {
	case ev := <-received:
		if ev.Message.ID != "m2" {
			t.Errorf("handler got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event after reconnect")
	}
}

func TestManager_ReconnectExhaustion(t *testing.T) {
	d := &fakeDialer{}
	m := client.NewManager(testSession, d.dial, fastOpts(), nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	// Every further dial fails.
	d.mu.Lock()
	d.err = errors.New("refused")
	d.mu.Unlock()

	d.conn(0).Close()

	deadline := time.After(2 * time.Second)
	for m.Connected() {
		select {
		case <-deadline:
			t.Fatal("manager never gave up reconnecting")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := m.Join(context.Background(), "c1"); !errors.Is(err, chat.ErrNotConnected) {
		t.Errorf("Join after exhausted reconnects = %v, want ErrNotConnected", err)
	}
}
