package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linkup-chat/linkup/internal/chat"
	"github.com/linkup-chat/linkup/pkg/protocol"
)

// Handler consumes inbound push events, one call per event.
type Handler func(protocol.Event)

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateReady
)

const handshakeTimeout = 10 * time.Second

// Options tune the reconnect policy.
type Options struct {
	// BackoffBase is the first reconnect delay; it doubles per attempt.
	BackoffBase time.Duration
	// BackoffMax caps the delay between attempts.
	BackoffMax time.Duration
	// MaxAttempts bounds the reconnect attempts after a transport loss.
	MaxAttempts int
}

func (o *Options) withDefaults() Options {
	out := Options{BackoffBase: 500 * time.Millisecond, BackoffMax: 8 * time.Second, MaxAttempts: 5}
	if o == nil {
		return out
	}
	if o.BackoffBase > 0 {
		out.BackoffBase = o.BackoffBase
	}
	if o.BackoffMax > 0 {
		out.BackoffMax = o.BackoffMax
	}
	if o.MaxAttempts > 0 {
		out.MaxAttempts = o.MaxAttempts
	}
	return out
}

// Manager owns one push-channel connection per authenticated session.
// It performs the register handshake exactly once per connection, gates
// outbound traffic on handshake completion, and on transport loss
// reconnects with exponential backoff, re-registering and re-joining the
// active conversation. It implements chat.PushLink.
type Manager struct {
	session chat.Session
	dial    Dialer
	opts    Options
	log     *zap.Logger

	handler     Handler
	onReconnect func(ctx context.Context)

	mu    sync.RWMutex
	state connState
	conn  Conn
	ready chan struct{} // closed when the current handshake completes

	runCtx    context.Context
	runCancel context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewManager creates a Manager for the session. opts may be nil; a nil
// logger is replaced with a no-op.
func NewManager(session chat.Session, dial Dialer, opts *Options, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		session:   session,
		dial:      dial,
		opts:      opts.withDefaults(),
		log:       log,
		state:     stateDisconnected,
		ready:     make(chan struct{}),
		runCtx:    ctx,
		runCancel: cancel,
	}
}

// SetHandler installs the inbound event consumer. Must be called before
// Connect.
func (m *Manager) SetHandler(h Handler) {
	m.handler = h
}

// SetOnReconnect installs the hook invoked after a successful reconnect
// handshake, used to re-join the active conversation. Must be called
// before Connect.
func (m *Manager) SetOnReconnect(fn func(ctx context.Context)) {
	m.onReconnect = fn
}

// Connect dials the server, performs the register handshake and starts
// the read pump. Outbound operations issued before Connect returns wait
// on the handshake gate rather than failing.
func (m *Manager) Connect(ctx context.Context) error {
	if m.runCtx.Err() != nil {
		// Disconnect already tore the run context down; a fresh
		// Manager is required for a new session.
		return fmt.Errorf("manager is shut down")
	}
	m.mu.Lock()
	if m.state != stateDisconnected {
		m.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	m.state = stateConnecting
	m.ready = make(chan struct{})
	m.mu.Unlock()

	conn, err := m.establish(ctx)
	if err != nil {
		m.mu.Lock()
		m.state = stateDisconnected
		close(m.ready)
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.state = stateReady
	close(m.ready)
	m.mu.Unlock()

	m.log.Info("connected to push channel", zap.String("remote", conn.RemoteAddr()))

	m.wg.Add(1)
	go m.readPump()
	return nil
}

// Disconnect tears the connection down. Calling it on an already-closed
// manager is a no-op.
func (m *Manager) Disconnect() {
	m.closeOnce.Do(func() {
		m.runCancel()

		m.mu.Lock()
		conn := m.conn
		m.conn = nil
		m.state = stateDisconnected
		m.mu.Unlock()

		if conn != nil {
			_ = conn.Close()
		}
		m.wg.Wait()
		m.log.Info("disconnected from push channel")
	})
}

// Connected reports whether the handshake has completed on a live
// connection.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == stateReady
}

// Join subscribes the session to a conversation.
func (m *Manager) Join(ctx context.Context, conversationID string) error {
	return m.send(ctx, protocol.Event{Type: protocol.EventJoin, ConversationID: conversationID})
}

// Leave unsubscribes the session from a conversation.
func (m *Manager) Leave(ctx context.Context, conversationID string) error {
	return m.send(ctx, protocol.Event{Type: protocol.EventLeave, ConversationID: conversationID})
}

// Announce publishes a confirmed message so the server rebroadcasts it
// to the conversation's other subscribers.
func (m *Manager) Announce(ctx context.Context, conversationID string, msg protocol.Message) error {
	return m.send(ctx, protocol.Event{
		Type:           protocol.EventAnnounce,
		ConversationID: conversationID,
		Message:        &msg,
	})
}

// send waits for handshake completion, then writes the event. It fails
// fast with chat.ErrNotConnected when no connection exists and none is
// being established.
func (m *Manager) send(ctx context.Context, ev protocol.Event) error {
	conn, err := m.waitReady(ctx)
	if err != nil {
		return err
	}

	data, err := ev.Encode()
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to send %s event: %w", ev.Type, err)
	}
	return nil
}

func (m *Manager) waitReady(ctx context.Context) (Conn, error) {
	for {
		m.mu.RLock()
		state, conn, ready := m.state, m.conn, m.ready
		m.mu.RUnlock()

		switch state {
		case stateReady:
			return conn, nil
		case stateDisconnected:
			return nil, chat.ErrNotConnected
		case stateConnecting:
			select {
			case <-ready:
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-m.runCtx.Done():
				return nil, chat.ErrNotConnected
			}
		}
	}
}

// establish dials and performs the register handshake on a fresh
// connection. The server is not assumed to retain any session state
// between connections.
func (m *Manager) establish(ctx context.Context) (Conn, error) {
	conn, err := m.dial(ctx)
	if err != nil {
		return nil, err
	}

	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	register := protocol.Event{
		Type: protocol.EventRegister,
		Identity: &protocol.Identity{
			UserID:      m.session.UserID,
			DisplayName: m.session.DisplayName,
			AvatarRef:   m.session.AvatarRef,
		},
	}
	data, err := register.Encode()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.Write(hsCtx, data); err != nil {
		conn.Close()
		return nil, fmt.Errorf("register handshake failed: %w", err)
	}

	for {
		frame, err := conn.Read(hsCtx)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("register handshake failed: %w", err)
		}
		var ev protocol.Event
		if err := ev.Decode(frame); err != nil {
			m.log.Warn("dropping undecodable frame during handshake", zap.Error(err))
			continue
		}
		if ev.Type == protocol.EventRegistered {
			return conn, nil
		}
		// Anything else arriving before the ack is delivered normally.
		if m.handler != nil {
			m.handler(ev)
		}
	}
}

// readPump delivers inbound events to the handler and drives the
// reconnect policy on transport loss.
func (m *Manager) readPump() {
	defer m.wg.Done()

	for {
		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()
		if conn == nil {
			return
		}

		frame, err := conn.Read(m.runCtx)
		if err != nil {
			select {
			case <-m.runCtx.Done():
				return
			default:
			}
			m.log.Warn("push channel lost", zap.Error(err))
			if !m.reconnect() {
				return
			}
			continue
		}

		var ev protocol.Event
		if err := ev.Decode(frame); err != nil {
			m.log.Warn("failed to decode event", zap.Error(err))
			continue
		}
		if ev.Type == protocol.EventRegistered {
			continue
		}
		if m.handler != nil {
			m.handler(ev)
		}
	}
}

// reconnect re-establishes the connection with exponential backoff.
// Reports whether the pump should keep reading.
func (m *Manager) reconnect() bool {
	m.mu.Lock()
	if old := m.conn; old != nil {
		_ = old.Close()
	}
	m.conn = nil
	m.state = stateConnecting
	m.ready = make(chan struct{})
	m.mu.Unlock()

	delay := m.opts.BackoffBase
	for attempt := 1; attempt <= m.opts.MaxAttempts; attempt++ {
		select {
		case <-time.After(delay):
		case <-m.runCtx.Done():
			return false
		}
		if delay *= 2; delay > m.opts.BackoffMax {
			delay = m.opts.BackoffMax
		}

		conn, err := m.establish(m.runCtx)
		if err != nil {
			m.log.Warn("reconnect attempt failed",
				zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		m.mu.Lock()
		m.conn = conn
		m.state = stateReady
		close(m.ready)
		m.mu.Unlock()

		m.log.Info("reconnected to push channel",
			zap.String("remote", conn.RemoteAddr()), zap.Int("attempt", attempt))

		// The server does not remember subscriptions across connections;
		// the tracker re-joins whatever conversation is active.
		if m.onReconnect != nil {
			m.onReconnect(m.runCtx)
		}
		return true
	}

	m.mu.Lock()
	m.state = stateDisconnected
	close(m.ready) // release any waiters; they fail fast with ErrNotConnected
	m.mu.Unlock()
	m.log.Error("reconnect attempts exhausted")
	return false
}
