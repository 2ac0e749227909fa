// Package client owns the session's push-channel connection: dial,
// register handshake, reconnect policy and teardown.
package client

import "context"

// Conn abstracts a bidirectional push-channel connection so the manager
// and its tests do not depend on a concrete transport.
type Conn interface {
	// Read reads a single event frame. Returns an error when the
	// connection is closed.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single event frame.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// Dialer establishes a new Conn. The manager uses it for the initial
// connect and for every reconnect attempt.
type Dialer func(ctx context.Context) (Conn, error)
