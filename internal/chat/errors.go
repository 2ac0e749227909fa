package chat

import "errors"

var (
	// ErrNotConnected is returned when an operation needs the push
	// channel before the register handshake has completed, or after
	// the connection handle was torn down.
	ErrNotConnected = errors.New("not connected to push channel")

	// ErrSendFailed wraps a failed or timed-out submission. The pending
	// entry is kept in the store, marked failed, and can be retried
	// with the same correlation token.
	ErrSendFailed = errors.New("message submission failed")

	// ErrEmptyMessage rejects a text submission with a blank body
	// before any network call is made.
	ErrEmptyMessage = errors.New("message body is empty")
)
