// Package transport owns the byte channel to the peer device. The protocol
// core only sees the Transport and Conn interfaces; USB specifics stay in
// this package.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrConnectFailed is returned when a connection attempt does not
	// produce a usable channel.
	ErrConnectFailed = errors.New("failed to connect to peer device")
	// ErrConnectionLost is returned when an established channel breaks
	// mid-operation.
	ErrConnectionLost = errors.New("connection to peer device lost")
	// ErrTimedOut is returned when a read or write exceeds the configured
	// timeout. Callers treat it like a connection loss.
	ErrTimedOut = errors.New("transport operation timed out")
)

// Conn is one established bidirectional channel to the peer.
type Conn interface {
	// Send writes the whole buffer or fails with ErrConnectionLost.
	Send(p []byte) error
	// Receive reads exactly n bytes, failing with ErrConnectionLost or
	// ErrTimedOut.
	Receive(n int) ([]byte, error)
	Close() error
}

// Transport produces connections to the peer. Each call is a single
// attempt; retry policy lives with the caller. Cancelling ctx abandons an
// in-flight attempt.
type Transport interface {
	Connect(ctx context.Context) (Conn, error)
}

// IsDisconnect reports whether err means the current connection is unusable
// and the session's retry policy should take over.
func IsDisconnect(err error) bool {
	return errors.Is(err, ErrConnectionLost) || errors.Is(err, ErrTimedOut)
}
