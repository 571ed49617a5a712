// Package transport names the byte-stream contract the rsocket connection
// state machine is built on and provides reference adapters over it. The
// transport itself — TLS, reconnection, framing details below the 24-bit
// length prefix — is explicitly out of scope for the protocol core; this
// package exists so the core has something concrete to test against and
// integrators have a starting point to copy.
package transport

import (
	"context"
	"io"

	"github.com/ciychodianda/rsocket-go/frame"
)

// Transport is a full-duplex, frame-oriented byte stream. Send and Recv
// are each called from at most one goroutine at a time by the connection
// (Send from the connection's write path, Recv from its read loop); an
// implementation does not need to guard against concurrent calls to the
// same method, only against Send and Recv racing each other if they share
// mutable state.
type Transport interface {
	io.Closer

	// Send writes one frame. It blocks until the frame is fully written,
	// ctx is done, or the transport fails.
	Send(ctx context.Context, f frame.Frame) error

	// Recv reads and decodes the next frame. It returns io.EOF when the
	// peer closes cleanly.
	Recv(ctx context.Context) (frame.Frame, error)
}
