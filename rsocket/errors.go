package rsocket

import (
	"errors"
	"fmt"

	"github.com/ciychodianda/rsocket-go/frame"
)

// ErrConnectionClosed is returned by requester methods and writes issued
// after the connection has closed.
var ErrConnectionClosed = errors.New("rsocket: connection closed")

// ErrStreamIDsExhausted is the terminal condition when a role's stream-ID
// allocator wraps past 2^31-1; the connection is closed with
// CONNECTION_ERROR when this happens.
var ErrStreamIDsExhausted = errors.New("rsocket: stream id space exhausted")

// ErrSetupRejected is the close reason a server connection records (see
// Err) when ShouldAcceptClient rejects SETUP. A client whose SETUP is
// rejected closes with the peer's ERROR as a *ProtocolError.
type ErrSetupRejected struct {
	Code    frame.ErrorCode
	Message string
}

func (e *ErrSetupRejected) Error() string {
	return fmt.Sprintf("rsocket: setup rejected (%s): %s", e.Code, e.Message)
}

// ProtocolError wraps a wire ErrorCode with a human-readable message. It is
// what sinks receive via OnError for both locally-detected protocol
// violations and peer-sent ERROR frames alike.
type ProtocolError struct {
	Code    frame.ErrorCode
	Message string
}

func NewProtocolError(code frame.ErrorCode, message string) *ProtocolError {
	return &ProtocolError{Code: code, Message: message}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("rsocket: %s: %s", e.Code, e.Message)
}
