package rsocket

import (
	"time"

	"github.com/ciychodianda/rsocket-go/frame"
)

// LateFrameHandler observes a frame that arrived for a stream ID with no
// live entry. It must not block and must not panic.
type LateFrameHandler func(f frame.Frame)

// AcceptResult is returned by ShouldAcceptClient to accept or reject an
// inbound SETUP.
type AcceptResult struct {
	accepted bool
	code     frame.ErrorCode
	message  string
}

// Accept admits the client's SETUP.
func Accept() AcceptResult { return AcceptResult{accepted: true} }

// Reject declines the client's SETUP with the given wire error code and
// human-readable message.
func Reject(code frame.ErrorCode, message string) AcceptResult {
	return AcceptResult{accepted: false, code: code, message: message}
}

// ShouldAcceptClientFunc gates inbound SETUP on the server side.
type ShouldAcceptClientFunc func(info frame.SetupPayload) AcceptResult

// InitializeConnectionFunc runs after SETUP is accepted and before any
// other inbound frame is delivered to the demultiplexer. Inbound frames
// received while it is in flight are buffered and replayed in order once
// it returns.
type InitializeConnectionFunc func(info frame.SetupPayload, conn *Connection) error

// options collects the functional options accepted by NewClientConnection
// and NewServerConnection.
type options struct {
	logger                   Logger
	requesterLateFrameHandler LateFrameHandler
	responderLateFrameHandler LateFrameHandler
	shouldAcceptClient       ShouldAcceptClientFunc
	initializeConnection     InitializeConnectionFunc
	maxConcurrentStreams     int // 0 = unbounded
	fragmentCap              int // 0 = unbounded
	writeTimeout             time.Duration
}

func defaultOptions() *options {
	return &options{
		logger:                   nopLogger(),
		requesterLateFrameHandler: func(frame.Frame) {},
		responderLateFrameHandler: func(frame.Frame) {},
		shouldAcceptClient:       func(frame.SetupPayload) AcceptResult { return Accept() },
		initializeConnection:     func(frame.SetupPayload, *Connection) error { return nil },
		writeTimeout:             5 * time.Second,
	}
}

// Option configures a Connection at construction time.
type Option func(*options)

func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithRequesterLateFrameHandler(h LateFrameHandler) Option {
	return func(o *options) { o.requesterLateFrameHandler = h }
}

func WithResponderLateFrameHandler(h LateFrameHandler) Option {
	return func(o *options) { o.responderLateFrameHandler = h }
}

// WithShouldAcceptClient installs the server-side SETUP gate.
func WithShouldAcceptClient(fn ShouldAcceptClientFunc) Option {
	return func(o *options) { o.shouldAcceptClient = fn }
}

// WithInitializeConnection installs the server-side post-accept hook.
func WithInitializeConnection(fn InitializeConnectionFunc) Option {
	return func(o *options) { o.initializeConnection = fn }
}

// WithMaxConcurrentStreams bounds concurrent streams at this layer; beyond
// it, incoming request-initiations are answered with ERROR(REJECTED).
func WithMaxConcurrentStreams(n int) Option {
	return func(o *options) { o.maxConcurrentStreams = n }
}

// WithFragmentCap bounds reassembled fragment size; exceeding it yields
// ERROR(CANCELED) on the stream.
func WithFragmentCap(n int) Option {
	return func(o *options) { o.fragmentCap = n }
}

// WithWriteTimeout bounds how long a single frame write may block the
// caller before the connection considers the transport lost.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}
