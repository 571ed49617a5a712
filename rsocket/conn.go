package rsocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ciychodianda/rsocket-go/frame"
	"github.com/ciychodianda/rsocket-go/transport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// connState is the connection-level state machine: a client starts in
// Establishing and moves optimistically to Active once SETUP is written; a
// server moves from AwaitingSetup to Establishing on an inbound SETUP and to
// Active once ShouldAcceptClient and InitializeConnectionFunc both clear.
type connState int32

const (
	stateAwaitingSetup connState = iota
	stateEstablishing
	stateActive
	stateClosing
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateAwaitingSetup:
		return "AWAITING_SETUP"
	case stateEstablishing:
		return "ESTABLISHING"
	case stateActive:
		return "ACTIVE"
	case stateClosing:
		return "CLOSING"
	case stateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN_STATE"
	}
}

// Connection is one RSocket connection: the codec, the transport, the
// registry of live streams, and the control-frame state machine. One type
// parameterized by Role, since an RSocket connection is symmetric after
// SETUP: either side may act as requester or responder on any stream.
type Connection struct {
	role      Role
	transport transport.Transport
	opts      *options
	reg       *registry
	responder Responder

	// wmu serializes writes to the transport.
	wmu sync.Mutex

	// dispatchMu serializes dispatchLocked calls between readLoop and
	// finishSetup's buffered-frame replay.
	dispatchMu sync.Mutex

	// mu guards the fields below across the read loop and caller-initiated
	// writes.
	mu             sync.Mutex
	state          connState
	lastInboundAt  time.Time
	bufferingSetup bool
	setupQueue     []frame.Frame
	setupWaiters   []chan error

	closed     chan struct{}
	closeOnce  sync.Once
	closeErr   error
	wg         sync.WaitGroup
	logger     Logger

	ctx       context.Context
	ctxCancel context.CancelFunc
}

func newConnection(role Role, t transport.Transport, o *options) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		role:      role,
		transport: t,
		opts:      o,
		reg:       newRegistry(role),
		responder: NopResponder{},
		closed:    make(chan struct{}),
		logger:    o.logger,
		ctx:       ctx,
		ctxCancel: cancel,
	}
	c.lastInboundAt = time.Now()
	return c
}

// NewClientConnection dials no transport of its own; t must already be
// connected. It sends SETUP and optimistically transitions to Active so
// the caller may begin issuing requests immediately; the connection is
// torn down if the server later rejects SETUP with ERROR.
func NewClientConnection(t transport.Transport, setup frame.SetupPayload, opts ...Option) (*Connection, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	c := newConnection(RoleClient, t, o)
	c.state = stateEstablishing
	c.wg.Add(1)
	go c.readLoop()
	if err := c.sendSetup(setup); err != nil {
		_ = c.closeWith(err)
		return nil, err
	}
	c.mu.Lock()
	c.state = stateActive
	c.mu.Unlock()
	c.wg.Add(1)
	go c.keepaliveLoop(setup.KeepaliveInterval, setup.MaxLifetime)
	return c, nil
}

// NewServerConnection begins in AwaitingSetup; it becomes Active once an
// inbound SETUP clears ShouldAcceptClient and InitializeConnectionFunc.
func NewServerConnection(t transport.Transport, opts ...Option) *Connection {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	c := newConnection(RoleServer, t, o)
	c.state = stateAwaitingSetup
	c.wg.Add(1)
	go c.readLoop()
	return c
}

// SetResponder installs the handlers for peer-initiated requests. Safe to
// call once before the connection starts receiving requests; typically set
// from InitializeConnectionFunc or immediately after NewClientConnection.
func (c *Connection) SetResponder(r Responder) {
	if r == nil {
		r = NopResponder{}
	}
	c.mu.Lock()
	c.responder = r
	c.mu.Unlock()
}

func (c *Connection) getResponder() Responder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responder
}

func (c *Connection) currentState() connState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ensureOpen rejects new requests once the connection is closing or
// closed, so the requester facades never mint a stream ID that will
// never be written.
func (c *Connection) ensureOpen() error {
	switch c.currentState() {
	case stateClosing, stateClosed:
		return ErrConnectionClosed
	default:
		return nil
	}
}

// Snapshot returns the live streams on this connection, for the operator
// dashboard.
func (c *Connection) Snapshot() []StreamInfo {
	return c.reg.snapshot()
}

// Done is closed once the connection has finished closing.
func (c *Connection) Done() <-chan struct{} { return c.closed }

// Err returns the reason the connection closed, or nil if it is still open.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// writeFrame serializes f onto the transport under a bounded deadline. It
// is the only path by which any goroutine may write.
func (c *Connection) writeFrame(f frame.Frame) error {
	ctx := c.ctx
	if c.opts.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.writeTimeout)
		defer cancel()
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.transport.Send(ctx, f); err != nil {
		go func() { _ = c.closeWith(fmt.Errorf("rsocket: write failed: %w", err)) }()
		return err
	}
	return nil
}

// readLoop is the connection's single reader, dispatching every inbound
// frame to the control or stream machinery. One per connection, running
// until Recv errors or the connection closes.
func (c *Connection) readLoop() {
	defer c.wg.Done()
	for {
		f, err := c.transport.Recv(c.ctx)
		if err != nil {
			var codecErr *frame.CodecError
			if errors.As(err, &codecErr) {
				c.sendConnectionError(frame.ErrorCodeConnectionError, codecErr.Error())
			} else {
				_ = c.closeWith(err)
			}
			return
		}
		c.mu.Lock()
		c.lastInboundAt = time.Now()
		c.mu.Unlock()
		c.dispatch(f)
	}
}

// closeWith tears the connection down exactly once, fanning a synthetic
// error out to every live stream and closing the transport. The reason
// err and any error returned by the transport close are combined with
// multierr so both failures are visible to the caller.
func (c *Connection) closeWith(err error) error {
	var combined error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = stateClosed
		c.closeErr = err
		waiters := c.setupWaiters
		c.setupWaiters = nil
		c.mu.Unlock()

		for _, ch := range waiters {
			ch <- err
			close(ch)
		}

		reportErr := err
		if reportErr == nil {
			reportErr = ErrConnectionClosed
		}
		c.reg.drain(func(e *streamEntry) {
			failEntry(e, reportErr)
		})

		c.ctxCancel()
		closeErr := c.transport.Close()
		combined = multierr.Combine(err, closeErr)
		close(c.closed)
		c.logger.Info("connection closed", zap.Error(err))
	})
	return combined
}

// Close begins an orderly shutdown: no new requests should be initiated by
// the caller once Close is called, though in-flight frames already queued
// on the transport may still land.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == stateClosing || c.state == stateClosed {
		c.mu.Unlock()
		<-c.closed
		return c.closeErr
	}
	c.state = stateClosing
	c.mu.Unlock()
	err := c.closeWith(nil)
	c.wg.Wait()
	return err
}

func failEntry(e *streamEntry, err error) {
	e.localHalf = HalfClosed
	e.remoteHalf = HalfClosed
	if e.requesterSink != nil {
		e.requesterSink.OnError(err)
	}
	if e.responderSink != nil {
		e.responderSink.OnError(err)
	}
}
