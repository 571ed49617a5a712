package rsocket

import (
	"context"
	"errors"

	"github.com/ciychodianda/rsocket-go/frame"
)

// Requester issues peer-bound requests on a Connection. Obtained via
// Connection.Requester; every method except MetadataPush allocates a fresh
// stream ID from the connection's registry, so concurrent calls from
// multiple goroutines are safe.
type Requester struct {
	conn *Connection
}

// Requester returns the facade for issuing requests on c.
func (c *Connection) Requester() *Requester { return &Requester{conn: c} }

// StreamHandle is returned by RequestStream and RequestResponse; it lets
// the caller request more items or cancel before the peer terminates the
// stream on its own.
type StreamHandle struct {
	conn *Connection
	id   frame.StreamID
}

// RequestN asks the peer for n additional items via REQUEST_N.
func (h *StreamHandle) RequestN(n uint32) error {
	if n == 0 {
		return nil
	}
	h.conn.reg.withEntry(h.id, func(e *streamEntry) bool {
		e.inboundDemand = addSaturating(e.inboundDemand, n)
		return false
	})
	return h.conn.writeFrame(frame.Frame{
		Header:   frame.Header{StreamID: h.id, Type: frame.TypeRequestN},
		RequestN: n,
	})
}

// Cancel aborts the stream via CANCEL; idempotent.
func (h *StreamHandle) Cancel() error {
	var already bool
	live := h.conn.reg.withEntry(h.id, func(e *streamEntry) bool {
		already = e.cancelSent
		e.cancelSent = true
		e.localHalf = HalfClosed
		e.remoteHalf = HalfClosed
		return true
	})
	// The first Cancel reaps the entry, so a repeated Cancel finds none.
	if !live || already {
		return nil
	}
	return h.conn.writeFrame(frame.Frame{Header: frame.Header{StreamID: h.id, Type: frame.TypeCancel}})
}

// ChannelHandle additionally lets the caller push its own half of a
// REQUEST_CHANNEL.
type ChannelHandle struct {
	StreamHandle
}

// Send emits one item on the requester's half of the channel.
func (h *ChannelHandle) Send(p Payload, complete bool) error {
	flags := frame.FlagNext
	if complete {
		flags |= frame.FlagComplete
	}
	if p.HasMetadata {
		flags |= frame.FlagMetadata
	}
	err := h.conn.writeFrame(frame.Frame{
		Header:      frame.Header{StreamID: h.id, Type: frame.TypePayload, Flags: flags},
		HasMetadata: p.HasMetadata,
		Metadata:    p.Metadata,
		Data:        p.Data,
	})
	if complete {
		h.conn.reg.withEntry(h.id, func(e *streamEntry) bool {
			e.localHalf = HalfClosed
			return true
		})
	}
	return err
}

// Complete closes the requester's half of the channel without sending a
// final item.
func (h *ChannelHandle) Complete() error {
	err := h.conn.writeFrame(frame.Frame{
		Header: frame.Header{StreamID: h.id, Type: frame.TypePayload, Flags: frame.FlagComplete},
	})
	h.conn.reg.withEntry(h.id, func(e *streamEntry) bool {
		e.localHalf = HalfClosed
		return true
	})
	return err
}

// FireAndForget sends a REQUEST_FNF with no response expected.
func (r *Requester) FireAndForget(_ context.Context, p Payload) error {
	if err := r.conn.ensureOpen(); err != nil {
		return err
	}
	e, err := r.conn.reg.allocate(KindFireAndForget)
	if err != nil {
		r.conn.failOnStreamIDsExhausted(err)
		return err
	}
	werr := r.conn.writeFrame(requestFrame(frame.TypeRequestFNF, e.id, 0, p))
	r.conn.reg.withEntry(e.id, func(entry *streamEntry) bool {
		entry.localHalf = HalfClosed
		entry.remoteHalf = HalfClosed
		return true
	})
	return werr
}

// RequestResponse sends a REQUEST_RESPONSE and delivers the single reply
// (or error) to sink. Returns a StreamHandle whose Cancel aborts the
// request; RequestN is meaningless for this interaction model.
func (r *Requester) RequestResponse(_ context.Context, p Payload, sink Sink) (*StreamHandle, error) {
	if err := r.conn.ensureOpen(); err != nil {
		return nil, err
	}
	e, err := r.conn.reg.allocate(KindRequestResponse)
	if err != nil {
		r.conn.failOnStreamIDsExhausted(err)
		return nil, err
	}
	r.conn.reg.withEntry(e.id, func(entry *streamEntry) bool {
		entry.requesterSink = newGuardedSink(sink)
		return false
	})
	if err := r.conn.writeFrame(requestFrame(frame.TypeRequestResponse, e.id, 0, p)); err != nil {
		r.conn.failAndReap(e, err)
		return nil, err
	}
	return &StreamHandle{conn: r.conn, id: e.id}, nil
}

// RequestStream sends a REQUEST_STREAM and delivers each item to sink.
func (r *Requester) RequestStream(_ context.Context, p Payload, initialRequestN uint32, sink Sink) (*StreamHandle, error) {
	if err := r.conn.ensureOpen(); err != nil {
		return nil, err
	}
	e, err := r.conn.reg.allocate(KindRequestStream)
	if err != nil {
		r.conn.failOnStreamIDsExhausted(err)
		return nil, err
	}
	r.conn.reg.withEntry(e.id, func(entry *streamEntry) bool {
		entry.requesterSink = newGuardedSink(sink)
		entry.inboundDemand = addSaturating(entry.inboundDemand, initialRequestN)
		return false
	})
	if err := r.conn.writeFrame(requestFrame(frame.TypeRequestStream, e.id, initialRequestN, p)); err != nil {
		r.conn.failAndReap(e, err)
		return nil, err
	}
	return &StreamHandle{conn: r.conn, id: e.id}, nil
}

// RequestChannel sends a REQUEST_CHANNEL, delivering the peer's half to
// sink and returning a handle to push the requester's own half.
func (r *Requester) RequestChannel(_ context.Context, p Payload, initialRequestN uint32, sink Sink) (*ChannelHandle, error) {
	if err := r.conn.ensureOpen(); err != nil {
		return nil, err
	}
	e, err := r.conn.reg.allocate(KindRequestChannel)
	if err != nil {
		r.conn.failOnStreamIDsExhausted(err)
		return nil, err
	}
	r.conn.reg.withEntry(e.id, func(entry *streamEntry) bool {
		entry.requesterSink = newGuardedSink(sink)
		entry.inboundDemand = addSaturating(entry.inboundDemand, initialRequestN)
		return false
	})
	if err := r.conn.writeFrame(requestFrame(frame.TypeRequestChannel, e.id, initialRequestN, p)); err != nil {
		r.conn.failAndReap(e, err)
		return nil, err
	}
	return &ChannelHandle{StreamHandle{conn: r.conn, id: e.id}}, nil
}

// MetadataPush sends a connection-level METADATA_PUSH; there is no
// reply.
func (r *Requester) MetadataPush(_ context.Context, metadata []byte) error {
	if err := r.conn.ensureOpen(); err != nil {
		return err
	}
	return r.conn.writeFrame(frame.Frame{
		Header:      frame.Header{StreamID: frame.StreamZero, Type: frame.TypeMetadataPush},
		HasMetadata: true,
		Metadata:    metadata,
	})
}

// failOnStreamIDsExhausted closes the connection with CONNECTION_ERROR when
// this role's 31-bit stream id space has run out; exhaustion is fatal to
// the whole connection, not just the call that triggered it.
func (c *Connection) failOnStreamIDsExhausted(err error) {
	if errors.Is(err, ErrStreamIDsExhausted) {
		c.sendConnectionError(frame.ErrorCodeConnectionError, err.Error())
	}
}

func requestFrame(t frame.Type, id frame.StreamID, initialRequestN uint32, p Payload) frame.Frame {
	flags := frame.Flags(0)
	if p.HasMetadata {
		flags |= frame.FlagMetadata
	}
	return frame.Frame{
		Header:          frame.Header{StreamID: id, Type: t, Flags: flags},
		InitialRequestN: initialRequestN,
		HasMetadata:     p.HasMetadata,
		Metadata:        p.Metadata,
		Data:            p.Data,
	}
}
