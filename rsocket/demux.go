package rsocket

import (
	"github.com/ciychodianda/rsocket-go/frame"
)

// dispatch routes one inbound frame to the connection-level or per-stream
// machinery. It is the sole entry point from readLoop; dispatchMu
// serializes it against the setup-buffer replay run by finishSetup so the
// two never interleave frames out of order.
func (c *Connection) dispatch(f frame.Frame) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	c.dispatchLocked(f)
}

// dispatchLocked is dispatch's body; callers must already hold dispatchMu.
// finishSetup calls this directly to replay the buffered queue without
// deadlocking on a mutex it already holds.
func (c *Connection) dispatchLocked(f frame.Frame) {
	if f.Header.Type == frame.TypeSetup {
		c.handleSetupFrame(f)
		return
	}

	c.mu.Lock()
	if c.bufferingSetup {
		c.setupQueue = append(c.setupQueue, f)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	switch f.Header.Type {
	case frame.TypeKeepalive:
		c.handleKeepaliveFrame(f)
	case frame.TypeLease:
		c.handleLeaseFrame(f)
	case frame.TypeMetadataPush:
		c.getResponder().HandleMetadataPush(c.ctx, f.Metadata)
	case frame.TypeResume, frame.TypeResumeOK, frame.TypeExt:
		// Resumption and extension frames are decoded for wire-completeness
		// but resumption itself is not implemented; treat as late frames
		// for observability.
		c.reportLate(f)
	case frame.TypeError:
		if f.StreamID() == frame.StreamZero {
			c.handleConnectionLevelError(f)
		} else {
			c.dispatchStreamFrame(f)
		}
	default:
		c.dispatchStreamFrame(f)
	}
}

func (c *Connection) handleLeaseFrame(f frame.Frame) {
	// LEASE is advisory at this layer: the decoded frame is discarded. No
	// lease state is kept, the application is not notified, and outbound
	// requests are not limited by it.
	_ = f
}

func (c *Connection) handleConnectionLevelError(f frame.Frame) {
	_ = c.closeWith(NewProtocolError(f.ErrorCode, f.ErrorData))
}

// reportLate hands f to whichever late-frame handler matches the role this
// connection would have played on its stream ID, or the requester handler
// for stream-zero frames the switch above didn't otherwise claim.
func (c *Connection) reportLate(f frame.Frame) {
	if f.StreamID() == frame.StreamZero {
		c.opts.requesterLateFrameHandler(f)
		return
	}
	if c.weInitiated(f.StreamID()) {
		c.opts.requesterLateFrameHandler(f)
	} else {
		c.opts.responderLateFrameHandler(f)
	}
}

// weInitiated reports whether a stream ID of this parity would have been
// minted by this connection's own role (odd for a client, even for a
// server), independent of whether an entry for it is still live.
func (c *Connection) weInitiated(id frame.StreamID) bool {
	isOdd := id%2 == 1
	if c.role == RoleClient {
		return isOdd
	}
	return !isOdd
}

// dispatchStreamFrame handles every non-zero-stream frame type: first
// frames of a peer-initiated request create a new entry and invoke the
// responder; everything else is routed to the existing entry's state
// machine, or reported late if none exists.
func (c *Connection) dispatchStreamFrame(f frame.Frame) {
	id := f.StreamID()

	switch f.Header.Type {
	case frame.TypeRequestResponse, frame.TypeRequestFNF, frame.TypeRequestStream, frame.TypeRequestChannel:
		if c.weInitiated(id) {
			// A request-initiating type on an ID of our own parity is a
			// protocol violation; treat as late rather than adopting it.
			c.reportLate(f)
			return
		}
		if _, exists := c.reg.get(id); exists {
			c.sendStreamError(id, frame.ErrorCodeRejected, "duplicate stream id")
			return
		}
		c.handleNewRequest(f)
		return
	}

	entry, ok := c.reg.get(id)
	if !ok {
		c.reportLate(f)
		return
	}

	if f.Header.Type == frame.TypePayload && c.isAwaitingInitialPayload(entry.id) {
		c.continueInitialPayload(entry, f)
		return
	}

	switch f.Header.Type {
	case frame.TypePayload:
		c.handlePayloadFrame(entry, f)
	case frame.TypeRequestN:
		c.handleRequestNFrame(entry, f)
	case frame.TypeCancel:
		c.handleCancelFrame(entry)
	case frame.TypeError:
		c.handleStreamErrorFrame(entry, f)
	default:
		c.reportLate(f)
	}
}

func (c *Connection) sendStreamError(id frame.StreamID, code frame.ErrorCode, msg string) {
	_ = c.writeFrame(frame.Frame{
		Header:    frame.Header{StreamID: id, Type: frame.TypeError},
		ErrorCode: code,
		ErrorData: msg,
	})
}

// handleNewRequest adopts a peer-initiated stream and, once its (possibly
// fragmented) first payload is fully reassembled, invokes the installed
// Responder.
func (c *Connection) handleNewRequest(f frame.Frame) {
	id := f.StreamID()
	kind := kindForType(f.Header.Type)

	if c.opts.maxConcurrentStreams > 0 && c.reg.count() >= c.opts.maxConcurrentStreams {
		c.sendStreamError(id, frame.ErrorCodeRejected, "max concurrent streams exceeded")
		return
	}

	entry, ok := c.reg.adopt(id, peerRole(c.role), kind)
	if !ok {
		c.sendStreamError(id, frame.ErrorCodeRejected, "duplicate stream id")
		return
	}
	if kind == KindRequestStream || kind == KindRequestChannel {
		c.reg.withEntry(id, func(e *streamEntry) bool {
			e.initialRequestN = f.InitialRequestN
			return false
		})
	}

	payload, done, err := c.reassembleLocked(entry, f)
	if err != nil {
		c.failAndReap(entry, err)
		return
	}
	if !done {
		return
	}
	c.startResponder(entry, payload)
}

// continueInitialPayload folds a PAYLOAD fragment into an entry still
// awaiting its first complete request payload.
func (c *Connection) continueInitialPayload(entry *streamEntry, f frame.Frame) {
	payload, done, err := c.reassembleLocked(entry, f)
	if err != nil {
		c.failAndReap(entry, err)
		return
	}
	if !done {
		return
	}
	c.startResponder(entry, payload)
}

func (c *Connection) startResponder(entry *streamEntry, payload Payload) {
	id := entry.id
	var kind Kind
	var initialRequestN uint32
	c.reg.withEntry(id, func(e *streamEntry) bool {
		e.awaitingInitialPayload = false
		kind = e.kind
		initialRequestN = e.initialRequestN
		return false
	})

	responder := c.getResponder()
	outbound := newWireSink(c, id)

	switch kind {
	case KindFireAndForget:
		c.reg.withEntry(id, func(e *streamEntry) bool {
			e.localHalf = HalfClosed
			e.remoteHalf = HalfClosed
			return true
		})
		go responder.HandleFireAndForget(c.ctx, payload)
	case KindRequestResponse:
		guarded := newGuardedSink(outbound)
		c.reg.withEntry(id, func(e *streamEntry) bool {
			e.responderSink = guarded
			e.responderIsSelfEmitting = true
			// REQUEST_RESPONSE has no REQUEST_N of its own; the single
			// reply gets exactly one implicit credit.
			e.outboundDemand = 1
			return false
		})
		go responder.HandleRequestResponse(c.ctx, payload, guarded)
	case KindRequestStream:
		guarded := newGuardedSink(outbound)
		c.reg.withEntry(id, func(e *streamEntry) bool {
			e.responderSink = guarded
			e.responderIsSelfEmitting = true
			e.outboundDemand = addSaturating(e.outboundDemand, initialRequestN)
			return false
		})
		go responder.HandleRequestStream(c.ctx, payload, initialRequestN, guarded)
	case KindRequestChannel:
		c.reg.withEntry(id, func(e *streamEntry) bool {
			e.outboundDemand = addSaturating(e.outboundDemand, initialRequestN)
			return false
		})
		go func() {
			inbound := responder.HandleRequestChannel(c.ctx, payload, initialRequestN, outbound)
			c.reg.withEntry(id, func(e *streamEntry) bool {
				e.responderSink = newGuardedSink(inbound)
				return false
			})
		}()
	}
}

func kindForType(t frame.Type) Kind {
	switch t {
	case frame.TypeRequestResponse:
		return KindRequestResponse
	case frame.TypeRequestFNF:
		return KindFireAndForget
	case frame.TypeRequestStream:
		return KindRequestStream
	case frame.TypeRequestChannel:
		return KindRequestChannel
	default:
		return KindRequestResponse
	}
}

func (c *Connection) isAwaitingInitialPayload(id frame.StreamID) bool {
	var awaiting bool
	c.reg.withEntry(id, func(e *streamEntry) bool {
		awaiting = e.awaitingInitialPayload
		return false
	})
	return awaiting
}

func peerRole(local Role) Role {
	if local == RoleClient {
		return RoleServer
	}
	return RoleClient
}

// reassembleLocked runs reassemble under the registry lock so that a
// concurrent Close/drain cannot observe a half-updated fragment buffer.
func (c *Connection) reassembleLocked(entry *streamEntry, f frame.Frame) (Payload, bool, error) {
	var payload Payload
	var done bool
	var err error
	c.reg.withEntry(entry.id, func(e *streamEntry) bool {
		payload, done, err = c.reassemble(e, f)
		return false
	})
	return payload, done, err
}

func (c *Connection) failAndReap(entry *streamEntry, err error) {
	c.reg.withEntry(entry.id, func(e *streamEntry) bool {
		failEntry(e, err)
		return true
	})
}

// handlePayloadFrame processes an inbound PAYLOAD for an existing stream:
// NEXT/COMPLETE deliver to whichever application Sink is active on this
// entry, selected by which side locally initiated it.
func (c *Connection) handlePayloadFrame(entry *streamEntry, f frame.Frame) {
	if f.IsFollows() {
		if _, _, err := c.reassembleLocked(entry, f); err != nil {
			c.failAndReap(entry, err)
		}
		return
	}

	payload, done, err := c.reassembleLocked(entry, f)
	if err != nil {
		c.failAndReap(entry, err)
		return
	}
	if !done {
		return
	}

	isComplete := f.IsComplete()
	hasData := f.IsNext()

	if entry.kind == KindRequestResponse && hasData && !isComplete {
		c.failAndReap(entry, NewProtocolError(frame.ErrorCodeCanceled, "REQUEST_RESPONSE PAYLOAD without COMPLETE"))
		return
	}

	sink := c.activeSink(entry)
	if sink == nil {
		return
	}

	if hasData {
		sink.OnNext(payload, isComplete)
	} else if isComplete {
		sink.OnComplete()
	}

	if isComplete {
		c.reg.withEntry(entry.id, func(e *streamEntry) bool {
			e.remoteHalf = HalfClosed
			return true
		})
	}
}

// handleRequestNFrame folds an inbound REQUEST_N into outboundDemand. On a
// REQUEST_RESPONSE/REQUEST_STREAM entry held as responder, that demand
// bookkeeping is everything the sink's own OnRequestN would have done
// anyway, and the sink here is the same wireSink the application emits
// through — forwarding to it would write a second REQUEST_N back at the
// peer that just sent one, instead of merely being told "you may send
// more". Only a genuinely separate sink (a channel's own inbound handler,
// or the requester's own application sink) gets notified.
func (c *Connection) handleRequestNFrame(entry *streamEntry, f frame.Frame) {
	var selfEmitting bool
	c.reg.withEntry(entry.id, func(e *streamEntry) bool {
		e.outboundDemand = addSaturating(e.outboundDemand, f.RequestN)
		selfEmitting = e.responderIsSelfEmitting
		return false
	})
	if selfEmitting {
		return
	}
	if sink := c.activeSink(entry); sink != nil {
		sink.OnRequestN(f.RequestN)
	}
}

func (c *Connection) handleCancelFrame(entry *streamEntry) {
	sink := c.activeSink(entry)
	var selfEmitting bool
	c.reg.withEntry(entry.id, func(e *streamEntry) bool {
		selfEmitting = e.responderIsSelfEmitting
		e.remoteHalf = HalfClosed
		e.localHalf = HalfClosed
		return true
	})
	if sink != nil && !selfEmitting {
		sink.OnCancel()
	}
}

func (c *Connection) handleStreamErrorFrame(entry *streamEntry, f frame.Frame) {
	sink := c.activeSink(entry)
	var selfEmitting bool
	c.reg.withEntry(entry.id, func(e *streamEntry) bool {
		selfEmitting = e.responderIsSelfEmitting
		e.remoteHalf = HalfClosed
		e.localHalf = HalfClosed
		return true
	})
	if sink != nil && !selfEmitting {
		sink.OnError(NewProtocolError(f.ErrorCode, f.ErrorData))
	}
}

// activeSink returns the one Sink that receives inbound wire events for
// entry, selected by which side locally initiated it.
func (c *Connection) activeSink(entry *streamEntry) Sink {
	var sink Sink
	c.reg.withEntry(entry.id, func(e *streamEntry) bool {
		if e.localInitiated {
			sink = e.requesterSink
		} else {
			sink = e.responderSink
		}
		return false
	})
	return sink
}
