package rsocket

import (
	"context"

	"github.com/ciychodianda/rsocket-go/frame"
)

// Responder is the capability set an application implements to answer
// peer-initiated requests: one method per interaction model, each handed
// the decoded request payload and a Sink (or returning one) rather than
// a raw frame.
//
// For RequestResponse and RequestStream, sink is the outbound handle: call
// sink.OnNext/OnComplete/OnError to answer the peer. A peer CANCEL or ERROR
// ends the stream without any call on sink, since sink is the handler's own
// outbound handle. Calls on sink after the handler's own terminal call are
// no-ops (the connection wraps it in a guardedSink).
//
// For RequestChannel, outbound is the outbound handle for the responder's
// half of the channel (call outbound.OnNext/OnComplete/OnError to emit to
// the peer, observe outbound.OnRequestN for the peer's flow control on
// that half); the returned Sink receives the peer's half (OnNext/
// OnComplete/OnError as the peer's channel payloads arrive, OnCancel if
// the peer cancels).
type Responder interface {
	HandleFireAndForget(ctx context.Context, req Payload)
	HandleRequestResponse(ctx context.Context, req Payload, sink Sink)
	HandleRequestStream(ctx context.Context, req Payload, initialRequestN uint32, sink Sink)
	HandleRequestChannel(ctx context.Context, req Payload, initialRequestN uint32, outbound Sink) Sink
	HandleMetadataPush(ctx context.Context, metadata []byte)
}

// NopResponder rejects every request it is asked to handle. It is the
// default responder on a connection that never calls SetResponder; a peer
// that only ever issues requests one direction (the common client/server
// shape) never needs more than this on the side that makes none.
type NopResponder struct{}

func (NopResponder) HandleFireAndForget(context.Context, Payload) {}

func (NopResponder) HandleRequestResponse(_ context.Context, _ Payload, sink Sink) {
	sink.OnError(NewProtocolError(frame.ErrorCodeRejected, "no responder installed"))
}

func (NopResponder) HandleRequestStream(_ context.Context, _ Payload, _ uint32, sink Sink) {
	sink.OnError(NewProtocolError(frame.ErrorCodeRejected, "no responder installed"))
}

func (NopResponder) HandleRequestChannel(_ context.Context, _ Payload, _ uint32, outbound Sink) Sink {
	outbound.OnError(NewProtocolError(frame.ErrorCodeRejected, "no responder installed"))
	return NopSink{}
}

func (NopResponder) HandleMetadataPush(context.Context, []byte) {}
