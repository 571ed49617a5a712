package rsocket

import "github.com/ciychodianda/rsocket-go/frame"

// Kind identifies which of the four interaction models a stream entry
// belongs to.
type Kind int

const (
	KindRequestResponse Kind = iota
	KindRequestStream
	KindRequestChannel
	KindFireAndForget
)

func (k Kind) String() string {
	switch k {
	case KindRequestResponse:
		return "REQUEST_RESPONSE"
	case KindRequestStream:
		return "REQUEST_STREAM"
	case KindRequestChannel:
		return "REQUEST_CHANNEL"
	case KindFireAndForget:
		return "FIRE_AND_FORGET"
	default:
		return "UNKNOWN_KIND"
	}
}

// HalfState is the open/closed state of one half (local or remote) of a
// stream's two-half state machine.
type HalfState int

const (
	HalfOpen HalfState = iota
	HalfClosed
)

// Role identifies which side of the connection minted a stream ID.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// maxDemand is the saturation ceiling for outstanding demand; adding demand
// clamps at this value instead of wrapping.
const maxDemand uint32 = 1<<31 - 1

// addSaturating adds b to a, clamping at maxDemand instead of wrapping.
func addSaturating(a, b uint32) uint32 {
	if a >= maxDemand {
		return maxDemand
	}
	remaining := maxDemand - a
	if b > remaining {
		return maxDemand
	}
	return a + b
}

// streamEntry is one record in the stream registry. All fields are guarded
// by the owning registry's mutex; callers must never read or write them
// without holding it.
type streamEntry struct {
	id    frame.StreamID
	role  Role // which side minted this ID
	kind  Kind
	epoch uint64 // bumped when the entry is reaped or drained

	// localInitiated is true when this side called allocate (we are the
	// requester on this entry) and false when this side called adopt (we
	// are the responder). Exactly one of requesterSink/responderSink is
	// ever populated, selected by this flag.
	localInitiated bool

	localHalf  HalfState
	remoteHalf HalfState

	outboundDemand uint32 // NEXT frames we may still send
	inboundDemand  uint32 // NEXT frames the peer may still send us

	fragmentType frame.Type // type of the frame whose fragments are being reassembled
	fragmentMeta []byte
	fragmentData []byte
	fragmenting  bool

	// awaitingInitialPayload is true from adopt() until the peer-initiated
	// request's (possibly fragmented) first payload is fully reassembled
	// and the responder has been invoked. Fragmentation applies to
	// request-initiating frames too, continued via PAYLOAD frames on the
	// same stream ID before any handler exists to receive them.
	awaitingInitialPayload bool
	initialRequestN        uint32

	responderSink Sink // sink the local responder drives (inbound NEXT -> app)
	requesterSink Sink // sink the local requester drives (inbound NEXT -> app)

	// responderIsSelfEmitting is true when responderSink is the same
	// wireSink handed to the application as its emit handle (REQUEST_RESPONSE
	// and REQUEST_STREAM, which have no separate inbound-from-peer sink).
	// An inbound REQUEST_N/CANCEL/ERROR on such an entry must update this
	// bookkeeping without being replayed back out through that same
	// wireSink, or it echoes a frame at the peer that just sent one.
	responderIsSelfEmitting bool

	cancelSent bool
	errorSent  bool
}

func (e *streamEntry) terminated() bool {
	return e.localHalf == HalfClosed && e.remoteHalf == HalfClosed
}
