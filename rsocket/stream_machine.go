package rsocket

import (
	"github.com/ciychodianda/rsocket-go/frame"
	"go.uber.org/zap"
)

// wireSink is the outbound half of a stream: calling any of its Sink
// methods encodes and writes the corresponding wire frame for id. The
// responder path (startResponder) hands one of these to the application as
// the handle that pushes frames toward the peer; the requester side writes
// through StreamHandle/ChannelHandle instead. The inbound-from-peer
// direction is delivered separately, via the Sink the application supplied
// or returned, looked up from the registry entry.
type wireSink struct {
	conn *Connection
	id   frame.StreamID
}

func newWireSink(conn *Connection, id frame.StreamID) *wireSink {
	return &wireSink{conn: conn, id: id}
}

func (w *wireSink) OnNext(p Payload, isCompletion bool) {
	var allowed bool
	w.conn.reg.withEntry(w.id, func(e *streamEntry) bool {
		if e.outboundDemand == 0 {
			return false
		}
		allowed = true
		e.outboundDemand--
		if isCompletion {
			e.localHalf = HalfClosed
		}
		return e.terminated()
	})
	if !allowed {
		w.conn.logger.Warn("dropping NEXT: no outbound demand", zap.Uint32("stream_id", uint32(w.id)))
		return
	}

	flags := frame.FlagNext
	if isCompletion {
		flags |= frame.FlagComplete
	}
	if p.HasMetadata {
		flags |= frame.FlagMetadata
	}
	_ = w.conn.writeFrame(frame.Frame{
		Header:      frame.Header{StreamID: w.id, Type: frame.TypePayload, Flags: flags},
		HasMetadata: p.HasMetadata,
		Metadata:    p.Metadata,
		Data:        p.Data,
	})
}

func (w *wireSink) OnComplete() {
	_ = w.conn.writeFrame(frame.Frame{
		Header: frame.Header{StreamID: w.id, Type: frame.TypePayload, Flags: frame.FlagComplete},
	})
	w.conn.reg.withEntry(w.id, func(e *streamEntry) bool {
		e.localHalf = HalfClosed
		return true
	})
}

func (w *wireSink) OnError(err error) {
	code, msg := errorFrameFields(err)
	var already bool
	w.conn.reg.withEntry(w.id, func(e *streamEntry) bool {
		already = e.errorSent
		e.errorSent = true
		e.localHalf = HalfClosed
		e.remoteHalf = HalfClosed
		return true
	})
	if already {
		return
	}
	_ = w.conn.writeFrame(frame.Frame{
		Header:    frame.Header{StreamID: w.id, Type: frame.TypeError},
		ErrorCode: code,
		ErrorData: msg,
	})
}

func (w *wireSink) OnCancel() {
	var already bool
	w.conn.reg.withEntry(w.id, func(e *streamEntry) bool {
		already = e.cancelSent
		e.cancelSent = true
		e.localHalf = HalfClosed
		e.remoteHalf = HalfClosed
		return true
	})
	if already {
		return
	}
	_ = w.conn.writeFrame(frame.Frame{
		Header: frame.Header{StreamID: w.id, Type: frame.TypeCancel},
	})
}

func (w *wireSink) OnRequestN(n uint32) {
	if n == 0 {
		return
	}
	_ = w.conn.writeFrame(frame.Frame{
		Header:   frame.Header{StreamID: w.id, Type: frame.TypeRequestN},
		RequestN: n,
	})
}

// errorFrameFields maps a Go error to the wire ErrorCode/message pair sent
// in an ERROR frame. A *ProtocolError carries its own code; anything else
// is reported as APPLICATION_ERROR, distinguishing protocol violations
// from application-level failures.
func errorFrameFields(err error) (frame.ErrorCode, string) {
	if pe, ok := err.(*ProtocolError); ok {
		return pe.Code, pe.Message
	}
	if err == nil {
		return frame.ErrorCodeApplicationError, ""
	}
	return frame.ErrorCodeApplicationError, err.Error()
}

// reassemble folds one inbound fragment into entry's pending reassembly
// buffer. It returns the completed Payload and true once a frame without
// FOLLOWS arrives; otherwise it buffers and returns false. Exceeding
// opts.fragmentCap aborts reassembly and reports ErrorCodeCanceled.
func (c *Connection) reassemble(e *streamEntry, f frame.Frame) (Payload, bool, error) {
	if f.IsFollows() {
		e.fragmenting = true
		e.fragmentType = f.Header.Type
		e.fragmentMeta = append(e.fragmentMeta, f.Metadata...)
		e.fragmentData = append(e.fragmentData, f.Data...)
		if c.opts.fragmentCap > 0 && len(e.fragmentMeta)+len(e.fragmentData) > c.opts.fragmentCap {
			e.fragmenting = false
			e.fragmentMeta = nil
			e.fragmentData = nil
			return Payload{}, false, NewProtocolError(frame.ErrorCodeCanceled, "fragment reassembly exceeded cap")
		}
		return Payload{}, false, nil
	}
	if !e.fragmenting {
		return Payload{HasMetadata: f.HasMetadata, Metadata: f.Metadata, Data: f.Data}, true, nil
	}
	meta := append(e.fragmentMeta, f.Metadata...)
	data := append(e.fragmentData, f.Data...)
	hasMeta := f.HasMetadata || len(e.fragmentMeta) > 0
	e.fragmenting = false
	e.fragmentMeta = nil
	e.fragmentData = nil
	if c.opts.fragmentCap > 0 && len(meta)+len(data) > c.opts.fragmentCap {
		return Payload{}, false, NewProtocolError(frame.ErrorCodeCanceled, "fragment reassembly exceeded cap")
	}
	return Payload{HasMetadata: hasMeta, Metadata: meta, Data: data}, true, nil
}
