package rsocket

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciychodianda/rsocket-go/frame"
	"github.com/ciychodianda/rsocket-go/transport"
)

// TestResponderRequestNDoesNotEchoToRequester proves a responder-held
// REQUEST_STREAM entry folds an inbound REQUEST_N into its own demand
// bookkeeping without replaying it back out through the same wireSink the
// application emits on. If it did, the echoed REQUEST_N would land on the
// requester's own application sink, since the requester's entry is never
// reaped by this exchange.
func TestResponderRequestNDoesNotEchoToRequester(t *testing.T) {
	defer leaktest.Check(t)()

	cli, srv := dialPair(t)
	defer cli.Close()
	defer srv.Close()

	release := make(chan struct{})
	defer close(release)
	srv.SetResponder(blockingResponder{release: release})

	sink := &recordingSink{}
	handle, err := cli.Requester().RequestStream(context.Background(), NewPayloadData([]byte("go")), 1, sink)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, handle.RequestN(5))

	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, sink.requestNs, "requester's own sink must not observe a REQUEST_N echoed back by the responder")
}

// TestResponderCancelDoesNotEchoToRequester proves that cancelling a
// REQUEST_RESPONSE from the requester side does not cause the responder to
// write a CANCEL frame back. The requester reaps its own entry immediately
// on Cancel, so an illegal echo would surface as a late frame, not a sink
// call.
func TestResponderCancelDoesNotEchoToRequester(t *testing.T) {
	defer leaktest.Check(t)()

	lateFrames := make(chan frame.Frame, 4)
	a, b := net.Pipe()
	setup := frame.SetupPayload{Version: frame.Version{Major: 1, Minor: 0}}

	srvReady := make(chan *Connection, 1)
	go func() {
		srvReady <- NewServerConnection(transport.NewTCP(b))
	}()

	cli, err := NewClientConnection(transport.NewTCP(a), setup, WithRequesterLateFrameHandler(func(f frame.Frame) {
		lateFrames <- f
	}))
	require.NoError(t, err)
	defer cli.Close()
	srv := <-srvReady
	defer srv.Close()
	time.Sleep(10 * time.Millisecond)

	release := make(chan struct{})
	defer close(release)
	srv.SetResponder(blockingResponder{release: release})

	sink := &recordingSink{}
	handle, err := cli.Requester().RequestResponse(context.Background(), NewPayloadData([]byte("go")), sink)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, handle.Cancel())

	select {
	case f := <-lateFrames:
		t.Fatalf("responder echoed a frame back after CANCEL: %v", f.Header.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestResponderErrorDoesNotEchoToRequester proves that an inbound
// stream-level ERROR targeting a responder-held REQUEST_RESPONSE entry
// does not cause the responder to write its own ERROR frame back at the
// peer that just terminated the stream. Driven with a raw transport since
// no requester API naturally sends ERROR against its own in-flight
// request.
func TestResponderErrorDoesNotEchoToRequester(t *testing.T) {
	defer leaktest.Check(t)()

	a, b := net.Pipe()
	driver := transport.NewTCP(a)
	srv := NewServerConnection(transport.NewTCP(b))
	defer srv.Close()

	release := make(chan struct{})
	defer close(release)
	srv.SetResponder(blockingResponder{release: release})

	ctx := context.Background()
	require.NoError(t, driver.Send(ctx, frame.Frame{
		Header:           frame.Header{StreamID: frame.StreamZero, Type: frame.TypeSetup},
		Version:          frame.Version{Major: 1, Minor: 0},
		MetadataMimeType: "application/octet-stream",
		DataMimeType:     "application/octet-stream",
	}))
	time.Sleep(10 * time.Millisecond)

	const streamID = frame.StreamID(1)
	require.NoError(t, driver.Send(ctx, requestFrame(frame.TypeRequestResponse, streamID, 0, NewPayloadData([]byte("go")))))
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, driver.Send(ctx, frame.Frame{
		Header:    frame.Header{StreamID: streamID, Type: frame.TypeError},
		ErrorCode: frame.ErrorCodeApplicationError,
		ErrorData: "client gave up",
	}))

	echoed := make(chan frame.Frame, 1)
	errc := make(chan error, 1)
	go func() {
		f, err := driver.Recv(ctx)
		if err != nil {
			errc <- err
			return
		}
		echoed <- f
	}()

	select {
	case f := <-echoed:
		t.Fatalf("responder echoed a frame back after inbound ERROR: %v", f.Header.Type)
	case err := <-errc:
		_ = err
	case <-time.After(100 * time.Millisecond):
	}
}
