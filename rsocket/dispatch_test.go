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

// blockingResponder parks every request until release is closed, so tests
// can hold a stream open long enough to observe rejection of the next one.
type blockingResponder struct {
	release chan struct{}
}

func (r blockingResponder) HandleFireAndForget(context.Context, Payload) {}

func (r blockingResponder) HandleRequestResponse(_ context.Context, _ Payload, sink Sink) {
	<-r.release
	sink.OnComplete()
}

func (r blockingResponder) HandleRequestStream(context.Context, Payload, uint32, Sink) {}

func (r blockingResponder) HandleRequestChannel(_ context.Context, _ Payload, _ uint32, outbound Sink) Sink {
	return NopSink{}
}

func (r blockingResponder) HandleMetadataPush(context.Context, []byte) {}

func TestMaxConcurrentStreamsRejectsBeyondLimit(t *testing.T) {
	defer leaktest.Check(t)()

	cli, srv := dialPairWithServerOptions(t, WithMaxConcurrentStreams(1))
	defer cli.Close()
	defer srv.Close()

	release := make(chan struct{})
	srv.SetResponder(blockingResponder{release: release})

	firstDone := make(chan struct{})
	first := &syncOnceSink{done: firstDone}
	_, err := cli.Requester().RequestResponse(context.Background(), NewPayloadData([]byte("first")), first)
	require.NoError(t, err)

	// Give the server a moment to adopt the first stream before the second
	// one races in; the limit is enforced against c.reg.count() at adoption
	// time, so the first stream must already be registered.
	time.Sleep(20 * time.Millisecond)

	secondDone := make(chan struct{})
	second := &syncOnceSink{done: secondDone}
	_, err = cli.Requester().RequestResponse(context.Background(), NewPayloadData([]byte("second")), second)
	require.NoError(t, err)

	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for rejection of the second stream")
	}
	require.Len(t, second.errors, 1)
	pe, ok := second.errors[0].(*ProtocolError)
	require.True(t, ok)
	assert.Equal(t, frame.ErrorCodeRejected, pe.Code)

	close(release)
	select {
	case <-firstDone:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the first stream to complete")
	}
}

func TestHandleCancelFrameReapsResponderEntry(t *testing.T) {
	defer leaktest.Check(t)()

	cli, srv := dialPair(t)
	defer cli.Close()
	defer srv.Close()

	release := make(chan struct{})
	srv.SetResponder(blockingResponder{release: release})
	defer close(release)

	sink := &recordingSink{}
	handle, err := cli.Requester().RequestResponse(context.Background(), NewPayloadData([]byte("x")), sink)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, handle.Cancel())
	time.Sleep(20 * time.Millisecond)

	srv.reg.drain(func(e *streamEntry) {
		t.Fatalf("server entry %v should have been reaped after cancel, found it still live", e.id)
	})
}

func TestHandleStreamErrorFrameDeliversOnError(t *testing.T) {
	defer leaktest.Check(t)()

	cli, srv := dialPair(t)
	defer cli.Close()
	defer srv.Close()

	srv.SetResponder(errorResponder{})

	sink := &recordingSink{}
	done := make(chan struct{})
	sink2 := &syncErrorSink{recordingSink: sink, done: done}

	_, err := cli.Requester().RequestResponse(context.Background(), NewPayloadData([]byte("x")), sink2)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error delivery")
	}
	require.Len(t, sink.errors, 1)
	pe, ok := sink.errors[0].(*ProtocolError)
	require.True(t, ok)
	assert.Equal(t, frame.ErrorCodeApplicationError, pe.Code)
}

func TestKeepaliveMaxLifetimeExceededClosesConnection(t *testing.T) {
	defer leaktest.Check(t)()

	a, b := net.Pipe()
	setup := frame.SetupPayload{
		Version:           frame.Version{Major: 1, Minor: 0},
		KeepaliveInterval: 10,
		MaxLifetime:       30,
	}

	srvReady := make(chan *Connection, 1)
	go func() { srvReady <- NewServerConnection(transport.NewTCP(b)) }()

	cli, err := NewClientConnection(transport.NewTCP(a), setup)
	require.NoError(t, err)
	srv := <-srvReady
	defer srv.Close()

	// Starve the server of inbound traffic past maxLifetime; its keepalive
	// loop must notice and close the connection with CONNECTION_ERROR.
	select {
	case <-srv.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("server connection did not close after maxLifetime was exceeded")
	}
	require.Error(t, srv.Err())

	select {
	case <-cli.Done():
	case <-time.After(time.Second):
		t.Fatal("client connection did not observe the peer's CONNECTION_ERROR")
	}
}

type errorResponder struct{}

func (errorResponder) HandleFireAndForget(context.Context, Payload) {}

func (errorResponder) HandleRequestResponse(_ context.Context, _ Payload, sink Sink) {
	sink.OnError(NewProtocolError(frame.ErrorCodeApplicationError, "boom"))
}

func (errorResponder) HandleRequestStream(context.Context, Payload, uint32, Sink) {}

func (errorResponder) HandleRequestChannel(_ context.Context, _ Payload, _ uint32, outbound Sink) Sink {
	return NopSink{}
}

func (errorResponder) HandleMetadataPush(context.Context, []byte) {}

type syncOnceSink struct {
	recordingSink
	done chan struct{}
}

func (s *syncOnceSink) OnComplete() {
	s.recordingSink.OnComplete()
	close(s.done)
}

func (s *syncOnceSink) OnError(err error) {
	s.recordingSink.OnError(err)
	close(s.done)
}

type syncErrorSink struct {
	*recordingSink
	done chan struct{}
}

func (s *syncErrorSink) OnError(err error) {
	s.recordingSink.OnError(err)
	close(s.done)
}

// dialPairWithServerOptions mirrors dialPair but lets the caller install
// server-side options, needed to exercise WithMaxConcurrentStreams.
func dialPairWithServerOptions(t *testing.T, opts ...Option) (client, server *Connection) {
	t.Helper()
	a, b := net.Pipe()
	setup := frame.SetupPayload{
		Version:          frame.Version{Major: 1, Minor: 0},
		MetadataMimeType: "application/octet-stream",
		DataMimeType:     "application/octet-stream",
	}

	srvReady := make(chan *Connection, 1)
	go func() { srvReady <- NewServerConnection(transport.NewTCP(b), opts...) }()

	cli, err := NewClientConnection(transport.NewTCP(a), setup)
	require.NoError(t, err)

	srv := <-srvReady
	time.Sleep(10 * time.Millisecond)
	return cli, srv
}
