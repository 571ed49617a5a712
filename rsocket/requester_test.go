package rsocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoingResponder answers RequestResponse/RequestStream with the request
// payload and mirrors a RequestChannel's inbound half back onto its
// outbound half, the minimum behavior needed to exercise every facade
// method end to end.
type echoingResponder struct{}

func (echoingResponder) HandleFireAndForget(context.Context, Payload) {}

func (echoingResponder) HandleRequestResponse(_ context.Context, req Payload, sink Sink) {
	sink.OnNext(req, true)
}

func (echoingResponder) HandleRequestStream(_ context.Context, req Payload, n uint32, sink Sink) {
	for i := uint32(0); i < n; i++ {
		sink.OnNext(req, i == n-1)
	}
}

func (echoingResponder) HandleRequestChannel(_ context.Context, req Payload, n uint32, outbound Sink) Sink {
	outbound.OnNext(req, false)
	return &channelMirror{outbound: outbound}
}

func (echoingResponder) HandleMetadataPush(context.Context, []byte) {}

type channelMirror struct {
	outbound Sink
}

func (m *channelMirror) OnNext(p Payload, isCompletion bool) { m.outbound.OnNext(p, isCompletion) }
func (m *channelMirror) OnComplete()                         { m.outbound.OnComplete() }
func (m *channelMirror) OnError(err error)                   { m.outbound.OnError(err) }
func (m *channelMirror) OnCancel()                            {}
func (m *channelMirror) OnRequestN(n uint32)                  {}

func TestRequestResponseRoundTrip(t *testing.T) {
	defer leaktest.Check(t)()

	cli, srv := dialPair(t)
	defer cli.Close()
	defer srv.Close()
	srv.SetResponder(echoingResponder{})

	sink := &recordingSink{}
	done := make(chan struct{})
	sink2 := &syncNextSink{recordingSink: sink, done: done}

	_, err := cli.Requester().RequestResponse(context.Background(), NewPayloadData([]byte("ping")), sink2)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response")
	}

	require.Len(t, sink.nexts, 1)
	assert.Equal(t, "ping", string(sink.nexts[0].Data))
}

func TestFireAndForgetDoesNotExpectReply(t *testing.T) {
	defer leaktest.Check(t)()

	cli, srv := dialPair(t)
	defer cli.Close()
	defer srv.Close()
	srv.SetResponder(echoingResponder{})

	require.NoError(t, cli.Requester().FireAndForget(context.Background(), NewPayloadData([]byte("x"))))

	// Give the server a moment to process before asserting on registry state.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, srv.reg.count())
}

func TestRequestStreamDeliversInitialRequestN(t *testing.T) {
	defer leaktest.Check(t)()

	cli, srv := dialPair(t)
	defer cli.Close()
	defer srv.Close()
	srv.SetResponder(echoingResponder{})

	done := make(chan struct{})
	sink := &recordingSink{}
	sink2 := &syncNextSink{recordingSink: sink, done: done, wantCount: 3}

	_, err := cli.Requester().RequestStream(context.Background(), NewPayloadData([]byte("s")), 3, sink2)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stream items")
	}
	assert.Len(t, sink.nexts, 3)
}

func TestRequestChannelMirrorsBothHalves(t *testing.T) {
	defer leaktest.Check(t)()

	cli, srv := dialPair(t)
	defer cli.Close()
	defer srv.Close()
	srv.SetResponder(echoingResponder{})

	done := make(chan struct{})
	sink := &recordingSink{}
	sink2 := &syncNextSink{recordingSink: sink, done: done, wantCount: 1}

	handle, err := cli.Requester().RequestChannel(context.Background(), NewPayloadData([]byte("c")), 8, sink2)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel's initial mirrored item")
	}
	require.NoError(t, handle.Complete())
}

// syncNextSink wraps a recordingSink and closes done once wantCount OnNext
// calls (default 1) have landed, so tests can wait deterministically instead
// of sleeping past the whole round trip.
type syncNextSink struct {
	*recordingSink
	mu        sync.Mutex
	done      chan struct{}
	closed    bool
	wantCount int
}

func (s *syncNextSink) OnNext(p Payload, isCompletion bool) {
	s.recordingSink.OnNext(p, isCompletion)
	s.mu.Lock()
	defer s.mu.Unlock()
	want := s.wantCount
	if want == 0 {
		want = 1
	}
	if !s.closed && len(s.recordingSink.nexts) >= want {
		s.closed = true
		close(s.done)
	}
}
