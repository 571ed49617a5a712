package rsocket

import "sync"

// Sink is the push-based, single-consumer capability set an application
// hands to the connection to receive the events of one stream.
// Implementations must not block; after any terminal call (OnComplete,
// OnError, OnCancel) further calls are no-ops.
type Sink interface {
	OnNext(p Payload, isCompletion bool)
	OnComplete()
	OnError(err error)
	OnCancel()
	OnRequestN(n uint32)
}

// NopSink discards every event. Used where the application did not supply
// a sink (e.g. fire-and-forget has no inbound sink) or after a stream's
// sink has been detached.
type NopSink struct{}

func (NopSink) OnNext(Payload, bool) {}
func (NopSink) OnComplete()          {}
func (NopSink) OnError(error)        {}
func (NopSink) OnCancel()            {}
func (NopSink) OnRequestN(uint32)    {}

// guardedSink wraps an application Sink and enforces "at most one terminal
// event, no-op after" regardless of what the caller does.
type guardedSink struct {
	mu       sync.Mutex
	inner    Sink
	terminal bool
}

func newGuardedSink(inner Sink) *guardedSink {
	if inner == nil {
		inner = NopSink{}
	}
	return &guardedSink{inner: inner}
}

func (g *guardedSink) OnNext(p Payload, isCompletion bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.terminal {
		return
	}
	if isCompletion {
		g.terminal = true
	}
	g.inner.OnNext(p, isCompletion)
}

func (g *guardedSink) OnComplete() {
	g.mu.Lock()
	if g.terminal {
		g.mu.Unlock()
		return
	}
	g.terminal = true
	g.mu.Unlock()
	g.inner.OnComplete()
}

func (g *guardedSink) OnError(err error) {
	g.mu.Lock()
	if g.terminal {
		g.mu.Unlock()
		return
	}
	g.terminal = true
	g.mu.Unlock()
	g.inner.OnError(err)
}

func (g *guardedSink) OnCancel() {
	g.mu.Lock()
	if g.terminal {
		g.mu.Unlock()
		return
	}
	g.terminal = true
	g.mu.Unlock()
	g.inner.OnCancel()
}

func (g *guardedSink) OnRequestN(n uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.terminal {
		return
	}
	g.inner.OnRequestN(n)
}
