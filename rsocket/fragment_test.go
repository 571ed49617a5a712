package rsocket

import (
	"testing"

	"github.com/ciychodianda/rsocket-go/frame"
)

func TestReassembleSingleFrameNoFollows(t *testing.T) {
	c := &Connection{opts: defaultOptions()}
	e := &streamEntry{}

	p, done, err := c.reassemble(e, frame.Frame{
		Header: frame.Header{Type: frame.TypePayload, Flags: frame.FlagNext},
		Data:   []byte("hello"),
	})
	if err != nil {
		t.Fatalf("reassemble: %v", err)
	}
	if !done {
		t.Fatal("single frame without FOLLOWS should complete immediately")
	}
	if string(p.Data) != "hello" {
		t.Fatalf("data = %q, want %q", p.Data, "hello")
	}
}

func TestReassembleAccumulatesFollowsFragments(t *testing.T) {
	c := &Connection{opts: defaultOptions()}
	e := &streamEntry{}

	_, done, err := c.reassemble(e, frame.Frame{
		Header: frame.Header{Type: frame.TypePayload, Flags: frame.FlagFollows | frame.FlagNext},
		Data:   []byte("hel"),
	})
	if err != nil || done {
		t.Fatalf("first fragment: done=%v err=%v, want done=false err=nil", done, err)
	}
	if !e.fragmenting {
		t.Fatal("entry should record that reassembly is in progress")
	}

	p, done, err := c.reassemble(e, frame.Frame{
		Header: frame.Header{Type: frame.TypePayload, Flags: frame.FlagNext},
		Data:   []byte("lo"),
	})
	if err != nil {
		t.Fatalf("final fragment: %v", err)
	}
	if !done {
		t.Fatal("fragment without FOLLOWS should complete reassembly")
	}
	if string(p.Data) != "hello" {
		t.Fatalf("reassembled data = %q, want %q", p.Data, "hello")
	}
	if e.fragmenting {
		t.Fatal("fragmenting flag should be cleared once reassembly completes")
	}
}

func TestReassembleMergesMetadataAcrossFragments(t *testing.T) {
	c := &Connection{opts: defaultOptions()}
	e := &streamEntry{}

	_, _, err := c.reassemble(e, frame.Frame{
		Header:      frame.Header{Type: frame.TypePayload, Flags: frame.FlagFollows | frame.FlagMetadata | frame.FlagNext},
		HasMetadata: true,
		Metadata:    []byte("met-"),
		Data:        []byte("da-"),
	})
	if err != nil {
		t.Fatalf("first fragment: %v", err)
	}

	p, done, err := c.reassemble(e, frame.Frame{
		Header: frame.Header{Type: frame.TypePayload, Flags: frame.FlagNext},
		Data:   []byte("ta"),
	})
	if err != nil || !done {
		t.Fatalf("final fragment: done=%v err=%v", done, err)
	}
	if !p.HasMetadata || string(p.Metadata) != "met-" {
		t.Fatalf("metadata = %q hasMetadata=%v, want %q true", p.Metadata, p.HasMetadata, "met-")
	}
	if string(p.Data) != "da-ta" {
		t.Fatalf("data = %q, want %q", p.Data, "da-ta")
	}
}

func TestReassembleExceedingFragmentCapReportsCanceled(t *testing.T) {
	opts := defaultOptions()
	opts.fragmentCap = 4
	c := &Connection{opts: opts}
	e := &streamEntry{}

	_, _, err := c.reassemble(e, frame.Frame{
		Header: frame.Header{Type: frame.TypePayload, Flags: frame.FlagFollows | frame.FlagNext},
		Data:   []byte("toolong"),
	})
	if err == nil {
		t.Fatal("expected an error once the fragment cap is exceeded")
	}
	pe, ok := err.(*ProtocolError)
	if !ok {
		t.Fatalf("err = %T, want *ProtocolError", err)
	}
	if pe.Code != frame.ErrorCodeCanceled {
		t.Fatalf("code = %v, want ErrorCodeCanceled", pe.Code)
	}
	if e.fragmenting {
		t.Fatal("fragmenting state should be reset after the cap is exceeded")
	}
}
