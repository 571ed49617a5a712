package frame

import "testing"

func TestHeader_ReservedBitMasked(t *testing.T) {
	buf := make([]byte, HeaderLength)
	// Set the reserved top bit; it must never reach the decoded StreamID.
	encodeHeader(buf, Header{StreamID: StreamID(1) | (1 << 31), Type: TypeRequestResponse})
	h := decodeHeader(buf)
	if h.StreamID != 1 {
		t.Fatalf("reserved bit leaked into StreamID: got %d", h.StreamID)
	}
}

func TestNewSetupPayload(t *testing.T) {
	f := Frame{
		Header:            Header{StreamID: StreamZero, Type: TypeSetup, Flags: FlagLease},
		Version:           Version{Major: 1, Minor: 0},
		KeepaliveInterval: 500,
		MaxLifetime:       5000,
		MetadataMimeType:  "utf8",
		DataMimeType:      "utf8",
	}
	sp := NewSetupPayload(f)
	if sp.KeepaliveInterval != 500 || sp.MaxLifetime != 5000 {
		t.Fatalf("unexpected setup payload: %+v", sp)
	}
	if !sp.HonorsLease {
		t.Fatalf("expected HonorsLease true")
	}
	if sp.Version.String() != "1.0" {
		t.Fatalf("unexpected version string: %s", sp.Version.String())
	}
}

func TestNewSetupPayload_PanicsOnWrongType(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for non-SETUP frame")
		}
	}()
	NewSetupPayload(Frame{Header: Header{Type: TypeCancel}})
}
