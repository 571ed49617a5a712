package rsocket

import (
	"testing"

	"github.com/ciychodianda/rsocket-go/frame"
)

func TestRegistryAllocateAssignsRoleParity(t *testing.T) {
	client := newRegistry(RoleClient)
	e1, err := client.allocate(KindRequestResponse)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if e1.id%2 != 1 {
		t.Fatalf("client-allocated stream id %d is not odd", e1.id)
	}
	e2, err := client.allocate(KindRequestResponse)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if e2.id == e1.id {
		t.Fatalf("allocate returned duplicate id %d", e1.id)
	}

	server := newRegistry(RoleServer)
	e3, err := server.allocate(KindRequestResponse)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if e3.id%2 != 0 {
		t.Fatalf("server-allocated stream id %d is not even", e3.id)
	}
}

func TestRegistryAdoptRejectsDuplicateID(t *testing.T) {
	r := newRegistry(RoleServer)
	if _, ok := r.adopt(3, RoleClient, KindRequestResponse); !ok {
		t.Fatal("first adopt of id 3 should succeed")
	}
	if _, ok := r.adopt(3, RoleClient, KindRequestResponse); ok {
		t.Fatal("second adopt of the same live id should fail")
	}
}

func TestWithEntryReapsOnTermination(t *testing.T) {
	r := newRegistry(RoleClient)
	e, err := r.allocate(KindFireAndForget)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	r.withEntry(e.id, func(entry *streamEntry) bool {
		entry.localHalf = HalfClosed
		entry.remoteHalf = HalfClosed
		return true
	})
	if _, ok := r.get(e.id); ok {
		t.Fatal("terminated entry should have been reaped")
	}
	if r.count() != 0 {
		t.Fatalf("count = %d, want 0 after reap", r.count())
	}
}

func TestWithEntryLeavesLiveEntryInPlace(t *testing.T) {
	r := newRegistry(RoleClient)
	e, err := r.allocate(KindRequestStream)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	r.withEntry(e.id, func(entry *streamEntry) bool {
		entry.outboundDemand = addSaturating(entry.outboundDemand, 4)
		return false
	})
	got, ok := r.get(e.id)
	if !ok {
		t.Fatal("live entry should remain registered")
	}
	if got.outboundDemand != 4 {
		t.Fatalf("outboundDemand = %d, want 4", got.outboundDemand)
	}
}

func TestRegistryDrainInvokesFnOnEveryEntry(t *testing.T) {
	r := newRegistry(RoleClient)
	var ids []frame.StreamID
	for i := 0; i < 3; i++ {
		e, err := r.allocate(KindRequestResponse)
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		ids = append(ids, e.id)
	}

	seen := make(map[frame.StreamID]bool)
	r.drain(func(e *streamEntry) {
		seen[e.id] = true
	})
	for _, id := range ids {
		if !seen[id] {
			t.Fatalf("drain did not visit id %v", id)
		}
	}
	if r.count() != 0 {
		t.Fatalf("count = %d, want 0 after drain", r.count())
	}
}
