package rsocket

import (
	"sync"

	"github.com/ciychodianda/rsocket-go/frame"
)

// registry owns the live stream table for one connection. It allocates
// stream IDs, indexes entries by ID, and reaps terminated entries. Every
// method takes the registry's mutex, giving exclusive write access across
// both the read loop and caller-initiated writes.
type registry struct {
	mu      sync.Mutex
	role    Role
	nextID  frame.StreamID
	entries map[frame.StreamID]*streamEntry
}

func newRegistry(role Role) *registry {
	start := frame.StreamID(1)
	if role == RoleServer {
		start = frame.StreamID(2)
	}
	return &registry{
		role:    role,
		nextID:  start,
		entries: make(map[frame.StreamID]*streamEntry),
	}
}

// allocate mints the next stream ID for this role, skipping any ID
// currently live in the table, and registers a fresh entry under it.
// Exhausting the 31-bit ID space is reported as ErrStreamIDsExhausted and
// the caller (the connection) must close with CONNECTION_ERROR.
func (r *registry) allocate(kind Kind) (*streamEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.nextID
	for {
		id := r.nextID
		if id > frame.MaxStreamID || id == 0 {
			return nil, ErrStreamIDsExhausted
		}
		r.nextID += 2
		if r.nextID > frame.MaxStreamID {
			// Leave nextID past the ceiling; next call reports exhaustion.
			r.nextID = frame.MaxStreamID + 1
		}
		if _, exists := r.entries[id]; exists {
			if r.nextID > frame.MaxStreamID && id == start {
				return nil, ErrStreamIDsExhausted
			}
			continue
		}
		entry := &streamEntry{
			id:             id,
			role:           r.role,
			kind:           kind,
			localHalf:      HalfOpen,
			remoteHalf:     HalfOpen,
			localInitiated: true,
		}
		r.entries[id] = entry
		return entry, nil
	}
}

// adopt registers a responder-initiated entry under a peer-chosen stream
// ID. It fails if the ID is already live, which at the protocol layer is
// the caller's cue to treat this as a duplicate/violating request.
func (r *registry) adopt(id frame.StreamID, role Role, kind Kind) (*streamEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		return nil, false
	}
	entry := &streamEntry{
		id:                     id,
		role:                   role,
		kind:                   kind,
		localHalf:              HalfOpen,
		remoteHalf:             HalfOpen,
		localInitiated:         false,
		awaitingInitialPayload: true,
	}
	r.entries[id] = entry
	return entry, true
}

func (r *registry) get(id frame.StreamID) (*streamEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

// withEntry runs fn with the registry locked and the entry for id, if any,
// then reaps the entry if fn leaves it terminated. Every state transition
// in stream_machine.go goes through this to keep "terminate -> reap" atomic
// with the transition that caused it.
func (r *registry) withEntry(id frame.StreamID, fn func(e *streamEntry) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	fn(e)
	if e.terminated() {
		delete(r.entries, id)
		e.epoch++
	}
	return true
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// StreamInfo is a read-only snapshot of one live stream, used by the debug
// Snapshot() accessor that backs the operator dashboard.
type StreamInfo struct {
	ID             frame.StreamID
	Kind           Kind
	LocalHalf      HalfState
	RemoteHalf     HalfState
	OutboundDemand uint32
	InboundDemand  uint32
}

func (r *registry) snapshot() []StreamInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StreamInfo, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, StreamInfo{
			ID:             e.id,
			Kind:           e.kind,
			LocalHalf:      e.localHalf,
			RemoteHalf:     e.remoteHalf,
			OutboundDemand: e.outboundDemand,
			InboundDemand:  e.inboundDemand,
		})
	}
	return out
}

// drain removes every entry, invoking fn on each before removal. Used on
// connection close to fan out a synthetic error to every live stream.
func (r *registry) drain(fn func(e *streamEntry)) {
	r.mu.Lock()
	entries := make([]*streamEntry, 0, len(r.entries))
	for id, e := range r.entries {
		entries = append(entries, e)
		delete(r.entries, id)
		e.epoch++
	}
	r.mu.Unlock()
	for _, e := range entries {
		fn(e)
	}
}
