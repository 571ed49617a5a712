package frame

// Frame is the in-memory representation of every RSocket frame type. Only
// the fields relevant to Header.Type are meaningful; Encode/Decode only
// read or write the subset a given type defines on the wire. This flat
// layout (one struct, fields tagged by relevance rather than a type
// hierarchy) keeps decode allocation-free beyond the payload slices
// themselves.
type Frame struct {
	Header Header

	// SETUP
	Version           Version
	KeepaliveInterval uint32 // milliseconds
	MaxLifetime       uint32 // milliseconds
	ResumeToken       []byte
	MetadataMimeType  string
	DataMimeType      string

	// LEASE
	LeaseTTL             uint32 // milliseconds
	LeaseNumberOfRequests uint32

	// KEEPALIVE
	LastReceivedPosition uint64

	// REQUEST_STREAM, REQUEST_CHANNEL
	InitialRequestN uint32

	// REQUEST_N
	RequestN uint32

	// ERROR
	ErrorCode ErrorCode
	ErrorData string

	// RESUME
	LastReceivedServerPosition uint64
	FirstAvailableClientPosition uint64

	// RESUME_OK
	LastReceivedClientPosition uint64

	// EXT
	ExtendedType uint32

	// Payload, shared by SETUP, LEASE, KEEPALIVE, REQUEST_RESPONSE,
	// REQUEST_FNF, REQUEST_STREAM, REQUEST_CHANNEL, PAYLOAD,
	// METADATA_PUSH. HasMetadata distinguishes zero-length metadata
	// (flag set, len 0) from absent metadata (flag unset).
	HasMetadata bool
	Metadata    []byte
	Data        []byte
}

// StreamID is a convenience accessor.
func (f Frame) StreamID() StreamID { return f.Header.StreamID }

// Type is a convenience accessor.
func (f Frame) Type() Type { return f.Header.Type }

// IsFollows reports whether the FOLLOWS flag is set, i.e. this frame is a
// fragment and more fragments of the same logical request follow.
func (f Frame) IsFollows() bool { return f.Header.Flags.Has(FlagFollows) }

// IsComplete reports whether the COMPLETE flag is set.
func (f Frame) IsComplete() bool { return f.Header.Flags.Has(FlagComplete) }

// IsNext reports whether the NEXT flag is set.
func (f Frame) IsNext() bool { return f.Header.Flags.Has(FlagNext) }

// IsRespond reports whether the KEEPALIVE RESPOND flag is set.
func (f Frame) IsRespond() bool { return f.Header.Flags.Has(FlagRespond) }

// IsIgnore reports whether the IGNORE flag is set.
func (f Frame) IsIgnore() bool { return f.Header.Flags.Has(FlagIgnore) }

// IsHonorsLease reports whether SETUP's LEASE flag is set.
func (f Frame) IsHonorsLease() bool { return f.Header.Flags.Has(FlagLease) }

// HasResumeToken reports whether SETUP's RESUME flag is set.
func (f Frame) HasResumeToken() bool { return f.Header.Flags.Has(FlagResume) }

// SetupPayload is a read-only view of a SETUP frame's negotiated fields,
// handed to the integrator's ShouldAcceptClient gate.
type SetupPayload struct {
	Version           Version
	KeepaliveInterval uint32
	MaxLifetime       uint32
	MetadataMimeType  string
	DataMimeType      string
	HonorsLease       bool
	ResumeToken       []byte
	HasMetadata       bool
	Metadata          []byte
	Data              []byte
}

// NewSetupPayload extracts the SetupPayload view from a decoded SETUP frame.
// It panics if f is not a SETUP frame; callers are expected to have already
// dispatched on Header.Type.
func NewSetupPayload(f Frame) SetupPayload {
	if f.Header.Type != TypeSetup {
		panic("frame: NewSetupPayload called on non-SETUP frame")
	}
	return SetupPayload{
		Version:           f.Version,
		KeepaliveInterval: f.KeepaliveInterval,
		MaxLifetime:       f.MaxLifetime,
		MetadataMimeType:  f.MetadataMimeType,
		DataMimeType:      f.DataMimeType,
		HonorsLease:       f.IsHonorsLease(),
		ResumeToken:       f.ResumeToken,
		HasMetadata:       f.HasMetadata,
		Metadata:          f.Metadata,
		Data:              f.Data,
	}
}
