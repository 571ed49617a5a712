package rsocket

import "fmt"

// Payload is an opaque metadata+data pair. Presence of metadata is
// significant and distinct from empty metadata; HasMetadata carries that
// distinction once the payload is detached from its wire frame.
type Payload struct {
	HasMetadata bool
	Metadata    []byte
	Data        []byte
}

// NewPayload builds a Payload with metadata present.
func NewPayload(data, metadata []byte) Payload {
	return Payload{HasMetadata: true, Metadata: metadata, Data: data}
}

// NewPayloadData builds a Payload with no metadata.
func NewPayloadData(data []byte) Payload {
	return Payload{Data: data}
}

func (p Payload) String() string {
	if !p.HasMetadata {
		return fmt.Sprintf("Payload{data=%q}", string(p.Data))
	}
	return fmt.Sprintf("Payload{data=%q, metadata=%q}", string(p.Data), string(p.Metadata))
}
