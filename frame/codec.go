package frame

import "encoding/binary"

const maxMetadataLength = 1<<24 - 1

// Encode turns f into wire octets. It sets the METADATA flag iff f carries
// metadata (f.HasMetadata); flags that describe application semantics
// (COMPLETE, NEXT, FOLLOWS, RESPOND, LEASE, RESUME, IGNORE) must already be
// set by the caller on f.Header.Flags — Encode never infers them.
func Encode(f Frame) ([]byte, error) {
	if err := validateStreamID(f); err != nil {
		return nil, err
	}
	if f.HasMetadata {
		f.Header.Flags |= FlagMetadata
	} else {
		f.Header.Flags &^= FlagMetadata
	}
	if len(f.Metadata) > maxMetadataLength {
		return nil, newCodecError(InvalidMetadataLength, "metadata exceeds 24-bit length field")
	}

	var body []byte
	switch f.Header.Type {
	case TypeSetup:
		body = encodeSetup(f)
	case TypeLease:
		body = encodeLease(f)
	case TypeKeepalive:
		body = encodeKeepalive(f)
	case TypeRequestResponse, TypeRequestFNF:
		body = encodePayloadBody(f)
	case TypeRequestStream, TypeRequestChannel:
		body = encodeRequestManyBody(f)
	case TypeRequestN:
		body = encodeRequestN(f)
	case TypeCancel:
		body = nil
	case TypePayload:
		body = encodePayloadBody(f)
	case TypeError:
		body = encodeError(f)
	case TypeMetadataPush:
		body = append([]byte{}, f.Metadata...)
	case TypeResume:
		body = encodeResume(f)
	case TypeResumeOK:
		body = encodeResumeOK(f)
	case TypeExt:
		body = encodeExt(f)
	default:
		return nil, newCodecError(UnsupportedFrameType, f.Header.Type.String())
	}

	out := make([]byte, HeaderLength+len(body))
	encodeHeader(out, f.Header)
	copy(out[HeaderLength:], body)
	return out, nil
}

func validateStreamID(f Frame) error {
	switch f.Header.Type {
	case TypeSetup, TypeLease, TypeMetadataPush, TypeResume, TypeResumeOK:
		if f.Header.StreamID != StreamZero {
			return newCodecError(InvalidStreamID, f.Header.Type.String()+" must use stream 0")
		}
	case TypeKeepalive:
		if f.Header.StreamID != StreamZero {
			return newCodecError(InvalidStreamID, "KEEPALIVE must use stream 0")
		}
	case TypeRequestResponse, TypeRequestFNF, TypeRequestStream, TypeRequestChannel,
		TypeRequestN, TypeCancel, TypePayload:
		if f.Header.StreamID == StreamZero {
			return newCodecError(InvalidStreamID, f.Header.Type.String()+" must not use stream 0")
		}
	case TypeError:
		// ERROR is legal on stream 0 (connection-level) or n (stream-level).
	}
	if f.Header.StreamID > MaxStreamID {
		return newCodecError(InvalidStreamID, "stream id exceeds 31 bits")
	}
	return nil
}

// Decode parses a single frame's octets (header + body, no length prefix —
// the transport strips its own length prefix before Decode ever sees the
// buffer). ignoreUnknown, when true, silently discards frames of unknown
// type carrying the IGNORE flag instead of returning UnsupportedFrameType.
func Decode(buf []byte) (Frame, error) {
	if len(buf) < HeaderLength {
		return Frame{}, newCodecError(InsufficientBytes, "buffer shorter than header")
	}
	h := decodeHeader(buf)
	body := buf[HeaderLength:]
	f := Frame{Header: h}

	switch h.Type {
	case TypeSetup:
		return decodeSetup(f, body)
	case TypeLease:
		return decodeLease(f, body)
	case TypeKeepalive:
		return decodeKeepalive(f, body)
	case TypeRequestResponse, TypeRequestFNF:
		return decodePayloadBody(f, body)
	case TypeRequestStream, TypeRequestChannel:
		return decodeRequestManyBody(f, body)
	case TypeRequestN:
		return decodeRequestN(f, body)
	case TypeCancel:
		return f, nil
	case TypePayload:
		return decodePayloadBody(f, body)
	case TypeError:
		return decodeError(f, body)
	case TypeMetadataPush:
		f.HasMetadata = true
		f.Metadata = append([]byte{}, body...)
		return f, nil
	case TypeResume:
		return decodeResume(f, body)
	case TypeResumeOK:
		return decodeResumeOK(f, body)
	case TypeExt:
		return decodeExt(f, body)
	default:
		if h.Flags.Has(FlagIgnore) {
			f.Header.Type = h.Type
			return f, nil
		}
		return Frame{}, newCodecError(UnsupportedFrameType, h.Type.String())
	}
}

// --- metadata+data payload helpers ---

func encodeMetadataPrefix(buf *[]byte, metadata []byte) {
	n := len(metadata)
	*buf = append(*buf, byte(n>>16), byte(n>>8), byte(n))
	*buf = append(*buf, metadata...)
}

func readMetadataPrefix(body []byte) (metadata, rest []byte, err error) {
	if len(body) < 3 {
		return nil, nil, newCodecError(InvalidMetadataLength, "truncated metadata length")
	}
	n := int(body[0])<<16 | int(body[1])<<8 | int(body[2])
	if len(body)-3 < n {
		return nil, nil, newCodecError(InvalidMetadataLength, "metadata length exceeds frame body")
	}
	return body[3 : 3+n], body[3+n:], nil
}

func encodePayloadBody(f Frame) []byte {
	var buf []byte
	if f.HasMetadata {
		encodeMetadataPrefix(&buf, f.Metadata)
	}
	buf = append(buf, f.Data...)
	return buf
}

func decodePayloadBody(f Frame, body []byte) (Frame, error) {
	if f.Header.Flags.Has(FlagMetadata) {
		metadata, rest, err := readMetadataPrefix(body)
		if err != nil {
			return Frame{}, err
		}
		f.HasMetadata = true
		f.Metadata = append([]byte{}, metadata...)
		f.Data = append([]byte{}, rest...)
		return f, nil
	}
	f.Data = append([]byte{}, body...)
	return f, nil
}

func encodeRequestManyBody(f Frame) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, f.InitialRequestN)
	buf = append(buf, encodePayloadBody(f)...)
	return buf
}

func decodeRequestManyBody(f Frame, body []byte) (Frame, error) {
	if len(body) < 4 {
		return Frame{}, newCodecError(InsufficientBytes, "missing initialRequestN")
	}
	f.InitialRequestN = binary.BigEndian.Uint32(body[0:4])
	return decodePayloadBody(f, body[4:])
}

func encodeRequestN(f Frame) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, f.RequestN)
	return buf
}

func decodeRequestN(f Frame, body []byte) (Frame, error) {
	if len(body) < 4 {
		return Frame{}, newCodecError(InsufficientBytes, "missing requestN")
	}
	f.RequestN = binary.BigEndian.Uint32(body[0:4])
	return f, nil
}

func encodeError(f Frame) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(f.ErrorCode))
	buf = append(buf, []byte(f.ErrorData)...)
	return buf
}

func decodeError(f Frame, body []byte) (Frame, error) {
	if len(body) < 4 {
		return Frame{}, newCodecError(InsufficientBytes, "missing error code")
	}
	f.ErrorCode = ErrorCode(binary.BigEndian.Uint32(body[0:4]))
	f.ErrorData = string(body[4:])
	return f, nil
}

func encodeSetup(f Frame) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint16(buf[0:2], f.Version.Major)
	binary.BigEndian.PutUint16(buf[2:4], f.Version.Minor)
	binary.BigEndian.PutUint32(buf[4:8], f.KeepaliveInterval)
	binary.BigEndian.PutUint32(buf[8:12], f.MaxLifetime)
	if f.Header.Flags.Has(FlagResume) {
		tokLen := make([]byte, 2)
		binary.BigEndian.PutUint16(tokLen, uint16(len(f.ResumeToken)))
		buf = append(buf, tokLen...)
		buf = append(buf, f.ResumeToken...)
	}
	buf = append(buf, byte(len(f.MetadataMimeType)))
	buf = append(buf, []byte(f.MetadataMimeType)...)
	buf = append(buf, byte(len(f.DataMimeType)))
	buf = append(buf, []byte(f.DataMimeType)...)
	buf = append(buf, encodePayloadBody(f)...)
	return buf
}

func decodeSetup(f Frame, body []byte) (Frame, error) {
	if len(body) < 12 {
		return Frame{}, newCodecError(InsufficientBytes, "truncated SETUP fixed fields")
	}
	f.Version = Version{
		Major: binary.BigEndian.Uint16(body[0:2]),
		Minor: binary.BigEndian.Uint16(body[2:4]),
	}
	f.KeepaliveInterval = binary.BigEndian.Uint32(body[4:8])
	f.MaxLifetime = binary.BigEndian.Uint32(body[8:12])
	rest := body[12:]
	if f.Header.Flags.Has(FlagResume) {
		if len(rest) < 2 {
			return Frame{}, newCodecError(InsufficientBytes, "truncated resume token length")
		}
		tokLen := int(binary.BigEndian.Uint16(rest[0:2]))
		rest = rest[2:]
		if len(rest) < tokLen {
			return Frame{}, newCodecError(InsufficientBytes, "truncated resume token")
		}
		f.ResumeToken = append([]byte{}, rest[:tokLen]...)
		rest = rest[tokLen:]
	}
	mime, rest, err := readMimeString(rest)
	if err != nil {
		return Frame{}, err
	}
	f.MetadataMimeType = mime
	mime, rest, err = readMimeString(rest)
	if err != nil {
		return Frame{}, err
	}
	f.DataMimeType = mime
	return decodePayloadBody(f, rest)
}

func readMimeString(body []byte) (string, []byte, error) {
	if len(body) < 1 {
		return "", nil, newCodecError(InsufficientBytes, "missing MIME length")
	}
	n := int(body[0])
	if len(body)-1 < n {
		return "", nil, newCodecError(InsufficientBytes, "truncated MIME string")
	}
	return string(body[1 : 1+n]), body[1+n:], nil
}

func encodeLease(f Frame) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], f.LeaseTTL)
	binary.BigEndian.PutUint32(buf[4:8], f.LeaseNumberOfRequests)
	if f.HasMetadata {
		encodeMetadataPrefix(&buf, f.Metadata)
	}
	return buf
}

func decodeLease(f Frame, body []byte) (Frame, error) {
	if len(body) < 8 {
		return Frame{}, newCodecError(InsufficientBytes, "truncated LEASE fixed fields")
	}
	f.LeaseTTL = binary.BigEndian.Uint32(body[0:4])
	f.LeaseNumberOfRequests = binary.BigEndian.Uint32(body[4:8])
	rest := body[8:]
	if f.Header.Flags.Has(FlagMetadata) {
		metadata, _, err := readMetadataPrefix(rest)
		if err != nil {
			return Frame{}, err
		}
		f.HasMetadata = true
		f.Metadata = append([]byte{}, metadata...)
	}
	return f, nil
}

func encodeKeepalive(f Frame) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, f.LastReceivedPosition)
	buf = append(buf, f.Data...)
	return buf
}

func decodeKeepalive(f Frame, body []byte) (Frame, error) {
	if len(body) < 8 {
		return Frame{}, newCodecError(InsufficientBytes, "truncated KEEPALIVE position")
	}
	f.LastReceivedPosition = binary.BigEndian.Uint64(body[0:8])
	f.Data = append([]byte{}, body[8:]...)
	return f, nil
}

func encodeResume(f Frame) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(len(f.ResumeToken)))
	buf = append(buf, f.ResumeToken...)
	pos := make([]byte, 16)
	binary.BigEndian.PutUint64(pos[0:8], f.LastReceivedServerPosition)
	binary.BigEndian.PutUint64(pos[8:16], f.FirstAvailableClientPosition)
	buf = append(buf, pos...)
	return buf
}

func decodeResume(f Frame, body []byte) (Frame, error) {
	if len(body) < 2 {
		return Frame{}, newCodecError(InsufficientBytes, "truncated RESUME token length")
	}
	tokLen := int(binary.BigEndian.Uint16(body[0:2]))
	body = body[2:]
	if len(body) < tokLen+16 {
		return Frame{}, newCodecError(InsufficientBytes, "truncated RESUME body")
	}
	f.ResumeToken = append([]byte{}, body[:tokLen]...)
	body = body[tokLen:]
	f.LastReceivedServerPosition = binary.BigEndian.Uint64(body[0:8])
	f.FirstAvailableClientPosition = binary.BigEndian.Uint64(body[8:16])
	return f, nil
}

func encodeResumeOK(f Frame) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, f.LastReceivedClientPosition)
	return buf
}

func decodeResumeOK(f Frame, body []byte) (Frame, error) {
	if len(body) < 8 {
		return Frame{}, newCodecError(InsufficientBytes, "truncated RESUME_OK position")
	}
	f.LastReceivedClientPosition = binary.BigEndian.Uint64(body[0:8])
	return f, nil
}

func encodeExt(f Frame) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, f.ExtendedType)
	buf = append(buf, encodePayloadBody(f)...)
	return buf
}

func decodeExt(f Frame, body []byte) (Frame, error) {
	if len(body) < 4 {
		return Frame{}, newCodecError(InsufficientBytes, "truncated EXT extended type")
	}
	f.ExtendedType = binary.BigEndian.Uint32(body[0:4])
	return decodePayloadBody(f, body[4:])
}
