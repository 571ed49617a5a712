package frame

import "fmt"

// ErrorCode is the 32-bit error code carried by ERROR frames.
type ErrorCode uint32

const (
	ErrorCodeInvalidSetup     ErrorCode = 0x00000001
	ErrorCodeUnsupportedSetup ErrorCode = 0x00000002
	ErrorCodeRejectedSetup    ErrorCode = 0x00000003
	ErrorCodeRejectedResume   ErrorCode = 0x00000004
	ErrorCodeConnectionError  ErrorCode = 0x00000101
	ErrorCodeConnectionClose  ErrorCode = 0x00000102
	ErrorCodeApplicationError ErrorCode = 0x00000201
	ErrorCodeRejected         ErrorCode = 0x00000202
	ErrorCodeCanceled         ErrorCode = 0x00000203
	ErrorCodeInvalid          ErrorCode = 0x00000204
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeInvalidSetup:
		return "INVALID_SETUP"
	case ErrorCodeUnsupportedSetup:
		return "UNSUPPORTED_SETUP"
	case ErrorCodeRejectedSetup:
		return "REJECTED_SETUP"
	case ErrorCodeRejectedResume:
		return "REJECTED_RESUME"
	case ErrorCodeConnectionError:
		return "CONNECTION_ERROR"
	case ErrorCodeConnectionClose:
		return "CONNECTION_CLOSE"
	case ErrorCodeApplicationError:
		return "APPLICATION_ERROR"
	case ErrorCodeRejected:
		return "REJECTED"
	case ErrorCodeCanceled:
		return "CANCELED"
	case ErrorCodeInvalid:
		return "INVALID"
	default:
		return fmt.Sprintf("ERROR_CODE(0x%08x)", uint32(c))
	}
}

// CodecErrorKind enumerates the fatal, connection-level decode failures.
type CodecErrorKind int

const (
	InsufficientBytes CodecErrorKind = iota
	InvalidHeader
	InvalidStreamID
	UnsupportedFrameType
	InvalidMetadataLength
)

func (k CodecErrorKind) String() string {
	switch k {
	case InsufficientBytes:
		return "InsufficientBytes"
	case InvalidHeader:
		return "InvalidHeader"
	case InvalidStreamID:
		return "InvalidStreamID"
	case UnsupportedFrameType:
		return "UnsupportedFrameType"
	case InvalidMetadataLength:
		return "InvalidMetadataLength"
	default:
		return "UnknownCodecError"
	}
}

// CodecError is returned by Decode and Encode for malformed or illegal
// frames. It is always fatal at the connection level.
type CodecError struct {
	Kind CodecErrorKind
	Msg  string
}

func (e *CodecError) Error() string {
	if e.Msg == "" {
		return "frame: " + e.Kind.String()
	}
	return fmt.Sprintf("frame: %s: %s", e.Kind, e.Msg)
}

func newCodecError(kind CodecErrorKind, msg string) *CodecError {
	return &CodecError{Kind: kind, Msg: msg}
}
