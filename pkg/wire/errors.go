package wire

import "fmt"

// Protocol error codes.
const (
	ErrorVersionMismatch = 1
	ErrorTruncated       = 2
	ErrorOversize        = 3
	ErrorNegativeLength  = 4
	ErrorTrailingBytes   = 5
	ErrorDuplicateKey    = 6
	ErrorBadFrame        = 7
)

// ProtocolError represents a framing or encoding failure. Protocol errors
// are always fatal to the connection that produced them.
type ProtocolError struct {
	Code   int
	Reason string
}

// NewProtocolError creates a new protocol error.
func NewProtocolError(code int, reason string) *ProtocolError {
	return &ProtocolError{Code: code, Reason: reason}
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error %s: %s", ErrorCodeName(e.Code), e.Reason)
}

// ErrorCodeName returns the human-readable name for a protocol error code.
func ErrorCodeName(code int) string {
	switch code {
	case ErrorVersionMismatch:
		return "VERSION_MISMATCH"
	case ErrorTruncated:
		return "TRUNCATED"
	case ErrorOversize:
		return "OVERSIZE"
	case ErrorNegativeLength:
		return "NEGATIVE_LENGTH"
	case ErrorTrailingBytes:
		return "TRAILING_BYTES"
	case ErrorDuplicateKey:
		return "DUPLICATE_KEY"
	case ErrorBadFrame:
		return "BAD_FRAME"
	default:
		return fmt.Sprintf("UNKNOWN_%d", code)
	}
}

// Common error constructors.

// ErrVersionMismatch reports an unexpected protocol version byte.
func ErrVersionMismatch(expected, actual byte) *ProtocolError {
	return NewProtocolError(ErrorVersionMismatch,
		fmt.Sprintf("version mismatch: expected 0x%02x, got 0x%02x", expected, actual))
}

// ErrTruncated reports input that ended before a field was complete.
func ErrTruncated(field string) *ProtocolError {
	return NewProtocolError(ErrorTruncated, fmt.Sprintf("truncated input reading %s", field))
}

// ErrOversize reports a packet or field larger than the allowed maximum.
func ErrOversize(size, max int) *ProtocolError {
	return NewProtocolError(ErrorOversize, fmt.Sprintf("size %d exceeds maximum %d", size, max))
}

// ErrNegativeLength reports a negative length prefix.
func ErrNegativeLength(field string, n int32) *ProtocolError {
	return NewProtocolError(ErrorNegativeLength, fmt.Sprintf("negative length %d for %s", n, field))
}
