package collision

import (
	"errors"
	"fmt"
)

// Decode error kinds. Every error returned by this package wraps exactly one
// of these, so callers can branch with errors.Is.
var (
	ErrTruncatedBuffer    = errors.New("truncated buffer")
	ErrInvalidMagic       = errors.New("invalid PLC magic: expected 'SPLC'")
	ErrInvalidStride      = errors.New("invalid PLC entry stride")
	ErrMalformedOctree    = errors.New("malformed octree")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrDegenerateGeometry = errors.New("degenerate prism geometry")
)

// DecodeError attributes a failure to the section, record and byte offset
// where it happened.
type DecodeError struct {
	Section string // e.g. "kcl.prisms", "dzb.groups", "plc.header"
	Index   int    // record index within the section, -1 when not applicable
	Offset  int64  // absolute byte offset, -1 when not applicable
	Detail  string
	Err     error
}

func (e *DecodeError) Error() string {
	msg := e.Section
	if e.Index >= 0 {
		msg += fmt.Sprintf("[%d]", e.Index)
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" @0x%X", e.Offset)
	}
	msg += ": " + e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// decodeErr builds a DecodeError. Use index or offset -1 when unknown.
func decodeErr(kind error, section string, index int, offset int64, format string, args ...any) *DecodeError {
	return &DecodeError{
		Section: section,
		Index:   index,
		Offset:  offset,
		Detail:  fmt.Sprintf(format, args...),
		Err:     kind,
	}
}
