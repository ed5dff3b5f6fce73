package codec

import (
	"errors"
	"fmt"
)

// ErrDecode matches every error returned by Deserialize
var ErrDecode = errors.New("event decode failed")

var (
	// ErrTruncated is returned when the buffer ends inside a field
	ErrTruncated = errors.New("buffer truncated")
	// ErrInvalidFlags is returned when unknown flag bits are set
	ErrInvalidFlags = errors.New("invalid flags")
	// ErrOverflow is returned when a variable-length integer does not fit its field
	ErrOverflow = errors.New("integer overflows field")
	// ErrMalformedData is returned when the data section disagrees with its declared shape
	ErrMalformedData = errors.New("malformed data section")
)

var (
	// ErrBufferTooSmall is returned when Serialize is given less room than SerializedLength
	ErrBufferTooSmall = errors.New("buffer too small for event")
	// ErrValueTooLong is returned when a value cannot be represented in the fixed layout
	ErrValueTooLong = errors.New("data value too long for layout")
	// ErrDataTooLarge is returned when the data section cannot be represented in the fixed layout
	ErrDataTooLarge = errors.New("data section too large for layout")
)

// DecodeError describes where in a record decoding failed
type DecodeError struct {
	Offset int    // Byte offset within the record where the field starts
	Field  string // Name of the field being decoded
	Err    error  // Underlying cause (ErrTruncated, ErrOverflow, ...)
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrDecode) match any DecodeError
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func decodeErr(offset int, field string, err error) error {
	return &DecodeError{Offset: offset, Field: field, Err: err}
}
