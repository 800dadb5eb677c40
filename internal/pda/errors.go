package pda

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated reports input that ends before a declared length.
	ErrTruncated = errors.New("unexpected end of input")

	// ErrTrailingBytes reports input left over after the declared content.
	ErrTrailingBytes = errors.New("trailing bytes after content")
)

// DecodeError identifies malformed input by file and field.
type DecodeError struct {
	// Path is the offending file.
	Path string

	// Field names the column or structure that failed to decode.
	Field string

	// Err is the underlying cause.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode %s: field %s: %v", e.Path, e.Field, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError returns true if err wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
