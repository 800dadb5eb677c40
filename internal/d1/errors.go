package d1

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes import failures.
type ErrorCode string

const (
	// ErrCodeTransport indicates a request could not be sent or received, or
	// returned a non-2xx HTTP status.
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// ErrCodeProtocol indicates success=false in a response envelope or a
	// response of unexpected shape.
	ErrCodeProtocol ErrorCode = "PROTOCOL"

	// ErrCodeIntegrity indicates the staged upload's ETag did not match the
	// script checksum.
	ErrCodeIntegrity ErrorCode = "INTEGRITY"

	// ErrCodeTimeout indicates polling hit the attempt cap without a terminal
	// status.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeImportFailed indicates the service reported the import as failed.
	ErrCodeImportFailed ErrorCode = "IMPORT_FAILED"
)

// ImportError is returned for every failed import.
type ImportError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Database is the target database identifier.
	Database string

	// Step is the protocol step that failed: init, upload, ingest or poll.
	Step string

	// Attempt is the number of polls made when the error occurred.
	Attempt int

	// StatusCode is the HTTP status for transport errors, 0 otherwise.
	StatusCode int

	// Message is a human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

func (e *ImportError) Error() string {
	msg := fmt.Sprintf("d1 import %s: %s (database=%s, step=%s", e.Code, e.Message, e.Database, e.Step)
	if e.Step == stepPoll {
		msg += fmt.Sprintf(", attempt=%d", e.Attempt)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status=%d", e.StatusCode)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Code == code
	}
	return false
}

// IsTransportError returns true if err is an ImportError with ErrCodeTransport.
func IsTransportError(err error) bool { return hasCode(err, ErrCodeTransport) }

// IsProtocolError returns true if err is an ImportError with ErrCodeProtocol.
func IsProtocolError(err error) bool { return hasCode(err, ErrCodeProtocol) }

// IsIntegrityError returns true if err is an ImportError with ErrCodeIntegrity.
func IsIntegrityError(err error) bool { return hasCode(err, ErrCodeIntegrity) }

// IsTimeoutError returns true if err is an ImportError with ErrCodeTimeout.
func IsTimeoutError(err error) bool { return hasCode(err, ErrCodeTimeout) }

// IsImportFailed returns true if err is an ImportError with ErrCodeImportFailed.
func IsImportFailed(err error) bool { return hasCode(err, ErrCodeImportFailed) }

// CodeOf returns the ErrorCode of err, or "" if err is not an ImportError.
func CodeOf(err error) ErrorCode {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}
