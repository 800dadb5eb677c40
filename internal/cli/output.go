package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // run completed
	ExitFailure      = 1 // merge, import or pointer update failed; safe to rerun
	ExitCommandError = 2 // bad flags, invalid configuration or unexpected pointer; rerunning will not help
)

// Error codes reported in ResponseError.Code.
const (
	ErrCodeGeneric = "E001" // unclassified failure
	ErrCodeConfig  = "E002" // invalid configuration or pointer value
	ErrCodeSource  = "E003" // malformed source data
	ErrCodeImport  = "E004" // remote import failed
	ErrCodePointer = "E005" // pointer store request failed
)

// ExitError is a command failure carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError creates an ExitError around err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the envelope written for every command with --format json.
type Response struct {
	Status string         `json:"status"` // "ok" or "error"
	RunID  string         `json:"run_id,omitempty"`
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failed command. Details holds the partial run
// report when a run got far enough to produce one.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// runScoped is implemented by outputs that belong to one run.
type runScoped interface {
	runID() string
}

func runIDOf(v any) string {
	if r, ok := v.(runScoped); ok {
		return r.runID()
	}
	return ""
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // notes go here so they never mix with JSON on Writer
	Verbose   bool
}

// Success writes a command result. In text mode data is printed with its
// String method.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "ok",
			RunID:  runIDOf(data),
			Data:   data,
		})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a command failure. In text mode a run report in details is
// always shown, indented under the error line, so an operator can see how
// far the run got; other details only with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			RunID:  runIDOf(details),
			Error:  &ResponseError{Code: code, Message: message, Details: details},
		})
	}

	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	switch d := details.(type) {
	case nil:
		return nil
	case runScoped:
		_, err := fmt.Fprintln(f.Writer, indent(fmt.Sprint(d)))
		return err
	default:
		if !f.Verbose {
			return nil
		}
		_, err := fmt.Fprintf(f.Writer, "Details: %v\n", d)
		return err
	}
}

// Note writes a diagnostic line when verbose.
func (f *OutputFormatter) Note(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
