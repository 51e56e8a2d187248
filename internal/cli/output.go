package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/diary/internal/command"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a request failed, or a config file did not validate
	ExitCommandError = 2 // bad arguments, unreadable config, or the store could not be opened
)

// ExitError is returned by a command that must end the process with Code.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional cause
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError that wraps err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure for any
// other error.
func GetExitCode(err error) int {
	if exitErr := (*ExitError)(nil); errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

const (
	statusOK    = "ok"
	statusError = "error"
)

// CLIResponse is the line written for every result under --format json.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error half of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as one CLIResponse per
// line. Diagnostics go to ErrWriter when it is set so they never interleave
// with JSON on Writer.
type OutputFormatter struct {
	Format    string // "text" or "json"
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) jsonMode() bool {
	return f.Format == "json"
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

func (f *OutputFormatter) diag() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Success writes data. Text mode prints it with fmt; nil prints nothing.
func (f *OutputFormatter) Success(data any) error {
	if f.jsonMode() {
		return f.encode(CLIResponse{Status: statusOK, Data: data})
	}
	if data == nil {
		return nil
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a coded failure. In text mode details are shown only with
// --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.jsonMode() {
		return f.encode(CLIResponse{
			Status: statusError,
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if f.Verbose && details != nil {
		fmt.Fprintf(f.diag(), "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.diag(), format+"\n", args...)
	}
}

// printResponse renders a front door response. In text mode success prints
// text(data); a failure prints the error and returns an ExitError with
// ExitFailure.
func printResponse[T any](f *OutputFormatter, resp command.Response[T], text func(*T) string) error {
	if !resp.OK() {
		msg := resp.Err()
		code := responseCode(msg)
		_ = f.Error(code, msg, nil)
		return NewExitError(ExitFailure, code+": "+msg)
	}

	if f.jsonMode() {
		return f.Success(resp.Data)
	}
	_, err := fmt.Fprintln(f.Writer, text(resp.Data))
	return err
}
