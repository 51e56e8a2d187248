package engine

import (
	"errors"
	"fmt"
)

// ErrNoResponse is reported when a request cannot be handed to the loop or
// its reply never arrives because the loop has stopped.
var ErrNoResponse = errors.New("no response received")

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("engine already running")

// RequestError describes a request that failed outside the store.
//
// Store failures are delivered to the caller as they are. RequestError
// covers the failures the engine itself produces:
//   - No response: the loop stopped before replying, or the caller gave up
//   - Panic: the store panicked while serving the request
//   - Invalid request: the request could not be submitted at all
type RequestError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation name, e.g. "read_entry".
	Op string

	// RequestID identifies the affected request.
	RequestID string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes request failures.
type ErrorCode string

const (
	// ErrCodeNoResponse indicates the request got no reply from the loop.
	ErrCodeNoResponse ErrorCode = "NO_RESPONSE"

	// ErrCodeStore indicates the store returned an error. Only used to
	// classify results; store errors are never wrapped in RequestError.
	ErrCodeStore ErrorCode = "STORE"

	// ErrCodePanic indicates the store panicked while serving the request.
	ErrCodePanic ErrorCode = "PANIC"

	// ErrCodeInvalidRequest indicates a request that cannot be served.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
)

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (request=%s): %v", e.Code, e.Op, e.RequestID, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsNoResponse returns true if the request got no reply from the loop.
// Uses errors.As/errors.Is to handle wrapped errors.
func IsNoResponse(err error) bool {
	if errors.Is(err, ErrNoResponse) {
		return true
	}
	var re *RequestError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNoResponse
	}
	return false
}

// IsPanic returns true if the store panicked while serving the request.
func IsPanic(err error) bool {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Code == ErrCodePanic
	}
	return false
}

// Code classifies err for logs and metrics. A nil error has an empty code;
// errors that are not a RequestError came from the store.
func Code(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var re *RequestError
	if errors.As(err, &re) {
		return re.Code
	}
	return ErrCodeStore
}

func noResponse(op, requestID string, cause error) *RequestError {
	if cause == nil {
		cause = ErrNoResponse
	}
	return &RequestError{Code: ErrCodeNoResponse, Op: op, RequestID: requestID, Err: cause}
}
