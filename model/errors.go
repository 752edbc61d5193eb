package model

import (
	"errors"
	"fmt"
)

// Request decoding and resolution error codes.
const (
	ErrMalformedRequest          = "MALFORMED_REQUEST"
	ErrPathIndexOutOfRange       = "PATH_INDEX_OUT_OF_RANGE"
	ErrUnrecognizedContainerType = "UNRECOGNIZED_CONTAINER_TYPE"
	ErrQueryDecodeFailure        = "QUERY_DECODE_FAILURE"
)

// Dispatch error codes.
const (
	ErrUnknownAction     = "UNKNOWN_ACTION"
	ErrInvocationFailure = "INVOCATION_FAILURE"
	ErrRemoteCallFailure = "REMOTE_CALL_FAILURE"
)

// Transport and collaborator error codes.
const (
	ErrBadRequest         = "BAD_REQUEST"
	ErrInternalError      = "INTERNAL_ERROR"
	ErrBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrBackendTimeout     = "BACKEND_TIMEOUT"
)

// ErrorEnvelope is the error value used across the bridge. It carries a
// stable code so callers can branch on the failure kind.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an ErrorEnvelope with the same code.
func (e *ErrorEnvelope) Is(target error) bool {
	var t *ErrorEnvelope
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the envelope code of err, or "" when err carries none.
func CodeOf(err error) string {
	var ee *ErrorEnvelope
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// NewMalformedRequestError returns a MALFORMED_REQUEST error.
func NewMalformedRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrMalformedRequest, Message: msg}
}

// NewPathIndexOutOfRangeError returns a PATH_INDEX_OUT_OF_RANGE error for the
// given path and offset.
func NewPathIndexOutOfRangeError(path string, indexFromEnd, segments int) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrPathIndexOutOfRange,
		Message: fmt.Sprintf("index %d from the end is out of range for path %q with %d segments", indexFromEnd, path, segments),
	}
}

// NewUnrecognizedContainerTypeError returns an UNRECOGNIZED_CONTAINER_TYPE error.
func NewUnrecognizedContainerTypeError(value string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrUnrecognizedContainerType,
		Message: fmt.Sprintf("can't parse parent container type from %q", value),
	}
}

// NewQueryDecodeError returns a QUERY_DECODE_FAILURE error.
func NewQueryDecodeError(cause error) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrQueryDecodeFailure,
		Message: fmt.Sprintf("failed to parse query parameters: %v", cause),
	}
}

// NewUnknownActionError returns an UNKNOWN_ACTION error.
func NewUnknownActionError(action string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrUnknownAction,
		Message: fmt.Sprintf("action %q is not handled", action),
	}
}

// NewInvocationError returns an INVOCATION_FAILURE error for the named action.
func NewInvocationError(action string, cause error) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInvocationFailure,
		Message: fmt.Sprintf("method %s failed with error: %v", action, cause),
	}
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewBackendUnavailableError returns a BACKEND_UNAVAILABLE error.
func NewBackendUnavailableError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendUnavailable,
		Message: "The remote service is temporarily unavailable",
	}
}

// NewBackendTimeoutError returns a BACKEND_TIMEOUT error.
func NewBackendTimeoutError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendTimeout,
		Message: "The remote service did not respond in time",
	}
}
