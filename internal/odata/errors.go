package odata

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrResponseTooLarge is returned when a response body is longer than the
// configured max_response_bytes. The body is discarded, never truncated.
var ErrResponseTooLarge = errors.New("odata: response body too large")

// maxPayloadInMessage caps how much of the payload Error() repeats.
const maxPayloadInMessage = 512

// Error is returned when the service answers with a non-2xx status. Payload
// holds the raw response body, which for Outlook is usually
// {"error": {"code": "...", "message": "..."}}.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Payload    []byte
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("odata: %s %s returned %d", e.Method, e.URL, e.StatusCode)
	switch payload := e.Payload; {
	case len(payload) > maxPayloadInMessage:
		msg += fmt.Sprintf(": %s... (%d bytes)", payload[:maxPayloadInMessage], len(payload))
	case len(payload) > 0:
		msg += ": " + string(payload)
	}
	return msg
}

// ErrorField returns the "error" member of the payload, compacted. A string
// value is returned unquoted. ok is false when the payload is not a JSON
// object or has no "error" member.
func (e *Error) ErrorField() (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(e.Payload, &obj); err != nil || obj == nil {
		return "", false
	}
	raw, ok := obj["error"]
	if !ok {
		return "", false
	}

	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "null", true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw), true
	}
	return buf.String(), true
}

// AsError unwraps err to an *Error.
func AsError(err error) (*Error, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
