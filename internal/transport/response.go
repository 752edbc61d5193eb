// Package transport exposes the bridge dispatcher over HTTP: the router,
// its middleware chain and the request handlers.
package transport

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/pitabwire/outlookbridge/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes. Codes that
// describe a call's own failure never reach this table; they are reported
// inside a 200 reply.
var statusForCode = map[string]int{
	model.ErrBadRequest:         http.StatusBadRequest,
	model.ErrUnknownAction:      http.StatusNotFound,
	model.ErrInternalError:      http.StatusInternalServerError,
	model.ErrBackendUnavailable: http.StatusBadGateway,
	model.ErrBackendTimeout:     http.StatusGatewayTimeout,
}

// Reply is the JSON rendering of a completed call. Body is present only when
// the call produced one, so an empty body and no body stay distinct.
type Reply struct {
	Status  model.Status `json:"status"`
	Body    *string      `json:"body,omitempty"`
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
}

// NewReply renders a result.
func NewReply(r model.Result) Reply {
	reply := Reply{Status: r.Status, Code: r.Code, Message: r.Message}
	if r.HasBody {
		body := r.Body
		reply.Body = &body
	}
	return reply
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes an ErrorEnvelope as a JSON response with the matching
// HTTP status code. Errors without an envelope become a generic 500.
func WriteError(w http.ResponseWriter, err error) {
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) {
		ee = model.NewInternalError()
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}

	type errorResponse struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	WriteJSON(w, status, errorResponse{Error: ee})
}
