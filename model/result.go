package model

import "errors"

// Status is the outcome reported back to the application layer.
type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// Result is the reply delivered for one invocation. A success without a
// payload (HasBody false) is distinct from a success with an empty body.
type Result struct {
	Status  Status `json:"status"`
	Body    string `json:"body,omitempty"`
	HasBody bool   `json:"-"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK returns a success result without a payload.
func OK() Result {
	return Result{Status: StatusOK}
}

// OKWithBody returns a success result carrying body.
func OKWithBody(body string) Result {
	return Result{Status: StatusOK, Body: body, HasBody: true}
}

// Failed returns an error result.
func Failed(code, message string) Result {
	return Result{Status: StatusError, Code: code, Message: message}
}

// FailedWith converts err into an error result, keeping its envelope code
// when it has one.
func FailedWith(err error, fallbackCode string) Result {
	code := CodeOf(err)
	if code == "" {
		code = fallbackCode
	}
	msg := err.Error()
	var ee *ErrorEnvelope
	if errors.As(err, &ee) {
		msg = ee.Message
	}
	return Failed(code, msg)
}

// Succeeded reports whether the result is a success.
func (r Result) Succeeded() bool {
	return r.Status == StatusOK
}
