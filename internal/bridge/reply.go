package bridge

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/pitabwire/outlookbridge/internal/odata"
	"github.com/pitabwire/outlookbridge/model"
)

// Reply flavors, as reported on spans.
const (
	flavorRaw        = "raw"
	flavorSerialized = "serialized"
)

// Call is one prepared remote operation together with the way its outcome
// is turned into a Result. Handlers build Calls; the dispatcher runs them.
type Call struct {
	flavor string
	run    func(ctx context.Context) model.Result
}

// RawCall wraps an operation whose payload is forwarded verbatim.
func RawCall(fn func(ctx context.Context) (string, error)) Call {
	return Call{
		flavor: flavorRaw,
		run: func(ctx context.Context) model.Result {
			return RawReply(fn(ctx))
		},
	}
}

// SerializedCall wraps an operation whose value is JSON encoded before it is
// delivered. A nil value is delivered as a success without a body.
func SerializedCall(fn func(ctx context.Context) (any, error)) Call {
	return Call{
		flavor: flavorSerialized,
		run: func(ctx context.Context) model.Result {
			return SerializedReply(fn(ctx))
		},
	}
}

// RawReply converts a raw remote outcome into a Result. A failed call whose
// response body is an OData error object reports that object's "error"
// member; anything else reports the error text.
func RawReply(payload string, err error) model.Result {
	if err != nil {
		msg := err.Error()
		if oe, ok := odata.AsError(err); ok {
			if field, ok := oe.ErrorField(); ok {
				msg = field
			}
		}
		return model.Failed(remoteCode(err), msg)
	}
	if payload == "" {
		return model.OK()
	}
	return model.OKWithBody(payload)
}

// SerializedReply converts a typed remote outcome into a Result.
func SerializedReply(value any, err error) model.Result {
	if err != nil {
		return model.Failed(remoteCode(err), err.Error())
	}
	if value == nil {
		return model.OK()
	}
	b, err := json.Marshal(value)
	if err != nil {
		return model.Failed(model.ErrInternalError, err.Error())
	}
	return model.OKWithBody(string(b))
}

func remoteCode(err error) string {
	if code := model.CodeOf(err); code != "" {
		return code
	}
	return model.ErrRemoteCallFailure
}
