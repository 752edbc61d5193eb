package model

import (
	"context"
)

// CallContext carries the identifying information for a single bridge
// invocation. It is immutable after construction and safe for concurrent reads.
type CallContext struct {
	CallID        string
	Action        string
	CorrelationID string
	TokenSubject  string
	DeviceID      string
	Locale        string
	TraceID       string
}

type contextKey struct{}

// WithCallContext attaches a CallContext to the given context.
func WithCallContext(ctx context.Context, cctx *CallContext) context.Context {
	return context.WithValue(ctx, contextKey{}, cctx)
}

// CallContextFrom extracts the CallContext from the context, or returns nil
// if not present.
func CallContextFrom(ctx context.Context) *CallContext {
	cctx, _ := ctx.Value(contextKey{}).(*CallContext)
	return cctx
}
