// Package bridge turns named actions with a flat argument list into calls
// against the Outlook OData service and reports each outcome asynchronously.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pitabwire/outlookbridge/internal/observability"
	"github.com/pitabwire/outlookbridge/internal/odata"
	"github.com/pitabwire/outlookbridge/model"
)

// Dispatch outcomes, as recorded in metrics.
const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeRejected = "rejected"
)

// Recorder receives dispatch metrics. *observability.Metrics satisfies it.
type Recorder interface {
	RecordDispatch(action, outcome string, duration time.Duration)
	RecordSessionCacheHit()
	RecordSessionCacheMiss()
}

type nopRecorder struct{}

func (nopRecorder) RecordDispatch(string, string, time.Duration) {}
func (nopRecorder) RecordSessionCacheHit()                       {}
func (nopRecorder) RecordSessionCacheMiss()                      {}

// Invocation is everything a handler needs to prepare its call.
type Invocation struct {
	Action  string
	Request model.InvocationRequest
	Client  *odata.Client
	Logger  *zap.Logger
}

// Handler resolves an invocation into a single prepared remote call. It must
// not perform I/O itself.
type Handler func(inv *Invocation) (Call, error)

// Dispatcher routes actions to their handlers.
type Dispatcher struct {
	sessions *SessionCache
	handlers map[string]Handler
	logger   *zap.Logger
	metrics  Recorder
	now      func() time.Time

	inflight sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the base logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.metrics = r
		}
	}
}

// New creates a dispatcher over the built-in action catalog. factory builds
// a client whenever the session cache misses.
func New(factory SessionFactory, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sessions: NewSessionCache(factory),
		handlers: catalog,
		logger:   zap.NewNop(),
		metrics:  nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handles reports whether action is in the catalog.
func (d *Dispatcher) Handles(action string) bool {
	_, ok := d.handlers[action]
	return ok
}

// Sessions exposes the session cache.
func (d *Dispatcher) Sessions() *SessionCache {
	return d.sessions
}

// Dispatch starts action with the flat argument list. It returns false,
// without touching anything, when the action is unknown. Otherwise the
// returned Pending completes with the outcome; failures that happen before
// the remote call is issued are already complete on return.
func (d *Dispatcher) Dispatch(ctx context.Context, action string, flat []string) (*Pending, bool) {
	handler, ok := d.handlers[action]
	if !ok {
		return nil, false
	}
	start := d.now()

	cctx := &model.CallContext{CallID: uuid.NewString(), Action: action}
	if parent := model.CallContextFrom(ctx); parent != nil {
		cctx.CorrelationID = parent.CorrelationID
		cctx.DeviceID = parent.DeviceID
		cctx.Locale = parent.Locale
	}

	ctx, span := observability.StartSpan(ctx, "bridge.dispatch",
		observability.AttrAction.String(action),
		observability.AttrCallID.String(cctx.CallID),
	)
	cctx.TraceID = observability.TraceIDFromContext(ctx)

	req, err := model.DecodeRequest(flat)
	if err != nil {
		ctx = model.WithCallContext(ctx, cctx)
		return d.reject(ctx, span, action, start, err), true
	}

	token := inspectToken(req.Token)
	cctx.TokenSubject = token.Subject
	ctx = model.WithCallContext(ctx, cctx)
	logger := observability.CallLogger(ctx, d.logger)
	if token.expired(start) {
		logger.Warn("bridge: access token has expired", zap.Time("expired_at", token.Expires))
	}
	span.SetAttributes(observability.AttrResourcePath.String(req.ResourcePath))

	client, reused := d.sessions.Get(req.ServiceRoot, req.Token)
	if reused {
		d.metrics.RecordSessionCacheHit()
		logger.Debug("bridge: reusing client session")
	} else {
		d.metrics.RecordSessionCacheMiss()
	}
	span.SetAttributes(observability.AttrSessionReuse.Bool(reused))

	call, err := prepare(handler, &Invocation{
		Action:  action,
		Request: req,
		Client:  client,
		Logger:  logger,
	})
	if err != nil {
		return d.reject(ctx, span, action, start, err), true
	}
	span.SetAttributes(observability.AttrReplyFlavor.String(call.flavor))

	logger.Info("bridge: dispatching", zap.String("resource_path", req.ResourcePath))

	pending := newPending()
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()

		result := execute(context.WithoutCancel(ctx), call)
		outcome := outcomeOK
		var resultErr error
		if !result.Succeeded() {
			outcome = outcomeError
			resultErr = &model.ErrorEnvelope{Code: result.Code, Message: result.Message}
		}
		span.SetAttributes(observability.AttrOutcome.String(outcome))
		observability.EndSpanWithError(span, resultErr)
		d.metrics.RecordDispatch(action, outcome, d.now().Sub(start))

		if resultErr != nil {
			logger.Info("bridge: call failed", zap.String("code", result.Code), zap.String("message", result.Message))
		} else {
			logger.Info("bridge: call completed", zap.Bool("has_body", result.HasBody))
		}
		pending.complete(result)
	}()
	return pending, true
}

// Drain waits for in-flight remote calls to finish or ctx to end.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reject completes a call that failed before any remote interaction.
func (d *Dispatcher) reject(ctx context.Context, span trace.Span, action string, start time.Time, err error) *Pending {
	result := invocationFailure(action, err)
	span.SetAttributes(observability.AttrOutcome.String(outcomeRejected))
	observability.EndSpanWithError(span, err)
	d.metrics.RecordDispatch(action, outcomeRejected, d.now().Sub(start))
	observability.CallLogger(ctx, d.logger).Warn("bridge: invocation rejected",
		zap.String("code", result.Code),
		zap.Error(err),
	)
	return completedPending(result)
}

// invocationFailure reports err as a failed invocation of action. Request
// decoding and path resolution codes are kept; anything else becomes
// INVOCATION_FAILURE.
func invocationFailure(action string, err error) model.Result {
	code := model.ErrInvocationFailure
	cause := err.Error()
	var ee *model.ErrorEnvelope
	if errors.As(err, &ee) {
		cause = ee.Message
		switch ee.Code {
		case model.ErrMalformedRequest, model.ErrPathIndexOutOfRange,
			model.ErrUnrecognizedContainerType, model.ErrQueryDecodeFailure:
			code = ee.Code
		}
	}
	return model.Failed(code, model.NewInvocationError(action, errors.New(cause)).Message)
}

// prepare runs handler, turning a panic into an error.
func prepare(handler Handler, inv *Invocation) (call Call, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(inv)
}

// execute runs the prepared call. A panic in the remote layer becomes an
// INTERNAL_ERROR result so the Pending always completes.
func execute(ctx context.Context, call Call) (result model.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = model.Failed(model.ErrInternalError, fmt.Sprintf("remote call panic: %v", r))
		}
	}()
	return call.run(ctx)
}
