// Package odata is a small client for the Outlook OData REST service. It
// covers navigation by path segments, the standard query options and raw
// read, add, update, delete and bound action calls.
package odata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/pitabwire/outlookbridge/internal/config"
	"github.com/pitabwire/outlookbridge/internal/observability"
	"github.com/pitabwire/outlookbridge/model"
)

// Recorder receives remote call metrics. *observability.Metrics satisfies it.
type Recorder interface {
	RecordRemoteRequest(method string, status int, duration time.Duration)
	RecordRemoteRetry()
	SetCircuitBreakerState(state float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordRemoteRequest(string, int, time.Duration) {}
func (nopRecorder) RecordRemoteRetry()                             {}
func (nopRecorder) SetCircuitBreakerState(float64)                 {}

// Transport is shared by every client session. It owns the connection pool,
// the circuit breaker and the retry policy; sessions only add credentials.
type Transport struct {
	cfg     config.ODataConfig
	base    http.RoundTripper
	breaker *Breaker
	metrics Recorder
	logger  *zap.Logger
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) TransportOption {
	return func(t *Transport) {
		if r != nil {
			t.metrics = r
		}
	}
}

// WithLogger sets the logger used for retry and breaker diagnostics.
func WithLogger(l *zap.Logger) TransportOption {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithBaseTransport replaces the pooled http.Transport.
func WithBaseTransport(rt http.RoundTripper) TransportOption {
	return func(t *Transport) {
		if rt != nil {
			t.base = rt
		}
	}
}

// NewTransport builds the shared transport from configuration.
func NewTransport(cfg config.ODataConfig, opts ...TransportOption) *Transport {
	pool := cfg.Pool
	t := &Transport{
		cfg: cfg,
		base: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        orDefault(pool.MaxIdleConns, 100),
			MaxConnsPerHost:     orDefault(pool.MaxConnsPerHost, 50),
			IdleConnTimeout:     orDefaultDuration(pool.IdleConnTimeout, 90*time.Second),
			TLSHandshakeTimeout: orDefaultDuration(pool.TLSHandshakeTimeout, 10*time.Second),
		},
		metrics: nopRecorder{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	cb := cfg.CircuitBreaker
	t.breaker = NewBreaker(BreakerSettings{
		FailureThreshold:   cb.FailureThreshold,
		SuccessThreshold:   cb.SuccessThreshold,
		OpenTimeout:        cb.Timeout,
		ErrorRateThreshold: cb.ErrorRateThreshold,
		ErrorRateWindow:    cb.ErrorRateWindow,
		OnStateChange: func(s BreakerState) {
			t.metrics.SetCircuitBreakerState(float64(s))
			t.logger.Warn("odata: circuit breaker state changed", zap.String("state", s.String()))
		},
	})
	return t
}

// Breaker exposes the circuit breaker, mainly for readiness checks.
func (t *Transport) Breaker() *Breaker {
	return t.breaker
}

// HealthCheck fails while the circuit breaker is open.
func (t *Transport) HealthCheck(ctx context.Context) error {
	return t.breaker.HealthCheck(ctx)
}

// ItemAttachmentNamespace is the namespace prefix used for the item
// attachment cast segment.
func (t *Transport) ItemAttachmentNamespace() string {
	if t.cfg.ItemAttachmentNamespace == "" {
		return config.DefaultItemAttachmentNamespace
	}
	return t.cfg.ItemAttachmentNamespace
}

// newHTTPClient returns an http.Client that authenticates every request with
// the given bearer token over the shared pool.
func (t *Transport) newHTTPClient(token string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &http.Client{
		Timeout:   t.cfg.Timeout,
		Transport: &oauth2.Transport{Source: src, Base: t.base},
	}
}

// request is one remote operation.
type request struct {
	method string
	url    string
	body   []byte
}

// execute runs req with retry and exponential backoff. It returns the
// response body of a 2xx reply, an *Error for any other status, or a
// transport error.
func (t *Transport) execute(ctx context.Context, hc *http.Client, req request) ([]byte, error) {
	retryCfg := t.cfg.Retry
	maxAttempts := retryCfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	canRetry := isIdempotentMethod(req.method) || !retryCfg.IdempotentOnly

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			t.metrics.RecordRemoteRetry()
			delay := calculateBackoff(retryCfg, attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := t.executeOnce(ctx, hc, req, attempt)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !canRetry || !isRetryableError(err) || attempt == maxAttempts-1 {
			return nil, err
		}
		t.logger.Debug("odata: retrying",
			zap.String("method", req.method),
			zap.Int("attempt", attempt+1),
			zap.Int("max", maxAttempts),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

// executeOnce performs a single HTTP request with circuit breaker protection.
func (t *Transport) executeOnce(ctx context.Context, hc *http.Client, req request, attempt int) (body []byte, err error) {
	if err := t.breaker.Allow(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.NewBackendUnavailableError(), err)
	}

	ctx, span := observability.StartSpan(ctx, "odata.request",
		semconv.HTTPRequestMethodKey.String(req.method),
		semconv.URLFull(req.url),
		observability.AttrRetryAttempt.Int(attempt),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	var reader io.Reader
	if req.body != nil {
		reader = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, reader)
	if err != nil {
		return nil, fmt.Errorf("odata: build request: %w", err)
	}
	t.setHeaders(ctx, httpReq, req.body != nil)

	start := time.Now()
	resp, err := hc.Do(httpReq)
	if err != nil {
		t.metrics.RecordRemoteRequest(req.method, 0, time.Since(start))
		t.breaker.RecordFailure()
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	limit := t.cfg.MaxResponseBytes
	if limit <= 0 {
		limit = 32 << 20
	}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	t.metrics.RecordRemoteRequest(req.method, resp.StatusCode, time.Since(start))
	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	if err != nil {
		t.breaker.RecordFailure()
		return nil, fmt.Errorf("odata: read response: %w", err)
	}
	if int64(len(respBody)) > limit {
		t.breaker.RecordSuccess()
		return nil, fmt.Errorf("%w: %s %s exceeded %d bytes", ErrResponseTooLarge, req.method, req.url, limit)
	}

	// 4xx replies are caller problems, not service failures.
	if isServerError(resp.StatusCode) {
		t.breaker.RecordFailure()
	} else if !isClientError(resp.StatusCode) {
		t.breaker.RecordSuccess()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Method:     req.method,
			URL:        req.url,
			StatusCode: resp.StatusCode,
			Payload:    respBody,
		}
	}
	return respBody, nil
}

func (t *Transport) setHeaders(ctx context.Context, r *http.Request, hasBody bool) {
	r.Header.Set("Accept", "application/json")
	if hasBody {
		r.Header.Set("Content-Type", "application/json")
	}
	if t.cfg.UserAgent != "" {
		r.Header.Set("User-Agent", t.cfg.UserAgent)
	}
	if cctx := model.CallContextFrom(ctx); cctx != nil && cctx.CallID != "" {
		r.Header.Set("client-request-id", cctx.CallID)
		r.Header.Set("return-client-request-id", "true")
	}
	observability.InjectTraceHeaders(ctx, r.Header)
}

// --- classification helpers ---

func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", model.NewBackendTimeoutError(), ctx.Err())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", model.NewBackendTimeoutError(), err)
	}
	if isConnectionError(err) {
		return fmt.Errorf("%w: %w", model.NewBackendUnavailableError(), err)
	}
	return fmt.Errorf("odata: request failed: %w", err)
}

func isIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete,
		http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isServerError(code int) bool {
	return code >= 500
}

func isClientError(code int) bool {
	return code >= 400 && code < 500
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isRetryableError reports whether another attempt could succeed. Open
// breakers and timeouts are final.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if oe, ok := AsError(err); ok {
		return isRetryableStatus(oe.StatusCode)
	}
	if errors.Is(err, ErrBreakerOpen) {
		return false
	}
	return model.CodeOf(err) == model.ErrBackendUnavailable
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func calculateBackoff(cfg config.RetryConfig, attempt int) time.Duration {
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 100 * time.Millisecond
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Second
	}

	delay := cfg.BackoffInitial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.BackoffMultiplier)
		if delay > cfg.BackoffMax {
			delay = cfg.BackoffMax
			break
		}
	}
	return delay
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
