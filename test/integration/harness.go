// Package integration provides a reusable harness for end-to-end tests of
// the Outlook bridge. It starts the full HTTP stack in front of a mock
// Outlook REST service and mints access tokens for it.
package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/outlookbridge/internal/bridge"
	"github.com/pitabwire/outlookbridge/internal/config"
	"github.com/pitabwire/outlookbridge/internal/observability"
	"github.com/pitabwire/outlookbridge/internal/odata"
	"github.com/pitabwire/outlookbridge/internal/openapi"
	"github.com/pitabwire/outlookbridge/internal/transport"
)

// TestHarness is a fully wired bridge in front of a mock Outlook service.
type TestHarness struct {
	server *httptest.Server
	issuer *tokenIssuer

	// Components exposed for advanced scenarios.
	Outlook    *MockOutlook
	Transport  *odata.Transport
	Dispatcher *bridge.Dispatcher
	OAIndex    *openapi.Index
	Registry   *prometheus.Registry

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*config.Config)

// WithCircuitBreaker overrides the circuit breaker settings.
func WithCircuitBreaker(cb config.CircuitBreakerConfig) HarnessOption {
	return func(c *config.Config) {
		c.OData.CircuitBreaker = cb
	}
}

// WithRetry overrides the retry settings.
func WithRetry(r config.RetryConfig) HarnessOption {
	return func(c *config.Config) {
		c.OData.Retry = r
	}
}

// WithReplyTimeout sets how long the HTTP layer waits for a reply.
func WithReplyTimeout(d time.Duration) HarnessOption {
	return func(c *config.Config) {
		c.Server.ReplyTimeout = d
	}
}

// WithODataTimeout sets the per-request timeout of remote calls.
func WithODataTimeout(d time.Duration) HarnessOption {
	return func(c *config.Config) {
		c.OData.Timeout = d
	}
}

// NewTestHarness creates and starts a full bridge instance. Everything is
// cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	cfg := config.Defaults()
	cfg.Server.ReplyTimeout = 10 * time.Second
	cfg.OData.Timeout = 5 * time.Second
	cfg.OData.Retry = config.RetryConfig{MaxAttempts: 1, IdempotentOnly: true}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &TestHarness{
		issuer:   newTokenIssuer(t),
		Outlook:  newMockOutlook(t, OutlookRoutes()),
		Registry: prometheus.NewRegistry(),
		cfg:      cfg,
	}

	logger := zap.NewNop()
	metrics := observability.InitMetrics(h.Registry)

	h.Transport = odata.NewTransport(cfg.OData,
		odata.WithRecorder(metrics),
		odata.WithLogger(logger),
	)
	h.Dispatcher = bridge.New(h.Transport.NewClient,
		bridge.WithLogger(logger),
		bridge.WithMetrics(metrics),
	)

	actions := bridge.Actions()
	doc, err := openapi.Build(actions, "test")
	if err != nil {
		t.Fatalf("build openapi document: %v", err)
	}
	h.OAIndex = openapi.NewIndex(doc)

	router := transport.NewRouter(transport.Dependencies{
		Config:     cfg,
		Dispatcher: h.Dispatcher,
		Actions:    actions,
		OpenAPI:    h.OAIndex,
		Logger:     logger,
		Metrics:    metrics,
		Gatherer:   h.Registry,
		Readiness: observability.ReadinessChecks{
			CatalogLoaded: func() bool { return len(actions) > 0 },
			Remote:        h.Transport,
		},
	})

	h.server = httptest.NewServer(router)
	t.Cleanup(func() {
		h.server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.Dispatcher.Drain(ctx)
	})

	return h
}

// BaseURL returns the bridge's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// GenerateToken mints a valid access token.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken mints an access token that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// --- HTTP client helpers ---

// Invoke posts the action with token, the mock's service root, path and
// args as its flat argument list.
func (h *TestHarness) Invoke(t *testing.T, action, token, path string, args ...string) *http.Response {
	t.Helper()
	flat := append([]string{token, h.Outlook.ServiceRoot(), path}, args...)
	return h.POST(t, openapi.ActionsPath+"/"+action, flat, nil)
}

// InvokeReply invokes the action and decodes the 200 reply.
func (h *TestHarness) InvokeReply(t *testing.T, action, token, path string, args ...string) transport.Reply {
	t.Helper()
	var reply transport.Reply
	h.AssertJSON(t, h.Invoke(t, action, token, path, args...), http.StatusOK, &reply)
	return reply
}

// GET performs a GET request.
func (h *TestHarness) GET(t *testing.T, path string) *http.Response {
	t.Helper()
	return h.doRequest(t, http.MethodGet, path, nil, nil)
}

// POST performs a POST request with body encoded as JSON.
func (h *TestHarness) POST(t *testing.T, path string, body any, headers map[string]string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	return h.doRequest(t, http.MethodPost, path, data, headers)
}

// POSTRaw performs a POST request with body sent byte for byte, so broken
// JSON reaches the bridge as is.
func (h *TestHarness) POSTRaw(t *testing.T, path, body string) *http.Response {
	t.Helper()
	return h.doRequest(t, http.MethodPost, path, []byte(body), nil)
}

func (h *TestHarness) doRequest(t *testing.T, method, path string, body []byte, headers map[string]string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into target.
func (h *TestHarness) ParseJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	data := h.ReadBody(t, resp)
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// ReadBody reads and returns the response body.
func (h *TestHarness) ReadBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return data
}

// AssertStatus checks the response status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks the status and parses the body into target.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(t, resp, target)
}

// --- Fixtures ---

// ODataError returns an Outlook error envelope.
func ODataError(code, message string) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// CollectionFixture wraps items in an OData collection envelope.
func CollectionFixture(items ...map[string]any) map[string]any {
	value := make([]any, len(items))
	for i, item := range items {
		value[i] = item
	}
	return map[string]any{
		"@odata.context": "https://outlook.office.com/api/v1.0/$metadata",
		"value":          value,
	}
}

// EventFixture returns a calendar event.
func EventFixture(id, subject string) map[string]any {
	return map[string]any{
		"Id":      id,
		"Subject": subject,
		"Start":   "2026-10-19T09:00:00Z",
		"End":     "2026-10-19T09:30:00Z",
		"ResponseStatus": map[string]any{
			"Response": "NotResponded",
		},
	}
}

// MessageFixture returns a mail message.
func MessageFixture(id, subject string) map[string]any {
	return map[string]any{
		"Id":      id,
		"Subject": subject,
		"IsDraft": true,
		"From": map[string]any{
			"EmailAddress": map[string]any{"Address": "adele@contoso.example.com"},
		},
	}
}

// FormatJSON renders v as indented JSON for test output.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
