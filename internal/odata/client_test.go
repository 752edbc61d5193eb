package odata

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pitabwire/outlookbridge/internal/config"
	"github.com/pitabwire/outlookbridge/model"
)

// recordedRequest captures what the fake service received.
type recordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     string
}

type fakeService struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method:   r.Method,
		Path:     r.URL.EscapedPath(),
		RawQuery: r.URL.RawQuery,
		Header:   r.Header.Clone(),
		Body:     string(body),
	})
	f.mu.Unlock()
	if f.handler != nil {
		f.handler(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"id":"X"}`))
}

func (f *fakeService) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no requests recorded")
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeService) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func testODataConfig() config.ODataConfig {
	cfg := config.Defaults().OData
	cfg.Timeout = 5 * time.Second
	cfg.Retry.BackoffInitial = time.Millisecond
	cfg.Retry.BackoffMax = 5 * time.Millisecond
	return cfg
}

func newTestClient(t *testing.T, cfg config.ODataConfig, handler func(http.ResponseWriter, *http.Request)) (*Client, *fakeService) {
	t.Helper()
	svc := &fakeService{handler: handler}
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	tr := NewTransport(cfg)
	return tr.NewClient(srv.URL+"/api/v1.0/", "tok-123"), svc
}

func TestEntity_ReadRaw(t *testing.T) {
	c, svc := newTestClient(t, testODataConfig(), nil)

	body, err := c.Me().Collection("events").ByID("EVT1").ReadRaw(context.Background())
	if err != nil {
		t.Fatalf("ReadRaw() error = %v", err)
	}
	if body != `{"id":"X"}` {
		t.Errorf("body = %q", body)
	}

	req := svc.last(t)
	if req.Method != http.MethodGet {
		t.Errorf("method = %s, want GET", req.Method)
	}
	if req.Path != "/api/v1.0/me/events/EVT1" {
		t.Errorf("path = %q", req.Path)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer tok-123" {
		t.Errorf("Authorization = %q", got)
	}
	if got := req.Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
	if got := req.Header.Get("User-Agent"); got != "outlook-bridge" {
		t.Errorf("User-Agent = %q", got)
	}
	if req.Header.Get("Content-Type") != "" {
		t.Error("GET should not carry Content-Type")
	}
}

func TestEntity_idIsPathEscaped(t *testing.T) {
	c, svc := newTestClient(t, testODataConfig(), nil)

	_, err := c.Me().Collection("messages").ByID("AAMk/a b=").ReadRaw(context.Background())
	if err != nil {
		t.Fatalf("ReadRaw() error = %v", err)
	}
	if got := svc.last(t).Path; got != "/api/v1.0/me/messages/AAMk%2Fa%20b=" {
		t.Errorf("path = %q", got)
	}
}

func TestCollection_ReadRawWithQuery(t *testing.T) {
	c, svc := newTestClient(t, testODataConfig(), nil)

	_, err := c.Me().Collection("messages").
		Top(10).Skip(0).Select("Subject,From").Filter("IsRead eq false").
		ReadRaw(context.Background())
	if err != nil {
		t.Fatalf("ReadRaw() error = %v", err)
	}

	want := "$filter=IsRead%20eq%20false&$select=Subject%2CFrom&$top=10&$skip=0"
	if got := svc.last(t).RawQuery; got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
}

func TestCollection_Reset(t *testing.T) {
	c, svc := newTestClient(t, testODataConfig(), nil)

	coll := c.Me().Collection("events").Top(5).Expand("Attachments")
	coll.Reset()
	if _, err := coll.ReadRaw(context.Background()); err != nil {
		t.Fatalf("ReadRaw() error = %v", err)
	}
	if got := svc.last(t).RawQuery; got != "" {
		t.Errorf("query after Reset = %q, want empty", got)
	}
}

func TestCollection_AddRaw(t *testing.T) {
	c, svc := newTestClient(t, testODataConfig(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"Id":"CAL9"}`))
	})

	body, err := c.Me().Collection("calendars").AddRaw(context.Background(), `{"Name":"Team"}`)
	if err != nil {
		t.Fatalf("AddRaw() error = %v", err)
	}
	if body != `{"Id":"CAL9"}` {
		t.Errorf("body = %q", body)
	}

	req := svc.last(t)
	if req.Method != http.MethodPost || req.Path != "/api/v1.0/me/calendars" {
		t.Errorf("request = %s %s", req.Method, req.Path)
	}
	if req.Body != `{"Name":"Team"}` {
		t.Errorf("request body = %q", req.Body)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestEntity_UpdateRaw(t *testing.T) {
	c, svc := newTestClient(t, testODataConfig(), nil)

	if _, err := c.Me().Collection("contacts").ByID("C1").UpdateRaw(context.Background(), `{"GivenName":"Ada"}`); err != nil {
		t.Fatalf("UpdateRaw() error = %v", err)
	}
	req := svc.last(t)
	if req.Method != http.MethodPatch || req.Path != "/api/v1.0/me/contacts/C1" {
		t.Errorf("request = %s %s", req.Method, req.Path)
	}
}

func TestEntity_Delete(t *testing.T) {
	c, svc := newTestClient(t, testODataConfig(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.Me().Collection("calendars").ByID("CAL1").Delete(context.Background()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	req := svc.last(t)
	if req.Method != http.MethodDelete || req.Path != "/api/v1.0/me/calendars/CAL1" {
		t.Errorf("request = %s %s", req.Method, req.Path)
	}
}

func TestEntity_InvokeRaw_params(t *testing.T) {
	c, svc := newTestClient(t, testODataConfig(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	body, err := c.Me().Collection("messages").ByID("M1").InvokeRaw(context.Background(), "forward",
		StringParam("Comment", `say "hi"`),
		RawParam("ToRecipients", []byte(`[{"EmailAddress":{"Address":"a@b.c"}}]`)),
	)
	if err != nil {
		t.Fatalf("InvokeRaw() error = %v", err)
	}
	if body != "" {
		t.Errorf("body = %q, want empty", body)
	}

	req := svc.last(t)
	if req.Method != http.MethodPost || req.Path != "/api/v1.0/me/messages/M1/forward" {
		t.Errorf("request = %s %s", req.Method, req.Path)
	}
	want := `{"Comment":"say \"hi\"","ToRecipients":[{"EmailAddress":{"Address":"a@b.c"}}]}`
	if req.Body != want {
		t.Errorf("request body = %s, want %s", req.Body, want)
	}
}

func TestEntity_InvokeRaw_noParamsSendsNoBody(t *testing.T) {
	c, svc := newTestClient(t, testODataConfig(), nil)

	if _, err := c.Me().Collection("messages").ByID("M1").InvokeRaw(context.Background(), "send"); err != nil {
		t.Fatalf("InvokeRaw() error = %v", err)
	}
	req := svc.last(t)
	if req.Body != "" {
		t.Errorf("body = %q, want empty", req.Body)
	}
	if req.Header.Get("Content-Type") != "" {
		t.Error("bodiless POST should not carry Content-Type")
	}
}

func TestEntity_InvokeRaw_invalidRawParam(t *testing.T) {
	c, svc := newTestClient(t, testODataConfig(), nil)

	_, err := c.Me().Collection("messages").ByID("M1").InvokeRaw(context.Background(), "forward",
		RawParam("ToRecipients", []byte(`[not json`)))
	if err == nil {
		t.Fatal("expected error for invalid raw parameter")
	}
	if svc.count() != 0 {
		t.Error("no request should be sent when parameters fail to encode")
	}
}

func TestEntity_CastAndProperty(t *testing.T) {
	c, svc := newTestClient(t, testODataConfig(), nil)

	e := c.Me().Collection("messages").ByID("M1").
		Collection("attachments").ByID("A1").
		Cast(c.ItemAttachmentType()).Property("Item")
	if got := e.Path(); got != "me/messages/M1/attachments/A1/Microsoft.OutlookServices.ItemAttachment/Item" {
		t.Errorf("Path() = %q", got)
	}
	if _, err := e.ReadRaw(context.Background()); err != nil {
		t.Fatalf("ReadRaw() error = %v", err)
	}
	if got := svc.last(t).Path; got != "/api/v1.0/me/messages/M1/attachments/A1/Microsoft.OutlookServices.ItemAttachment/Item" {
		t.Errorf("path = %q", got)
	}
}

func TestClient_ServiceRootTrimmed(t *testing.T) {
	tr := NewTransport(testODataConfig())
	c := tr.NewClient("https://outlook.office.com/api/v2.0//", "t")
	if got := c.ServiceRoot(); got != "https://outlook.office.com/api/v2.0" {
		t.Errorf("ServiceRoot() = %q", got)
	}
	if got := c.Users().ByID("u1").URL(); got != "https://outlook.office.com/api/v2.0/users/u1" {
		t.Errorf("URL() = %q", got)
	}
}

func TestClient_callContextHeaders(t *testing.T) {
	c, svc := newTestClient(t, testODataConfig(), nil)

	ctx := model.WithCallContext(context.Background(), &model.CallContext{CallID: "call-42"})
	if _, err := c.Me().Collection("events").ReadRaw(ctx); err != nil {
		t.Fatalf("ReadRaw() error = %v", err)
	}
	req := svc.last(t)
	if got := req.Header.Get("client-request-id"); got != "call-42" {
		t.Errorf("client-request-id = %q", got)
	}
	if got := req.Header.Get("return-client-request-id"); got != "true" {
		t.Errorf("return-client-request-id = %q", got)
	}
}

func TestClient_errorStatusReturnsError(t *testing.T) {
	payload := `{"error":{"code":"ErrorItemNotFound","message":"The specified object was not found in the store."}}`
	c, _ := newTestClient(t, testODataConfig(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(payload))
	})

	_, err := c.Me().Collection("events").ByID("nope").ReadRaw(context.Background())
	oe, ok := AsError(err)
	if !ok {
		t.Fatalf("error = %v, want *Error", err)
	}
	if oe.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", oe.StatusCode)
	}
	if string(oe.Payload) != payload {
		t.Errorf("Payload = %s", oe.Payload)
	}
	if !strings.Contains(oe.Error(), "404") {
		t.Errorf("Error() = %q, want status in message", oe.Error())
	}
}

func TestClient_retriesIdempotentOnServerError(t *testing.T) {
	var calls atomic.Int32
	cfg := testODataConfig()
	cfg.Retry.MaxAttempts = 3

	c, svc := newTestClient(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"value":[]}`))
	})

	body, err := c.Me().Collection("events").ReadRaw(context.Background())
	if err != nil {
		t.Fatalf("ReadRaw() error = %v", err)
	}
	if body != `{"value":[]}` {
		t.Errorf("body = %q", body)
	}
	if svc.count() != 3 {
		t.Errorf("requests = %d, want 3", svc.count())
	}
}

func TestClient_noRetryForPOSTWhenIdempotentOnly(t *testing.T) {
	cfg := testODataConfig()
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.IdempotentOnly = true

	c, svc := newTestClient(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Me().Collection("messages").AddRaw(context.Background(), `{}`)
	if _, ok := AsError(err); !ok {
		t.Fatalf("error = %v, want *Error", err)
	}
	if svc.count() != 1 {
		t.Errorf("requests = %d, want 1", svc.count())
	}
}

func TestClient_clientErrorsAreNotRetried(t *testing.T) {
	cfg := testODataConfig()
	cfg.Retry.MaxAttempts = 3

	c, svc := newTestClient(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	if _, err := c.Me().Collection("events").ReadRaw(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if svc.count() != 1 {
		t.Errorf("requests = %d, want 1", svc.count())
	}
}

func TestClient_breakerOpensAndRejects(t *testing.T) {
	cfg := testODataConfig()
	cfg.Retry.MaxAttempts = 1
	cfg.CircuitBreaker.FailureThreshold = 2
	cfg.CircuitBreaker.Timeout = time.Hour

	c, svc := newTestClient(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 2; i++ {
		_, _ = c.Me().Collection("events").ReadRaw(context.Background())
	}
	if s := c.transport.Breaker().State(); s != BreakerOpen {
		t.Fatalf("breaker = %v, want open", s)
	}

	_, err := c.Me().Collection("events").ReadRaw(context.Background())
	if model.CodeOf(err) != model.ErrBackendUnavailable {
		t.Errorf("code = %q, want %s", model.CodeOf(err), model.ErrBackendUnavailable)
	}
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("error = %v, want ErrBreakerOpen in chain", err)
	}
	if svc.count() != 2 {
		t.Errorf("requests = %d, want 2 (third rejected locally)", svc.count())
	}
	if err := c.transport.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail while open")
	}
}

func TestClient_connectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := testODataConfig()
	cfg.Retry.MaxAttempts = 1
	c := NewTransport(cfg).NewClient(url, "t")

	_, err := c.Me().Collection("events").ReadRaw(context.Background())
	if model.CodeOf(err) != model.ErrBackendUnavailable {
		t.Errorf("code = %q, want %s (err = %v)", model.CodeOf(err), model.ErrBackendUnavailable, err)
	}
}

type countingRecorder struct {
	mu       sync.Mutex
	requests map[int]int
	retries  int
	states   []float64
}

func (r *countingRecorder) RecordRemoteRequest(_ string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.requests == nil {
		r.requests = map[int]int{}
	}
	r.requests[status]++
}

func (r *countingRecorder) RecordRemoteRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

func (r *countingRecorder) SetCircuitBreakerState(s float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func TestTransport_recordsMetrics(t *testing.T) {
	var calls atomic.Int32
	rec := &countingRecorder{}
	svc := &fakeService{handler: func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	cfg := testODataConfig()
	cfg.Retry.MaxAttempts = 2
	c := NewTransport(cfg, WithRecorder(rec)).NewClient(srv.URL, "t")

	if _, err := c.Me().Collection("events").ReadRaw(context.Background()); err != nil {
		t.Fatalf("ReadRaw() error = %v", err)
	}
	if rec.requests[http.StatusBadGateway] != 1 || rec.requests[http.StatusOK] != 1 {
		t.Errorf("requests = %v", rec.requests)
	}
	if rec.retries != 1 {
		t.Errorf("retries = %d, want 1", rec.retries)
	}
}

func TestErrorField(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		ok      bool
	}{
		{"object", `{"error": {"code": "X", "message": "m"}}`, `{"code":"X","message":"m"}`, true},
		{"string", `{"error":"bad thing"}`, "bad thing", true},
		{"null", `{"error":null}`, "null", true},
		{"no error member", `{"message":"m"}`, "", false},
		{"not json", `<html>oops</html>`, "", false},
		{"array", `[1,2]`, "", false},
		{"empty", ``, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Error{Payload: []byte(tt.payload)}
			got, ok := e.ErrorField()
			if ok != tt.ok || got != tt.want {
				t.Errorf("ErrorField() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestQueryEncode_empty(t *testing.T) {
	if got := (Query{}).Encode(); got != "" {
		t.Errorf("Encode() = %q, want empty", got)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	for code, want := range map[int]bool{
		200: false, 400: false, 404: false, 429: true,
		500: true, 502: true, 503: true, 504: true, 501: false,
	} {
		if got := isRetryableStatus(code); got != want {
			t.Errorf("isRetryableStatus(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := config.RetryConfig{
		BackoffInitial:    100 * time.Millisecond,
		BackoffMultiplier: 2,
		BackoffMax:        time.Second,
	}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{5, time.Second},
	}
	for _, tt := range tests {
		if got := calculateBackoff(cfg, tt.attempt); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

type countingRoundTripper struct {
	calls atomic.Int32
	base  http.RoundTripper
}

func (c *countingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return c.base.RoundTrip(r)
}

func TestTransport_WithBaseTransport(t *testing.T) {
	svc := &fakeService{}
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	rt := &countingRoundTripper{base: http.DefaultTransport}
	c := NewTransport(testODataConfig(), WithBaseTransport(rt)).NewClient(srv.URL+"/api/v1.0", "tok-9")

	if _, err := c.Me().Collection("calendars").ReadRaw(context.Background()); err != nil {
		t.Fatalf("ReadRaw() error = %v", err)
	}
	if got := rt.calls.Load(); got != 1 {
		t.Errorf("base transport calls = %d, want 1", got)
	}
	if got := svc.last(t).Header.Get("Authorization"); got != "Bearer tok-9" {
		t.Errorf("Authorization = %q, want bearer over the custom base", got)
	}
}

func TestTransport_responseLargerThanLimitFails(t *testing.T) {
	cfg := testODataConfig()
	cfg.MaxResponseBytes = 16
	c, svc := newTestClient(t, cfg, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"id":"ATT1","ContentBytes":"AAAAAAAAAAAA"}`))
	})

	body, err := c.Me().Collection("messages").ByID("M1").ReadRaw(context.Background())
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("ReadRaw() error = %v, want ErrResponseTooLarge", err)
	}
	if body != "" {
		t.Errorf("body = %q, want nothing on an oversized response", body)
	}
	if svc.count() != 1 {
		t.Errorf("requests = %d, an oversized body must not be retried", svc.count())
	}
	if c.transport.Breaker().State() != BreakerClosed {
		t.Error("an oversized body is not a service failure")
	}
}

func TestTransport_responseAtLimitSucceeds(t *testing.T) {
	const payload = `{"id":"exactly"}`
	cfg := testODataConfig()
	cfg.MaxResponseBytes = int64(len(payload))
	c, _ := newTestClient(t, cfg, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(payload))
	})

	body, err := c.Me().ReadRaw(context.Background())
	if err != nil {
		t.Fatalf("ReadRaw() error = %v", err)
	}
	if body != payload {
		t.Errorf("body = %q, want %q", body, payload)
	}
}

func TestError_messageCapsPayload(t *testing.T) {
	big := strings.Repeat("x", 4096)
	e := &Error{Method: "GET", URL: "https://svc/me", StatusCode: 500, Payload: []byte(big)}

	msg := e.Error()
	if len(msg) > maxPayloadInMessage+128 {
		t.Errorf("len(Error()) = %d, want payload capped", len(msg))
	}
	if !strings.Contains(msg, "(4096 bytes)") {
		t.Errorf("Error() = %q, want the payload size", msg[:80])
	}
	if string(e.Payload) != big {
		t.Error("Payload must stay intact")
	}

	small := &Error{Method: "GET", URL: "https://svc/me", StatusCode: 400, Payload: []byte("upstream said no")}
	if got := small.Error(); got != "odata: GET https://svc/me returned 400: upstream said no" {
		t.Errorf("Error() = %q", got)
	}
}
