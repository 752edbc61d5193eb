package integration

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// ServiceRootPath is where the mock serves the REST API.
const ServiceRootPath = "/api/v1.0"

// MockOutlook is a configurable stand-in for the Outlook REST service. It
// routes requests to named operations, answers with queued responses and
// records every request for later assertion.
type MockOutlook struct {
	t      *testing.T
	server *httptest.Server

	mu           sync.RWMutex
	operations   map[string]*operationConfig
	receivedByOp map[string][]*RecordedRequest
	unmatched    []*RecordedRequest
}

// RecordedRequest captures one request received by the mock.
type RecordedRequest struct {
	Method      string
	Path        string
	RawQuery    string
	QueryParams map[string]string
	Headers     http.Header
	Body        map[string]any
	RawBody     []byte
	ReceivedAt  time.Time
}

type operationConfig struct {
	mu        sync.Mutex
	responses []*mockResponse
	current   int
}

type mockResponse struct {
	status    int
	body      any
	raw       string
	delay     time.Duration
	connError bool
}

// OperationMock configures the responses of one operation.
type OperationMock struct {
	mock *MockOutlook
	op   string
}

type operationRoute struct {
	method  string
	pattern string
}

// OutlookRoutes maps operation names to the REST routes they answer.
func OutlookRoutes() map[string]operationRoute {
	r := func(method, path string) operationRoute {
		return operationRoute{method: method, pattern: ServiceRootPath + path}
	}
	return map[string]operationRoute{
		"listEvents":         r(http.MethodGet, "/me/events"),
		"addEvent":           r(http.MethodPost, "/me/events"),
		"listCalendarEvents": r(http.MethodGet, "/me/calendars/{calendar}/events"),
		"getEvent":           r(http.MethodGet, "/me/events/{id}"),
		"updateEvent":        r(http.MethodPatch, "/me/events/{id}"),
		"deleteEvent":        r(http.MethodDelete, "/me/events/{id}"),
		"acceptEvent":        r(http.MethodPost, "/me/events/{id}/accept"),
		"declineEvent":       r(http.MethodPost, "/me/events/{id}/decline"),

		"listCalendars": r(http.MethodGet, "/me/calendars"),
		"getCalendar":   r(http.MethodGet, "/me/calendars/{id}"),

		"listMessages":       r(http.MethodGet, "/me/messages"),
		"addMessage":         r(http.MethodPost, "/me/messages"),
		"listFolderMessages": r(http.MethodGet, "/me/folders/{folder}/messages"),
		"getMessage":         r(http.MethodGet, "/me/messages/{id}"),
		"updateMessage":      r(http.MethodPatch, "/me/messages/{id}"),
		"deleteMessage":      r(http.MethodDelete, "/me/messages/{id}"),
		"sendMessage":        r(http.MethodPost, "/me/messages/{id}/send"),
		"replyMessage":       r(http.MethodPost, "/me/messages/{id}/reply"),
		"forwardMessage":     r(http.MethodPost, "/me/messages/{id}/forward"),
		"moveMessage":        r(http.MethodPost, "/me/messages/{id}/move"),

		"listMessageAttachments": r(http.MethodGet, "/me/messages/{id}/attachments"),
		"addMessageAttachment":   r(http.MethodPost, "/me/messages/{id}/attachments"),
		"getItemAttachment":      r(http.MethodGet, "/me/messages/{id}/attachments/{aid}/Microsoft.OutlookServices.ItemAttachment/Item"),
		"listEventAttachments":   r(http.MethodGet, "/me/events/{id}/attachments"),

		"listFolders": r(http.MethodGet, "/me/folders/{id}/childfolders"),
		"listUsers":   r(http.MethodGet, "/users"),
		"getUser":     r(http.MethodGet, "/users/{id}"),
	}
}

func newMockOutlook(t *testing.T, routes map[string]operationRoute) *MockOutlook {
	t.Helper()

	m := &MockOutlook{
		t:            t,
		operations:   make(map[string]*operationConfig),
		receivedByOp: make(map[string][]*RecordedRequest),
	}

	mux := http.NewServeMux()
	for op, route := range routes {
		mux.HandleFunc(route.method+" "+route.pattern, m.handleOperation(op))
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		rec := record(r)
		m.mu.Lock()
		m.unmatched = append(m.unmatched, rec)
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ODataError("ResourceNotFound",
			fmt.Sprintf("mock: no operation registered for %s %s", r.Method, r.URL.Path)))
	})

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

// URL returns the base URL of the mock server.
func (m *MockOutlook) URL() string {
	return m.server.URL
}

// ServiceRoot returns the service root clients should be given.
func (m *MockOutlook) ServiceRoot() string {
	return m.server.URL + ServiceRootPath
}

// On returns a builder for the responses of the named operation.
func (m *MockOutlook) On(op string) *OperationMock {
	return &OperationMock{mock: m, op: op}
}

// RespondWith queues a JSON response.
func (om *OperationMock) RespondWith(status int, body any) *OperationMock {
	om.mock.addResponse(om.op, &mockResponse{status: status, body: body})
	return om
}

// RespondWithRaw queues a response with a verbatim body.
func (om *OperationMock) RespondWithRaw(status int, raw string) *OperationMock {
	om.mock.addResponse(om.op, &mockResponse{status: status, raw: raw})
	return om
}

// RespondWithError queues an OData error envelope.
func (om *OperationMock) RespondWithError(status int, code, message string) *OperationMock {
	return om.RespondWith(status, ODataError(code, message))
}

// RespondWithDelay queues a delayed response to simulate a slow service.
func (om *OperationMock) RespondWithDelay(delay time.Duration, status int, body any) *OperationMock {
	om.mock.addResponse(om.op, &mockResponse{status: status, body: body, delay: delay})
	return om
}

// RespondWithConnectionError closes the connection without answering.
func (om *OperationMock) RespondWithConnectionError() *OperationMock {
	om.mock.addResponse(om.op, &mockResponse{connError: true})
	return om
}

func (m *MockOutlook) addResponse(op string, resp *mockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.operations[op]
	if !ok {
		cfg = &operationConfig{}
		m.operations[op] = cfg
	}
	cfg.responses = append(cfg.responses, resp)
}

func record(r *http.Request) *RecordedRequest {
	rec := &RecordedRequest{
		Method:      r.Method,
		Path:        r.URL.EscapedPath(),
		RawQuery:    r.URL.RawQuery,
		QueryParams: make(map[string]string),
		Headers:     r.Header.Clone(),
		ReceivedAt:  time.Now(),
	}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			rec.QueryParams[key] = values[0]
		}
	}
	if r.Body != nil {
		body, _ := io.ReadAll(r.Body)
		rec.RawBody = body
		if len(body) > 0 {
			var parsed map[string]any
			if err := json.Unmarshal(body, &parsed); err == nil {
				rec.Body = parsed
			}
		}
	}
	return rec
}

func (m *MockOutlook) handleOperation(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := record(r)
		m.mu.Lock()
		m.receivedByOp[op] = append(m.receivedByOp[op], rec)
		m.mu.Unlock()

		resp := m.nextResponse(op)
		if resp == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
			return
		}

		if resp.connError {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, _ := hj.Hijack(); conn != nil {
					conn.Close()
				}
			}
			return
		}

		if resp.delay > 0 {
			select {
			case <-time.After(resp.delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		switch {
		case resp.raw != "":
			w.Write([]byte(resp.raw))
		case resp.body != nil:
			json.NewEncoder(w).Encode(resp.body)
		}
	}
}

func (m *MockOutlook) nextResponse(op string) *mockResponse {
	m.mu.RLock()
	cfg, ok := m.operations[op]
	m.mu.RUnlock()
	if !ok || cfg == nil {
		return nil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()
	if len(cfg.responses) == 0 {
		return nil
	}

	idx := cfg.current
	if idx >= len(cfg.responses) {
		// The last response repeats.
		idx = len(cfg.responses) - 1
	} else {
		cfg.current++
	}
	return cfg.responses[idx]
}

// AssertCalled verifies the operation was called count times.
func (m *MockOutlook) AssertCalled(t *testing.T, op string, count int) {
	t.Helper()
	if got := len(m.Requests(op)); got != count {
		t.Errorf("operation %q called %d times, want %d", op, got, count)
	}
}

// AssertNotCalled verifies the operation was never called.
func (m *MockOutlook) AssertNotCalled(t *testing.T, op string) {
	t.Helper()
	m.AssertCalled(t, op, 0)
}

// LastRequest returns the most recent request for op, or nil.
func (m *MockOutlook) LastRequest(op string) *RecordedRequest {
	reqs := m.Requests(op)
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

// Requests returns every request received for op.
func (m *MockOutlook) Requests(op string) []*RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reqs := m.receivedByOp[op]
	out := make([]*RecordedRequest, len(reqs))
	copy(out, reqs)
	return out
}

// Unmatched returns requests that hit no registered route.
func (m *MockOutlook) Unmatched() []*RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*RecordedRequest, len(m.unmatched))
	copy(out, m.unmatched)
	return out
}

// Reset clears recorded requests and queued responses.
func (m *MockOutlook) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations = make(map[string]*operationConfig)
	m.receivedByOp = make(map[string][]*RecordedRequest)
	m.unmatched = nil
}

// ResetOperation clears recorded requests and queued responses for one operation.
func (m *MockOutlook) ResetOperation(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.operations, op)
	delete(m.receivedByOp, op)
}
