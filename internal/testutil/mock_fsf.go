// Package testutil provides testing utilities for the First Street API client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines one scripted response of the mock service.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	// Delay holds the response back. A client that gives up earlier sees a timeout.
	Delay time.Duration
}

// MockFSF is a scriptable mock of the First Street API.
// Every path can be given a sequence of responses; the last one repeats.
type MockFSF struct {
	server *httptest.Server

	mu          sync.Mutex
	scripts     map[string][]MockResponse
	fallback    MockResponse
	attempts    map[string]int
	starts      []time.Time
	inFlight    int
	maxInFlight int
	lastHeader  http.Header
}

// NewMockFSF starts a new mock server. Unscripted paths answer with a
// 404 error body, like the real service does for unknown ids.
func NewMockFSF() *MockFSF {
	mock := &MockFSF{
		scripts:  make(map[string][]MockResponse),
		attempts: make(map[string]int),
		fallback: NewErrorResponse(http.StatusNotFound, "Not Found"),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

func (m *MockFSF) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.starts = append(m.starts, time.Now())
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.lastHeader = r.Header.Clone()

	path := r.URL.RequestURI()
	script, ok := m.scripts[path]
	if !ok {
		path = r.URL.Path
		script, ok = m.scripts[path]
	}
	n := m.attempts[path]
	m.attempts[path] = n + 1

	resp := m.fallback
	if ok && len(script) > 0 {
		resp = script[min(n, len(script)-1)]
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// URL returns the mock server URL.
func (m *MockFSF) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockFSF) Close() {
	m.server.Close()
}

// Script sets the response sequence for a path. The path may include a
// query string, in which case it only matches that exact request URI.
func (m *MockFSF) Script(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[path] = responses
}

// SetFallback sets the response for unscripted paths.
func (m *MockFSF) SetFallback(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
}

// Attempts returns how many requests hit a scripted path (or an unscripted
// path, keyed by its URL path).
func (m *MockFSF) Attempts(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[path]
}

// RequestCount returns the number of requests made to the server.
func (m *MockFSF) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.starts)
}

// Starts returns the arrival time of every request in arrival order.
func (m *MockFSF) Starts() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.starts...)
}

// MaxConcurrent returns the highest number of requests served at once.
func (m *MockFSF) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockFSF) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader
}

// rateLimitHeaders are attached to every canned response.
func rateLimitHeaders(remaining string) map[string]string {
	return map[string]string{
		"Content-Type":          "application/vnd.api+json",
		"X-Ratelimit-Limit":     "5000",
		"X-Ratelimit-Remaining": remaining,
		"X-Ratelimit-Reset":     "60",
		"X-Request-Id":          "mock-request",
	}
}

// NewJSONResponse creates a 200 OK response carrying v as JSON.
func NewJSONResponse(v any) MockResponse {
	body, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    rateLimitHeaders("4999"),
	}
}

// NewErrorResponse creates a response with an error body in the format of
// the service: {"error": {"code": ..., "message": ...}}.
func NewErrorResponse(status int, message string) MockResponse {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
	return MockResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    rateLimitHeaders("4999"),
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response with an
// exhausted budget.
func NewRateLimitResponse() MockResponse {
	resp := NewErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded")
	resp.Headers = rateLimitHeaders("0")
	return resp
}

// NewTileResponse creates a 200 OK response with a PNG payload.
func NewTileResponse(image []byte) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(image),
		Headers:    map[string]string{"Content-Type": "image/png"},
	}
}

// NewSlowResponse creates a response delayed by d.
func NewSlowResponse(d time.Duration) MockResponse {
	resp := NewJSONResponse(map[string]any{})
	resp.Delay = d
	return resp
}
