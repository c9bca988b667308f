// Package testutil provides testing utilities for the petstore browser.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock catalog response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPetstore is a configurable mock catalog server for testing.
// Responses are configured per status query value; the probe endpoint is the
// same findByStatus path, so probes count as requests too.
type MockPetstore struct {
	server *httptest.Server

	mu        sync.RWMutex
	responses map[string]MockResponse
	fallback  MockResponse

	requestCount     int
	conditionalCount int
	lastHeader       http.Header
	statusCounts     map[string]int
}

// NewMockPetstore creates and starts a mock server. Without configuration every
// request answers 200 with an empty JSON array.
func NewMockPetstore() *MockPetstore {
	m := &MockPetstore{
		responses:    make(map[string]MockResponse),
		fallback:     NewPetsResponse(`[]`),
		statusCounts: make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the base URL to use as catalog base.
func (m *MockPetstore) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPetstore) Close() {
	m.server.Close()
}

// SetResponse configures the response for a status query value.
func (m *MockPetstore) SetResponse(status string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[status] = resp
}

// SetFallback configures the response used for unconfigured statuses.
func (m *MockPetstore) SetFallback(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
}

// Reset clears all tracking counters.
func (m *MockPetstore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.conditionalCount = 0
	m.lastHeader = nil
	m.statusCounts = make(map[string]int)
}

// RequestCount returns the number of requests made to the server.
func (m *MockPetstore) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// StatusRequestCount returns the number of requests for one status value.
func (m *MockPetstore) StatusRequestCount(status string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusCounts[status]
}

// ConditionalCount returns the number of conditional requests.
func (m *MockPetstore) ConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditionalCount
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockPetstore) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

func (m *MockPetstore) handle(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	m.mu.Lock()
	m.requestCount++
	m.statusCounts[status]++
	m.lastHeader = r.Header.Clone()
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.conditionalCount++
	}
	resp, ok := m.responses[status]
	if !ok {
		resp = m.fallback
	}
	m.mu.Unlock()

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
	if etag := resp.Headers["ETag"]; etag != "" && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" && r.Method != http.MethodHead {
		w.Write([]byte(resp.Body))
	}
}

// NewPetsResponse creates a 200 OK JSON response.
func NewPetsResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewETagResponse creates a 200 OK JSON response carrying an ETag. A request
// presenting the same ETag in If-None-Match is answered with 304.
func NewETagResponse(body, etag string) MockResponse {
	resp := NewPetsResponse(body)
	resp.Headers["ETag"] = etag
	return resp
}

// NewNotModifiedResponse creates a 304 Not Modified response.
func NewNotModifiedResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusNotModified}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"code":500,"message":"something bad happened"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewSlowResponse creates a 200 OK response delivered after delay.
func NewSlowResponse(body string, delay time.Duration) MockResponse {
	resp := NewPetsResponse(body)
	resp.Delay = delay
	return resp
}
