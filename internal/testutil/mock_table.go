// Package testutil provides testing utilities for the pagefetch client.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// MockResponse defines the behavior of one mock table API response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockTable is a configurable mock paged-table server for testing.
type MockTable struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	queues   map[string][]MockResponse

	// Tracking
	RequestCount      int
	RequestedURLs     []*url.URL
	LastRequestHeader http.Header
}

// NewMockTable creates a new mock table server.
func NewMockTable() *MockTable {
	mock := &MockTable{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		queues:   make(map[string][]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		u := *r.URL
		mock.RequestedURLs = append(mock.RequestedURLs, &u)
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		// Scripted sequence takes priority; the last entry repeats.
		mock.mu.Lock()
		queue, exists := mock.queues[r.URL.Path]
		if exists && len(queue) > 0 {
			resp := queue[0]
			if len(queue) > 1 {
				mock.queues[r.URL.Path] = queue[1:]
			}
			mock.mu.Unlock()
			writeResponse(w, resp)
			return
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockTable) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockTable) Close() {
	m.server.Close()
}

// Reset clears all tracking counters and scripted responses.
func (m *MockTable) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.RequestedURLs = nil
	m.LastRequestHeader = nil
	m.queues = make(map[string][]MockResponse)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockTable) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockTable) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// QueueResponses scripts a sequence of responses for a path. Responses
// are served in order; the final one repeats for any further requests.
func (m *MockTable) QueueResponses(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[path] = responses
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockTable) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequestedURLs returns the URLs requested so far, in order.
func (m *MockTable) GetRequestedURLs() []*url.URL {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*url.URL(nil), m.RequestedURLs...)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// defaultHandler serves an empty single-page table.
func (m *MockTable) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"value": []}`))
}

// NewPageResponse creates a 200 OK response carrying a value array.
func NewPageResponse(body string, headers map[string]string) MockResponse {
	h := map[string]string{
		"Content-Type": "application/json; charset=utf-8",
	}
	for k, v := range headers {
		h[k] = v
	}
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    h,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
