// Package testutil provides testing utilities for the OFS client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock OFS endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOFS is a configurable mock OFS instance for testing.
type MockOFS struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
}

// NewMockOFS creates a new mock OFS server.
func NewMockOFS() *MockOFS {
	mock := &MockOFS{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
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
func (m *MockOFS) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOFS) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockOFS) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockOFS) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// SetHandler sets a custom handler for a specific path.
func (m *MockOFS) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockOFS) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetCollection serves a paginated OFS collection envelope for path.
// Items are raw JSON values; offset and limit come from the query string.
// failOffsets maps an offset to the HTTP status it should fail with.
func (m *MockOFS) SetCollection(path string, items []json.RawMessage, failOffsets map[int]int) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 100
		}

		if status, fail := failOffsets[offset]; fail {
			http.Error(w, fmt.Sprintf("injected failure at offset %d", offset), status)
			return
		}

		end := offset + limit
		if offset > len(items) {
			offset = len(items)
		}
		if end > len(items) {
			end = len(items)
		}

		envelope := map[string]any{
			"items":        items[offset:end],
			"totalResults": len(items),
			"offset":       offset,
			"limit":        limit,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(envelope)
	})
}

// CollectionItems builds n sequential activity-like items for SetCollection.
func CollectionItems(n int) []json.RawMessage {
	items := make([]json.RawMessage, n)
	for i := range items {
		items[i] = json.RawMessage(fmt.Sprintf(`{"activityId":%d}`, i))
	}
	return items
}

// defaultHandler returns 404 for unconfigured paths.
func (m *MockOFS) defaultHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, fmt.Sprintf("no handler for %s", r.URL.Path), http.StatusNotFound)
}
