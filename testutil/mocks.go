// Package testutil provides mock HTTP servers for the Slack and OpenAI APIs.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockSlackServer creates a test server that mocks Slack Web API responses
type MockSlackServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockSlackServer creates a new mock Slack API server
func NewMockSlackServer(t *testing.T) *MockSlackServer {
	t.Helper()
	m := &MockSlackServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockChannelList adds a handler for /conversations.list returning the given
// name->id mapping.
func (m *MockSlackServer) MockChannelList(channels map[string]string) {
	m.Handlers["/conversations.list"] = func(w http.ResponseWriter, r *http.Request) {
		var list []map[string]string
		for name, id := range channels {
			list = append(list, map[string]string{"id": id, "name": name})
		}
		response := map[string]interface{}{
			"ok":       true,
			"channels": list,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockHistory adds a handler for /conversations.history returning a single
// page of messages.
func (m *MockSlackServer) MockHistory(messages []map[string]interface{}) {
	m.Handlers["/conversations.history"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"ok":       true,
			"messages": messages,
			"has_more": false,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockUserInfo adds a handler for /users.info mapping user ids to real names.
func (m *MockSlackServer) MockUserInfo(names map[string]string) {
	m.Handlers["/users.info"] = func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("user")
		name, ok := names[id]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": "user_not_found"}) //nolint:errcheck // test mock response
			return
		}
		response := map[string]interface{}{
			"ok":   true,
			"user": map[string]interface{}{"id": id, "name": name, "real_name": name},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockPostMessage adds a handler for /chat.postMessage that records posted
// payloads into dst.
func (m *MockSlackServer) MockPostMessage(dst *[]map[string]interface{}) {
	m.Handlers["/chat.postMessage"] = func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload) //nolint:errcheck // test mock request
		if dst != nil {
			*dst = append(*dst, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true}) //nolint:errcheck // test mock response
	}
}

// MockOpenAIServer creates a test server that mocks the chat completions API
type MockOpenAIServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockOpenAIServer creates a new mock OpenAI API server
func NewMockOpenAIServer(t *testing.T) *MockOpenAIServer {
	t.Helper()
	m := &MockOpenAIServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockCompletion adds a handler for /chat/completions returning a fixed
// summary text.
func (m *MockOpenAIServer) MockCompletion(content string) {
	m.Handlers["/chat/completions"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}
