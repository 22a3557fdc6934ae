// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

//go:build integration

package testinfra

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// WebhookCapture is one captured webhook request.
type WebhookCapture struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// WebhookServer records incoming webhook deliveries.
type WebhookServer struct {
	Server   *httptest.Server
	mu       sync.Mutex
	captures []WebhookCapture
	status   int
}

// NewWebhookServer starts a capturing server that is closed when the test ends.
func NewWebhookServer(t *testing.T) *WebhookServer {
	t.Helper()

	ws := &WebhookServer{status: http.StatusOK}
	ws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // Captured as-is
		r.Body.Close()                //nolint:errcheck,gosec // Server-side body

		ws.mu.Lock()
		ws.captures = append(ws.captures, WebhookCapture{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: r.Header.Clone(),
			Body:    body,
		})
		status := ws.status
		ws.mu.Unlock()

		w.WriteHeader(status)
	}))
	t.Cleanup(ws.Server.Close)
	return ws
}

// SetStatus changes the status code returned to later requests.
func (w *WebhookServer) SetStatus(code int) {
	w.mu.Lock()
	w.status = code
	w.mu.Unlock()
}

// URL returns the server URL.
func (w *WebhookServer) URL() string {
	return w.Server.URL
}

// Captures returns a copy of all captured requests.
func (w *WebhookServer) Captures() []WebhookCapture {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WebhookCapture, len(w.captures))
	copy(out, w.captures)
	return out
}

// WaitForCaptures waits until at least n requests arrived or timeout elapses.
func (w *WebhookServer) WaitForCaptures(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		w.mu.Lock()
		count := len(w.captures)
		w.mu.Unlock()
		if count >= n {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}
