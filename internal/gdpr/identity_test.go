// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package gdpr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/tenantvault/internal/config"
)

func newTestAdminClient(t *testing.T, h http.HandlerFunc) *AdminClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewAdminClient(config.IdentityConfig{URL: srv.URL + "/", ServiceKey: "service-key", Timeout: 5 * time.Second})
}

func TestAdminClient_Requests(t *testing.T) {
	t.Parallel()

	type seen struct {
		method, path, auth, apikey string
		body                       map[string]interface{}
	}
	var (
		mu     sync.Mutex
		latest seen
	)
	c := newTestAdminClient(t, func(w http.ResponseWriter, r *http.Request) {
		s := seen{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization"), apikey: r.Header.Get("apikey")}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &s.body)
		}
		mu.Lock()
		latest = s
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()
	got := func() seen {
		mu.Lock()
		defer mu.Unlock()
		return latest
	}

	if err := c.BanUser(ctx, "u1", PermanentBan); err != nil {
		t.Fatal(err)
	}
	last := got()
	if last.method != http.MethodPut || last.path != "/admin/users/u1" || last.body["ban_duration"] != PermanentBan {
		t.Errorf("ban request = %+v", last)
	}
	if last.auth != "Bearer service-key" || last.apikey != "service-key" {
		t.Errorf("auth headers = %q / %q", last.auth, last.apikey)
	}

	if err := c.UpdateEmail(ctx, "u1", "x@anonymized.invalid"); err != nil {
		t.Fatal(err)
	}
	last = got()
	if last.body["email"] != "x@anonymized.invalid" || last.body["email_confirm"] != true {
		t.Errorf("email body = %v", last.body)
	}

	if err := c.DeleteUser(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	last = got()
	if last.method != http.MethodDelete || last.body != nil {
		t.Errorf("delete request = %+v", last)
	}
}

func TestAdminClient_NotFound(t *testing.T) {
	t.Parallel()

	c := newTestAdminClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "user not found", http.StatusNotFound)
	})
	ctx := context.Background()

	if err := c.DeleteUser(ctx, "gone"); err != nil {
		t.Errorf("DeleteUser(missing) error = %v, want nil", err)
	}

	err := c.BanUser(ctx, "gone", PermanentBan)
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Errorf("BanUser(missing) error = %v, want StatusError 404", err)
	}
}

func TestAdminClient_BreakerOpens(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	c := newTestAdminClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := c.DeleteUser(ctx, "u1"); err == nil {
			t.Fatal("expected failure")
		}
	}
	err := c.DeleteUser(ctx, "u1")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error after 5 failures = %v, want open breaker", err)
	}
	if hits.Load() != 5 {
		t.Errorf("server hits = %d, want 5", hits.Load())
	}
}
