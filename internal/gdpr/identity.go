// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
identity.go - Authentication Provider Admin Client

AdminClient talks to a GoTrue-style admin API:

	DELETE /admin/users/{id}
	PUT    /admin/users/{id}  {"ban_duration": "876000h"}
	PUT    /admin/users/{id}  {"email": "...", "email_confirm": true}

Calls go through a circuit breaker so a down provider fails deletions fast
instead of stalling the purge job on every request.
*/

//nolint:staticcheck // File documentation, not package doc
package gdpr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/tenantvault/internal/config"
	"github.com/tomtom215/tenantvault/internal/logging"
)

// PermanentBan is the ban duration applied by soft deletion.
const PermanentBan = "876000h"

// IdentityProvider manages the authentication identity behind a user.
type IdentityProvider interface {
	DeleteUser(ctx context.Context, userID string) error
	BanUser(ctx context.Context, userID, duration string) error
	UpdateEmail(ctx context.Context, userID, email string) error
}

// StatusError is a non-2xx admin API response.
type StatusError struct {
	Method string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("identity provider %s returned %d: %s", e.Method, e.Status, e.Body)
}

// AdminClient implements IdentityProvider over HTTP.
type AdminClient struct {
	baseURL    string
	serviceKey string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker[struct{}]
}

// NewAdminClient creates an AdminClient for cfg.URL.
func NewAdminClient(cfg config.IdentityConfig) *AdminClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &AdminClient{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
		client:     &http.Client{Timeout: timeout},
	}
	c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "identity-admin",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Identity provider circuit breaker state changed")
		},
	})
	return c
}

// DeleteUser removes the identity. A missing identity is not an error.
func (c *AdminClient) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, userID, nil, true)
}

// BanUser bans the identity for duration, e.g. PermanentBan.
func (c *AdminClient) BanUser(ctx context.Context, userID, duration string) error {
	return c.do(ctx, http.MethodPut, userID, map[string]interface{}{"ban_duration": duration}, false)
}

// UpdateEmail replaces the identity's email without a confirmation round trip.
func (c *AdminClient) UpdateEmail(ctx context.Context, userID, email string) error {
	return c.do(ctx, http.MethodPut, userID, map[string]interface{}{"email": email, "email_confirm": true}, false)
}

func (c *AdminClient) do(ctx context.Context, method, userID string, body interface{}, notFoundOK bool) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.send(ctx, method, userID, body, notFoundOK)
	})
	if err != nil {
		return fmt.Errorf("identity %s user %s: %w", strings.ToLower(method), userID, err)
	}
	return nil
}

func (c *AdminClient) send(ctx context.Context, method, userID string, body interface{}, notFoundOK bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/admin/users/"+url.PathEscape(userID), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("User-Agent", "Tenantvault/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Response body close

	if resp.StatusCode == http.StatusNotFound && notFoundOK {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck // Best effort error body
		return &StatusError{Method: method, Status: resp.StatusCode, Body: string(msg)}
	}
	return nil
}
