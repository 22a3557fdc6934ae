// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// WebhookOptions tunes a WebhookSink.
type WebhookOptions struct {
	// Rate is the sustained deliveries per second. Zero disables limiting.
	Rate  float64
	Burst int
	// Timeout defaults to 10s.
	Timeout time.Duration
	Headers map[string]string
}

// WebhookSink posts events as JSON.
type WebhookSink struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	headers map[string]string
}

// NewWebhookSink creates a sink posting to url.
func NewWebhookSink(url string, opts WebhookOptions) *WebhookSink {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &WebhookSink{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		headers: opts.Headers,
	}
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}
	return s
}

// Name implements Sink.
func (s *WebhookSink) Name() string { return "webhook" }

// Notify implements Sink. Any non-2xx response is an error.
func (s *WebhookSink) Notify(ctx context.Context, e Event) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("webhook rate limit: %w", err)
		}
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Tenantvault-Notify/1.0")
	req.Header.Set("X-Tenantvault-Event", string(e.Kind))
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Response body drained below

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck // Error context only
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // Drain for connection reuse
	return nil
}
