// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
api_service.go - Status API Service

Runs the read-only status API (backup listings, restore history, health)
under the supervisor's api branch.

Lifecycle:
  - Serve starts the listener and logs the bound address
  - A listener failure (port taken, permission denied) returns an error naming
    the address, so suture restarts the service with backoff
  - Context cancellation drains in-flight requests for at most the drain
    timeout, then returns ctx.Err()

Each listener start is counted; Starts reports how often suture has brought
the API up, which is 1 in a healthy process.
*/

//nolint:staticcheck // File documentation, not package doc
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tenantvault/internal/logging"
)

// StatusAPIName is the supervisor name of the status API service.
const StatusAPIName = "status-api"

// DefaultDrainTimeout bounds request draining when none is configured.
const DefaultDrainTimeout = 10 * time.Second

// APIServer is the lifecycle subset of *http.Server.
type APIServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// StatusAPIService runs an APIServer as a suture.Service.
type StatusAPIService struct {
	server       APIServer
	addr         string
	drainTimeout time.Duration
	log          zerolog.Logger

	starts atomic.Int64
}

// NewStatusAPIService wraps server listening on addr. drainTimeout bounds
// connection draining on shutdown and defaults to DefaultDrainTimeout.
func NewStatusAPIService(server APIServer, addr string, drainTimeout time.Duration) *StatusAPIService {
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTimeout
	}
	return &StatusAPIService{
		server:       server,
		addr:         addr,
		drainTimeout: drainTimeout,
		log:          logging.WithComponent(StatusAPIName).With().Str("addr", addr).Logger(),
	}
}

// Serve implements suture.Service. It returns ctx.Err() after a clean drain
// and wraps listener or drain failures.
func (s *StatusAPIService) Serve(ctx context.Context) error {
	start := s.starts.Add(1)
	s.log.Info().Int64("start", start).Msg("Status API listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.log.Error().Err(err).Msg("Status API listener failed")
			return fmt.Errorf("status api on %s: %w", s.addr, err)
		}
		return nil

	case <-ctx.Done():
		// ctx is already done; draining needs its own deadline.
		drainCtx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
		defer cancel()

		began := time.Now()
		if err := s.server.Shutdown(drainCtx); err != nil {
			s.log.Warn().Err(err).Dur("drain_timeout", s.drainTimeout).Msg("Status API drain incomplete")
			return fmt.Errorf("status api drain: %w", err)
		}
		<-errCh
		s.log.Info().Dur("drained_in", time.Since(began)).Msg("Status API stopped")
		return ctx.Err()
	}
}

// Starts reports how many times Serve has started the listener.
func (s *StatusAPIService) Starts() int64 {
	return s.starts.Load()
}

func (s *StatusAPIService) String() string {
	return StatusAPIName
}
