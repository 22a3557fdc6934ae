// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/tenantvault/internal/api"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/supervisor"
	"github.com/tomtom215/tenantvault/internal/supervisor/services"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled jobs and the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}
}

func (a *app) runServe(ctx context.Context) error {
	meta, err := a.metadata()
	if err != nil {
		return err
	}
	// Jobs run concurrently, so the shared notifier is built up front.
	dispatcher, err := a.notifier()
	if err != nil {
		return err
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	sweeper, err := a.sweeper(ctx, false)
	if err != nil {
		return err
	}
	tree.AddJobService(services.NewPeriodicService("retention-sweep", a.cfg.Backup.Retention.SweepInterval, true,
		func(ctx context.Context) error {
			result, err := sweeper.Sweep(ctx)
			if err != nil {
				return err
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d artifacts could not be removed", len(result.Errors))
			}
			return nil
		}))

	engine, err := a.gdprEngine(ctx)
	if err != nil {
		return err
	}
	tree.AddJobService(services.NewPeriodicService("gdpr-purge", a.cfg.GDPR.PurgeInterval, true,
		func(ctx context.Context) error {
			result, err := engine.ProcessPendingDeletions(logging.ContextWithNewCorrelationID(ctx))
			if result != nil {
				dispatcher.Dispatch(ctx, result.Events...)
			}
			if err != nil {
				return err
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d purges failed", len(result.Failed))
			}
			return nil
		}))

	if a.cfg.Notify.OutboxPath != "" {
		tree.AddDeliveryService(services.NewPeriodicService("outbox-drain", a.cfg.Notify.DrainInterval, false,
			func(ctx context.Context) error {
				_, err := dispatcher.Drain(ctx)
				return err
			}))
	}

	router := api.NewRouter(api.NewHandler(meta), api.RouterConfig{
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow,
	})
	server := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	tree.AddAPIService(services.NewStatusAPIService(server, a.cfg.Server.Addr, a.cfg.Server.ShutdownTimeout))

	logging.Info().
		Str("addr", a.cfg.Server.Addr).
		Dur("sweep_interval", a.cfg.Backup.Retention.SweepInterval).
		Dur("purge_interval", a.cfg.GDPR.PurgeInterval).
		Bool("outbox_drain", a.cfg.Notify.OutboxPath != "").
		Msg("Starting supervisor tree")

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		logging.Warn().Int("count", len(report)).Msg("Services did not stop within the shutdown timeout")
	}
	if err == nil || errors.Is(err, context.Canceled) {
		logging.Info().Msg("Shutdown complete")
		return nil
	}
	return err
}
