// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package logging provides centralized zerolog-based structured logging for Tenantvault.
//
// Every pipeline component logs through this package so that backup, restore,
// retention and deletion runs share one output format and one set of field
// names.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("tenant_id", id).Msg("Backup started")
//	logging.Error().Err(err).Msg("Upload failed")
//
//	// Correlation and tenant IDs travel on the context
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	ctx = logging.ContextWithTenant(ctx, "t1")
//	logging.Ctx(ctx).Info().Msg("Restoring schema")
//
// # Field Names
//
//	time, level, message, error, caller  - zerolog defaults, renamed for consistency
//	correlation_id                       - one per CLI invocation or supervised job run
//	tenant_id                            - set by orchestrators before per-tenant work
//	component                            - set via WithComponent
//
// # slog Interop
//
// NewSlogLogger returns a *slog.Logger that writes through zerolog. The
// supervisor package uses it to hand sutureslog a logger.
//
// Secrets (archive keys, database passwords, service keys) must never be
// passed to any logging call.
package logging
