// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
Package supervisor runs tenantvault's long-lived services under suture v4.

# Overview

Serve mode builds this tree:

	RootSupervisor ("tenantvault")
	├── JobsSupervisor ("jobs-layer")
	│   ├── PeriodicService "retention-sweep"
	│   └── PeriodicService "gdpr-purge"
	├── DeliverySupervisor ("delivery-layer")
	│   └── PeriodicService "outbox-drain" (when an outbox is configured)
	└── APISupervisor ("api-layer")
	    └── StatusAPIService "status-api"

Each layer restarts independently: a purge job that keeps failing backs off
without taking the health endpoint down with it.

# Logging

Supervisor events (restarts, backoff, stop timeouts) go through sutureslog
into the zerolog-backed slog handler from internal/logging:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})

# Shutdown

Cancel the context passed to Serve. Services that do not stop within
ShutdownTimeout are listed by UnstoppedServiceReport.
*/
package supervisor
