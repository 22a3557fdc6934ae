// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
Package services adapts tenantvault components to suture.Service.

	StatusAPIService    ListenAndServe/Shutdown   -> Serve(ctx)
	PeriodicService     func(ctx) error on a tick -> Serve(ctx)

PeriodicService drives the retention sweep, the GDPR purge job and the
notification outbox drain in serve mode. A failing run is logged and counted;
the service keeps its schedule so one bad tick does not burn the supervisor's
restart budget. Panics still reach suture and trigger a restart.
*/
package services
