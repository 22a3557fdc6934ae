// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
Package api is the serve-mode HTTP surface.

Routes:

	GET /healthz                              metadata store ping
	GET /metrics                              Prometheus exposition
	GET /api/v1/tenants/{tenantID}/backups    artifacts, newest first (?limit=)
	GET /api/v1/tenants/{tenantID}/restores   restore operations, newest first

Every /api/v1 response uses the models.APIResponse envelope. Tenant IDs are
checked against the identifier rule before any lookup; an invalid ID gets a
400 with code VALIDATION_ERROR.
*/
package api
