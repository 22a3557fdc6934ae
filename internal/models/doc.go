// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
Package models defines the persistent records and API envelopes of Tenantvault.

Database Models (gorm tags, see internal/store):

  - BackupArtifact: one produced backup, table tenant_backups
  - RestoreOperation: one restore attempt with per-table ValidationResults, table tenant_restores
  - DeletionRequest: the GDPR/KVKK ledger entry, table gdpr_deletion_requests
  - Tenant: the tenant registry used for plan selection, table tenants

Enumerations carry a Valid method so flags and API input can be checked before
they reach an orchestrator.

API Models:

  - APIResponse, APIError, Metadata: the JSON envelope used by the serve-mode API
*/
package models
