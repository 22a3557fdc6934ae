// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package store persists pipeline metadata with gorm.
//
// Production deployments use the postgres dialect against the same server that
// holds the tenant schemas; the sqlite dialect (pure Go, no cgo) serves local
// runs and tests. Records are defined in internal/models.
//
// Tables:
//
//   - tenant_backups: one row per BackupArtifact, deleted only by the retention sweeper
//   - gdpr_deletion_requests: the deletion ledger, updated in place, never deleted
//   - tenant_restores: one row per restore attempt
//   - tenants: registry used for --plan selection
package store
