// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package gdpr implements user data deletion for tenant schemas.
//
// Every request is recorded in the deletion ledger with status processing
// before any data is touched, then moved to completed or failed:
//
//	processing --> completed --(soft, purge date passed)--> purged
//	           \-> failed
//
// Three deletion types are supported:
//
//   - hard: rows in every user-owned table are deleted, then the users row,
//     then the authentication identity.
//   - soft: rows are stamped with deleted_at and scheduled_purge_date, the
//     user is deactivated and the identity banned. ProcessPendingDeletions
//     later runs the hard path for requests whose purge date has passed.
//   - anonymize: personal fields are overwritten, the email is replaced with
//     deleted_<userID>@anonymized.invalid and only a keyed hash of the
//     original email is kept.
//
// When requested, the user's data is exported before the first destructive
// statement.
package gdpr
